// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The batch_coordinator binary runs an in-process ledger host and the
// coordinator which proves and commits its queued batches.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canopyledger/canopy/cmd"
	"github.com/canopyledger/canopy/coordinator"
	"github.com/canopyledger/canopy/coordinator/prover"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/monitoring/prometheus"
	"github.com/canopyledger/canopy/proofcache"
	"github.com/canopyledger/canopy/storage"
	"github.com/canopyledger/canopy/storage/ldb"
	"github.com/canopyledger/canopy/storage/memory"
	"github.com/canopyledger/canopy/util/clock"
	"github.com/go-redis/redis"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

var (
	httpEndpoint = flag.String("http_endpoint", "localhost:8091", "Endpoint for /metrics and /healthz (host:port, empty means disabled)")
	treeConfig   = flag.String("tree_config", "", "YAML file with the accounts, coordinator, quota and slot settings")
	runInterval  = flag.Duration("run_interval", time.Second, "Time between passes over all accounts")
	numWorkers   = flag.Int("num_workers", 4, "Number of accounts processed in parallel")
	passTimeout  = flag.Duration("pass_timeout", coordinator.DefaultTimeout, "Timeout on one pass over all accounts")

	storageSystem = flag.String("storage_system", "memory", "Host storage to use. One of: memory, leveldb")
	leveldbPath   = flag.String("leveldb_path", "", "Directory of the LevelDB host storage")

	proverURL   = flag.String("prover_url", "", "Base URL of a remote proof server. If unset, proofs are computed in-process")
	proverDelay = flag.Duration("local_prover_delay", 0, "Artificial latency of the in-process prover")

	redisAddr      = flag.String("redis_addr", "", "Address of a Redis server for the proof cache. If unset, the cache is in memory")
	cachePrefix    = flag.String("proof_cache_prefix", "canopy", "Key prefix of proof cache entries in Redis")
	cacheCapacity  = flag.Int("proof_cache_capacity", 1024, "Capacity of the in-memory proof cache")
	cacheTTL       = flag.Duration("proof_cache_ttl", time.Hour, "How long unsubmitted proofs are kept")
	healthzTimeout = flag.Duration("healthz_timeout", 5*time.Second, "Timeout used during healthz checks")

	configFile = flag.String("config", "", "Config file containing flags, file contents can be overridden by command line flags")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *configFile != "" {
		if err := cmd.ParseFlagFile(flag.CommandLine, *configFile, os.Args[1:]); err != nil {
			klog.Exitf("Failed to load flags from config file %q: %s", *configFile, err)
		}
	}
	klog.CopyStandardLogTo("WARNING")
	klog.Info("**** Batch Coordinator Starting ****")

	if *treeConfig == "" {
		klog.Exit("--tree_config is required")
	}
	cfg, err := loadConfig(*treeConfig)
	if err != nil {
		klog.Exitf("Failed to load %s: %v", *treeConfig, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go awaitSignal(ctx, cancel)

	mf := prometheus.MetricFactory{Prefix: "canopy_"}
	ts := clock.System

	backend, closeBackend, err := newBackend()
	if err != nil {
		klog.Exitf("Failed to open %s storage: %v", *storageSystem, err)
	}
	defer closeBackend()

	slots, err := cfg.Slots.source(ts)
	if err != nil {
		klog.Exitf("Bad slot window: %v", err)
	}
	host := storage.NewHost(backend, prover.DigestVerifier{}, slots)
	if err := createAccounts(ctx, host, cfg.Accounts); err != nil {
		klog.Exitf("Failed to create accounts: %v", err)
	}

	p, err := newProver(ts)
	if err != nil {
		klog.Exitf("Failed to create prover: %v", err)
	}
	cache, err := newProofCache(ts)
	if err != nil {
		klog.Exitf("Failed to create proof cache: %v", err)
	}

	c, err := coordinator.New(cfg.Coordinator, coordinator.Deps{
		Host:          host,
		Submitter:     host,
		Prover:        p,
		Cache:         cache,
		Quota:         cfg.Quota.manager(ts),
		Slots:         slots,
		TimeSource:    ts,
		MetricFactory: mf,
	})
	if err != nil {
		klog.Exitf("Failed to create coordinator: %v", err)
	}

	info := coordinator.OperationInfo{
		Accounts:      host,
		MetricFactory: mf,
		TimeSource:    ts,
		RunInterval:   *runInterval,
		NumWorkers:    *numWorkers,
		Timeout:       *passTimeout,
	}
	om := coordinator.NewOperationManager(info, c)

	if *httpEndpoint != "" {
		srv := &http.Server{Addr: *httpEndpoint, Handler: httpHandler(host)}
		go func() {
			klog.Infof("HTTP server starting on %v", *httpEndpoint)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				klog.Errorf("HTTP server stopped: %v", err)
			}
		}()
		defer srv.Close()
	}

	om.OperationLoop(ctx)
	klog.Infof("Stopping server, about to exit")
}

func newBackend() (storage.Backend, func(), error) {
	switch *storageSystem {
	case "memory":
		return memory.NewBackend(), func() {}, nil
	case "leveldb":
		db, err := ldb.OpenFile(*leveldbPath)
		if err != nil {
			return nil, nil, err
		}
		return ldb.New(db), func() {
			if err := db.Close(); err != nil {
				klog.Errorf("Closing LevelDB: %v", err)
			}
		}, nil
	}
	return nil, nil, flagError("storage_system", *storageSystem)
}

func newProver(ts clock.TimeSource) (prover.Prover, error) {
	if *proverURL != "" {
		klog.Infof("Using proof server at %s", *proverURL)
		return prover.NewClient(*proverURL, &http.Client{}), nil
	}
	h, err := hashers.New(hashers.RFC6962SHA256)
	if err != nil {
		return nil, err
	}
	klog.Warning("**** Using the in-process prover ****")
	l := prover.NewLocal(h, ts)
	l.Delay = *proverDelay
	return l, nil
}

func newProofCache(ts clock.TimeSource) (proofcache.Cache, error) {
	if *redisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rc.Ping().Err(); err != nil {
			return nil, err
		}
		return proofcache.NewRedis(rc, *cachePrefix, *cacheTTL), nil
	}
	return proofcache.NewMemory(*cacheCapacity, *cacheTTL, ts)
}

// httpHandler serves Prometheus metrics and a health check which lists the
// host accounts.
func httpHandler(host *storage.Host) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), *healthzTimeout)
		defer cancel()
		if _, err := host.ListAccounts(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	return mux
}

func awaitSignal(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	select {
	case sig := <-sigs:
		klog.Warningf("Signal received: %v", sig)
		cancel()
	case <-ctx.Done():
	}
}
