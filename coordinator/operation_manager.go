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

package coordinator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/canopyledger/canopy/monitoring"
	"github.com/canopyledger/canopy/storage"
	"github.com/canopyledger/canopy/util/clock"
	"k8s.io/klog/v2"
)

// DefaultTimeout is the default timeout on a single pass over all accounts.
var DefaultTimeout = 5 * time.Minute

// Operation is a task run over accounts, one pass at a time.
type Operation interface {
	// ExecutePass performs a single pass of processing on a single account.
	// It returns a count of items processed (for logging) and an error.
	ExecutePass(ctx context.Context, id storage.AccountID, info *OperationInfo) (int, error)
}

// AccountLister lists the accounts to process.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]storage.AccountID, error)
}

// OperationInfo bundles up information needed for running an Operation.
type OperationInfo struct {
	Accounts      AccountLister
	MetricFactory monitoring.MetricFactory
	// TimeSource should be used by the Operation to allow mocking for tests.
	TimeSource clock.TimeSource

	// RunInterval is the time between starting passes. If a pass takes
	// longer than this interval to complete, the next pass starts
	// immediately.
	RunInterval time.Duration
	// NumWorkers is the number of accounts processed in parallel.
	NumWorkers int
	// Timeout sets an optional timeout on each pass. If unset, it defaults
	// to DefaultTimeout.
	Timeout time.Duration
}

// OperationManager runs an Operation over every account at a fixed interval.
type OperationManager struct {
	info OperationInfo
	op   Operation

	mu       sync.Mutex
	lastSeen []storage.AccountID
}

// NewOperationManager creates a new OperationManager instance.
func NewOperationManager(info OperationInfo, op Operation) *OperationManager {
	metricsOnce.Do(func() { createMetrics(info.MetricFactory) })
	if info.Timeout == 0 {
		info.Timeout = DefaultTimeout
	}
	if info.TimeSource == nil {
		info.TimeSource = clock.System
	}
	return &OperationManager{info: info, op: op}
}

func (o *OperationManager) updateAccounts(ids []storage.AccountID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		knownAccounts.Set(1, string(id))
	}
	if !slices.Equal(ids, o.lastSeen) {
		klog.Infof("Serving %d accounts: %v", len(ids), ids)
		o.lastSeen = slices.Clone(ids)
	}
}

func (o *OperationManager) listAndExecutePass(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, o.info.Timeout)
	defer cancel()

	ids, err := o.info.Accounts.ListAccounts(runCtx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %v", err)
	}
	o.updateAccounts(ids)
	executePassForAll(runCtx, &o.info, o.op, ids)
	return nil
}

// OperationSingle performs a single pass of the manager.
func (o *OperationManager) OperationSingle(ctx context.Context) {
	if err := o.listAndExecutePass(ctx); err != nil {
		klog.Errorf("failed to perform operation: %v", err)
	}
}

// OperationLoop runs passes until ctx is done.
func (o *OperationManager) OperationLoop(ctx context.Context) {
	klog.Infof("Operation manager starting")
	for {
		start := o.info.TimeSource.Now()
		if err := o.listAndExecutePass(ctx); err != nil && ctx.Err() == nil {
			klog.Errorf("failed to execute operation on accounts: %v", err)
		}
		klog.V(1).Infof("Operation manager pass complete")

		if ctx.Err() != nil {
			break
		}
		duration := o.info.TimeSource.Now().Sub(start)
		wait := o.info.RunInterval - duration
		if wait <= 0 {
			klog.V(1).Infof("Processing started at %v for %v; start next run immediately", start, duration)
			continue
		}
		klog.V(1).Infof("Processing started at %v for %v; wait %v before next run", start, duration, wait)
		if err := clock.Sleep(ctx, o.info.TimeSource, wait); err != nil {
			break
		}
	}
	klog.Infof("Operation manager shutting down")
}

// executePassForAll runs ExecutePass of op for each of ids, with up to
// info.NumWorkers passes in parallel.
func executePassForAll(ctx context.Context, info *OperationInfo, op Operation, ids []storage.AccountID) {
	startBatch := info.TimeSource.Now()

	numWorkers := info.NumWorkers
	if numWorkers <= 0 {
		klog.Warning("Running executor with NumWorkers <= 0, assuming 1")
		numWorkers = 1
	}
	klog.V(1).Infof("Running executor with %d worker(s)", numWorkers)

	work := make(chan storage.AccountID, len(ids))
	for _, id := range ids {
		work <- id
	}
	close(work)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				label := string(id)
				start := info.TimeSource.Now()
				count, err := op.ExecutePass(ctx, id, info)
				if err != nil {
					klog.Errorf("ExecutePass(%v) failed: %v", id, err)
					failedPassRuns.Inc(label)
					continue
				}
				passRuns.Inc(label)
				if count > 0 {
					d := clock.SecondsSince(info.TimeSource, start)
					klog.Infof("%v: processed %d items in %.2f seconds (%.2f qps)", id, count, d, float64(count)/d)
					itemsProcessed.Add(float64(count), label)
					nonEmptyPasses.Inc(label)
				} else {
					klog.V(1).Infof("%v: no items to process", id)
				}
			}
		}()
	}
	wg.Wait()
	klog.V(1).Infof("Group run completed in %.2f seconds", clock.SecondsSince(info.TimeSource, startBatch))
}
