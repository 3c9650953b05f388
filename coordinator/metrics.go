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
	"sync"

	"github.com/canopyledger/canopy/monitoring"
)

const (
	queueLabel  = "queue"
	resultLabel = "result"
)

var (
	metricsOnce sync.Once

	phaseGauge       monitoring.Gauge
	pagesFetched     monitoring.Counter
	rootMismatches   monitoring.Counter
	fetchFailures    monitoring.Counter
	proofsRequested  monitoring.Counter
	proofLatency     monitoring.Histogram
	proofRoundTrip   monitoring.Histogram
	reassemblyDepth  monitoring.Gauge
	instructionsSent monitoring.Counter
	txsSubmitted     monitoring.Counter
	txFailures       monitoring.Counter
	txSize           monitoring.Histogram
	windowCloses     monitoring.Counter
	proofsDrained    monitoring.Counter
	cacheHits        monitoring.Counter

	knownAccounts  monitoring.Gauge
	passRuns       monitoring.Counter
	failedPassRuns monitoring.Counter
	itemsProcessed monitoring.Counter
	nonEmptyPasses monitoring.Counter
)

func createMetrics(mf monitoring.MetricFactory) {
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	phaseGauge = mf.NewGauge("queue_phase", "Current processing phase of the queue (0 idle, 1 fetching, 2 proof pending, 3 reassembling, 4 committing)", queueLabel)
	pagesFetched = mf.NewCounter("pages_fetched", "Number of pending element pages read from the host", queueLabel)
	rootMismatches = mf.NewCounter("page_root_mismatches", "Number of fetches cut short because a page was read at a different root", queueLabel)
	fetchFailures = mf.NewCounter("fetch_failures", "Number of fetch cycles failed by host errors or timeouts", queueLabel)
	proofsRequested = mf.NewCounter("proofs", "Number of zkp batch proofs by result (proved, cached, failed)", queueLabel, resultLabel)
	proofLatency = mf.NewHistogramWithBuckets("proof_seconds", "Prover reported proof time", monitoring.ProofLatencyBuckets(), queueLabel)
	proofRoundTrip = mf.NewHistogramWithBuckets("proof_round_trip_seconds", "Time from dispatch to proof, retries included", monitoring.ProofLatencyBuckets(), queueLabel)
	reassemblyDepth = mf.NewGauge("reassembly_depth", "Proofs waiting in the reassembly buffer for an earlier sequence", queueLabel)
	instructionsSent = mf.NewCounter("instructions_committed", "Number of instructions in accepted transactions", queueLabel)
	txsSubmitted = mf.NewCounter("transactions_committed", "Number of accepted transactions", queueLabel)
	txFailures = mf.NewCounter("transaction_failures", "Number of rejected transactions", queueLabel)
	txSize = mf.NewHistogramWithBuckets("transaction_instructions", "Instructions per submitted transaction", monitoring.SizeBuckets(), queueLabel)
	windowCloses = mf.NewCounter("eligibility_window_closes", "Number of cycles stopped by a closed submission window", queueLabel)
	proofsDrained = mf.NewCounter("proofs_drained", "Number of unsubmitted proofs moved into the proof cache", queueLabel)
	cacheHits = mf.NewCounter("proof_cache_hits", "Number of proofs taken from the proof cache instead of proving", queueLabel)

	knownAccounts = mf.NewGauge("known_accounts", "Set to 1 for accounts the coordinator serves", "account")
	passRuns = mf.NewCounter("pass_runs", "Number of successful passes over an account", "account")
	failedPassRuns = mf.NewCounter("failed_pass_runs", "Number of failed passes over an account", "account")
	// itemsProcessed / nonEmptyPasses is the average number of instructions
	// committed by a pass which found work.
	itemsProcessed = mf.NewCounter("items_processed", "Number of instructions committed", "account")
	nonEmptyPasses = mf.NewCounter("non_empty_passes", "Number of passes which committed at least one instruction", "account")
}
