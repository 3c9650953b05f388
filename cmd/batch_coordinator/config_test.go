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

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/coordinator"
	"github.com/canopyledger/canopy/coordinator/prover"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/quota"
	"github.com/canopyledger/canopy/storage"
	"github.com/canopyledger/canopy/storage/memory"
	"github.com/canopyledger/canopy/util/clock"
	"github.com/stretchr/testify/require"
)

const exampleConfig = `
coordinator:
  num_proof_workers: 8
  max_instructions_per_tx: 2
  proof_timeout: 30s
accounts:
  - id: state-1
    type: state
    height: 16
    canopy_depth: 4
    root_history: 32
    input_queue: &q
      num_batches: 2
      zkp_batch_size: 10
      zkp_batches_per_batch: 5
      bloom_filter_capacity: 8192
      bloom_filter_num_iters: 3
    output_queue: *q
  - id: addresses
    type: address
    strategy: RFC6962_SHA256
    height: 16
    canopy_depth: 4
    root_history: 32
    input_queue: *q
quota:
  queue:
    capacity: 100
    refill_per_second: 10
slots:
  genesis_unix: 1700000000
  slot_duration: 400ms
  window:
    start: 0
    end: 50
    period: 100
`

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]byte(exampleConfig))
	require.NoError(t, err)

	want := coordinator.DefaultConfig()
	want.NumProofWorkers = 8
	want.MaxInstructionsPerTx = 2
	want.ProofTimeout = 30 * time.Second
	require.Equal(t, want, cfg.Coordinator)

	require.Len(t, cfg.Accounts, 2)
	for i, typ := range []batched.Type{batched.StateTree, batched.AddressTree} {
		tr, err := cfg.Accounts[i].tree()
		require.NoError(t, err)
		require.Equal(t, typ, tr.Type())
	}
	require.Equal(t, 100, cfg.Quota.Queue.Capacity)
	require.Nil(t, cfg.Quota.Global)
	require.Equal(t, 400*time.Millisecond, cfg.Slots.SlotDuration)
	require.Equal(t, clock.Window{Start: 0, End: 50, Period: 100}, cfg.Slots.Window)

	_, ok := cfg.Quota.manager(clock.System).(*quota.Memory)
	require.True(t, ok)
	src, err := cfg.Slots.source(clock.System)
	require.NoError(t, err)
	_, ok = src.(*clock.SlotClock)
	require.True(t, ok)
}

func TestParseConfigErrors(t *testing.T) {
	for _, tc := range []struct {
		desc string
		yaml string
	}{
		{desc: "unknown-field", yaml: "coordinater: {}"},
		{desc: "bad-coordinator", yaml: "coordinator: {num_proof_workers: 64, reassembly_capacity: 8}"},
		{desc: "no-id", yaml: "accounts: [{type: state, height: 8, root_history: 4}]"},
		{desc: "repeated-id", yaml: exampleAccounts("a", "a")},
		{desc: "bad-type", yaml: "accounts: [{id: x, type: map, height: 8, root_history: 4}]"},
		{desc: "bad-strategy", yaml: "accounts: [{id: x, type: state, strategy: MD5, height: 8, root_history: 4}]"},
		{desc: "empty-window", yaml: "slots: {slot_duration: 1s, window: {start: 5, end: 5}}"},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := parseConfig([]byte(tc.yaml))
			require.Error(t, err)
		})
	}
}

func exampleAccounts(ids ...string) string {
	out := "accounts:\n"
	for _, id := range ids {
		out += "  - {id: " + id + ", type: state, height: 8, canopy_depth: 1, root_history: 8, input_queue: {num_batches: 2, zkp_batch_size: 2, zkp_batches_per_batch: 2, bloom_filter_capacity: 1024, bloom_filter_num_iters: 3}, output_queue: {num_batches: 2, zkp_batch_size: 2, zkp_batches_per_batch: 2, bloom_filter_capacity: 1024, bloom_filter_num_iters: 3}}\n"
	}
	return out
}

func TestLoadConfigAndCreateAccounts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trees.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0o600))
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	host := storage.NewHost(memory.NewBackend(), prover.DigestVerifier{}, nil)
	require.NoError(t, createAccounts(ctx, host, cfg.Accounts))
	// A restart finds the accounts in place.
	require.NoError(t, createAccounts(ctx, host, cfg.Accounts))
	ids, err := host.ListAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, []storage.AccountID{"addresses", "state-1"}, ids)

	_, err = loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestNoQuota(t *testing.T) {
	var q quotaConfig
	require.NoError(t, q.manager(clock.System).GetTokens(context.Background(), 1000, quota.Specs("q", quota.Prove)))
	var s *slotConfig
	src, err := s.source(clock.System)
	require.NoError(t, err)
	require.Equal(t, clock.Unbounded{}, src)
}

func TestHTTPHandler(t *testing.T) {
	host := storage.NewHost(memory.NewBackend(), prover.DigestVerifier{}, nil)
	s := httptest.NewServer(httpHandler(host))
	defer s.Close()
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(s.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestFlagError(t *testing.T) {
	require.Equal(t, errors.InvalidArgument, errors.ErrorCode(flagError("storage_system", "etcd")))
}
