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
	"time"

	"github.com/canopyledger/canopy/errors"
)

// Config tunes a Coordinator.
type Config struct {
	// PageSizeBatches is the number of zkp batches fetched per page.
	PageSizeBatches int `yaml:"page_size_batches"`
	// MaxZkpBatchesPerCycle caps the zkp batches one cycle proves. Zero
	// means every pending zkp batch.
	MaxZkpBatchesPerCycle int `yaml:"max_zkp_batches_per_cycle"`
	// NumProofWorkers bounds the proofs in flight.
	NumProofWorkers int `yaml:"num_proof_workers"`
	// ReassemblyCapacity bounds how far ahead of the lowest outstanding
	// sequence a job may be dispatched.
	ReassemblyCapacity int `yaml:"reassembly_capacity"`
	// MaxInstructionsPerTx flushes a transaction once it holds this many
	// instructions.
	MaxInstructionsPerTx int `yaml:"max_instructions_per_tx"`
	// FlushThresholdSlots flushes a transaction early once fewer slots
	// than this remain in the submission window.
	FlushThresholdSlots int64 `yaml:"flush_threshold_slots"`

	ProofTimeout time.Duration `yaml:"proof_timeout"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// MaxRetries is the number of retries after a failed proof, fetch or
	// submission attempt, if the failure is transient.
	MaxRetries           int           `yaml:"max_retries"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`
}

// DefaultConfig returns the settings used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		PageSizeBatches:      4,
		NumProofWorkers:      4,
		ReassemblyCapacity:   32,
		MaxInstructionsPerTx: 4,
		FlushThresholdSlots:  5,
		ProofTimeout:         2 * time.Minute,
		FetchTimeout:         10 * time.Second,
		MaxRetries:           3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageSizeBatches == 0 {
		c.PageSizeBatches = d.PageSizeBatches
	}
	if c.NumProofWorkers == 0 {
		c.NumProofWorkers = d.NumProofWorkers
	}
	if c.ReassemblyCapacity == 0 {
		c.ReassemblyCapacity = d.ReassemblyCapacity
	}
	if c.MaxInstructionsPerTx == 0 {
		c.MaxInstructionsPerTx = d.MaxInstructionsPerTx
	}
	if c.ProofTimeout == 0 {
		c.ProofTimeout = d.ProofTimeout
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = d.RetryInitialInterval
	}
	if c.RetryMaxInterval == 0 {
		c.RetryMaxInterval = d.RetryMaxInterval
	}
	return c
}

// Validate checks c after defaults are applied.
func (c Config) Validate() error {
	switch {
	case c.PageSizeBatches < 0:
		return errors.Errorf(errors.InvalidArgument, "page_size_batches %d", c.PageSizeBatches)
	case c.MaxZkpBatchesPerCycle < 0:
		return errors.Errorf(errors.InvalidArgument, "max_zkp_batches_per_cycle %d", c.MaxZkpBatchesPerCycle)
	case c.NumProofWorkers < 0:
		return errors.Errorf(errors.InvalidArgument, "num_proof_workers %d", c.NumProofWorkers)
	case c.ReassemblyCapacity < c.NumProofWorkers:
		return errors.Errorf(errors.InvalidArgument, "reassembly_capacity %d below num_proof_workers %d", c.ReassemblyCapacity, c.NumProofWorkers)
	case c.MaxInstructionsPerTx < 0:
		return errors.Errorf(errors.InvalidArgument, "max_instructions_per_tx %d", c.MaxInstructionsPerTx)
	case c.FlushThresholdSlots < 0:
		return errors.Errorf(errors.InvalidArgument, "flush_threshold_slots %d", c.FlushThresholdSlots)
	case c.MaxRetries < 0:
		return errors.Errorf(errors.InvalidArgument, "max_retries %d", c.MaxRetries)
	case c.ProofTimeout < 0 || c.FetchTimeout < 0:
		return errors.Errorf(errors.InvalidArgument, "negative timeout")
	case c.RetryMaxInterval < c.RetryInitialInterval:
		return errors.Errorf(errors.InvalidArgument, "retry_max_interval %v below retry_initial_interval %v", c.RetryMaxInterval, c.RetryInitialInterval)
	}
	return nil
}
