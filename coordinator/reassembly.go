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

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/errors"
)

var (
	// ErrStaleSequence is returned when inserting a sequence which was
	// already released.
	ErrStaleSequence = errors.New(errors.Aborted, "coordinator: stale sequence")
	// ErrReassemblyOverflow is returned when inserting a sequence too far
	// ahead of the lowest outstanding one.
	ErrReassemblyOverflow = errors.New(errors.ResourceExhausted, "coordinator: reassembly buffer overflow")
)

// ProofResult is a proven instruction waiting to be committed.
type ProofResult struct {
	// Sequence is the commit position: zkp batches are proven in any order
	// but committed by increasing Sequence.
	Sequence    uint64
	Instruction batched.Instruction
	// RoundTripMillis covers dispatch to answer, retries included.
	RoundTripMillis int64
	// ProofMillis is what the prover reported.
	ProofMillis int64
	SubmittedAt time.Time
	// Cached is set for proofs taken from the proof cache.
	Cached bool
}

// ReassemblyBuffer restores sequence order over out-of-order results. It is
// a fixed-capacity circular buffer: slot (head + seq - base) mod capacity
// holds sequence seq. It is not safe for concurrent use.
type ReassemblyBuffer struct {
	slots []*ProofResult
	head  int
	base  uint64
	count int
}

// NewReassemblyBuffer returns an empty buffer expecting base next.
func NewReassemblyBuffer(capacity int, base uint64) (*ReassemblyBuffer, error) {
	if capacity <= 0 {
		return nil, errors.Errorf(errors.InvalidArgument, "coordinator: reassembly capacity %d", capacity)
	}
	return &ReassemblyBuffer{slots: make([]*ProofResult, capacity), base: base}, nil
}

// Base returns the lowest outstanding sequence.
func (b *ReassemblyBuffer) Base() uint64 { return b.base }

// Len returns the number of buffered results.
func (b *ReassemblyBuffer) Len() int { return b.count }

// Insert buffers r. Inserting a sequence twice replaces the earlier result.
func (b *ReassemblyBuffer) Insert(r *ProofResult) error {
	if r.Sequence < b.base {
		return errors.Errorf(errors.Aborted, "sequence %d below base %d: %w", r.Sequence, b.base, ErrStaleSequence)
	}
	off := r.Sequence - b.base
	if off >= uint64(len(b.slots)) {
		return errors.Errorf(errors.ResourceExhausted, "sequence %d beyond base %d + capacity %d: %w", r.Sequence, b.base, len(b.slots), ErrReassemblyOverflow)
	}
	i := (b.head + int(off)) % len(b.slots)
	if b.slots[i] == nil {
		b.count++
	}
	b.slots[i] = r
	return nil
}

// PopNext returns the result for the base sequence and advances the base, or
// returns false if that result has not arrived.
func (b *ReassemblyBuffer) PopNext() (*ProofResult, bool) {
	r := b.slots[b.head]
	if r == nil {
		return nil, false
	}
	b.slots[b.head] = nil
	b.head = (b.head + 1) % len(b.slots)
	b.base++
	b.count--
	return r, true
}

// Drain removes and returns every buffered result in sequence order, gaps
// skipped. The base is left unchanged.
func (b *ReassemblyBuffer) Drain() []*ProofResult {
	out := make([]*ProofResult, 0, b.count)
	for off := range b.slots {
		i := (b.head + off) % len(b.slots)
		if r := b.slots[i]; r != nil {
			out = append(out, r)
			b.slots[i] = nil
		}
	}
	b.count = 0
	return out
}
