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

// Package bloom implements the byte-aligned bloom filters which guard
// batched queues against duplicate admissions.
//
// Bit positions come from double hashing: SHA-256 over a domain byte and the
// value yields two 64-bit words h1 and h2, and round i sets bit
// (h1 + i*h2) mod capacity. Bits are numbered least significant first within
// each byte.
package bloom

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
)

const domain = 0xB0

var (
	// ErrCapacityNotByteAligned is returned for capacities that are zero or
	// not a multiple of 8 bits.
	ErrCapacityNotByteAligned = errors.New(errors.InvalidArgument, "bloom: capacity must be a positive multiple of 8 bits")
	// ErrNoIterations is returned when num_iters is zero.
	ErrNoIterations = errors.New(errors.InvalidArgument, "bloom: at least one hash round is required")
)

// Filter is a bloom filter over 32-byte values. It is not safe for
// concurrent use.
type Filter struct {
	numIters uint32
	capacity uint64
	inserted uint64
	bits     []byte
}

// New returns an empty filter of capacity bits using numIters hash rounds.
func New(capacity uint64, numIters uint32) (*Filter, error) {
	if err := checkParams(capacity, numIters); err != nil {
		return nil, err
	}
	return &Filter{numIters: numIters, capacity: capacity, bits: make([]byte, capacity/8)}, nil
}

func checkParams(capacity uint64, numIters uint32) error {
	if capacity == 0 || capacity%8 != 0 {
		return errors.Errorf(errors.InvalidArgument, "capacity %d: %w", capacity, ErrCapacityNotByteAligned)
	}
	if numIters == 0 {
		return ErrNoIterations
	}
	return nil
}

// Capacity returns the filter size in bits.
func (f *Filter) Capacity() uint64 { return f.capacity }

// NumIters returns the number of hash rounds.
func (f *Filter) NumIters() uint32 { return f.numIters }

// Inserted returns the number of inserts since creation or the last Zero.
func (f *Filter) Inserted() uint64 { return f.inserted }

func hashPair(v merkle.Hash) (uint64, uint64) {
	var buf [1 + merkle.HashSize]byte
	buf[0] = domain
	copy(buf[1:], v[:])
	sum := sha256.Sum256(buf[:])
	h1 := binary.BigEndian.Uint64(sum[0:8])
	h2 := binary.BigEndian.Uint64(sum[8:16])
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

// Insert adds v.
func (f *Filter) Insert(v merkle.Hash) {
	h1, h2 := hashPair(v)
	for i := uint64(0); i < uint64(f.numIters); i++ {
		j := (h1 + i*h2) % f.capacity
		f.bits[j>>3] |= 1 << (j & 7)
	}
	f.inserted++
}

// Contains reports whether v may have been inserted. A false result is
// always correct.
func (f *Filter) Contains(v merkle.Hash) bool {
	h1, h2 := hashPair(v)
	for i := uint64(0); i < uint64(f.numIters); i++ {
		j := (h1 + i*h2) % f.capacity
		if f.bits[j>>3]&(1<<(j&7)) == 0 {
			return false
		}
	}
	return true
}

// Zero clears every bit.
func (f *Filter) Zero() {
	clear(f.bits)
	f.inserted = 0
}

// IsZero reports whether no bit is set.
func (f *Filter) IsZero() bool {
	for _, b := range f.bits {
		if b != 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (f *Filter) Clone() *Filter {
	c := *f
	c.bits = append([]byte(nil), f.bits...)
	return &c
}
