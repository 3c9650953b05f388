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

// Package proofcache keeps proven instructions which could not be submitted
// before the submission window closed, so a later window can reuse them
// instead of proving the same transition again. Entries are keyed by the
// transition's old and new root.
package proofcache

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
)

// ErrCacheFull is returned by Put when the cache holds its capacity.
var ErrCacheFull = errors.New(errors.ResourceExhausted, "proofcache: cache full")

// Key identifies a transition.
type Key struct {
	OldRoot merkle.Hash
	NewRoot merkle.Hash
}

func (k Key) String() string {
	return fmt.Sprintf("%s->%s", k.OldRoot.Short(), k.NewRoot.Short())
}

// Entry is a cached proof.
type Entry struct {
	Instruction batched.Instruction
	// ProofMillis is the prover time spent on the proof.
	ProofMillis int64
}

// Key returns the key e is stored under.
func (e *Entry) Key() Key {
	return Key{OldRoot: e.Instruction.OldRoot, NewRoot: e.Instruction.NewRoot}
}

// Cache stores entries until they are taken. Implementations are safe for
// concurrent use.
type Cache interface {
	// Put stores e, replacing any entry with the same key.
	Put(ctx context.Context, e *Entry) error
	// Take removes and returns the entry for k. It returns nil if there is
	// none.
	Take(ctx context.Context, k Key) (*Entry, error)
}

// encode lays out an entry as proof millis (8 bytes big-endian) followed by
// the encoded instruction.
func encode(e *Entry) []byte {
	ins := e.Instruction.Encode()
	b := make([]byte, 8, 8+len(ins))
	binary.BigEndian.PutUint64(b, uint64(e.ProofMillis))
	return append(b, ins...)
}

func decode(b []byte) (*Entry, error) {
	if len(b) < 8 {
		return nil, errors.Errorf(errors.DataLoss, "proofcache: %d byte entry", len(b))
	}
	ins, err := batched.DecodeInstruction(b[8:])
	if err != nil {
		return nil, errors.Errorf(errors.DataLoss, "proofcache: %w", err)
	}
	return &Entry{Instruction: ins, ProofMillis: int64(binary.BigEndian.Uint64(b))}, nil
}
