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

package merkle

import (
	"github.com/canopyledger/canopy/errors"
)

// MaxHeight bounds tree heights so that leaf indices fit in a uint64 with
// room to spare.
const MaxHeight = 48

var (
	// ErrTreeFull is returned when appending to a tree holding 2^height leaves.
	ErrTreeFull = errors.New(errors.ResourceExhausted, "merkle: tree is full")
	// ErrIndexOutOfRange is returned for leaf indices at or beyond the next index.
	ErrIndexOutOfRange = errors.New(errors.OutOfRange, "merkle: leaf index out of range")
	// ErrInvalidProof is returned when a proof does not hash to the expected root.
	ErrInvalidProof = errors.New(errors.FailedPrecondition, "merkle: invalid proof")
	// ErrInvalidOptions is returned for unusable tree parameters.
	ErrInvalidOptions = errors.New(errors.InvalidArgument, "merkle: invalid tree options")
)

// TreeOptions are the fixed parameters of an accumulator.
type TreeOptions struct {
	// Height is the number of levels below the root. A tree holds up to
	// 2^Height leaves.
	Height uint32
	// CanopyDepth is the number of levels directly below the root whose
	// nodes are cached. Proofs omit the siblings on those levels.
	CanopyDepth uint32
	// RootHistory is the capacity of the root history ring buffer.
	RootHistory uint32
}

// Validate checks the options for internal consistency.
func (o TreeOptions) Validate() error {
	switch {
	case o.Height == 0 || o.Height > MaxHeight:
		return errors.Errorf(errors.InvalidArgument, "height %d not in [1, %d]: %w", o.Height, MaxHeight, ErrInvalidOptions)
	case o.CanopyDepth >= o.Height:
		return errors.Errorf(errors.InvalidArgument, "canopy depth %d must be below height %d: %w", o.CanopyDepth, o.Height, ErrInvalidOptions)
	case o.RootHistory == 0:
		return errors.Errorf(errors.InvalidArgument, "root history must be positive: %w", ErrInvalidOptions)
	}
	return nil
}

// Capacity returns the maximum number of leaves.
func (o TreeOptions) Capacity() uint64 { return uint64(1) << o.Height }

// ProofLength returns the number of siblings in a truncated proof.
func (o TreeOptions) ProofLength() int { return int(o.Height - o.CanopyDepth) }

// CanopySize returns the number of cached canopy nodes.
func (o TreeOptions) CanopySize() int { return CanopySize(o.CanopyDepth) }

// CanopySize returns the number of nodes on the top depth levels below the
// root: 2 + 4 + ... + 2^depth.
func CanopySize(depth uint32) int {
	return (1 << (depth + 1)) - 2
}

// CanopyOffset returns the position of node index at level within a canopy
// laid out level by level from just below the root downwards. level counts
// from the leaves, so valid levels are [height-depth, height).
func CanopyOffset(height, level uint32, index uint64) int {
	c := height - level
	return (1 << c) - 2 + int(index)
}
