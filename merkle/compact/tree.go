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

// Package compact provides the bounded-state Merkle accumulator kept on the
// ledger. Instead of every node it stores the frontier of the rightmost
// path, the cached canopy levels and a history of recent roots.
//
// A tree is created in one of two modes. Concurrent trees compute their own
// roots: leaves are appended against the frontier and updated with
// externally supplied proofs. Batched trees never see individual leaves;
// they accept proven roots for whole batches through PushRoot.
package compact

import (
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/merkle/proof"
	"github.com/canopyledger/canopy/ringbuffer"
)

// Mode selects how a tree's roots are produced.
type Mode uint8

const (
	// Concurrent trees hash appended and updated leaves themselves.
	Concurrent Mode = 1
	// Batched trees only record roots proven elsewhere.
	Batched Mode = 2
)

func (m Mode) String() string {
	switch m {
	case Concurrent:
		return "concurrent"
	case Batched:
		return "batched"
	}
	return "unknown"
}

// ErrWrongMode is returned for operations the tree's mode does not support.
var ErrWrongMode = errors.New(errors.FailedPrecondition, "compact: operation not supported in this tree mode")

// Tree is a bounded-state Merkle accumulator. It is not safe for concurrent
// use; owners serialize mutations.
type Tree struct {
	hasher   hashers.Hasher
	strategy hashers.Strategy
	opts     merkle.TreeOptions
	mode     Mode

	zero []merkle.Hash
	// filled[l] is the node at level l with index ((nextIndex-1)>>l) rounded
	// down to even: the left sibling for the next append whose path turns
	// right at level l.
	filled []merkle.Hash
	canopy []merkle.Hash

	nextIndex uint64
	seq       uint64
	roots     *ringbuffer.RingBuffer[merkle.Hash]
}

func newTree(s hashers.Strategy, opts merkle.TreeOptions, mode Mode) (*Tree, error) {
	h, err := hashers.New(s)
	if err != nil {
		return nil, err
	}
	if err := hashers.Check(h); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	roots, err := ringbuffer.New[merkle.Hash](int(opts.RootHistory))
	if err != nil {
		return nil, err
	}
	t := &Tree{
		hasher:   h,
		strategy: s,
		opts:     opts,
		mode:     mode,
		zero:     hashers.ZeroHashes(h, opts.Height),
		filled:   make([]merkle.Hash, opts.Height),
		canopy:   make([]merkle.Hash, opts.CanopySize()),
		roots:    roots,
	}
	for level := opts.Height - opts.CanopyDepth; level < opts.Height; level++ {
		width := uint64(1) << (opts.Height - level)
		for i := uint64(0); i < width; i++ {
			t.canopy[merkle.CanopyOffset(opts.Height, level, i)] = t.zero[level]
		}
	}
	return t, nil
}

// New returns an empty concurrent tree whose root history starts with the
// empty root at sequence number 0.
func New(s hashers.Strategy, opts merkle.TreeOptions) (*Tree, error) {
	t, err := newTree(s, opts, Concurrent)
	if err != nil {
		return nil, err
	}
	t.roots.Push(t.zero[opts.Height])
	return t, nil
}

// NewBatched returns an empty batched tree.
func NewBatched(s hashers.Strategy, opts merkle.TreeOptions) (*Tree, error) {
	t, err := newTree(s, opts, Batched)
	if err != nil {
		return nil, err
	}
	t.roots.Push(t.zero[opts.Height])
	return t, nil
}

// NewBatchedFrom returns a batched tree which starts with nextIndex leaves
// and the given root, for example an indexed tree holding its sentinels.
func NewBatchedFrom(s hashers.Strategy, opts merkle.TreeOptions, root merkle.Hash, nextIndex uint64) (*Tree, error) {
	t, err := newTree(s, opts, Batched)
	if err != nil {
		return nil, err
	}
	if nextIndex > opts.Capacity() {
		return nil, errors.Errorf(errors.InvalidArgument, "next index %d beyond capacity %d: %w", nextIndex, opts.Capacity(), merkle.ErrInvalidOptions)
	}
	t.nextIndex = nextIndex
	t.roots.Push(root)
	return t, nil
}

// Options returns the tree parameters.
func (t *Tree) Options() merkle.TreeOptions { return t.opts }

// Mode returns the tree mode.
func (t *Tree) Mode() Mode { return t.mode }

// Hasher returns the tree's hasher.
func (t *Tree) Hasher() hashers.Hasher { return t.hasher }

// Strategy returns the stored hash strategy identifier.
func (t *Tree) Strategy() hashers.Strategy { return t.strategy }

// NextIndex returns the number of leaves the tree holds.
func (t *Tree) NextIndex() uint64 { return t.nextIndex }

// SequenceNumber returns the number of mutations applied.
func (t *Tree) SequenceNumber() uint64 { return t.seq }

// Root returns the most recent root.
func (t *Tree) Root() merkle.Hash {
	r, _ := t.roots.Last()
	return r
}

// RootAt returns the root recorded after mutation seq.
func (t *Tree) RootAt(seq uint64) (merkle.Hash, error) { return t.roots.At(seq) }

// RootHistory returns the retained roots from oldest to newest, including
// invalidated (zero) entries.
func (t *Tree) RootHistory() []merkle.Hash { return t.roots.Values() }

// HasRoot reports whether root is a retained, valid root.
func (t *Tree) HasRoot(root merkle.Hash) bool {
	if root.IsZero() {
		return false
	}
	for _, r := range t.roots.Values() {
		if r == root {
			return true
		}
	}
	return false
}

// Canopy returns a copy of the cached canopy nodes.
func (t *Tree) Canopy() []merkle.Hash { return append([]merkle.Hash(nil), t.canopy...) }

func (t *Tree) inCanopy(level uint32) bool {
	return level >= t.opts.Height-t.opts.CanopyDepth && level < t.opts.Height
}

func (t *Tree) setCanopy(level uint32, index uint64, h merkle.Hash) {
	if t.inCanopy(level) {
		t.canopy[merkle.CanopyOffset(t.opts.Height, level, index)] = h
	}
}

func (t *Tree) pushRoot(root merkle.Hash) {
	t.seq++
	t.roots.Push(root)
}

// Append adds leaf at the next index, hashing against the frontier and the
// zero hashes, and returns the index.
func (t *Tree) Append(leaf merkle.Hash) (uint64, error) {
	if t.mode != Concurrent {
		return 0, ErrWrongMode
	}
	if t.nextIndex >= t.opts.Capacity() {
		return 0, merkle.ErrTreeFull
	}
	index := t.nextIndex
	node := leaf
	for level := uint32(0); level < t.opts.Height; level++ {
		i := index >> level
		t.setCanopy(level, i, node)
		if i&1 == 0 {
			t.filled[level] = node
			node = hashers.Children(t.hasher, node, t.zero[level])
		} else {
			node = hashers.Children(t.hasher, t.filled[level], node)
		}
	}
	t.nextIndex++
	t.pushRoot(node)
	return index, nil
}

// AppendBatch appends all leaves or none of them.
func (t *Tree) AppendBatch(leaves []merkle.Hash) (uint64, error) {
	if t.mode != Concurrent {
		return 0, ErrWrongMode
	}
	if uint64(len(leaves)) > t.opts.Capacity()-t.nextIndex {
		return 0, errors.Errorf(errors.ResourceExhausted, "%d leaves do not fit after index %d: %w", len(leaves), t.nextIndex, merkle.ErrTreeFull)
	}
	first := t.nextIndex
	for _, l := range leaves {
		if _, err := t.Append(l); err != nil {
			return 0, err
		}
	}
	return first, nil
}

// fullProof extends a truncated proof with siblings from the canopy.
func (t *Tree) fullProof(index uint64, p []merkle.Hash) ([]merkle.Hash, error) {
	switch len(p) {
	case int(t.opts.Height):
		return p, nil
	case t.opts.ProofLength():
	default:
		return nil, errors.Errorf(errors.InvalidArgument, "proof has %d siblings, want %d or %d: %w", len(p), t.opts.ProofLength(), t.opts.Height, merkle.ErrInvalidProof)
	}
	full := make([]merkle.Hash, 0, t.opts.Height)
	full = append(full, p...)
	for level := uint32(len(p)); level < t.opts.Height; level++ {
		full = append(full, t.canopy[merkle.CanopyOffset(t.opts.Height, level, (index>>level)^1)])
	}
	return full, nil
}

// Update replaces oldLeaf at index with newLeaf. p is the proof of oldLeaf
// against the current root, either full or truncated by the canopy depth.
func (t *Tree) Update(index uint64, oldLeaf, newLeaf merkle.Hash, p []merkle.Hash) error {
	if t.mode != Concurrent {
		return ErrWrongMode
	}
	if index >= t.nextIndex {
		return errors.Errorf(errors.OutOfRange, "update of leaf %d with next index %d: %w", index, t.nextIndex, merkle.ErrIndexOutOfRange)
	}
	siblings, err := t.fullProof(index, p)
	if err != nil {
		return err
	}
	if got, want := proof.NodeFromProof(t.hasher, oldLeaf, index, siblings), t.Root(); got != want {
		return errors.Errorf(errors.FailedPrecondition, "leaf %d: proof reaches %s, current root is %s: %w", index, got.Short(), want.Short(), merkle.ErrInvalidProof)
	}

	last := t.nextIndex - 1
	node := newLeaf
	for level := uint32(0); level < t.opts.Height; level++ {
		i := index >> level
		t.setCanopy(level, i, node)
		if i == (last>>level)&^1 {
			t.filled[level] = node
		}
		if i&1 == 0 {
			node = hashers.Children(t.hasher, node, siblings[level])
		} else {
			node = hashers.Children(t.hasher, siblings[level], node)
		}
	}
	t.pushRoot(node)
	return nil
}

// PushRoot records a root proven for a batch which appended the given
// number of leaves (zero for in-place updates).
func (t *Tree) PushRoot(root merkle.Hash, appended uint64) error {
	if t.mode != Batched {
		return ErrWrongMode
	}
	if appended > t.opts.Capacity()-t.nextIndex {
		return errors.Errorf(errors.ResourceExhausted, "%d leaves do not fit after index %d: %w", appended, t.nextIndex, merkle.ErrTreeFull)
	}
	t.nextIndex += appended
	t.pushRoot(root)
	return nil
}

// InvalidateRootsBefore zeroes every retained root recorded before mutation
// seq. The latest root is never invalidated. It returns the number of roots
// zeroed.
func (t *Tree) InvalidateRootsBefore(seq uint64) int {
	n := 0
	for pos := t.roots.OldestPosition(); pos < seq && pos < t.roots.Pushed()-1; pos++ {
		if r, _ := t.roots.At(pos); r.IsZero() {
			continue
		}
		if err := t.roots.Replace(pos, merkle.Hash{}); err == nil {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (t *Tree) Clone() *Tree {
	c := *t
	c.filled = append([]merkle.Hash(nil), t.filled...)
	c.canopy = append([]merkle.Hash(nil), t.canopy...)
	c.roots = t.roots.Clone()
	return &c
}
