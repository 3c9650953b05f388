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

// Package inmemory provides a fixed-height Merkle accumulator which keeps
// every node in memory. It is the off-ledger reference copy from which paths
// and proofs are served.
package inmemory

import (
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/ringbuffer"
)

// Tree is an append-only Merkle tree of fixed height whose leaves may be
// overwritten. It is not safe for concurrent use.
type Tree struct {
	hasher hashers.Hasher
	opts   merkle.TreeOptions
	zero   []merkle.Hash
	// nodes holds node hashes indexed by (level, index). Level 0 holds the
	// leaves; nodes to the right of the frontier are implied zero hashes and
	// not stored.
	nodes     [][]merkle.Hash
	nextIndex uint64
	seq       uint64
	roots     *ringbuffer.RingBuffer[merkle.Hash]
}

// New returns an empty tree. The empty root is recorded in the root history
// at sequence number 0.
func New(h hashers.Hasher, opts merkle.TreeOptions) (*Tree, error) {
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
		hasher: h,
		opts:   opts,
		zero:   hashers.ZeroHashes(h, opts.Height),
		nodes:  make([][]merkle.Hash, opts.Height+1),
		roots:  roots,
	}
	t.roots.Push(t.zero[opts.Height])
	return t, nil
}

// NewFromLeaves builds a tree holding leaves. The root history then holds
// one root per appended leaf, as if they had been appended one at a time.
func NewFromLeaves(h hashers.Hasher, opts merkle.TreeOptions, leaves []merkle.Hash) (*Tree, error) {
	t, err := New(h, opts)
	if err != nil {
		return nil, err
	}
	if _, err := t.AppendBatch(leaves); err != nil {
		return nil, err
	}
	return t, nil
}

// Options returns the tree parameters.
func (t *Tree) Options() merkle.TreeOptions { return t.opts }

// Hasher returns the hasher the tree was built with.
func (t *Tree) Hasher() hashers.Hasher { return t.hasher }

// NextIndex returns the number of leaves ever appended.
func (t *Tree) NextIndex() uint64 { return t.nextIndex }

// SequenceNumber returns the number of mutations applied.
func (t *Tree) SequenceNumber() uint64 { return t.seq }

// ZeroHashes returns the empty subtree hash per level.
func (t *Tree) ZeroHashes() []merkle.Hash { return append([]merkle.Hash(nil), t.zero...) }

func (t *Tree) node(level uint32, index uint64) merkle.Hash {
	if row := t.nodes[level]; index < uint64(len(row)) {
		return row[index]
	}
	return t.zero[level]
}

func (t *Tree) setNode(level uint32, index uint64, h merkle.Hash) {
	row := t.nodes[level]
	for uint64(len(row)) <= index {
		row = append(row, t.zero[level])
	}
	row[index] = h
	t.nodes[level] = row
}

// rehash recomputes the path from leaf index up to the root.
func (t *Tree) rehash(index uint64) merkle.Hash {
	for level := uint32(1); level <= t.opts.Height; level++ {
		i := index >> level
		parent := hashers.Children(t.hasher, t.node(level-1, 2*i), t.node(level-1, 2*i+1))
		t.setNode(level, i, parent)
	}
	return t.node(t.opts.Height, 0)
}

func (t *Tree) pushRoot(root merkle.Hash) {
	t.seq++
	t.roots.Push(root)
}

// Append adds leaf at the next index and returns that index.
func (t *Tree) Append(leaf merkle.Hash) (uint64, error) {
	if t.nextIndex >= t.opts.Capacity() {
		return 0, merkle.ErrTreeFull
	}
	index := t.nextIndex
	t.setNode(0, index, leaf)
	t.nextIndex++
	t.pushRoot(t.rehash(index))
	return index, nil
}

// AppendBatch appends all leaves or none of them. It returns the index of
// the first leaf.
func (t *Tree) AppendBatch(leaves []merkle.Hash) (uint64, error) {
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

// Update overwrites the leaf at index.
func (t *Tree) Update(index uint64, leaf merkle.Hash) error {
	if index >= t.nextIndex {
		return errors.Errorf(errors.OutOfRange, "update of leaf %d with next index %d: %w", index, t.nextIndex, merkle.ErrIndexOutOfRange)
	}
	t.setNode(0, index, leaf)
	t.pushRoot(t.rehash(index))
	return nil
}

// Leaf returns the leaf at index.
func (t *Tree) Leaf(index uint64) (merkle.Hash, error) {
	if index >= t.nextIndex {
		return merkle.Hash{}, merkle.ErrIndexOutOfRange
	}
	return t.node(0, index), nil
}

// Leaves returns a copy of all appended leaves.
func (t *Tree) Leaves() []merkle.Hash {
	return append([]merkle.Hash(nil), t.nodes[0][:t.nextIndex]...)
}

// Root returns the most recent root.
func (t *Tree) Root() merkle.Hash {
	r, _ := t.roots.Last()
	return r
}

// RootAt returns the root recorded after mutation seq, if still retained.
func (t *Tree) RootAt(seq uint64) (merkle.Hash, error) {
	return t.roots.At(seq)
}

// HasRoot reports whether root is in the root history.
func (t *Tree) HasRoot(root merkle.Hash) bool {
	for _, r := range t.roots.Values() {
		if r == root {
			return true
		}
	}
	return false
}

// RootHistory returns the retained roots from oldest to newest.
func (t *Tree) RootHistory() []merkle.Hash { return t.roots.Values() }

func (t *Tree) limit(full bool) uint32 {
	if full {
		return t.opts.Height
	}
	return t.opts.Height - t.opts.CanopyDepth
}

// ProofOfLeaf returns the sibling of every node on the leaf's path. Unless
// full is set the siblings on the canopy levels are omitted, leaving
// Height-CanopyDepth entries.
func (t *Tree) ProofOfLeaf(index uint64, full bool) ([]merkle.Hash, error) {
	if index >= t.nextIndex {
		return nil, errors.Errorf(errors.OutOfRange, "proof of leaf %d with next index %d: %w", index, t.nextIndex, merkle.ErrIndexOutOfRange)
	}
	n := t.limit(full)
	proof := make([]merkle.Hash, 0, n)
	for level := uint32(0); level < n; level++ {
		proof = append(proof, t.node(level, (index>>level)^1))
	}
	return proof, nil
}

// PathOfLeaf returns the nodes on the path from the leaf upwards, starting
// with the leaf itself and excluding the root. Unless full is set the nodes
// on the canopy levels are omitted.
func (t *Tree) PathOfLeaf(index uint64, full bool) ([]merkle.Hash, error) {
	if index >= t.nextIndex {
		return nil, errors.Errorf(errors.OutOfRange, "path of leaf %d with next index %d: %w", index, t.nextIndex, merkle.ErrIndexOutOfRange)
	}
	n := t.limit(full)
	path := make([]merkle.Hash, 0, n)
	for level := uint32(0); level < n; level++ {
		path = append(path, t.node(level, index>>level))
	}
	return path, nil
}

// Canopy returns the cached top levels in the layout used by compact trees:
// level by level from just below the root downwards, left to right.
func (t *Tree) Canopy() []merkle.Hash {
	canopy := make([]merkle.Hash, t.opts.CanopySize())
	for level := t.opts.Height - t.opts.CanopyDepth; level < t.opts.Height; level++ {
		width := uint64(1) << (t.opts.Height - level)
		for i := uint64(0); i < width; i++ {
			canopy[merkle.CanopyOffset(t.opts.Height, level, i)] = t.node(level, i)
		}
	}
	return canopy
}

// Clone returns an independent copy of the tree.
func (t *Tree) Clone() *Tree {
	c := *t
	c.nodes = make([][]merkle.Hash, len(t.nodes))
	for i, row := range t.nodes {
		c.nodes[i] = append([]merkle.Hash(nil), row...)
	}
	c.roots = t.roots.Clone()
	return &c
}
