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

package indexed

import (
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/merkle/inmemory"
	"github.com/canopyledger/canopy/merkle/proof"
)

// ErrNotBounded is returned when a non-inclusion proof's low element does
// not bracket the value.
var ErrNotBounded = errors.New(errors.FailedPrecondition, "indexed: low element does not bound value")

// Tree is an indexed array backed by a reference accumulator. Element i is
// stored as leaf i.
type Tree struct {
	hasher hashers.Hasher
	array  *Array
	tree   *inmemory.Tree
}

// NewTree returns a tree holding only the two sentinels.
func NewTree(h hashers.Hasher, opts merkle.TreeOptions) (*Tree, error) {
	if opts.Height < 2 {
		return nil, errors.Errorf(errors.InvalidArgument, "indexed tree needs height >= 2, got %d: %w", opts.Height, merkle.ErrInvalidOptions)
	}
	tree, err := inmemory.New(h, opts)
	if err != nil {
		return nil, err
	}
	t := &Tree{hasher: h, array: NewArray(), tree: tree}
	if err := t.array.Init(); err != nil {
		return nil, err
	}
	for _, e := range t.array.Elements() {
		if _, err := t.tree.Append(e.Hash(h)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NewTreeFromValues returns a tree into which values were appended in order.
func NewTreeFromValues(h hashers.Hasher, opts merkle.TreeOptions, values []merkle.Hash) (*Tree, error) {
	t, err := NewTree(h, opts)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if _, err := t.Append(v); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// InitialRoot returns the root of a freshly initialized tree with opts.
func InitialRoot(h hashers.Hasher, opts merkle.TreeOptions) (merkle.Hash, error) {
	t, err := NewTree(h, opts)
	if err != nil {
		return merkle.Hash{}, err
	}
	return t.Root(), nil
}

// Root returns the current root.
func (t *Tree) Root() merkle.Hash { return t.tree.Root() }

// NextIndex returns the number of leaves, sentinels included.
func (t *Tree) NextIndex() uint64 { return t.tree.NextIndex() }

// Array returns the element array. Callers must not modify it.
func (t *Tree) Array() *Array { return t.array }

// Accumulator returns the backing reference tree. Callers must not modify it.
func (t *Tree) Accumulator() *inmemory.Tree { return t.tree }

// FindLowElement returns the element bounding v from below.
func (t *Tree) FindLowElement(v merkle.Hash) (Element, error) {
	return t.array.FindLowElement(v)
}

// AppendResult holds everything needed to prove one append.
type AppendResult struct {
	Update
	OldRoot merkle.Hash
	NewRoot merkle.Hash
	// LowElementProof is the full proof of the old low leaf against OldRoot.
	LowElementProof []merkle.Hash
	// NewElementProof is the full proof of the new leaf's position taken
	// after the low leaf was updated.
	NewElementProof []merkle.Hash
}

// Append inserts v: the low leaf is updated and the new leaf appended.
func (t *Tree) Append(v merkle.Hash) (*AppendResult, error) {
	if t.tree.NextIndex() >= t.tree.Options().Capacity() {
		return nil, merkle.ErrTreeFull
	}
	low, err := t.array.FindLowElement(v)
	if err != nil {
		return nil, err
	}
	res := &AppendResult{OldRoot: t.Root()}
	if res.LowElementProof, err = t.tree.ProofOfLeaf(low.Index, true); err != nil {
		return nil, err
	}
	upd, err := t.array.Append(v)
	if err != nil {
		return nil, err
	}
	res.Update = upd
	if err := t.tree.Update(upd.LowElement.Index, upd.LowElement.Hash(t.hasher)); err != nil {
		return nil, err
	}
	index, err := t.tree.Append(upd.NewElement.Hash(t.hasher))
	if err != nil {
		return nil, err
	}
	if index != upd.NewElement.Index {
		return nil, errors.Errorf(errors.Internal, "indexed: element index %d stored at leaf %d", upd.NewElement.Index, index)
	}
	if res.NewElementProof, err = t.tree.ProofOfLeaf(index, true); err != nil {
		return nil, err
	}
	res.NewRoot = t.Root()
	return res, nil
}

// NonInclusionProof shows that Value is absent from the tree with Root.
type NonInclusionProof struct {
	Root       merkle.Hash
	Value      merkle.Hash
	LowElement Element
	Proof      []merkle.Hash
}

// NonInclusionProof returns a proof that v is not an element.
func (t *Tree) NonInclusionProof(v merkle.Hash) (*NonInclusionProof, error) {
	low, err := t.array.FindLowElement(v)
	if err != nil {
		return nil, err
	}
	p, err := t.tree.ProofOfLeaf(low.Index, true)
	if err != nil {
		return nil, err
	}
	return &NonInclusionProof{Root: t.Root(), Value: v, LowElement: low, Proof: p}, nil
}

// VerifyNonInclusion checks p for a tree of the given height.
func VerifyNonInclusion(h hashers.Hasher, height uint32, p *NonInclusionProof) error {
	if !p.LowElement.Bounds(p.Value) {
		return errors.Errorf(errors.FailedPrecondition, "value %s outside (%s, %s): %w", p.Value.Short(), p.LowElement.Value.Short(), p.LowElement.NextValue.Short(), ErrNotBounded)
	}
	return proof.VerifyInclusion(h, height, p.LowElement.Hash(h), p.LowElement.Index, p.Proof, p.Root)
}

// Clone returns an independent copy.
func (t *Tree) Clone() *Tree {
	return &Tree{hasher: t.hasher, array: t.array.Clone(), tree: t.tree.Clone()}
}
