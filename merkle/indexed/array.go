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

// Package indexed implements indexed Merkle trees: accumulators whose leaves
// thread a sorted linked list through an unordered element array. Every
// absent value falls between exactly one element and its successor, which
// makes non-inclusion provable with a single inclusion proof.
package indexed

import (
	"encoding/binary"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/google/btree"
)

// MaxValue is the value of the tail sentinel. Stored values lie strictly
// between zero and MaxValue.
var MaxValue = func() merkle.Hash {
	var h merkle.Hash
	for i := range h {
		h[i] = 0xff
	}
	return h
}()

var (
	// ErrValueAlreadyExists is returned when looking up or appending a value
	// that is already an element.
	ErrValueAlreadyExists = errors.New(errors.AlreadyExists, "indexed: value already exists")
	// ErrNotInitialized is returned by operations on an array without sentinels.
	ErrNotInitialized = errors.New(errors.FailedPrecondition, "indexed: array not initialized")
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New(errors.FailedPrecondition, "indexed: array already initialized")
	// ErrNotFound is returned for element indices beyond the array.
	ErrNotFound = errors.New(errors.OutOfRange, "indexed: no such element")
)

// Element is one node of the sorted linked list. Index is its position in
// the element array and in the tree; NextIndex points at the element with
// the next larger value.
type Element struct {
	Index     uint64      `json:"index"`
	Value     merkle.Hash `json:"value"`
	NextIndex uint64      `json:"nextIndex"`
	NextValue merkle.Hash `json:"nextValue"`
}

// IsTail reports whether e is the tail sentinel.
func (e Element) IsTail() bool { return e.Value == MaxValue }

// Bounds reports whether e.Value < v < e.NextValue.
func (e Element) Bounds(v merkle.Hash) bool {
	return e.Value.Less(v) && v.Less(e.NextValue)
}

// LeafData returns the bytes hashed into the element's leaf:
// value || next index (8 bytes big-endian) || next value.
func (e Element) LeafData() []byte {
	b := make([]byte, 0, 2*merkle.HashSize+8)
	b = append(b, e.Value[:]...)
	b = binary.BigEndian.AppendUint64(b, e.NextIndex)
	return append(b, e.NextValue[:]...)
}

// Hash returns the element's leaf.
func (e Element) Hash(h hashers.Hasher) merkle.Hash {
	return hashers.Leaf(h, e.LeafData())
}

// Update describes the effect of appending one value.
type Update struct {
	// NewElement is the inserted element.
	NewElement Element
	// OldLowElement is the low element before the splice.
	OldLowElement Element
	// LowElement is the low element after the splice; it points at NewElement.
	LowElement Element
}

type entry struct {
	value merkle.Hash
	index uint64
}

func lessEntry(a, b entry) bool { return a.value.Less(b.value) }

// Array holds the elements and an ordered index over their values. It is not
// safe for concurrent use.
type Array struct {
	elements []Element
	order    *btree.BTreeG[entry]
}

// NewArray returns an empty, uninitialized array.
func NewArray() *Array {
	return &Array{order: btree.NewG(8, lessEntry)}
}

// Init inserts the head sentinel (value zero) at index 0 and the tail
// sentinel (MaxValue) at index 1.
func (a *Array) Init() error {
	if len(a.elements) != 0 {
		return ErrAlreadyInitialized
	}
	head := Element{Index: 0, NextIndex: 1, NextValue: MaxValue}
	tail := Element{Index: 1, Value: MaxValue}
	a.elements = append(a.elements, head, tail)
	a.order.ReplaceOrInsert(entry{value: head.Value, index: 0})
	a.order.ReplaceOrInsert(entry{value: tail.Value, index: 1})
	return nil
}

// Len returns the number of elements, including sentinels.
func (a *Array) Len() int { return len(a.elements) }

// Get returns the element at index.
func (a *Array) Get(index uint64) (Element, error) {
	if index >= uint64(len(a.elements)) {
		return Element{}, ErrNotFound
	}
	return a.elements[index], nil
}

// Elements returns a copy of all elements in array order.
func (a *Array) Elements() []Element { return append([]Element(nil), a.elements...) }

// Contains reports whether v is an element value.
func (a *Array) Contains(v merkle.Hash) bool {
	_, ok := a.order.Get(entry{value: v})
	return ok
}

// FindLowElement returns the element whose value is the largest below v.
func (a *Array) FindLowElement(v merkle.Hash) (Element, error) {
	if len(a.elements) == 0 {
		return Element{}, ErrNotInitialized
	}
	var low entry
	found := false
	a.order.DescendLessOrEqual(entry{value: v}, func(e entry) bool {
		low, found = e, true
		return false
	})
	// The head sentinel holds zero, so some element is always <= v.
	if !found {
		return Element{}, ErrNotInitialized
	}
	if low.value == v {
		return Element{}, errors.Errorf(errors.AlreadyExists, "value %s at index %d: %w", v.Short(), low.index, ErrValueAlreadyExists)
	}
	return a.elements[low.index], nil
}

// Append splices v in after its low element.
func (a *Array) Append(v merkle.Hash) (Update, error) {
	low, err := a.FindLowElement(v)
	if err != nil {
		return Update{}, err
	}
	n := Element{
		Index:     uint64(len(a.elements)),
		Value:     v,
		NextIndex: low.NextIndex,
		NextValue: low.NextValue,
	}
	upd := Update{NewElement: n, OldLowElement: low}
	low.NextIndex = n.Index
	low.NextValue = v
	upd.LowElement = low

	a.elements[low.Index] = low
	a.elements = append(a.elements, n)
	a.order.ReplaceOrInsert(entry{value: v, index: n.Index})
	return upd, nil
}

// Clone returns an independent copy.
func (a *Array) Clone() *Array {
	return &Array{
		elements: append([]Element(nil), a.elements...),
		order:    a.order.Clone(),
	}
}
