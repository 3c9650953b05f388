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

// Package ringbuffer provides a fixed-capacity cyclic buffer which overwrites
// its oldest element once full. It backs root histories and other bounded
// logs.
//
// Every pushed element is assigned a logical sequence position, starting at 0
// for the first push. Physical positions (FirstIndex, LastIndex, Get) are
// offsets into the backing array.
package ringbuffer

import (
	"iter"

	"github.com/canopyledger/canopy/errors"
)

var (
	// ErrZeroCapacity is returned when creating a buffer that can hold nothing.
	ErrZeroCapacity = errors.New(errors.InvalidArgument, "ringbuffer: capacity must be positive")
	// ErrIndexOutOfRange is returned for physical indices beyond Len.
	ErrIndexOutOfRange = errors.New(errors.OutOfRange, "ringbuffer: index out of range")
	// ErrNotRetained is returned for logical positions that were overwritten
	// or have not been written yet.
	ErrNotRetained = errors.New(errors.OutOfRange, "ringbuffer: position not retained")
)

// RingBuffer is a cyclic bounded buffer. It is not safe for concurrent use.
type RingBuffer[T any] struct {
	data       []T
	length     uint64
	firstIndex uint64
	lastIndex  uint64
	pushed     uint64
}

// New returns an empty buffer holding up to capacity elements.
func New[T any](capacity int) (*RingBuffer[T], error) {
	if capacity <= 0 {
		return nil, ErrZeroCapacity
	}
	return &RingBuffer[T]{data: make([]T, capacity)}, nil
}

// Cap returns the fixed capacity.
func (r *RingBuffer[T]) Cap() uint64 { return uint64(len(r.data)) }

// Len returns the number of retained elements.
func (r *RingBuffer[T]) Len() uint64 { return r.length }

// IsFull reports whether the next Push overwrites an element.
func (r *RingBuffer[T]) IsFull() bool { return r.length == r.Cap() }

// FirstIndex is the physical position of the oldest element.
func (r *RingBuffer[T]) FirstIndex() uint64 { return r.firstIndex }

// LastIndex is the physical position of the newest element.
func (r *RingBuffer[T]) LastIndex() uint64 { return r.lastIndex }

// Pushed returns the number of elements ever pushed. The newest element has
// logical position Pushed()-1.
func (r *RingBuffer[T]) Pushed() uint64 { return r.pushed }

// Push appends v, overwriting the oldest element when the buffer is full.
func (r *RingBuffer[T]) Push(v T) {
	switch {
	case r.length == 0:
		r.firstIndex, r.lastIndex = 0, 0
		r.length = 1
	case r.length < r.Cap():
		r.lastIndex = (r.lastIndex + 1) % r.Cap()
		r.length++
	default:
		r.firstIndex = (r.firstIndex + 1) % r.Cap()
		r.lastIndex = (r.lastIndex + 1) % r.Cap()
	}
	r.data[r.lastIndex] = v
	r.pushed++
}

// Get returns the element at physical position i.
func (r *RingBuffer[T]) Get(i uint64) (T, error) {
	if i >= r.length {
		var zero T
		return zero, ErrIndexOutOfRange
	}
	return r.data[i], nil
}

// Last returns the newest element.
func (r *RingBuffer[T]) Last() (T, bool) {
	if r.length == 0 {
		var zero T
		return zero, false
	}
	return r.data[r.lastIndex], true
}

// First returns the oldest retained element.
func (r *RingBuffer[T]) First() (T, bool) {
	if r.length == 0 {
		var zero T
		return zero, false
	}
	return r.data[r.firstIndex], true
}

// OldestPosition returns the logical position of the oldest retained element.
func (r *RingBuffer[T]) OldestPosition() uint64 { return r.pushed - r.length }

// Retains reports whether logical position pos is still held.
func (r *RingBuffer[T]) Retains(pos uint64) bool {
	return pos < r.pushed && pos >= r.OldestPosition()
}

func (r *RingBuffer[T]) physical(pos uint64) uint64 {
	return (r.firstIndex + (pos - r.OldestPosition())) % r.Cap()
}

// At returns the element at logical position pos.
func (r *RingBuffer[T]) At(pos uint64) (T, error) {
	if !r.Retains(pos) {
		var zero T
		return zero, ErrNotRetained
	}
	return r.data[r.physical(pos)], nil
}

// Replace overwrites the element at logical position pos without changing
// any cursor.
func (r *RingBuffer[T]) Replace(pos uint64, v T) error {
	if !r.Retains(pos) {
		return ErrNotRetained
	}
	r.data[r.physical(pos)] = v
	return nil
}

// IterFrom returns an iterator over the retained elements from logical
// position pos to the newest, yielding each element with its position.
func (r *RingBuffer[T]) IterFrom(pos uint64) (iter.Seq2[uint64, T], error) {
	if !r.Retains(pos) {
		return nil, ErrNotRetained
	}
	end := r.pushed
	return func(yield func(uint64, T) bool) {
		for p := pos; p < end; p++ {
			if !yield(p, r.data[r.physical(p)]) {
				return
			}
		}
	}, nil
}

// Values returns the retained elements from oldest to newest.
func (r *RingBuffer[T]) Values() []T {
	out := make([]T, 0, r.length)
	for i := uint64(0); i < r.length; i++ {
		out = append(out, r.data[(r.firstIndex+i)%r.Cap()])
	}
	return out
}

// Clone returns a deep copy of the buffer structure. Elements are copied by
// value.
func (r *RingBuffer[T]) Clone() *RingBuffer[T] {
	c := *r
	c.data = append([]T(nil), r.data...)
	return &c
}
