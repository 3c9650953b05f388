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

package ringbuffer

import (
	"encoding/binary"

	"github.com/canopyledger/canopy/errors"
)

// Stored layout, all integers big-endian:
//
//	offset  size  field
//	0       8     capacity
//	8       8     length
//	16      8     first index
//	24      8     last index
//	32      8     pushed
//	40      cap*stride  elements in physical order
const (
	HeaderSize = 40

	capacityOffset = 0
	lengthOffset   = 8
	firstOffset    = 16
	lastOffset     = 24
	pushedOffset   = 32
)

// ErrCorrupt is returned when stored bytes fail validation.
var ErrCorrupt = errors.New(errors.DataLoss, "ringbuffer: corrupt encoding")

// Codec encodes elements into fixed-size slots.
type Codec[T any] interface {
	// Size is the number of bytes of one encoded element.
	Size() int
	// Put writes v into b, which is exactly Size() bytes long.
	Put(b []byte, v T)
	// Get decodes an element from b, which is exactly Size() bytes long.
	Get(b []byte) (T, error)
}

// EncodedSize returns the number of bytes Encode produces for a buffer of
// the given capacity.
func EncodedSize(capacity uint64, stride int) int {
	return HeaderSize + int(capacity)*stride
}

// Encode serializes r. Unused slots are written as the zero element.
func Encode[T any](r *RingBuffer[T], c Codec[T]) []byte {
	stride := c.Size()
	b := make([]byte, EncodedSize(r.Cap(), stride))
	binary.BigEndian.PutUint64(b[capacityOffset:], r.Cap())
	binary.BigEndian.PutUint64(b[lengthOffset:], r.length)
	binary.BigEndian.PutUint64(b[firstOffset:], r.firstIndex)
	binary.BigEndian.PutUint64(b[lastOffset:], r.lastIndex)
	binary.BigEndian.PutUint64(b[pushedOffset:], r.pushed)
	for i, v := range r.data {
		off := HeaderSize + i*stride
		c.Put(b[off:off+stride], v)
	}
	return b
}

// Decode parses a buffer written by Encode. Offsets are computed from the
// header; the payload is never scanned for structure.
func Decode[T any](b []byte, c Codec[T]) (*RingBuffer[T], error) {
	if len(b) < HeaderSize {
		return nil, errors.Errorf(errors.DataLoss, "ringbuffer: %d bytes is shorter than the header: %w", len(b), ErrCorrupt)
	}
	capacity := binary.BigEndian.Uint64(b[capacityOffset:])
	length := binary.BigEndian.Uint64(b[lengthOffset:])
	first := binary.BigEndian.Uint64(b[firstOffset:])
	last := binary.BigEndian.Uint64(b[lastOffset:])
	pushed := binary.BigEndian.Uint64(b[pushedOffset:])

	stride := c.Size()
	switch {
	case capacity == 0:
		return nil, ErrCorrupt
	case capacity > uint64(len(b)-HeaderSize)/uint64(stride):
		return nil, errors.Errorf(errors.DataLoss, "ringbuffer: capacity %d exceeds payload: %w", capacity, ErrCorrupt)
	case len(b) != EncodedSize(capacity, stride):
		return nil, errors.Errorf(errors.DataLoss, "ringbuffer: got %d bytes, want %d: %w", len(b), EncodedSize(capacity, stride), ErrCorrupt)
	case length > capacity || first >= capacity || last >= capacity || pushed < length:
		return nil, errors.Errorf(errors.DataLoss, "ringbuffer: cursors out of range: %w", ErrCorrupt)
	case length < capacity && (first != 0 || pushed != length):
		return nil, errors.Errorf(errors.DataLoss, "ringbuffer: partially filled buffer has wrapped: %w", ErrCorrupt)
	case length > 0 && last != (first+length-1)%capacity:
		return nil, errors.Errorf(errors.DataLoss, "ringbuffer: last index %d inconsistent with first %d and length %d: %w", last, first, length, ErrCorrupt)
	}

	r := &RingBuffer[T]{
		data:       make([]T, capacity),
		length:     length,
		firstIndex: first,
		lastIndex:  last,
		pushed:     pushed,
	}
	for i := range r.data {
		off := HeaderSize + i*stride
		v, err := c.Get(b[off : off+stride])
		if err != nil {
			return nil, errors.Errorf(errors.DataLoss, "ringbuffer: slot %d: %w", i, err)
		}
		r.data[i] = v
	}
	return r, nil
}

// Uint64Codec stores uint64 elements big-endian.
type Uint64Codec struct{}

// Size implements Codec.
func (Uint64Codec) Size() int { return 8 }

// Put implements Codec.
func (Uint64Codec) Put(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

// Get implements Codec.
func (Uint64Codec) Get(b []byte) (uint64, error) { return binary.BigEndian.Uint64(b), nil }
