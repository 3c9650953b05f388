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

package compact

import (
	"encoding/binary"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/ringbuffer"
)

// Stored layout, all integers big-endian:
//
//	offset  size  field
//	0       4     magic "CMT1"
//	4       1     version
//	5       1     mode
//	6       2     reserved
//	8       4     hash strategy
//	12      4     height
//	16      4     canopy depth
//	20      4     root history capacity
//	24      8     next index
//	32      8     sequence number
//	40      32*height          frontier
//	...     32*CanopySize      canopy
//	...     ringbuffer         root history
const (
	HeaderSize = 40
	Version    = 1
)

var magic = [4]byte{'C', 'M', 'T', '1'}

// ErrCorrupt is returned when stored bytes fail validation.
var ErrCorrupt = errors.New(errors.DataLoss, "compact: corrupt encoding")

// FrontierOffset returns the offset of the frontier.
func FrontierOffset() int { return HeaderSize }

// CanopyOffset returns the offset of the canopy for trees with opts.
func CanopyOffset(opts merkle.TreeOptions) int {
	return FrontierOffset() + merkle.HashSize*int(opts.Height)
}

// RootsOffset returns the offset of the root history for trees with opts.
func RootsOffset(opts merkle.TreeOptions) int {
	return CanopyOffset(opts) + merkle.HashSize*opts.CanopySize()
}

// EncodedSize returns the size of an encoded tree with opts.
func EncodedSize(opts merkle.TreeOptions) int {
	return RootsOffset(opts) + ringbuffer.EncodedSize(uint64(opts.RootHistory), merkle.HashSize)
}

// Encode serializes the tree.
func (t *Tree) Encode() []byte {
	b := make([]byte, EncodedSize(t.opts))
	copy(b[0:4], magic[:])
	b[4] = Version
	b[5] = byte(t.mode)
	binary.BigEndian.PutUint32(b[8:], uint32(t.strategy))
	binary.BigEndian.PutUint32(b[12:], t.opts.Height)
	binary.BigEndian.PutUint32(b[16:], t.opts.CanopyDepth)
	binary.BigEndian.PutUint32(b[20:], t.opts.RootHistory)
	binary.BigEndian.PutUint64(b[24:], t.nextIndex)
	binary.BigEndian.PutUint64(b[32:], t.seq)

	off := FrontierOffset()
	for _, h := range t.filled {
		copy(b[off:], h[:])
		off += merkle.HashSize
	}
	for _, h := range t.canopy {
		copy(b[off:], h[:])
		off += merkle.HashSize
	}
	copy(b[off:], ringbuffer.Encode[merkle.Hash](t.roots, merkle.HashCodec{}))
	return b
}

// DecodeOptions reads the tree parameters from an encoded header without
// decoding the payload.
func DecodeOptions(b []byte) (merkle.TreeOptions, error) {
	if len(b) < HeaderSize {
		return merkle.TreeOptions{}, errors.Errorf(errors.DataLoss, "compact: %d bytes is shorter than the header: %w", len(b), ErrCorrupt)
	}
	if [4]byte(b[0:4]) != magic {
		return merkle.TreeOptions{}, errors.Errorf(errors.DataLoss, "compact: bad magic %q: %w", b[0:4], ErrCorrupt)
	}
	if b[4] != Version {
		return merkle.TreeOptions{}, errors.Errorf(errors.DataLoss, "compact: unsupported version %d: %w", b[4], ErrCorrupt)
	}
	return merkle.TreeOptions{
		Height:      binary.BigEndian.Uint32(b[12:]),
		CanopyDepth: binary.BigEndian.Uint32(b[16:]),
		RootHistory: binary.BigEndian.Uint32(b[20:]),
	}, nil
}

// Decode parses a tree written by Encode.
func Decode(b []byte) (*Tree, error) {
	opts, err := DecodeOptions(b)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Errorf(errors.DataLoss, "compact: %v: %w", err, ErrCorrupt)
	}
	if len(b) != EncodedSize(opts) {
		return nil, errors.Errorf(errors.DataLoss, "compact: got %d bytes, want %d: %w", len(b), EncodedSize(opts), ErrCorrupt)
	}
	mode := Mode(b[5])
	if mode != Concurrent && mode != Batched {
		return nil, errors.Errorf(errors.DataLoss, "compact: unknown mode %d: %w", b[5], ErrCorrupt)
	}
	t, err := newTree(hashers.Strategy(binary.BigEndian.Uint32(b[8:])), opts, mode)
	if err != nil {
		return nil, errors.Errorf(errors.DataLoss, "compact: %v: %w", err, ErrCorrupt)
	}
	t.nextIndex = binary.BigEndian.Uint64(b[24:])
	t.seq = binary.BigEndian.Uint64(b[32:])
	if t.nextIndex > opts.Capacity() {
		return nil, errors.Errorf(errors.DataLoss, "compact: next index %d beyond capacity: %w", t.nextIndex, ErrCorrupt)
	}

	off := FrontierOffset()
	for i := range t.filled {
		copy(t.filled[i][:], b[off:off+merkle.HashSize])
		off += merkle.HashSize
	}
	for i := range t.canopy {
		copy(t.canopy[i][:], b[off:off+merkle.HashSize])
		off += merkle.HashSize
	}
	roots, err := ringbuffer.Decode[merkle.Hash](b[RootsOffset(opts):], merkle.HashCodec{})
	if err != nil {
		return nil, errors.Errorf(errors.DataLoss, "compact: root history: %w", err)
	}
	if roots.Cap() != uint64(opts.RootHistory) || roots.Pushed() != t.seq+1 {
		return nil, errors.Errorf(errors.DataLoss, "compact: root history holds %d pushes for sequence number %d: %w", roots.Pushed(), t.seq, ErrCorrupt)
	}
	t.roots = roots
	return t, nil
}
