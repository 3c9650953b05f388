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

package bloom

import (
	"encoding/binary"

	"github.com/canopyledger/canopy/errors"
)

// Stored layout, all integers big-endian:
//
//	offset  size  field
//	0       4     magic "BLM1"
//	4       1     version
//	5       1     bit order (0 = LSB first)
//	6       2     reserved
//	8       4     num iters
//	12      4     reserved
//	16      8     capacity in bits
//	24      8     inserted
//	32      capacity/8  bitset
const (
	HeaderSize = 32
	Version    = 1

	bitOrderLSB0 = 0
)

var magic = [4]byte{'B', 'L', 'M', '1'}

// ErrCorrupt is returned when stored bytes fail validation.
var ErrCorrupt = errors.New(errors.DataLoss, "bloom: corrupt encoding")

// EncodedSize returns the size of an encoded filter of capacity bits.
func EncodedSize(capacity uint64) int { return HeaderSize + int(capacity/8) }

// Encode serializes the filter.
func (f *Filter) Encode() []byte {
	b := make([]byte, EncodedSize(f.capacity))
	f.EncodeTo(b)
	return b
}

// EncodeTo writes the filter into b, which must hold EncodedSize bytes.
func (f *Filter) EncodeTo(b []byte) {
	copy(b[0:4], magic[:])
	b[4] = Version
	b[5] = bitOrderLSB0
	binary.BigEndian.PutUint32(b[8:], f.numIters)
	binary.BigEndian.PutUint64(b[16:], f.capacity)
	binary.BigEndian.PutUint64(b[24:], f.inserted)
	copy(b[HeaderSize:], f.bits)
}

// Decode parses a filter written by Encode.
func Decode(b []byte) (*Filter, error) {
	if len(b) < HeaderSize {
		return nil, errors.Errorf(errors.DataLoss, "bloom: %d bytes is shorter than the header: %w", len(b), ErrCorrupt)
	}
	switch {
	case [4]byte(b[0:4]) != magic:
		return nil, errors.Errorf(errors.DataLoss, "bloom: bad magic %q: %w", b[0:4], ErrCorrupt)
	case b[4] != Version:
		return nil, errors.Errorf(errors.DataLoss, "bloom: unsupported version %d: %w", b[4], ErrCorrupt)
	case b[5] != bitOrderLSB0:
		return nil, errors.Errorf(errors.DataLoss, "bloom: unsupported bit order %d: %w", b[5], ErrCorrupt)
	}
	numIters := binary.BigEndian.Uint32(b[8:])
	capacity := binary.BigEndian.Uint64(b[16:])
	if err := checkParams(capacity, numIters); err != nil {
		return nil, errors.Errorf(errors.DataLoss, "bloom: %v: %w", err, ErrCorrupt)
	}
	if uint64(len(b)-HeaderSize) != capacity/8 {
		return nil, errors.Errorf(errors.DataLoss, "bloom: %d payload bytes for %d bits: %w", len(b)-HeaderSize, capacity, ErrCorrupt)
	}
	return &Filter{
		numIters: numIters,
		capacity: capacity,
		inserted: binary.BigEndian.Uint64(b[24:]),
		bits:     append([]byte(nil), b[HeaderSize:]...),
	}, nil
}
