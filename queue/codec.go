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

package queue

import (
	"encoding/binary"

	"github.com/canopyledger/canopy/bloom"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
)

// Stored layout, all integers big-endian:
//
//	offset  size  field
//	0       4     magic "BQS1"
//	4       1     version
//	5       1     kind
//	6       2     reserved
//	8       4     num batches
//	12      4     zkp batch size
//	16      4     zkp batches per batch
//	20      4     bloom num iters
//	24      8     bloom capacity in bits
//	32      4     current batch
//	36      4     pending batch
//	40      8     next index
//	48      8     false positives
//	56      4     hash strategy
//	60      4     last closed batch + 1 (0 if none)
//	64      num batches * BatchStride
//
// Each batch:
//
//	0       1     state
//	1       1     bloom zeroed
//	2       2     reserved
//	4       4     zkp batches inserted
//	8       4     zkp batches at close
//	12      4     reserved
//	16      8     start index
//	24      8     num inserted
//	32      8     root sequence
//	40      bloom.EncodedSize(capacity)   bloom filter
//	...     32*zkp batches per batch      hash chains
//	...     ElementSize*batch size        elements
const (
	HeaderSize      = 64
	BatchHeaderSize = 40
	ElementSize     = merkle.HashSize + 8
	Version         = 1
)

var magic = [4]byte{'B', 'Q', 'S', '1'}

// ErrCorrupt is returned when stored bytes fail validation.
var ErrCorrupt = errors.New(errors.DataLoss, "queue: corrupt encoding")

// BatchStride returns the encoded size of one batch.
func BatchStride(p Params) int {
	return BatchHeaderSize +
		bloom.EncodedSize(p.BloomFilterCapacity) +
		merkle.HashSize*int(p.ZkpBatchesPerBatch) +
		ElementSize*int(p.BatchSize())
}

// BatchOffset returns the offset of batch i.
func BatchOffset(p Params, i uint32) int {
	return HeaderSize + int(i)*BatchStride(p)
}

// EncodedSize returns the size of an encoded batch set.
func EncodedSize(p Params) int {
	return BatchOffset(p, p.NumBatches)
}

// sizeIs reports whether EncodedSize(p) == n. Every term is bounded by n
// before it is summed, so header values read from storage cannot overflow
// the arithmetic or force a large allocation.
func sizeIs(p Params, n int) bool {
	if n < HeaderSize || p.NumBatches == 0 {
		return false
	}
	limit := uint64(n)
	if p.BloomFilterCapacity/8 > limit ||
		uint64(p.ZkpBatchesPerBatch) > limit/merkle.HashSize ||
		p.BatchSize() > limit/ElementSize {
		return false
	}
	stride := uint64(BatchHeaderSize+bloom.HeaderSize) + p.BloomFilterCapacity/8 +
		merkle.HashSize*uint64(p.ZkpBatchesPerBatch) + ElementSize*p.BatchSize()
	if stride > limit/uint64(p.NumBatches) {
		return false
	}
	return HeaderSize+uint64(p.NumBatches)*stride == limit
}

// Encode serializes the batch set.
func (bs *BatchSet) Encode() []byte {
	p := bs.params
	b := make([]byte, EncodedSize(p))
	copy(b[0:4], magic[:])
	b[4] = Version
	b[5] = byte(bs.kind)
	binary.BigEndian.PutUint32(b[8:], p.NumBatches)
	binary.BigEndian.PutUint32(b[12:], p.ZkpBatchSize)
	binary.BigEndian.PutUint32(b[16:], p.ZkpBatchesPerBatch)
	binary.BigEndian.PutUint32(b[20:], p.BloomFilterNumIters)
	binary.BigEndian.PutUint64(b[24:], p.BloomFilterCapacity)
	binary.BigEndian.PutUint32(b[32:], bs.current)
	binary.BigEndian.PutUint32(b[36:], bs.pending)
	binary.BigEndian.PutUint64(b[40:], bs.nextIndex)
	binary.BigEndian.PutUint64(b[48:], bs.falsePositives)
	binary.BigEndian.PutUint32(b[56:], uint32(bs.strategy))
	binary.BigEndian.PutUint32(b[60:], uint32(bs.lastClosed+1))

	for i, bt := range bs.batches {
		off := BatchOffset(p, uint32(i))
		encodeBatch(b[off:off+BatchStride(p)], bt, p)
	}
	return b
}

func encodeBatch(b []byte, bt *Batch, p Params) {
	b[0] = byte(bt.state)
	if bt.bloomZeroed {
		b[1] = 1
	}
	binary.BigEndian.PutUint32(b[4:], bt.zkpInserted)
	binary.BigEndian.PutUint32(b[8:], bt.zkpClosed)
	binary.BigEndian.PutUint64(b[16:], bt.startIndex)
	binary.BigEndian.PutUint64(b[24:], bt.numInserted)
	binary.BigEndian.PutUint64(b[32:], bt.rootSequence)

	off := BatchHeaderSize
	n := bloom.EncodedSize(p.BloomFilterCapacity)
	bt.bloom.EncodeTo(b[off : off+n])
	off += n
	for _, h := range bt.hashChains {
		copy(b[off:], h[:])
		off += merkle.HashSize
	}
	for _, e := range bt.elements {
		copy(b[off:], e.Value[:])
		binary.BigEndian.PutUint64(b[off+merkle.HashSize:], e.LeafIndex)
		off += ElementSize
	}
}

// DecodeParams reads the kind and parameters from an encoded header
// without decoding any batch.
func DecodeParams(b []byte) (Kind, Params, error) {
	if len(b) < HeaderSize {
		return 0, Params{}, errors.Errorf(errors.DataLoss, "queue: %d bytes is shorter than the header: %w", len(b), ErrCorrupt)
	}
	if [4]byte(b[0:4]) != magic {
		return 0, Params{}, errors.Errorf(errors.DataLoss, "queue: bad magic %q: %w", b[0:4], ErrCorrupt)
	}
	if b[4] != Version {
		return 0, Params{}, errors.Errorf(errors.DataLoss, "queue: unsupported version %d: %w", b[4], ErrCorrupt)
	}
	p := Params{
		NumBatches:          binary.BigEndian.Uint32(b[8:]),
		ZkpBatchSize:        binary.BigEndian.Uint32(b[12:]),
		ZkpBatchesPerBatch:  binary.BigEndian.Uint32(b[16:]),
		BloomFilterNumIters: binary.BigEndian.Uint32(b[20:]),
		BloomFilterCapacity: binary.BigEndian.Uint64(b[24:]),
	}
	return Kind(b[5]), p, nil
}

// Decode parses a batch set written by Encode.
func Decode(b []byte) (*BatchSet, error) {
	kind, p, err := DecodeParams(b)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Errorf(errors.DataLoss, "queue: %v: %w", err, ErrCorrupt)
	}
	if !sizeIs(p, len(b)) {
		return nil, errors.Errorf(errors.DataLoss, "queue: %d bytes do not hold %+v: %w", len(b), p, ErrCorrupt)
	}
	bs, err := New(kind, p, hashers.Strategy(binary.BigEndian.Uint32(b[56:])), 0)
	if err != nil {
		return nil, errors.Errorf(errors.DataLoss, "queue: %v: %w", err, ErrCorrupt)
	}
	bs.current = binary.BigEndian.Uint32(b[32:])
	bs.pending = binary.BigEndian.Uint32(b[36:])
	bs.nextIndex = binary.BigEndian.Uint64(b[40:])
	bs.falsePositives = binary.BigEndian.Uint64(b[48:])
	bs.lastClosed = int64(binary.BigEndian.Uint32(b[60:])) - 1
	if bs.current >= p.NumBatches || bs.pending >= p.NumBatches || bs.lastClosed >= int64(p.NumBatches) {
		return nil, errors.Errorf(errors.DataLoss, "queue: cursors %d/%d/%d out of range: %w", bs.current, bs.pending, bs.lastClosed, ErrCorrupt)
	}

	for i := range bs.batches {
		off := BatchOffset(p, uint32(i))
		bt, err := decodeBatch(b[off:off+BatchStride(p)], p)
		if err != nil {
			return nil, errors.Errorf(errors.DataLoss, "queue: batch %d: %w", i, err)
		}
		bs.batches[i] = bt
	}
	return bs, nil
}

func decodeBatch(b []byte, p Params) (*Batch, error) {
	bt := &Batch{
		state:        State(b[0]),
		bloomZeroed:  b[1] != 0,
		zkpInserted:  binary.BigEndian.Uint32(b[4:]),
		zkpClosed:    binary.BigEndian.Uint32(b[8:]),
		startIndex:   binary.BigEndian.Uint64(b[16:]),
		numInserted:  binary.BigEndian.Uint64(b[24:]),
		rootSequence: binary.BigEndian.Uint64(b[32:]),
		exact:        make(map[merkle.Hash]struct{}),
	}
	switch {
	case bt.state > Inserted:
		return nil, errors.Errorf(errors.DataLoss, "unknown state %d: %w", b[0], ErrCorrupt)
	case bt.numInserted > p.BatchSize():
		return nil, errors.Errorf(errors.DataLoss, "%d elements in a batch of %d: %w", bt.numInserted, p.BatchSize(), ErrCorrupt)
	case bt.zkpClosed > p.ZkpBatchesPerBatch || uint64(bt.zkpInserted)*uint64(p.ZkpBatchSize) > bt.numInserted:
		return nil, errors.Errorf(errors.DataLoss, "%d zkp batches proven of %d elements: %w", bt.zkpInserted, bt.numInserted, ErrCorrupt)
	}

	off := BatchHeaderSize
	n := bloom.EncodedSize(p.BloomFilterCapacity)
	f, err := bloom.Decode(b[off : off+n])
	if err != nil {
		return nil, errors.Errorf(errors.DataLoss, "%v: %w", err, ErrCorrupt)
	}
	if f.Capacity() != p.BloomFilterCapacity || f.NumIters() != p.BloomFilterNumIters {
		return nil, errors.Errorf(errors.DataLoss, "bloom filter parameters differ from the header: %w", ErrCorrupt)
	}
	bt.bloom = f
	off += n

	bt.hashChains = make([]merkle.Hash, p.ZkpBatchesPerBatch)
	for i := range bt.hashChains {
		copy(bt.hashChains[i][:], b[off:off+merkle.HashSize])
		off += merkle.HashSize
	}
	bt.elements = make([]Element, bt.numInserted)
	for i := range bt.elements {
		copy(bt.elements[i].Value[:], b[off:off+merkle.HashSize])
		bt.elements[i].LeafIndex = binary.BigEndian.Uint64(b[off+merkle.HashSize:])
		bt.exact[bt.elements[i].Value] = struct{}{}
		off += ElementSize
	}
	return bt, nil
}
