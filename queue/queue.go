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

// Package queue implements batched admission queues. Elements land in the
// active batch in O(1), guarded against duplicates by a bloom filter backed
// by an exact value log, and are later marked inserted one zkp batch at a
// time as proofs fold them into an accumulator.
package queue

import (
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
)

// Kind identifies what a queue feeds.
type Kind uint8

const (
	UnknownKind Kind = iota
	// OutputQueue holds leaves to append to a state tree.
	OutputQueue
	// InputQueue holds leaves to nullify, with their leaf indices.
	InputQueue
	// AddressQueue holds values to insert into an indexed address tree.
	AddressQueue
)

func (k Kind) String() string {
	switch k {
	case OutputQueue:
		return "output"
	case InputQueue:
		return "input"
	case AddressQueue:
		return "address"
	}
	return "unknown"
}

const (
	MinBatches = 2
	MaxBatches = 4
)

var (
	// ErrDuplicate is returned when both the bloom filter and the exact log
	// of a batch contain the inserted value.
	ErrDuplicate = errors.New(errors.AlreadyExists, "queue: value already queued")
	// ErrBatchFull is returned when the active batch cannot accept elements.
	ErrBatchFull = errors.New(errors.ResourceExhausted, "queue: batch full")
	// ErrBatchNotReady is returned when a batch is closed or proven before
	// it holds the required elements.
	ErrBatchNotReady = errors.New(errors.FailedPrecondition, "queue: batch not ready")
	// ErrOutOfOrder is returned when a proof is applied to anything other
	// than the next unproven zkp batch.
	ErrOutOfOrder = errors.New(errors.Aborted, "queue: zkp batch applied out of order")
	// ErrInvalidParams is returned by New for unusable parameters.
	ErrInvalidParams = errors.New(errors.InvalidArgument, "queue: invalid parameters")
)

// Params configures a BatchSet.
type Params struct {
	NumBatches          uint32 `yaml:"num_batches"`
	ZkpBatchSize        uint32 `yaml:"zkp_batch_size"`
	ZkpBatchesPerBatch  uint32 `yaml:"zkp_batches_per_batch"`
	BloomFilterCapacity uint64 `yaml:"bloom_filter_capacity"`
	BloomFilterNumIters uint32 `yaml:"bloom_filter_num_iters"`
}

// BatchSize returns the number of elements a batch holds when full.
func (p Params) BatchSize() uint64 {
	return uint64(p.ZkpBatchSize) * uint64(p.ZkpBatchesPerBatch)
}

// Validate checks p.
func (p Params) Validate() error {
	switch {
	case p.NumBatches < MinBatches || p.NumBatches > MaxBatches:
		return errors.Errorf(errors.InvalidArgument, "num_batches %d not in [%d, %d]: %w", p.NumBatches, MinBatches, MaxBatches, ErrInvalidParams)
	case p.ZkpBatchSize == 0:
		return errors.Errorf(errors.InvalidArgument, "zkp_batch_size is zero: %w", ErrInvalidParams)
	case p.ZkpBatchesPerBatch == 0:
		return errors.Errorf(errors.InvalidArgument, "zkp_batches_per_batch is zero: %w", ErrInvalidParams)
	case p.BloomFilterCapacity == 0 || p.BloomFilterCapacity%8 != 0:
		return errors.Errorf(errors.InvalidArgument, "bloom_filter_capacity %d is not a positive multiple of 8: %w", p.BloomFilterCapacity, ErrInvalidParams)
	case p.BloomFilterNumIters == 0:
		return errors.Errorf(errors.InvalidArgument, "bloom_filter_num_iters is zero: %w", ErrInvalidParams)
	}
	return nil
}

// ZkpBatchRef names a zkp batch which is full but not yet proven.
type ZkpBatchRef struct {
	BatchIndex uint32
	ZkpIndex   uint32
	// StartIndex is the accumulator index of the first element.
	StartIndex uint64
	HashChain  merkle.Hash
}

// InsertResult describes a successful Insert.
type InsertResult struct {
	BatchIndex uint32
	// Closed is set when the insert filled the batch.
	Closed bool
	// InvalidateRootsBefore is non-zero when rotation force-zeroed a bloom
	// filter; roots with a lower sequence number predate the batch's
	// elements and must no longer be accepted.
	InvalidateRootsBefore uint64
}

// BatchSet is a rotating set of batches. It is not safe for concurrent use;
// the owning account serializes access.
type BatchSet struct {
	kind     Kind
	params   Params
	strategy hashers.Strategy
	hasher   hashers.Hasher
	batches  []*Batch
	// current is the batch being filled and pending the next to be proven.
	current   uint32
	pending   uint32
	nextIndex uint64
	// lastClosed is the most recently closed batch, or -1.
	lastClosed     int64
	falsePositives uint64
}

// New returns an empty batch set whose first batch starts at startIndex.
// Hash chains are built with the hasher of strategy s.
func New(kind Kind, params Params, s hashers.Strategy, startIndex uint64) (*BatchSet, error) {
	if kind == UnknownKind || kind > AddressQueue {
		return nil, errors.Errorf(errors.InvalidArgument, "queue kind %d: %w", kind, ErrInvalidParams)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	h, err := hashers.New(s)
	if err != nil {
		return nil, err
	}
	bs := &BatchSet{
		kind:       kind,
		params:     params,
		strategy:   s,
		hasher:     h,
		batches:    make([]*Batch, params.NumBatches),
		nextIndex:  startIndex,
		lastClosed: -1,
	}
	for i := range bs.batches {
		b, err := newBatch(params)
		if err != nil {
			return nil, err
		}
		bs.batches[i] = b
	}
	return bs, nil
}

// Kind returns the queue kind.
func (bs *BatchSet) Kind() Kind { return bs.kind }

// Hasher returns the hasher used for hash chains.
func (bs *BatchSet) Hasher() hashers.Hasher { return bs.hasher }

// Params returns the queue parameters.
func (bs *BatchSet) Params() Params { return bs.params }

// CurrentBatch returns the index of the batch being filled.
func (bs *BatchSet) CurrentBatch() uint32 { return bs.current }

// PendingBatch returns the index of the next batch to be proven.
func (bs *BatchSet) PendingBatch() uint32 { return bs.pending }

// NextIndex returns the accumulator index the next batch will start at.
func (bs *BatchSet) NextIndex() uint64 { return bs.nextIndex }

// FalsePositives returns how many inserts hit a bloom filter without an
// exact match.
func (bs *BatchSet) FalsePositives() uint64 { return bs.falsePositives }

// Batch returns batch i, or nil if out of range.
func (bs *BatchSet) Batch(i uint32) *Batch {
	if i >= uint32(len(bs.batches)) {
		return nil
	}
	return bs.batches[i]
}

// Contains reports whether v is queued in a batch whose bloom filter is
// still live.
func (bs *BatchSet) Contains(v merkle.Hash) bool {
	for _, b := range bs.batches {
		if _, exact := b.contains(v); exact {
			return true
		}
	}
	return false
}

// Insert admits e into the active batch.
func (bs *BatchSet) Insert(e Element) (InsertResult, error) {
	var res InsertResult
	cur := bs.batches[bs.current]
	if cur.state == Full {
		return res, errors.Errorf(errors.ResourceExhausted, "batch %d awaits proof: %w", bs.current, ErrBatchFull)
	}
	// A proven batch is reused below; nothing may be changed before the
	// duplicate check passes.
	rotate := cur.state == Inserted

	for i, b := range bs.batches {
		if rotate && uint32(i) == bs.current {
			continue
		}
		hit, exact := b.contains(e.Value)
		if exact {
			return res, errors.Errorf(errors.AlreadyExists, "%s in batch %d: %w", e.Value.Short(), i, ErrDuplicate)
		}
		if hit {
			bs.falsePositives++
		}
	}

	if rotate {
		if !cur.bloomZeroed {
			res.InvalidateRootsBefore = cur.rootSequence
		}
		cur.reset()
	}
	if cur.numInserted == 0 {
		cur.startIndex = bs.nextIndex
		bs.nextIndex += bs.params.BatchSize()
		cur.bloomZeroed = false
	}
	zkp := uint32(cur.numInserted / uint64(bs.params.ZkpBatchSize))
	in := e.ChainInput(bs.hasher, bs.kind)
	if cur.numInserted%uint64(bs.params.ZkpBatchSize) == 0 {
		cur.hashChains[zkp] = in
	} else {
		cur.hashChains[zkp] = hashers.Children(bs.hasher, cur.hashChains[zkp], in)
	}
	cur.bloom.Insert(e.Value)
	cur.elements = append(cur.elements, e)
	cur.exact[e.Value] = struct{}{}
	cur.numInserted++

	res.BatchIndex = bs.current
	if cur.numInserted == bs.params.BatchSize() {
		if _, err := bs.CloseBatch(); err != nil {
			return res, err
		}
		res.Closed = true
	}
	return res, nil
}

// CloseBatch closes the active batch once it holds a full batch of
// elements and rotates to the next one. Calling it right after an insert
// closed the batch returns that batch again.
func (bs *BatchSet) CloseBatch() (uint32, error) {
	cur := bs.batches[bs.current]
	if cur.state == Fill && cur.numInserted == 0 && bs.lastClosed >= 0 {
		return uint32(bs.lastClosed), nil
	}
	if cur.state != Fill || cur.numInserted != bs.params.BatchSize() {
		return 0, errors.Errorf(errors.FailedPrecondition, "batch %d holds %d of %d elements: %w", bs.current, cur.numInserted, bs.params.BatchSize(), ErrBatchNotReady)
	}
	id := bs.current
	cur.state = Full
	cur.zkpClosed = bs.params.ZkpBatchesPerBatch
	if cur.zkpInserted == cur.zkpClosed {
		cur.state = Inserted
		bs.pending = (id + 1) % bs.params.NumBatches
	}
	bs.lastClosed = int64(id)
	bs.current = (id + 1) % bs.params.NumBatches
	return id, nil
}

// completedZkps returns the number of full zkp batches in b.
func (bs *BatchSet) completedZkps(b *Batch) uint32 {
	return uint32(b.numInserted / uint64(bs.params.ZkpBatchSize))
}

// ReadyZkpBatches returns the zkp batches which are full but unproven, in
// the order their proofs must be applied.
func (bs *BatchSet) ReadyZkpBatches() []ZkpBatchRef {
	var out []ZkpBatchRef
	for n, i := uint32(0), bs.pending; n < bs.params.NumBatches; n, i = n+1, (i+1)%bs.params.NumBatches {
		b := bs.batches[i]
		if b.state == Inserted {
			break
		}
		for z := b.zkpInserted; z < bs.completedZkps(b); z++ {
			out = append(out, ZkpBatchRef{
				BatchIndex: i,
				ZkpIndex:   z,
				StartIndex: b.startIndex + uint64(z)*uint64(bs.params.ZkpBatchSize),
				HashChain:  b.hashChains[z],
			})
		}
		if b.state == Fill {
			break
		}
	}
	return out
}

// ZkpBatch returns the elements and hash chain of zkp batch z of batch i.
func (bs *BatchSet) ZkpBatch(i, z uint32) ([]Element, merkle.Hash, error) {
	b := bs.Batch(i)
	if b == nil || z >= bs.params.ZkpBatchesPerBatch {
		return nil, merkle.Hash{}, errors.Errorf(errors.OutOfRange, "queue: no zkp batch %d/%d", i, z)
	}
	if z >= bs.completedZkps(b) {
		return nil, merkle.Hash{}, errors.Errorf(errors.FailedPrecondition, "zkp batch %d/%d is not full: %w", i, z, ErrBatchNotReady)
	}
	size := uint64(bs.params.ZkpBatchSize)
	lo := uint64(z) * size
	return append([]Element(nil), b.elements[lo:lo+size]...), b.hashChains[z], nil
}

// NextReady returns the next zkp batch to prove.
func (bs *BatchSet) NextReady() (ZkpBatchRef, bool) {
	b := bs.batches[bs.pending]
	if b.state == Inserted || b.zkpInserted >= bs.completedZkps(b) {
		return ZkpBatchRef{}, false
	}
	z := b.zkpInserted
	return ZkpBatchRef{
		BatchIndex: bs.pending,
		ZkpIndex:   z,
		StartIndex: b.startIndex + uint64(z)*uint64(bs.params.ZkpBatchSize),
		HashChain:  b.hashChains[z],
	}, true
}

// ApplyProof marks zkp batch zkpIndex of batch batchIndex as inserted at
// root sequence rootSequence. Only the next ready zkp batch may be applied.
func (bs *BatchSet) ApplyProof(batchIndex, zkpIndex uint32, rootSequence uint64) error {
	next, ok := bs.NextReady()
	if !ok {
		return errors.Errorf(errors.FailedPrecondition, "no zkp batch ready: %w", ErrBatchNotReady)
	}
	if next.BatchIndex != batchIndex || next.ZkpIndex != zkpIndex {
		return errors.Errorf(errors.Aborted, "applying %d/%d, want %d/%d: %w", batchIndex, zkpIndex, next.BatchIndex, next.ZkpIndex, ErrOutOfOrder)
	}
	b := bs.batches[batchIndex]
	b.zkpInserted++
	b.rootSequence = rootSequence
	if b.state == Full && b.zkpInserted == b.zkpClosed {
		b.state = Inserted
		bs.pending = (batchIndex + 1) % bs.params.NumBatches
	}
	return nil
}

// ZeroBloomFilters zeroes the bloom filters of inserted batches once every
// root which predates them has left a root history of the given capacity,
// and returns the indices of the batches zeroed.
func (bs *BatchSet) ZeroBloomFilters(currentSequence, historyCapacity uint64) []uint32 {
	var zeroed []uint32
	for i, b := range bs.batches {
		if b.state != Inserted || b.bloomZeroed {
			continue
		}
		// The root at rootSequence is the first holding all of b's elements.
		// The oldest retained root is currentSequence+1-historyCapacity.
		if currentSequence+1 >= b.rootSequence+historyCapacity {
			b.zeroBloom()
			zeroed = append(zeroed, uint32(i))
		}
	}
	return zeroed
}

// Clone returns an independent copy.
func (bs *BatchSet) Clone() *BatchSet {
	c := *bs
	c.batches = make([]*Batch, len(bs.batches))
	for i, b := range bs.batches {
		c.batches[i] = b.clone()
	}
	return &c
}
