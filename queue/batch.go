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
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
)

// State is the lifecycle state of a batch.
type State uint8

const (
	// Fill batches accept new elements.
	Fill State = iota
	// Full batches are closed and wait for their proofs.
	Full
	// Inserted batches have been folded into the accumulator.
	Inserted
)

func (s State) String() string {
	switch s {
	case Fill:
		return "fill"
	case Full:
		return "full"
	case Inserted:
		return "inserted"
	}
	return "unknown"
}

// Element is a queued value. LeafIndex is only meaningful for input queues,
// where it names the accumulator leaf being nullified.
type Element struct {
	Value     merkle.Hash
	LeafIndex uint64
}

// ChainInput returns the value folded into a hash chain for e.
func (e Element) ChainInput(h hashers.Hasher, kind Kind) merkle.Hash {
	if kind != InputQueue {
		return e.Value
	}
	var idx merkle.Hash
	binary.BigEndian.PutUint64(idx[merkle.HashSize-8:], e.LeafIndex)
	return hashers.Children(h, e.Value, idx)
}

// Batch is one rotating slot of a BatchSet.
type Batch struct {
	state       State
	bloomZeroed bool
	// zkpInserted counts the zkp batches already proven.
	zkpInserted uint32
	// zkpClosed is the number of zkp batches the batch held when it was
	// closed; zero while filling.
	zkpClosed   uint32
	startIndex  uint64
	numInserted uint64
	// rootSequence is the accumulator sequence number of the root recorded
	// by the most recent proof of this batch.
	rootSequence uint64

	bloom      *bloom.Filter
	hashChains []merkle.Hash
	elements   []Element
	exact      map[merkle.Hash]struct{}
}

func newBatch(p Params) (*Batch, error) {
	f, err := bloom.New(p.BloomFilterCapacity, p.BloomFilterNumIters)
	if err != nil {
		return nil, err
	}
	return &Batch{
		bloomZeroed: true,
		bloom:       f,
		hashChains:  make([]merkle.Hash, p.ZkpBatchesPerBatch),
		exact:       make(map[merkle.Hash]struct{}),
	}, nil
}

// State returns the batch state.
func (b *Batch) State() State { return b.state }

// StartIndex returns the first leaf index the batch occupies.
func (b *Batch) StartIndex() uint64 { return b.startIndex }

// NumInserted returns the number of elements in the batch.
func (b *Batch) NumInserted() uint64 { return b.numInserted }

// ZkpInserted returns the number of proven zkp batches.
func (b *Batch) ZkpInserted() uint32 { return b.zkpInserted }

// RootSequence returns the sequence number of the latest root proven for
// the batch.
func (b *Batch) RootSequence() uint64 { return b.rootSequence }

// BloomZeroed reports whether the bloom filter has been cleared.
func (b *Batch) BloomZeroed() bool { return b.bloomZeroed }

// Elements returns a copy of the batch's exact log.
func (b *Batch) Elements() []Element { return append([]Element(nil), b.elements...) }

// contains reports whether v is in the batch with its bloom filter still
// answering for it.
func (b *Batch) contains(v merkle.Hash) (bloomHit, exact bool) {
	if b.bloomZeroed {
		return false, false
	}
	if !b.bloom.Contains(v) {
		return false, false
	}
	_, exact = b.exact[v]
	return true, exact
}

// reset empties an inserted batch for reuse.
func (b *Batch) reset() {
	b.state = Fill
	b.zkpInserted = 0
	b.zkpClosed = 0
	b.startIndex = 0
	b.numInserted = 0
	b.rootSequence = 0
	b.bloom.Zero()
	b.bloomZeroed = true
	clear(b.hashChains)
	b.elements = b.elements[:0]
	clear(b.exact)
}

func (b *Batch) zeroBloom() {
	b.bloom.Zero()
	b.bloomZeroed = true
}

func (b *Batch) clone() *Batch {
	c := *b
	c.bloom = b.bloom.Clone()
	c.hashChains = append([]merkle.Hash(nil), b.hashChains...)
	c.elements = append([]Element(nil), b.elements...)
	c.exact = make(map[merkle.Hash]struct{}, len(b.exact))
	for k := range b.exact {
		c.exact[k] = struct{}{}
	}
	return &c
}

// HashChain folds elems into h_0 = v_0, h_i = H(h_{i-1}, v_i) over their
// chain inputs. It returns the zero hash for no elements.
func HashChain(h hashers.Hasher, kind Kind, elems []Element) merkle.Hash {
	var chain merkle.Hash
	for i, e := range elems {
		in := e.ChainInput(h, kind)
		if i == 0 {
			chain = in
			continue
		}
		chain = hashers.Children(h, chain, in)
	}
	return chain
}
