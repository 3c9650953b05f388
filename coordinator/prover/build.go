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

package prover

import (
	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/merkle/indexed"
	"github.com/canopyledger/canopy/merkle/inmemory"
	"github.com/canopyledger/canopy/queue"
)

// The Build functions apply one zkp batch to a reference tree and return
// the witness for the transition. The tree is left at the new root; on
// error it may be partially updated and must be discarded.

// BuildAppend appends elems to t.
func BuildAppend(t *inmemory.Tree, start uint64, elems []queue.Element) (*Witness, error) {
	if t.NextIndex() != start {
		return nil, errors.Errorf(errors.FailedPrecondition, "zkp batch starts at %d, reference tree holds %d leaves", start, t.NextIndex())
	}
	w := newWitness(AppendCircuit, t.Options().Height, t.Root(), start, elems)
	for _, e := range elems {
		idx, err := t.Append(e.Value)
		if err != nil {
			return nil, err
		}
		p, err := t.ProofOfLeaf(idx, true)
		if err != nil {
			return nil, err
		}
		w.MerkleProofs = append(w.MerkleProofs, p)
	}
	return w.finish(t.Hasher(), t.Root(), queue.OutputQueue), nil
}

// BuildUpdate nullifies the leaves named by elems in t.
func BuildUpdate(t *inmemory.Tree, start uint64, elems []queue.Element) (*Witness, error) {
	w := newWitness(UpdateCircuit, t.Options().Height, t.Root(), start, elems)
	h := t.Hasher()
	for _, e := range elems {
		old, err := t.Leaf(e.LeafIndex)
		if err != nil {
			return nil, err
		}
		p, err := t.ProofOfLeaf(e.LeafIndex, true)
		if err != nil {
			return nil, err
		}
		if err := t.Update(e.LeafIndex, batched.NullifiedLeaf(h, e.Value, e.LeafIndex)); err != nil {
			return nil, err
		}
		w.OldLeaves = append(w.OldLeaves, old)
		w.PathIndices = append(w.PathIndices, e.LeafIndex)
		w.MerkleProofs = append(w.MerkleProofs, p)
	}
	return w.finish(h, t.Root(), queue.InputQueue), nil
}

// BuildAddressAppend inserts the addresses in elems into t.
func BuildAddressAppend(t *indexed.Tree, start uint64, elems []queue.Element) (*Witness, error) {
	if t.NextIndex() != start {
		return nil, errors.Errorf(errors.FailedPrecondition, "zkp batch starts at %d, reference tree holds %d elements", start, t.NextIndex())
	}
	acc := t.Accumulator()
	w := newWitness(AddressAppendCircuit, acc.Options().Height, t.Root(), start, elems)
	for _, e := range elems {
		res, err := t.Append(e.Value)
		if err != nil {
			return nil, err
		}
		w.LowElements = append(w.LowElements, res.OldLowElement)
		w.NewElements = append(w.NewElements, res.NewElement)
		w.LowElementProofs = append(w.LowElementProofs, res.LowElementProof)
		w.NewElementProofs = append(w.NewElementProofs, res.NewElementProof)
	}
	return w.finish(acc.Hasher(), t.Root(), queue.AddressQueue), nil
}

func newWitness(c CircuitType, height uint32, oldRoot merkle.Hash, start uint64, elems []queue.Element) *Witness {
	w := &Witness{
		Circuit:    c,
		Height:     height,
		BatchSize:  uint32(len(elems)),
		OldRoot:    oldRoot,
		StartIndex: start,
		Leaves:     make([]merkle.Hash, 0, len(elems)),
	}
	for _, e := range elems {
		w.Leaves = append(w.Leaves, e.Value)
	}
	return w
}

func (w *Witness) finish(h hashers.Hasher, newRoot merkle.Hash, k queue.Kind) *Witness {
	w.NewRoot = newRoot
	w.HashChain = queue.HashChain(h, k, w.Elements())
	w.PublicInputHash = batched.PublicInputHash(h, w.OldRoot, w.NewRoot, w.HashChain, w.StartIndex)
	return w
}
