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
	"fmt"

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/merkle/indexed"
	"github.com/canopyledger/canopy/merkle/proof"
	"github.com/canopyledger/canopy/queue"
)

// CircuitType names the transition a witness describes.
type CircuitType string

const (
	AppendCircuit        CircuitType = "append"
	UpdateCircuit        CircuitType = "update"
	AddressAppendCircuit CircuitType = "address-append"
)

// CircuitFor returns the circuit proving zkp batches of queue kind k.
func CircuitFor(k queue.Kind) (CircuitType, error) {
	switch k {
	case queue.OutputQueue:
		return AppendCircuit, nil
	case queue.InputQueue:
		return UpdateCircuit, nil
	case queue.AddressQueue:
		return AddressAppendCircuit, nil
	}
	return "", errors.Errorf(errors.InvalidArgument, "no circuit for queue kind %d", k)
}

// Queue returns the queue kind whose zkp batches c proves.
func (c CircuitType) Queue() (queue.Kind, error) {
	switch c {
	case AppendCircuit:
		return queue.OutputQueue, nil
	case UpdateCircuit:
		return queue.InputQueue, nil
	case AddressAppendCircuit:
		return queue.AddressQueue, nil
	}
	return 0, errors.Errorf(errors.InvalidArgument, "unknown circuit %q", c)
}

// Witness is everything a prover needs for one zkp batch. All Merkle proofs
// are full length (one sibling per level) and replay the batch one element
// at a time, each against the root left by the previous element.
type Witness struct {
	Circuit         CircuitType `json:"circuitType"`
	Height          uint32      `json:"height"`
	BatchSize       uint32      `json:"batchSize"`
	OldRoot         merkle.Hash `json:"oldRoot"`
	NewRoot         merkle.Hash `json:"newRoot"`
	HashChain       merkle.Hash `json:"leavesHashchainHash"`
	StartIndex      uint64      `json:"startIndex"`
	PublicInputHash merkle.Hash `json:"publicInputHash"`

	// Leaves are the appended leaves, the nullified values or the new
	// addresses, in queue order.
	Leaves []merkle.Hash `json:"leaves"`
	// OldLeaves and PathIndices are only set for updates.
	OldLeaves   []merkle.Hash `json:"oldLeaves,omitempty"`
	PathIndices []uint64      `json:"pathIndices,omitempty"`
	// MerkleProofs hold one proof per leaf for appends and updates.
	MerkleProofs [][]merkle.Hash `json:"merkleProofs,omitempty"`

	// Address appends: the low element before each splice and the proofs of
	// the low leaf and of the new leaf's position.
	LowElements      []indexed.Element `json:"lowElements,omitempty"`
	NewElements      []indexed.Element `json:"newElements,omitempty"`
	LowElementProofs [][]merkle.Hash   `json:"lowElementProofs,omitempty"`
	NewElementProofs [][]merkle.Hash   `json:"newElementProofs,omitempty"`
}

func (w *Witness) String() string {
	return fmt.Sprintf("%s[%d+%d] %s->%s", w.Circuit, w.StartIndex, len(w.Leaves), w.OldRoot.Short(), w.NewRoot.Short())
}

// Elements returns the queue elements the witness covers.
func (w *Witness) Elements() []queue.Element {
	out := make([]queue.Element, len(w.Leaves))
	for i, v := range w.Leaves {
		out[i].Value = v
		if i < len(w.PathIndices) {
			out[i].LeafIndex = w.PathIndices[i]
		}
	}
	return out
}

// Instruction returns the instruction carrying proof for this witness.
func (w *Witness) Instruction(proof []byte) (batched.Instruction, error) {
	k, err := w.Circuit.Queue()
	if err != nil {
		return batched.Instruction{}, err
	}
	return batched.Instruction{
		Queue:      k,
		OldRoot:    w.OldRoot,
		NewRoot:    w.NewRoot,
		HashChain:  w.HashChain,
		StartIndex: w.StartIndex,
		Proof:      proof,
	}, nil
}

func (w *Witness) validateShape() error {
	n := len(w.Leaves)
	if n == 0 || n != int(w.BatchSize) {
		return fmt.Errorf("%d leaves for batch size %d", n, w.BatchSize)
	}
	proofs := func(name string, ps [][]merkle.Hash) error {
		if len(ps) != n {
			return fmt.Errorf("%d %s for %d leaves", len(ps), name, n)
		}
		for i, p := range ps {
			if len(p) != int(w.Height) {
				return fmt.Errorf("%s[%d] has %d siblings, height is %d", name, i, len(p), w.Height)
			}
		}
		return nil
	}
	switch w.Circuit {
	case AppendCircuit:
		return proofs("merkle proofs", w.MerkleProofs)
	case UpdateCircuit:
		if len(w.OldLeaves) != n || len(w.PathIndices) != n {
			return fmt.Errorf("%d old leaves and %d path indices for %d leaves", len(w.OldLeaves), len(w.PathIndices), n)
		}
		return proofs("merkle proofs", w.MerkleProofs)
	case AddressAppendCircuit:
		if len(w.LowElements) != n || len(w.NewElements) != n {
			return fmt.Errorf("%d low and %d new elements for %d leaves", len(w.LowElements), len(w.NewElements), n)
		}
		if err := proofs("low element proofs", w.LowElementProofs); err != nil {
			return err
		}
		return proofs("new element proofs", w.NewElementProofs)
	}
	_, err := w.Circuit.Queue()
	return err
}

// Check replays the witness natively: it recomputes every intermediate root
// from the proofs, and the hash chain and public input hash from the leaves.
// A witness that passes Check is one a circuit would accept.
func (w *Witness) Check(h hashers.Hasher) error {
	if err := w.check(h); err != nil {
		return errors.Errorf(errors.InvalidArgument, "%s: %v: %w", w, err, ErrInvalidWitness)
	}
	return nil
}

func (w *Witness) check(h hashers.Hasher) error {
	if err := w.validateShape(); err != nil {
		return err
	}
	k, _ := w.Circuit.Queue()
	if got := queue.HashChain(h, k, w.Elements()); got != w.HashChain {
		return fmt.Errorf("hash chain %s, leaves chain to %s", w.HashChain.Short(), got.Short())
	}
	if got := batched.PublicInputHash(h, w.OldRoot, w.NewRoot, w.HashChain, w.StartIndex); got != w.PublicInputHash {
		return fmt.Errorf("public input hash %s, want %s", w.PublicInputHash.Short(), got.Short())
	}

	root := w.OldRoot
	var err error
	for i, leaf := range w.Leaves {
		switch w.Circuit {
		case AppendCircuit:
			root, err = replace(h, w.Height, root, merkle.Hash{}, leaf, w.StartIndex+uint64(i), w.MerkleProofs[i])
		case UpdateCircuit:
			idx := w.PathIndices[i]
			if w.OldLeaves[i] != leaf {
				return fmt.Errorf("leaf %d: nullified value %s is not the committed %s", idx, leaf.Short(), w.OldLeaves[i].Short())
			}
			root, err = replace(h, w.Height, root, leaf, batched.NullifiedLeaf(h, leaf, idx), idx, w.MerkleProofs[i])
		case AddressAppendCircuit:
			root, err = w.checkAddress(h, root, i)
		}
		if err != nil {
			return fmt.Errorf("element %d: %v", i, err)
		}
	}
	if root != w.NewRoot {
		return fmt.Errorf("leaves replay to root %s, want %s", root.Short(), w.NewRoot.Short())
	}
	return nil
}

func (w *Witness) checkAddress(h hashers.Hasher, root merkle.Hash, i int) (merkle.Hash, error) {
	low, elem := w.LowElements[i], w.NewElements[i]
	v := w.Leaves[i]
	index := w.StartIndex + uint64(i)
	if !low.Bounds(v) {
		return root, fmt.Errorf("address %s outside (%s, %s): %w", v.Short(), low.Value.Short(), low.NextValue.Short(), indexed.ErrNotBounded)
	}
	if elem.Index != index || elem.Value != v || elem.NextIndex != low.NextIndex || elem.NextValue != low.NextValue {
		return root, fmt.Errorf("new element %+v does not splice in after %+v", elem, low)
	}
	spliced := low
	spliced.NextIndex, spliced.NextValue = index, v
	root, err := replace(h, w.Height, root, low.Hash(h), spliced.Hash(h), low.Index, w.LowElementProofs[i])
	if err != nil {
		return root, fmt.Errorf("low element: %v", err)
	}
	return replace(h, w.Height, root, merkle.Hash{}, elem.Hash(h), index, w.NewElementProofs[i])
}

// replace checks that old sits at index under root and returns the root with
// old replaced by leaf.
func replace(h hashers.Hasher, height uint32, root, old, leaf merkle.Hash, index uint64, p []merkle.Hash) (merkle.Hash, error) {
	if err := proof.VerifyInclusion(h, height, old, index, p, root); err != nil {
		return root, err
	}
	return proof.RootFromProof(h, height, leaf, index, p)
}
