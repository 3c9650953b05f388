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

// Package proof verifies inclusion proofs against accumulator roots.
//
// A proof lists the sibling of every node on the path from a leaf upwards,
// starting with the leaf's own sibling. A proof may stop short of the root;
// the node it reaches is then an internal node whose level equals the proof
// length, such as a cached canopy node.
package proof

import (
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
)

// NodeFromProof folds leaf at index with the siblings in proof and returns
// the node reached at level len(proof).
func NodeFromProof(h hashers.Hasher, leaf merkle.Hash, index uint64, proof []merkle.Hash) merkle.Hash {
	node := leaf
	for level, sibling := range proof {
		if (index>>uint(level))&1 == 0 {
			node = hashers.Children(h, node, sibling)
		} else {
			node = hashers.Children(h, sibling, node)
		}
	}
	return node
}

// RootFromProof returns the root of a tree of the given height implied by a
// full-length proof.
func RootFromProof(h hashers.Hasher, height uint32, leaf merkle.Hash, index uint64, proof []merkle.Hash) (merkle.Hash, error) {
	if len(proof) != int(height) {
		return merkle.Hash{}, errors.Errorf(errors.InvalidArgument, "proof has %d siblings, want %d: %w", len(proof), height, merkle.ErrInvalidProof)
	}
	if height < 64 && index >= uint64(1)<<height {
		return merkle.Hash{}, errors.Errorf(errors.OutOfRange, "index %d beyond tree of height %d: %w", index, height, merkle.ErrIndexOutOfRange)
	}
	return NodeFromProof(h, leaf, index, proof), nil
}

// VerifyInclusion checks that leaf sits at index in the tree with the given
// root.
func VerifyInclusion(h hashers.Hasher, height uint32, leaf merkle.Hash, index uint64, proof []merkle.Hash, root merkle.Hash) error {
	got, err := RootFromProof(h, height, leaf, index, proof)
	if err != nil {
		return err
	}
	if got != root {
		return errors.Errorf(errors.FailedPrecondition, "leaf %d: computed root %s, want %s: %w", index, got.Short(), root.Short(), merkle.ErrInvalidProof)
	}
	return nil
}
