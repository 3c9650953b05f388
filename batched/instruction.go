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

package batched

import (
	"encoding/binary"
	"fmt"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/queue"
)

// Instruction is a proven state transition for the next ready zkp batch of
// one queue.
type Instruction struct {
	Queue      queue.Kind
	OldRoot    merkle.Hash
	NewRoot    merkle.Hash
	HashChain  merkle.Hash
	StartIndex uint64
	Proof      []byte
}

func (i Instruction) String() string {
	return fmt.Sprintf("%s[%d] %s->%s", i.Queue, i.StartIndex, i.OldRoot.Short(), i.NewRoot.Short())
}

// PublicInputHash returns the value a proof for the transition commits to.
func PublicInputHash(h hashers.Hasher, oldRoot, newRoot, hashChain merkle.Hash, startIndex uint64) merkle.Hash {
	var idx merkle.Hash
	binary.BigEndian.PutUint64(idx[merkle.HashSize-8:], startIndex)
	return hashers.Children(h, hashers.Children(h, oldRoot, newRoot), hashers.Children(h, hashChain, idx))
}

// Encoded instruction layout, all integers big-endian:
//
//	offset  size  field
//	0       1     queue kind
//	1       3     reserved
//	4       4     proof length
//	8       8     start index
//	16      32    old root
//	48      32    new root
//	80      32    hash chain
//	112     n     proof
const (
	InstructionHeaderSize = 112
	MaxProofSize          = 1 << 16
)

// ErrBadInstruction is returned by DecodeInstruction for malformed input.
var ErrBadInstruction = errors.New(errors.InvalidArgument, "batched: malformed instruction")

// Encode serializes the instruction.
func (i Instruction) Encode() []byte {
	b := make([]byte, InstructionHeaderSize+len(i.Proof))
	b[0] = byte(i.Queue)
	binary.BigEndian.PutUint32(b[4:], uint32(len(i.Proof)))
	binary.BigEndian.PutUint64(b[8:], i.StartIndex)
	copy(b[16:], i.OldRoot[:])
	copy(b[48:], i.NewRoot[:])
	copy(b[80:], i.HashChain[:])
	copy(b[InstructionHeaderSize:], i.Proof)
	return b
}

// DecodeInstruction parses an instruction written by Encode.
func DecodeInstruction(b []byte) (Instruction, error) {
	if len(b) < InstructionHeaderSize {
		return Instruction{}, errors.Errorf(errors.InvalidArgument, "%d bytes: %w", len(b), ErrBadInstruction)
	}
	n := binary.BigEndian.Uint32(b[4:])
	if n > MaxProofSize || len(b) != InstructionHeaderSize+int(n) {
		return Instruction{}, errors.Errorf(errors.InvalidArgument, "proof of %d bytes in %d: %w", n, len(b), ErrBadInstruction)
	}
	k := queue.Kind(b[0])
	if k == queue.UnknownKind || k > queue.AddressQueue {
		return Instruction{}, errors.Errorf(errors.InvalidArgument, "queue kind %d: %w", b[0], ErrBadInstruction)
	}
	i := Instruction{
		Queue:      k,
		StartIndex: binary.BigEndian.Uint64(b[8:]),
		Proof:      append([]byte(nil), b[InstructionHeaderSize:]...),
	}
	copy(i.OldRoot[:], b[16:48])
	copy(i.NewRoot[:], b[48:80])
	copy(i.HashChain[:], b[80:112])
	return i, nil
}
