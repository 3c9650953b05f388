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

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle/compact"
	"github.com/canopyledger/canopy/queue"
)

// Account layout, all integers big-endian:
//
//	offset  size  field
//	0       4     magic "CAC1"
//	4       1     version
//	5       1     tree type
//	6       2     reserved
//	8       4     accumulator size
//	12      4     input queue size
//	16      4     output queue size (0 for address trees)
//	20      4     reserved
//	24      ...   accumulator, input queue, output queue
const (
	HeaderSize = 24
	Version    = 1
)

var magic = [4]byte{'C', 'A', 'C', '1'}

// ErrCorrupt is returned when stored account bytes fail validation.
var ErrCorrupt = errors.New(errors.DataLoss, "batched: corrupt account")

// EncodedSize returns the size of an encoded account of type typ.
func EncodedSize(typ Type, p Params) int {
	n := HeaderSize + compact.EncodedSize(p.Tree) + queue.EncodedSize(p.Input)
	if typ == StateTree {
		n += queue.EncodedSize(p.Output)
	}
	return n
}

// Encode serializes the account.
func (t *Tree) Encode() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	acc := t.tree.Encode()
	in := t.input.Encode()
	var out []byte
	if t.output != nil {
		out = t.output.Encode()
	}
	b := make([]byte, HeaderSize, HeaderSize+len(acc)+len(in)+len(out))
	copy(b[0:4], magic[:])
	b[4] = Version
	b[5] = byte(t.typ)
	binary.BigEndian.PutUint32(b[8:], uint32(len(acc)))
	binary.BigEndian.PutUint32(b[12:], uint32(len(in)))
	binary.BigEndian.PutUint32(b[16:], uint32(len(out)))
	b = append(b, acc...)
	b = append(b, in...)
	return append(b, out...)
}

// Decode parses an account written by Encode.
func Decode(b []byte) (*Tree, error) {
	if len(b) < HeaderSize {
		return nil, errors.Errorf(errors.DataLoss, "batched: %d bytes is shorter than the header: %w", len(b), ErrCorrupt)
	}
	if [4]byte(b[0:4]) != magic {
		return nil, errors.Errorf(errors.DataLoss, "batched: bad magic %q: %w", b[0:4], ErrCorrupt)
	}
	if b[4] != Version {
		return nil, errors.Errorf(errors.DataLoss, "batched: unsupported version %d: %w", b[4], ErrCorrupt)
	}
	typ := Type(b[5])
	accLen := int(binary.BigEndian.Uint32(b[8:]))
	inLen := int(binary.BigEndian.Uint32(b[12:]))
	outLen := int(binary.BigEndian.Uint32(b[16:]))
	switch {
	case typ != StateTree && typ != AddressTree:
		return nil, errors.Errorf(errors.DataLoss, "batched: tree type %d: %w", b[5], ErrCorrupt)
	case (typ == AddressTree) != (outLen == 0):
		return nil, errors.Errorf(errors.DataLoss, "batched: %s tree with output queue of %d bytes: %w", typ, outLen, ErrCorrupt)
	case len(b) != HeaderSize+accLen+inLen+outLen:
		return nil, errors.Errorf(errors.DataLoss, "batched: got %d bytes, header claims %d: %w", len(b), HeaderSize+accLen+inLen+outLen, ErrCorrupt)
	}

	off := HeaderSize
	acc, err := compact.Decode(b[off : off+accLen])
	if err != nil {
		return nil, errors.Errorf(errors.DataLoss, "batched: accumulator: %v: %w", err, ErrCorrupt)
	}
	if acc.Mode() != compact.Batched {
		return nil, errors.Errorf(errors.DataLoss, "batched: accumulator in %s mode: %w", acc.Mode(), ErrCorrupt)
	}
	off += accLen
	in, err := queue.Decode(b[off : off+inLen])
	if err != nil {
		return nil, errors.Errorf(errors.DataLoss, "batched: input queue: %v: %w", err, ErrCorrupt)
	}
	off += inLen
	t := &Tree{
		typ:   typ,
		tree:  acc,
		input: in,
		params: Params{
			Strategy: acc.Strategy(),
			Tree:     acc.Options(),
			Input:    in.Params(),
		},
	}
	wantIn := queue.InputQueue
	if typ == AddressTree {
		wantIn = queue.AddressQueue
	}
	if in.Kind() != wantIn {
		return nil, errors.Errorf(errors.DataLoss, "batched: %s tree holds a %s input queue: %w", typ, in.Kind(), ErrCorrupt)
	}
	if typ == StateTree {
		out, err := queue.Decode(b[off : off+outLen])
		if err != nil {
			return nil, errors.Errorf(errors.DataLoss, "batched: output queue: %v: %w", err, ErrCorrupt)
		}
		if out.Kind() != queue.OutputQueue {
			return nil, errors.Errorf(errors.DataLoss, "batched: output queue of kind %s: %w", out.Kind(), ErrCorrupt)
		}
		t.output = out
		t.params.Output = out.Params()
	}
	return t, nil
}
