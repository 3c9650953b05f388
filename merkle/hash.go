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

// Package merkle holds the types shared by the accumulator implementations:
// the fixed-size Hash, tree parameters and the errors trees return.
package merkle

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/canopyledger/canopy/errors"
)

// HashSize is the size of every leaf and node in bytes.
const HashSize = 32

// Hash is a leaf value or a node hash.
type Hash [HashSize]byte

// HashFromBytes copies b into a Hash. b must be exactly HashSize bytes long.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, errors.Errorf(errors.InvalidArgument, "merkle: hash has %d bytes, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// MustHash is HashFromBytes for inputs known to be well formed, such as the
// output of a 32-byte hasher.
func MustHash(b []byte) Hash {
	h, err := HashFromBytes(b)
	if err != nil {
		panic(err)
	}
	return h
}

// IsZero reports whether h is all zero bytes.
func (h Hash) IsZero() bool { return h == Hash{} }

// Compare orders hashes as big-endian unsigned integers.
func (h Hash) Compare(o Hash) int { return bytes.Compare(h[:], o[:]) }

// Less reports whether h < o as big-endian unsigned integers.
func (h Hash) Less(o Hash) bool { return h.Compare(o) < 0 }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Short returns an abbreviated hex form for log lines.
func (h Hash) Short() string { return fmt.Sprintf("%x", h[:4]) }

// MarshalText encodes h as lowercase hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes the hex form written by MarshalText.
func (h *Hash) UnmarshalText(b []byte) error {
	if len(b) != 2*HashSize {
		return errors.Errorf(errors.InvalidArgument, "merkle: hex hash has %d characters, want %d", len(b), 2*HashSize)
	}
	if _, err := hex.Decode(h[:], b); err != nil {
		return errors.Errorf(errors.InvalidArgument, "merkle: decoding hash: %v", err)
	}
	return nil
}

// HashCodec stores hashes in fixed 32-byte slots. It implements
// ringbuffer.Codec[Hash].
type HashCodec struct{}

// Size returns HashSize.
func (HashCodec) Size() int { return HashSize }

// Put copies v into b.
func (HashCodec) Put(b []byte, v Hash) { copy(b, v[:]) }

// Get copies b into a Hash.
func (HashCodec) Get(b []byte) (Hash, error) { return HashFromBytes(b) }
