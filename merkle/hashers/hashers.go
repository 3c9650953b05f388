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

// Package hashers provides the hash functions used to build accumulators and
// a registry mapping stored strategy identifiers to implementations.
package hashers

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/transparency-dev/merkle/rfc6962"
)

// Hasher provides the hash functions needed to compute binary merkle trees.
type Hasher interface {
	// HashLeaf hashes leaf content, for example an encoded indexed element.
	HashLeaf(leaf []byte) []byte
	// HashChildren computes interior nodes.
	HashChildren(l, r []byte) []byte
	// Size is the number of bytes in the underlying hash function.
	Size() int
}

// Strategy identifies a Hasher in stored tree headers.
type Strategy uint32

const (
	// UnknownStrategy is the zero value and never registered.
	UnknownStrategy Strategy = iota
	// RFC6962SHA256 uses RFC 6962 domain-separated SHA-256.
	RFC6962SHA256
	// PlainSHA256 hashes the concatenated inputs with SHA-256 and no prefix.
	PlainSHA256
)

var strategyNames = map[Strategy]string{
	RFC6962SHA256: "RFC6962_SHA256",
	PlainSHA256:   "PLAIN_SHA256",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN_STRATEGY(%d)", uint32(s))
}

// ParseStrategy maps a configuration name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return UnknownStrategy, errors.Errorf(errors.InvalidArgument, "unknown hash strategy %q", name)
}

// New returns the Hasher for s.
func New(s Strategy) (Hasher, error) {
	switch s {
	case RFC6962SHA256:
		return rfc6962.DefaultHasher, nil
	case PlainSHA256:
		return plainHasher{}, nil
	}
	return nil, errors.Errorf(errors.InvalidArgument, "hasher %s is not registered", s)
}

type plainHasher struct{}

func (plainHasher) HashLeaf(leaf []byte) []byte {
	sum := sha256.Sum256(leaf)
	return sum[:]
}

func (plainHasher) HashChildren(l, r []byte) []byte {
	h := sha256.New()
	h.Write(l)
	h.Write(r)
	return h.Sum(nil)
}

func (plainHasher) Size() int { return sha256.Size }

// Children hashes two nodes into their parent.
func Children(h Hasher, l, r merkle.Hash) merkle.Hash {
	return merkle.MustHash(h.HashChildren(l[:], r[:]))
}

// Leaf hashes leaf content into a node.
func Leaf(h Hasher, data []byte) merkle.Hash {
	return merkle.MustHash(h.HashLeaf(data))
}

// ZeroHashes returns the hashes of empty subtrees for levels 0 to height
// inclusive. Level 0 is the all-zero leaf and level i+1 hashes two copies of
// level i, so ZeroHashes(h, height)[height] is the root of an empty tree.
func ZeroHashes(h Hasher, height uint32) []merkle.Hash {
	z := make([]merkle.Hash, height+1)
	for i := uint32(1); i <= height; i++ {
		z[i] = Children(h, z[i-1], z[i-1])
	}
	return z
}

// Check returns an error unless h produces merkle.HashSize byte hashes.
func Check(h Hasher) error {
	if h == nil {
		return errors.New(errors.InvalidArgument, "nil hasher")
	}
	if h.Size() != merkle.HashSize {
		return errors.Errorf(errors.InvalidArgument, "hasher size %d, want %d", h.Size(), merkle.HashSize)
	}
	return nil
}
