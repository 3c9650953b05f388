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

// Package storagetest holds tests shared by storage.Backend implementations.
package storagetest

import (
	"context"
	"testing"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/storage"
	"github.com/google/go-cmp/cmp"
)

func leaf(b byte) merkle.Hash {
	var h merkle.Hash
	h[0] = b
	return h
}

// RunBackendTests runs every backend test against a fresh Backend from
// newBackend.
func RunBackendTests(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Helper()
	for name, fn := range map[string]func(*testing.T, storage.Backend){
		"NotFound":        testNotFound,
		"CreateAndRead":   testCreateAndRead,
		"CreateTwice":     testCreateTwice,
		"WriteLeaves":     testWriteLeaves,
		"ListAccounts":    testListAccounts,
		"PrefixIsolation": testPrefixIsolation,
	} {
		t.Run(name, func(t *testing.T) { fn(t, newBackend(t)) })
	}
}

func testNotFound(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if _, err := b.ReadAccount(ctx, "missing"); !errors.Is(err, storage.ErrAccountNotFound) {
		t.Errorf("ReadAccount()=%v, want ErrAccountNotFound", err)
	}
	if err := b.WriteAccount(ctx, "missing", []byte{1}, nil); !errors.Is(err, storage.ErrAccountNotFound) {
		t.Errorf("WriteAccount()=%v, want ErrAccountNotFound", err)
	}
}

func testCreateAndRead(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if err := b.CreateAccount(ctx, "acc", []byte("v1"), map[uint64]merkle.Hash{0: leaf(1), 1: leaf(2)}); err != nil {
		t.Fatalf("CreateAccount(): %v", err)
	}
	got, err := b.ReadAccount(ctx, "acc")
	if err != nil || string(got) != "v1" {
		t.Errorf("ReadAccount()=%q, %v, want v1", got, err)
	}
	// Returned bytes belong to the caller.
	got[0] = 'x'
	if again, _ := b.ReadAccount(ctx, "acc"); string(again) != "v1" {
		t.Errorf("ReadAccount() after mutating result=%q, want v1", again)
	}
	leaves, err := b.ReadLeaves(ctx, "acc")
	if err != nil {
		t.Fatalf("ReadLeaves(): %v", err)
	}
	if diff := cmp.Diff([]merkle.Hash{leaf(1), leaf(2)}, leaves); diff != "" {
		t.Errorf("ReadLeaves() diff (-want +got):\n%s", diff)
	}
}

func testCreateTwice(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if err := b.CreateAccount(ctx, "acc", []byte("v1"), nil); err != nil {
		t.Fatalf("CreateAccount(): %v", err)
	}
	if err := b.CreateAccount(ctx, "acc", []byte("v2"), nil); !errors.Is(err, storage.ErrAccountExists) {
		t.Errorf("second CreateAccount()=%v, want ErrAccountExists", err)
	}
	if got, _ := b.ReadAccount(ctx, "acc"); string(got) != "v1" {
		t.Errorf("ReadAccount()=%q, want v1", got)
	}
}

func testWriteLeaves(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if err := b.CreateAccount(ctx, "acc", []byte("v1"), nil); err != nil {
		t.Fatalf("CreateAccount(): %v", err)
	}
	if leaves, err := b.ReadLeaves(ctx, "acc"); err != nil || len(leaves) != 0 {
		t.Errorf("ReadLeaves() on new account=%v, %v, want none", leaves, err)
	}
	for _, step := range []struct {
		data   string
		leaves map[uint64]merkle.Hash
	}{
		{data: "v2", leaves: map[uint64]merkle.Hash{0: leaf(1), 1: leaf(2)}},
		{data: "v3", leaves: map[uint64]merkle.Hash{2: leaf(3), 3: leaf(4)}},
		{data: "v4", leaves: map[uint64]merkle.Hash{1: leaf(9)}},
	} {
		if err := b.WriteAccount(ctx, "acc", []byte(step.data), step.leaves); err != nil {
			t.Fatalf("WriteAccount(%s): %v", step.data, err)
		}
	}
	if got, _ := b.ReadAccount(ctx, "acc"); string(got) != "v4" {
		t.Errorf("ReadAccount()=%q, want v4", got)
	}
	leaves, err := b.ReadLeaves(ctx, "acc")
	if err != nil {
		t.Fatalf("ReadLeaves(): %v", err)
	}
	if diff := cmp.Diff([]merkle.Hash{leaf(1), leaf(9), leaf(3), leaf(4)}, leaves); diff != "" {
		t.Errorf("ReadLeaves() diff (-want +got):\n%s", diff)
	}
}

func testListAccounts(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	for _, id := range []storage.AccountID{"state-b", "addr", "state-a"} {
		if err := b.CreateAccount(ctx, id, []byte(id), nil); err != nil {
			t.Fatalf("CreateAccount(%s): %v", id, err)
		}
	}
	ids, err := b.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts(): %v", err)
	}
	if diff := cmp.Diff([]storage.AccountID{"addr", "state-a", "state-b"}, ids); diff != "" {
		t.Errorf("ListAccounts() diff (-want +got):\n%s", diff)
	}
}

func testPrefixIsolation(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if err := b.CreateAccount(ctx, "a", nil, map[uint64]merkle.Hash{0: leaf(1)}); err != nil {
		t.Fatalf("CreateAccount(a): %v", err)
	}
	if err := b.CreateAccount(ctx, "a/b", nil, map[uint64]merkle.Hash{0: leaf(2), 1: leaf(3)}); err != nil {
		t.Fatalf("CreateAccount(a/b): %v", err)
	}
	leaves, err := b.ReadLeaves(ctx, "a")
	if err != nil {
		t.Fatalf("ReadLeaves(a): %v", err)
	}
	if diff := cmp.Diff([]merkle.Hash{leaf(1)}, leaves); diff != "" {
		t.Errorf("ReadLeaves(a) diff (-want +got):\n%s", diff)
	}
}
