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

// Package memory is a storage.Backend keeping accounts in a BTree. It is
// intended for tests and for running the coordinator against a simulated
// host.
package memory

import (
	"context"
	"sync"

	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/storage"
	"github.com/google/btree"
)

const degree = 8

type account struct {
	id     storage.AccountID
	data   []byte
	leaves []merkle.Hash
}

func lessAccount(a, b *account) bool { return a.id < b.id }

// Backend implements storage.Backend.
type Backend struct {
	mu    sync.RWMutex
	store *btree.BTreeG[*account]
}

// NewBackend returns an empty Backend.
func NewBackend() *Backend {
	return &Backend{store: btree.NewG(degree, lessAccount)}
}

func (b *Backend) get(id storage.AccountID) (*account, error) {
	a, ok := b.store.Get(&account{id: id})
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return a, nil
}

// ReadAccount implements storage.Backend.
func (b *Backend) ReadAccount(_ context.Context, id storage.AccountID) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, err := b.get(id)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), a.data...), nil
}

// ReadLeaves implements storage.Backend.
func (b *Backend) ReadLeaves(_ context.Context, id storage.AccountID) ([]merkle.Hash, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, err := b.get(id)
	if err != nil {
		return nil, err
	}
	return append([]merkle.Hash(nil), a.leaves...), nil
}

func (a *account) set(data []byte, leaves map[uint64]merkle.Hash) {
	a.data = append([]byte(nil), data...)
	for i, l := range leaves {
		for uint64(len(a.leaves)) <= i {
			a.leaves = append(a.leaves, merkle.Hash{})
		}
		a.leaves[i] = l
	}
}

// CreateAccount implements storage.Backend.
func (b *Backend) CreateAccount(_ context.Context, id storage.AccountID, data []byte, leaves map[uint64]merkle.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.store.Has(&account{id: id}) {
		return storage.ErrAccountExists
	}
	a := &account{id: id}
	a.set(data, leaves)
	b.store.ReplaceOrInsert(a)
	return nil
}

// WriteAccount implements storage.Backend.
func (b *Backend) WriteAccount(_ context.Context, id storage.AccountID, data []byte, leaves map[uint64]merkle.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.get(id)
	if err != nil {
		return err
	}
	a.set(data, leaves)
	return nil
}

// ListAccounts implements storage.Backend.
func (b *Backend) ListAccounts(context.Context) ([]storage.AccountID, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]storage.AccountID, 0, b.store.Len())
	b.store.Ascend(func(a *account) bool {
		ids = append(ids, a.id)
		return true
	})
	return ids, nil
}
