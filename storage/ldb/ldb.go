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

// Package ldb is a storage.Backend persisting accounts in LevelDB.
//
// Keys are prefixed with a one byte table tag followed by the length
// prefixed account ID, so that one account's keys never prefix another's:
//
//	'a' len(id):2 id             -> encoded account
//	'l' len(id):2 id index:8     -> leaf
package ldb

import (
	"context"
	"encoding/binary"
	"slices"
	"sync"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/storage"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
	"k8s.io/klog/v2"
)

const (
	accountTable = 'a'
	leafTable    = 'l'
)

func prefix(table byte, id storage.AccountID) []byte {
	k := make([]byte, 3, 3+len(id)+8)
	k[0] = table
	binary.BigEndian.PutUint16(k[1:], uint16(len(id)))
	return append(k, id...)
}

func accountKey(id storage.AccountID) []byte { return prefix(accountTable, id) }

func leafKey(id storage.AccountID, index uint64) []byte {
	return binary.BigEndian.AppendUint64(prefix(leafTable, id), index)
}

// Backend implements storage.Backend.
type Backend struct {
	// mu makes existence checks atomic with the writes that follow them.
	mu sync.Mutex
	db *leveldb.DB
}

// New returns a Backend using db. The caller keeps ownership of db.
func New(db *leveldb.DB) *Backend {
	return &Backend{db: db}
}

// OpenFile opens, or recovers if corrupted, the database at path.
func OpenFile(path string) (*leveldb.DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if lerrors.IsCorrupted(err) {
		klog.Warningf("ldb: recovering corrupted database at %s: %v", path, err)
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, errors.Errorf(errors.Unavailable, "ldb: opening %s: %v", path, err)
	}
	return db, nil
}

// ReadAccount implements storage.Backend.
func (b *Backend) ReadAccount(_ context.Context, id storage.AccountID) ([]byte, error) {
	v, err := b.db.Get(accountKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, storage.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Errorf(errors.Unavailable, "ldb: reading account %s: %v", id, err)
	}
	return v, nil
}

// ReadLeaves implements storage.Backend.
func (b *Backend) ReadLeaves(_ context.Context, id storage.AccountID) ([]merkle.Hash, error) {
	it := b.db.NewIterator(util.BytesPrefix(prefix(leafTable, id)), nil)
	defer it.Release()
	var leaves []merkle.Hash
	for it.Next() {
		k := it.Key()
		index := binary.BigEndian.Uint64(k[len(k)-8:])
		if index != uint64(len(leaves)) {
			return nil, errors.Errorf(errors.DataLoss, "ldb: account %s: leaf %d follows %d leaves", id, index, len(leaves))
		}
		l, err := merkle.HashFromBytes(it.Value())
		if err != nil {
			return nil, errors.Errorf(errors.DataLoss, "ldb: account %s leaf %d: %v", id, index, err)
		}
		leaves = append(leaves, l)
	}
	if err := it.Error(); err != nil {
		return nil, errors.Errorf(errors.Unavailable, "ldb: reading leaves of %s: %v", id, err)
	}
	return leaves, nil
}

func (b *Backend) write(id storage.AccountID, data []byte, leaves map[uint64]merkle.Hash) error {
	batch := new(leveldb.Batch)
	batch.Put(accountKey(id), data)
	for i, l := range leaves {
		batch.Put(leafKey(id, i), l[:])
	}
	if err := b.db.Write(batch, nil); err != nil {
		return errors.Errorf(errors.Unavailable, "ldb: writing account %s: %v", id, err)
	}
	return nil
}

// CreateAccount implements storage.Backend.
func (b *Backend) CreateAccount(_ context.Context, id storage.AccountID, data []byte, leaves map[uint64]merkle.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok, err := b.db.Has(accountKey(id), nil)
	if err != nil {
		return errors.Errorf(errors.Unavailable, "ldb: checking account %s: %v", id, err)
	}
	if ok {
		return storage.ErrAccountExists
	}
	return b.write(id, data, leaves)
}

// WriteAccount implements storage.Backend.
func (b *Backend) WriteAccount(_ context.Context, id storage.AccountID, data []byte, leaves map[uint64]merkle.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok, err := b.db.Has(accountKey(id), nil)
	if err != nil {
		return errors.Errorf(errors.Unavailable, "ldb: checking account %s: %v", id, err)
	}
	if !ok {
		return storage.ErrAccountNotFound
	}
	return b.write(id, data, leaves)
}

// ListAccounts implements storage.Backend.
func (b *Backend) ListAccounts(context.Context) ([]storage.AccountID, error) {
	it := b.db.NewIterator(util.BytesPrefix([]byte{accountTable}), nil)
	defer it.Release()
	var ids []storage.AccountID
	for it.Next() {
		k := it.Key()
		n := int(binary.BigEndian.Uint16(k[1:3]))
		if len(k) != 3+n {
			return nil, errors.Errorf(errors.DataLoss, "ldb: malformed account key %x", k)
		}
		ids = append(ids, storage.AccountID(k[3:]))
	}
	if err := it.Error(); err != nil {
		return nil, errors.Errorf(errors.Unavailable, "ldb: listing accounts: %v", err)
	}
	// Keys sort by ID length first.
	slices.Sort(ids)
	return ids, nil
}
