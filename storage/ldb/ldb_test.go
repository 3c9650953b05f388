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

package ldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/canopyledger/canopy/storage"
	"github.com/canopyledger/canopy/storage/storagetest"
	"github.com/syndtr/goleveldb/leveldb"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

func memDB(t *testing.T) *leveldb.DB {
	t.Helper()
	db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	if err != nil {
		t.Fatalf("leveldb.Open(): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBackend(t *testing.T) {
	storagetest.RunBackendTests(t, func(t *testing.T) storage.Backend { return New(memDB(t)) })
}

func TestKeys(t *testing.T) {
	if got, want := string(accountKey("ab")), "a\x00\x02ab"; got != want {
		t.Errorf("accountKey()=%q, want %q", got, want)
	}
	if got, want := string(leafKey("ab", 258)), "l\x00\x02ab\x00\x00\x00\x00\x00\x00\x01\x02"; got != want {
		t.Errorf("leafKey()=%q, want %q", got, want)
	}
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts")
	db, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile(): %v", err)
	}
	if err := New(db).CreateAccount(ctx, "acc", []byte("persisted"), nil); err != nil {
		t.Fatalf("CreateAccount(): %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}

	db, err = OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() again: %v", err)
	}
	defer db.Close()
	got, err := New(db).ReadAccount(ctx, "acc")
	if err != nil || string(got) != "persisted" {
		t.Errorf("ReadAccount() after reopen=%q, %v", got, err)
	}
}
