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

// Package storage defines how the coordinator talks to the host ledger:
// HostQuery reads accounts and their pending queue elements, Submitter
// commits proven instructions. Host implements both on top of a Backend
// which persists encoded accounts and their committed leaves.
package storage

import (
	"context"

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/queue"
)

// AccountID names an account on the host.
type AccountID string

// Signature identifies an accepted transaction.
type Signature string

var (
	// ErrAccountNotFound is returned for unknown accounts.
	ErrAccountNotFound = errors.New(errors.NotFound, "storage: account not found")
	// ErrAccountExists is returned when creating an account twice.
	ErrAccountExists = errors.New(errors.AlreadyExists, "storage: account already exists")
	// ErrLeafMismatch is returned when nullifying a value other than the
	// committed leaf.
	ErrLeafMismatch = errors.New(errors.InvalidArgument, "storage: value is not the committed leaf")
	// ErrNotEligible is returned by Submit once the submission window has
	// closed.
	ErrNotEligible = errors.ErrNotEligible
)

// Page is a slice of the pending elements of one queue, read at a single
// account state.
type Page struct {
	// InitialRoot and RootSeq identify the account state the page was
	// read at.
	InitialRoot merkle.Hash
	RootSeq     uint64
	// StartIndex is the queue index of Elements[0].
	StartIndex uint64
	Elements   []queue.Element
	// Total is the number of pending elements in the queue.
	Total        uint64
	ZkpBatchSize uint32
}

// HostQuery reads host state.
type HostQuery interface {
	// Account returns the encoded account.
	Account(ctx context.Context, id AccountID) ([]byte, error)
	// QueueElements returns up to limit pending elements of the queue of
	// kind k, skipping the first offset.
	QueueElements(ctx context.Context, id AccountID, k queue.Kind, offset, limit uint64) (*Page, error)
	// Leaves returns the committed accumulator leaves in index order. For
	// address trees these are the element values, sentinels included.
	Leaves(ctx context.Context, id AccountID) ([]merkle.Hash, error)
}

// Submitter commits instructions to the host. The instructions of one call
// are applied atomically and in order.
type Submitter interface {
	Submit(ctx context.Context, id AccountID, ins []batched.Instruction) (Signature, error)
}

// Backend persists accounts. Host serializes access per account.
type Backend interface {
	// ReadAccount returns the encoded account or ErrAccountNotFound.
	ReadAccount(ctx context.Context, id AccountID) ([]byte, error)
	// ReadLeaves returns the committed leaves in index order.
	ReadLeaves(ctx context.Context, id AccountID) ([]merkle.Hash, error)
	// CreateAccount stores a new account or returns ErrAccountExists.
	CreateAccount(ctx context.Context, id AccountID, account []byte, leaves map[uint64]merkle.Hash) error
	// WriteAccount atomically replaces the account and sets the given
	// leaves.
	WriteAccount(ctx context.Context, id AccountID, account []byte, leaves map[uint64]merkle.Hash) error
	// ListAccounts returns every account ID in ascending order.
	ListAccounts(ctx context.Context) ([]AccountID, error)
}

