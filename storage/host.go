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

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/merkle/indexed"
	"github.com/canopyledger/canopy/queue"
	"github.com/canopyledger/canopy/util/clock"
	"k8s.io/klog/v2"
)

// Host is an in-process ledger host. Callers queue elements through Append,
// Nullify and CreateAddress; the coordinator reads through HostQuery and
// commits through Submitter.
type Host struct {
	backend  Backend
	verifier batched.Verifier
	slots    clock.SlotSource

	mu    sync.Mutex
	locks map[AccountID]*sync.RWMutex
}

// NewHost returns a Host over b which checks proofs with v. A nil slots
// means submissions are always eligible.
func NewHost(b Backend, v batched.Verifier, slots clock.SlotSource) *Host {
	if slots == nil {
		slots = clock.Unbounded{}
	}
	return &Host{backend: b, verifier: v, slots: slots, locks: make(map[AccountID]*sync.RWMutex)}
}

func (h *Host) lock(id AccountID) *sync.RWMutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[id]
	if !ok {
		l = &sync.RWMutex{}
		h.locks[id] = l
	}
	return l
}

// CreateAccount stores t under id. Address trees get their two sentinel
// leaves.
func (h *Host) CreateAccount(ctx context.Context, id AccountID, t *batched.Tree) error {
	l := h.lock(id)
	l.Lock()
	defer l.Unlock()
	var leaves map[uint64]merkle.Hash
	if t.Type() == batched.AddressTree {
		leaves = map[uint64]merkle.Hash{0: {}, 1: indexed.MaxValue}
	}
	if err := h.backend.CreateAccount(ctx, id, t.Encode(), leaves); err != nil {
		return err
	}
	klog.Infof("%s: created %s account, height %d", id, t.Type(), t.Params().Tree.Height)
	return nil
}

func (h *Host) read(ctx context.Context, id AccountID) (*batched.Tree, error) {
	b, err := h.backend.ReadAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return batched.Decode(b)
}

// update runs fn against the decoded account and writes it back, together
// with any leaves fn returns, if fn succeeds.
func (h *Host) update(ctx context.Context, id AccountID, fn func(*batched.Tree) (map[uint64]merkle.Hash, error)) error {
	l := h.lock(id)
	l.Lock()
	defer l.Unlock()
	t, err := h.read(ctx, id)
	if err != nil {
		return err
	}
	leaves, err := fn(t)
	if err != nil {
		return err
	}
	return h.backend.WriteAccount(ctx, id, t.Encode(), leaves)
}

// Tree returns a decoded snapshot of the account.
func (h *Host) Tree(ctx context.Context, id AccountID) (*batched.Tree, error) {
	l := h.lock(id)
	l.RLock()
	defer l.RUnlock()
	return h.read(ctx, id)
}

// Append queues leaf in the output queue of a state tree.
func (h *Host) Append(ctx context.Context, id AccountID, leaf merkle.Hash) (queue.InsertResult, error) {
	var res queue.InsertResult
	err := h.update(ctx, id, func(t *batched.Tree) (map[uint64]merkle.Hash, error) {
		var err error
		res, err = t.Append(leaf)
		return nil, err
	})
	return res, err
}

// Nullify queues the committed leaf at leafIndex for nullification.
func (h *Host) Nullify(ctx context.Context, id AccountID, leaf merkle.Hash, leafIndex uint64) (queue.InsertResult, error) {
	var res queue.InsertResult
	err := h.update(ctx, id, func(t *batched.Tree) (map[uint64]merkle.Hash, error) {
		leaves, err := h.backend.ReadLeaves(ctx, id)
		if err != nil {
			return nil, err
		}
		if leafIndex < uint64(len(leaves)) && leaves[leafIndex] != leaf {
			return nil, errors.Errorf(errors.InvalidArgument, "leaf %d is %s, not %s: %w", leafIndex, leaves[leafIndex].Short(), leaf.Short(), ErrLeafMismatch)
		}
		res, err = t.Nullify(leaf, leafIndex)
		return nil, err
	})
	return res, err
}

// CreateAddress queues address in an address tree.
func (h *Host) CreateAddress(ctx context.Context, id AccountID, address merkle.Hash) (queue.InsertResult, error) {
	var res queue.InsertResult
	err := h.update(ctx, id, func(t *batched.Tree) (map[uint64]merkle.Hash, error) {
		var err error
		res, err = t.CreateAddress(address)
		return nil, err
	})
	return res, err
}

// Account implements HostQuery.
func (h *Host) Account(ctx context.Context, id AccountID) ([]byte, error) {
	l := h.lock(id)
	l.RLock()
	defer l.RUnlock()
	return h.backend.ReadAccount(ctx, id)
}

// QueueElements implements HostQuery.
func (h *Host) QueueElements(ctx context.Context, id AccountID, k queue.Kind, offset, limit uint64) (*Page, error) {
	t, err := h.Tree(ctx, id)
	if err != nil {
		return nil, err
	}
	pending, err := t.Pending(k)
	if err != nil {
		return nil, err
	}
	zkp, err := t.ZkpBatchSize(k)
	if err != nil {
		return nil, err
	}
	var all []queue.Element
	for _, p := range pending {
		all = append(all, p.Elements...)
	}
	p := &Page{
		InitialRoot:  t.Root(),
		RootSeq:      t.SequenceNumber(),
		Total:        uint64(len(all)),
		ZkpBatchSize: zkp,
	}
	if len(pending) > 0 {
		p.StartIndex = pending[0].StartIndex + offset
	}
	if offset < p.Total {
		end := min(offset+limit, p.Total)
		p.Elements = all[offset:end]
	}
	return p, nil
}

// ListAccounts returns every account ID in ascending order.
func (h *Host) ListAccounts(ctx context.Context) ([]AccountID, error) {
	return h.backend.ListAccounts(ctx)
}

// Leaves implements HostQuery.
func (h *Host) Leaves(ctx context.Context, id AccountID) ([]merkle.Hash, error) {
	l := h.lock(id)
	l.RLock()
	defer l.RUnlock()
	return h.backend.ReadLeaves(ctx, id)
}

// committedLeaves returns the leaves the next ready zkp batch of k sets once
// its proof is applied.
func committedLeaves(t *batched.Tree, k queue.Kind, out map[uint64]merkle.Hash) error {
	pending, err := t.Pending(k)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		// ApplyProof reports the error.
		return nil
	}
	next := pending[0]
	for j, e := range next.Elements {
		if k == queue.InputQueue {
			out[e.LeafIndex] = batched.NullifiedLeaf(t.Hasher(), e.Value, e.LeafIndex)
			continue
		}
		out[next.StartIndex+uint64(j)] = e.Value
	}
	return nil
}

// Submit implements Submitter. Either every instruction is applied or none.
func (h *Host) Submit(ctx context.Context, id AccountID, ins []batched.Instruction) (Signature, error) {
	if len(ins) == 0 {
		return "", errors.New(errors.InvalidArgument, "storage: empty transaction")
	}
	remaining, err := h.slots.SlotsRemaining(ctx)
	if err != nil {
		return "", err
	}
	if remaining <= 0 {
		return "", ErrNotEligible
	}
	var sig Signature
	err = h.update(ctx, id, func(t *batched.Tree) (map[uint64]merkle.Hash, error) {
		leaves := make(map[uint64]merkle.Hash)
		var tx []byte
		for i, in := range ins {
			if err := committedLeaves(t, in.Queue, leaves); err != nil {
				return nil, err
			}
			res, err := t.ApplyProof(h.verifier, in)
			if err != nil {
				return nil, fmt.Errorf("instruction %d of %d (%s): %w", i+1, len(ins), in, err)
			}
			klog.V(1).Infof("%s: applied %s at sequence %d", id, in, res.Sequence)
			tx = append(tx, in.Encode()...)
		}
		sig = Signature(hashers.Leaf(t.Hasher(), tx).String())
		return leaves, nil
	})
	if err != nil {
		return "", err
	}
	return sig, nil
}
