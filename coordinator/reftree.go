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

package coordinator

import (
	"context"
	"sync"

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/coordinator/prover"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/merkle/indexed"
	"github.com/canopyledger/canopy/merkle/inmemory"
	"github.com/canopyledger/canopy/queue"
	"github.com/canopyledger/canopy/storage"
	"k8s.io/klog/v2"
)

// ErrRootDiverged is returned when the host's leaves do not hash to the root
// its queue pages were read at.
var ErrRootDiverged = errors.New(errors.Aborted, "coordinator: host leaves do not match host root")

// refTree is the coordinator's full copy of one account's accumulator,
// used to compute the paths witnesses need. Witnesses are built against it
// one zkp batch after another, so it runs ahead of the host until the
// instructions are committed.
type refTree struct {
	mu     sync.Mutex
	id     storage.AccountID
	typ    batched.Type
	opts   merkle.TreeOptions
	hasher hashers.Hasher
	queues []queue.Kind
	zkp    map[queue.Kind]uint64

	state   *inmemory.Tree
	address *indexed.Tree
}

func newRefTree(id storage.AccountID, t *batched.Tree) *refTree {
	r := &refTree{id: id, typ: t.Type(), opts: t.Params().Tree, hasher: t.Hasher(), queues: t.Queues(), zkp: make(map[queue.Kind]uint64)}
	for _, k := range t.Queues() {
		if n, err := t.ZkpBatchSize(k); err == nil {
			r.zkp[k] = uint64(n)
		}
	}
	return r
}

func (r *refTree) root() (merkle.Hash, bool) {
	switch {
	case r.state != nil:
		return r.state.Root(), true
	case r.address != nil:
		return r.address.Root(), true
	}
	return merkle.Hash{}, false
}

// syncTo makes sure the tree is at root, rebuilding it from the host's
// committed leaves if it is not. The caller holds r.mu.
func (r *refTree) syncTo(ctx context.Context, host storage.HostQuery, root merkle.Hash) error {
	if got, ok := r.root(); ok && got == root {
		return nil
	}
	leaves, err := host.Leaves(ctx, r.id)
	if err != nil {
		return err
	}
	var got merkle.Hash
	switch r.typ {
	case batched.StateTree:
		t, err := inmemory.NewFromLeaves(r.hasher, r.opts, leaves)
		if err != nil {
			return err
		}
		r.state, got = t, t.Root()
	case batched.AddressTree:
		if len(leaves) < 2 {
			return errors.Errorf(errors.DataLoss, "%s: address tree with %d leaves", r.id, len(leaves))
		}
		t, err := indexed.NewTreeFromValues(r.hasher, r.opts, leaves[2:])
		if err != nil {
			return err
		}
		r.address, got = t, t.Root()
	default:
		return errors.Errorf(errors.InvalidArgument, "%s: unknown tree type %v", r.id, r.typ)
	}
	if got != root {
		r.state, r.address = nil, nil
		return errors.Errorf(errors.Aborted, "%s: %d leaves hash to %s, pages read at %s: %w", r.id, len(leaves), got.Short(), root.Short(), ErrRootDiverged)
	}
	klog.V(1).Infof("%s: rebuilt reference tree from %d leaves at root %s", r.id, len(leaves), root.Short())
	return nil
}

// build applies one zkp batch and returns its witness. On failure the tree
// is dropped and rebuilt by the next syncTo. The caller holds r.mu.
func (r *refTree) build(k queue.Kind, start uint64, elems []queue.Element) (*prover.Witness, error) {
	var (
		w   *prover.Witness
		err error
	)
	switch {
	case k == queue.OutputQueue && r.state != nil:
		w, err = prover.BuildAppend(r.state, start, elems)
	case k == queue.InputQueue && r.state != nil:
		w, err = prover.BuildUpdate(r.state, start, elems)
	case k == queue.AddressQueue && r.address != nil:
		w, err = prover.BuildAddressAppend(r.address, start, elems)
	default:
		err = errors.Errorf(errors.FailedPrecondition, "%s: no %s reference tree for %s queue", r.id, r.typ, k)
	}
	if err != nil {
		r.state, r.address = nil, nil
		return nil, err
	}
	return w, nil
}

// refTrees holds one refTree per account.
type refTrees struct {
	mu    sync.Mutex
	trees map[storage.AccountID]*refTree
}

// get returns the account's tree, creating it from the encoded account on
// first use.
func (rs *refTrees) get(ctx context.Context, host storage.HostQuery, id storage.AccountID) (*refTree, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r, ok := rs.trees[id]; ok {
		return r, nil
	}
	b, err := host.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := batched.Decode(b)
	if err != nil {
		return nil, err
	}
	if rs.trees == nil {
		rs.trees = make(map[storage.AccountID]*refTree)
	}
	r := newRefTree(id, t)
	rs.trees[id] = r
	return r, nil
}
