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

// Package batched holds the ledger accounts which tie a bounded accumulator
// to its admission queues: state trees, fed by an output queue of appended
// leaves and an input queue of nullified leaves, and address trees, fed by
// an address queue of values for an indexed tree.
//
// Callers admit elements in O(1). Roots only advance through ApplyProof,
// which checks a proven transition for the next ready zkp batch of a queue.
package batched

import (
	"sync"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/compact"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/merkle/indexed"
	"github.com/canopyledger/canopy/queue"
	"k8s.io/klog/v2"
)

// Type is the kind of account.
type Type uint8

const (
	UnknownType Type = iota
	StateTree
	AddressTree
)

func (t Type) String() string {
	switch t {
	case StateTree:
		return "state"
	case AddressTree:
		return "address"
	}
	return "unknown"
}

var (
	// ErrWrongType is returned for operations the account type does not
	// support.
	ErrWrongType = errors.New(errors.FailedPrecondition, "batched: operation not supported by tree type")
	// ErrRootMismatch is returned when an instruction starts from a root
	// other than the current one.
	ErrRootMismatch = errors.New(errors.Aborted, "batched: old root is not the current root")
	// ErrHashChainMismatch is returned when an instruction commits to other
	// elements than the queue holds.
	ErrHashChainMismatch = errors.New(errors.FailedPrecondition, "batched: hash chain mismatch")
	// ErrStartIndexMismatch is returned when an instruction names the wrong
	// zkp batch.
	ErrStartIndexMismatch = errors.New(errors.FailedPrecondition, "batched: start index mismatch")
	// ErrProofRejected is returned when the verifier rejects a proof.
	ErrProofRejected = errors.New(errors.FailedPrecondition, "batched: proof rejected")
	// ErrLeafNotCommitted is returned when nullifying a leaf which is not
	// yet in the accumulator.
	ErrLeafNotCommitted = errors.New(errors.FailedPrecondition, "batched: leaf not committed")
	// ErrInvalidAddress is returned for the reserved sentinel values.
	ErrInvalidAddress = errors.New(errors.InvalidArgument, "batched: address out of range")
)

// Verifier checks that proof attests to a transition with the given public
// input hash.
type Verifier interface {
	Verify(publicInput merkle.Hash, proof []byte) error
}

// Params configures an account.
type Params struct {
	Strategy hashers.Strategy
	Tree     merkle.TreeOptions
	// Input configures the nullifier queue of a state tree or the address
	// queue of an address tree.
	Input queue.Params
	// Output configures the output queue of a state tree.
	Output queue.Params
}

// Tree is a ledger account. Mutations are serialized; reads may run
// concurrently with each other.
type Tree struct {
	mu     sync.RWMutex
	typ    Type
	params Params
	tree   *compact.Tree
	input  *queue.BatchSet
	output *queue.BatchSet
}

// NewStateTree returns an empty state tree.
func NewStateTree(p Params) (*Tree, error) {
	tree, err := compact.NewBatched(p.Strategy, p.Tree)
	if err != nil {
		return nil, err
	}
	output, err := queue.New(queue.OutputQueue, p.Output, p.Strategy, 0)
	if err != nil {
		return nil, err
	}
	input, err := queue.New(queue.InputQueue, p.Input, p.Strategy, 0)
	if err != nil {
		return nil, err
	}
	return &Tree{typ: StateTree, params: p, tree: tree, input: input, output: output}, nil
}

// NewAddressTree returns an address tree holding the two indexed sentinels.
func NewAddressTree(p Params) (*Tree, error) {
	h, err := hashers.New(p.Strategy)
	if err != nil {
		return nil, err
	}
	root, err := indexed.InitialRoot(h, p.Tree)
	if err != nil {
		return nil, err
	}
	tree, err := compact.NewBatchedFrom(p.Strategy, p.Tree, root, 2)
	if err != nil {
		return nil, err
	}
	input, err := queue.New(queue.AddressQueue, p.Input, p.Strategy, 2)
	if err != nil {
		return nil, err
	}
	return &Tree{typ: AddressTree, params: p, tree: tree, input: input}, nil
}

// Type returns the account type.
func (t *Tree) Type() Type { return t.typ }

// Params returns the account parameters.
func (t *Tree) Params() Params { return t.params }

// Hasher returns the account's hasher.
func (t *Tree) Hasher() hashers.Hasher { return t.tree.Hasher() }

// Root returns the current root.
func (t *Tree) Root() merkle.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Root()
}

// NextIndex returns the number of leaves in the accumulator.
func (t *Tree) NextIndex() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.NextIndex()
}

// SequenceNumber returns the sequence number of the current root.
func (t *Tree) SequenceNumber() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.SequenceNumber()
}

// HasRoot reports whether root is in the root history.
func (t *Tree) HasRoot(root merkle.Hash) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.HasRoot(root)
}

// RootHistory returns the retained roots, oldest first.
func (t *Tree) RootHistory() []merkle.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.RootHistory()
}

// Queues returns the kinds of queues the account holds.
func (t *Tree) Queues() []queue.Kind {
	if t.typ == StateTree {
		return []queue.Kind{queue.OutputQueue, queue.InputQueue}
	}
	return []queue.Kind{queue.AddressQueue}
}

func (t *Tree) queue(k queue.Kind) (*queue.BatchSet, error) {
	switch {
	case t.typ == StateTree && k == queue.OutputQueue:
		return t.output, nil
	case t.typ == StateTree && k == queue.InputQueue:
		return t.input, nil
	case t.typ == AddressTree && k == queue.AddressQueue:
		return t.input, nil
	}
	return nil, errors.Errorf(errors.FailedPrecondition, "%s queue on a %s tree: %w", k, t.typ, ErrWrongType)
}

// Contains reports whether v is pending in the queue of kind k.
func (t *Tree) Contains(k queue.Kind, v merkle.Hash) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q, err := t.queue(k)
	return err == nil && q.Contains(v)
}

// PendingBatch is a full zkp batch awaiting its proof.
type PendingBatch struct {
	queue.ZkpBatchRef
	Elements []queue.Element
}

// Pending returns the full, unproven zkp batches of the queue of kind k in
// the order their proofs must be applied.
func (t *Tree) Pending(k queue.Kind) ([]PendingBatch, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q, err := t.queue(k)
	if err != nil {
		return nil, err
	}
	refs := q.ReadyZkpBatches()
	out := make([]PendingBatch, 0, len(refs))
	for _, ref := range refs {
		elems, _, err := q.ZkpBatch(ref.BatchIndex, ref.ZkpIndex)
		if err != nil {
			return nil, err
		}
		out = append(out, PendingBatch{ZkpBatchRef: ref, Elements: elems})
	}
	return out, nil
}

// ZkpBatchSize returns the number of elements one proof covers for the
// queue of kind k.
func (t *Tree) ZkpBatchSize(k queue.Kind) (uint32, error) {
	q, err := t.queue(k)
	if err != nil {
		return 0, err
	}
	return q.Params().ZkpBatchSize, nil
}

// admitsBatch returns ErrTreeFull if the next batch q allocates would not
// fit in the accumulator.
func (t *Tree) admitsBatch(q *queue.BatchSet) error {
	cur := q.Batch(q.CurrentBatch())
	if cur.State() == queue.Fill && cur.NumInserted() > 0 {
		return nil
	}
	if q.NextIndex()+q.Params().BatchSize() > t.params.Tree.Capacity() {
		return errors.Errorf(errors.ResourceExhausted, "batch at %d does not fit: %w", q.NextIndex(), merkle.ErrTreeFull)
	}
	return nil
}

func (t *Tree) insert(q *queue.BatchSet, e queue.Element) (queue.InsertResult, error) {
	res, err := q.Insert(e)
	if err != nil {
		return res, err
	}
	if res.InvalidateRootsBefore != 0 {
		n := t.tree.InvalidateRootsBefore(res.InvalidateRootsBefore)
		klog.V(1).Infof("%s tree: rotated into batch %d, invalidated %d roots before sequence %d", t.typ, res.BatchIndex, n, res.InvalidateRootsBefore)
	}
	if res.Closed {
		klog.V(1).Infof("%s tree: %s batch %d closed", t.typ, q.Kind(), res.BatchIndex)
	}
	return res, nil
}

// Append queues leaf for appending to a state tree.
func (t *Tree) Append(leaf merkle.Hash) (queue.InsertResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.typ != StateTree {
		return queue.InsertResult{}, errors.Errorf(errors.FailedPrecondition, "append to %s tree: %w", t.typ, ErrWrongType)
	}
	if err := t.admitsBatch(t.output); err != nil {
		return queue.InsertResult{}, err
	}
	return t.insert(t.output, queue.Element{Value: leaf})
}

// Nullify queues the leaf at leafIndex of a state tree for nullification.
func (t *Tree) Nullify(leaf merkle.Hash, leafIndex uint64) (queue.InsertResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.typ != StateTree {
		return queue.InsertResult{}, errors.Errorf(errors.FailedPrecondition, "nullify in %s tree: %w", t.typ, ErrWrongType)
	}
	if leafIndex >= t.tree.NextIndex() {
		return queue.InsertResult{}, errors.Errorf(errors.FailedPrecondition, "leaf %d of %d: %w", leafIndex, t.tree.NextIndex(), ErrLeafNotCommitted)
	}
	return t.insert(t.input, queue.Element{Value: leaf, LeafIndex: leafIndex})
}

// CreateAddress queues address for insertion into an address tree.
func (t *Tree) CreateAddress(address merkle.Hash) (queue.InsertResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.typ != AddressTree {
		return queue.InsertResult{}, errors.Errorf(errors.FailedPrecondition, "create address in %s tree: %w", t.typ, ErrWrongType)
	}
	if address.IsZero() || address == indexed.MaxValue {
		return queue.InsertResult{}, ErrInvalidAddress
	}
	if err := t.admitsBatch(t.input); err != nil {
		return queue.InsertResult{}, err
	}
	return t.insert(t.input, queue.Element{Value: address})
}

// NullifiedLeaf returns the value a nullified leaf is replaced with.
func NullifiedLeaf(h hashers.Hasher, leaf merkle.Hash, leafIndex uint64) merkle.Hash {
	return queue.Element{Value: leaf, LeafIndex: leafIndex}.ChainInput(h, queue.InputQueue)
}

// ApplyResult describes an applied instruction.
type ApplyResult struct {
	Root     merkle.Hash
	Sequence uint64
	// Zeroed lists the batches, by queue, whose bloom filters were cleared.
	Zeroed map[queue.Kind][]uint32
}

// ApplyProof verifies ins against the next ready zkp batch of its queue and,
// if it holds, pushes the new root and marks the zkp batch inserted. Nothing
// is modified on failure.
func (t *Tree) ApplyProof(v Verifier, ins Instruction) (*ApplyResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, err := t.queue(ins.Queue)
	if err != nil {
		return nil, err
	}
	ref, ok := q.NextReady()
	if !ok {
		return nil, errors.Errorf(errors.FailedPrecondition, "%s queue: %w", ins.Queue, queue.ErrBatchNotReady)
	}
	if got, want := ins.OldRoot, t.tree.Root(); got != want {
		return nil, errors.Errorf(errors.Aborted, "old root %s, current %s: %w", got.Short(), want.Short(), ErrRootMismatch)
	}
	if ins.StartIndex != ref.StartIndex {
		return nil, errors.Errorf(errors.FailedPrecondition, "start index %d, next zkp batch starts at %d: %w", ins.StartIndex, ref.StartIndex, ErrStartIndexMismatch)
	}
	if ins.HashChain != ref.HashChain {
		return nil, errors.Errorf(errors.FailedPrecondition, "zkp batch %d/%d: %w", ref.BatchIndex, ref.ZkpIndex, ErrHashChainMismatch)
	}
	var appended uint64
	if ins.Queue != queue.InputQueue {
		if ref.StartIndex != t.tree.NextIndex() {
			return nil, errors.Errorf(errors.DataLoss, "zkp batch starts at %d, accumulator holds %d leaves", ref.StartIndex, t.tree.NextIndex())
		}
		appended = uint64(q.Params().ZkpBatchSize)
	}
	pih := PublicInputHash(t.tree.Hasher(), ins.OldRoot, ins.NewRoot, ins.HashChain, ins.StartIndex)
	if err := v.Verify(pih, ins.Proof); err != nil {
		return nil, errors.Errorf(errors.FailedPrecondition, "%s: %v: %w", ins, err, ErrProofRejected)
	}

	if err := t.tree.PushRoot(ins.NewRoot, appended); err != nil {
		return nil, err
	}
	seq := t.tree.SequenceNumber()
	if err := q.ApplyProof(ref.BatchIndex, ref.ZkpIndex, seq); err != nil {
		// NextReady vouched for ref.
		return nil, errors.Errorf(errors.Internal, "queue rejected zkp batch %d/%d after root push: %v", ref.BatchIndex, ref.ZkpIndex, err)
	}

	res := &ApplyResult{Root: ins.NewRoot, Sequence: seq, Zeroed: make(map[queue.Kind][]uint32)}
	history := uint64(t.params.Tree.RootHistory)
	for _, k := range t.Queues() {
		kq, _ := t.queue(k)
		if z := kq.ZeroBloomFilters(seq, history); len(z) > 0 {
			res.Zeroed[k] = z
			klog.V(1).Infof("%s tree: zeroed %s bloom filters %v at sequence %d", t.typ, k, z, seq)
		}
	}
	return res, nil
}

// Clone returns an independent copy.
func (t *Tree) Clone() *Tree {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := &Tree{typ: t.typ, params: t.params, tree: t.tree.Clone(), input: t.input.Clone()}
	if t.output != nil {
		c.output = t.output.Clone()
	}
	return c
}
