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

package batched

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/merkle/indexed"
	"github.com/canopyledger/canopy/merkle/inmemory"
	"github.com/canopyledger/canopy/queue"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// echoVerifier accepts proofs which spell out the public input hash.
type echoVerifier struct{}

func (echoVerifier) Verify(pih merkle.Hash, proof []byte) error {
	if !bytes.Equal(pih[:], proof) {
		return fmt.Errorf("proof does not match %s", pih.Short())
	}
	return nil
}

func qparams(zkp, k uint32) queue.Params {
	return queue.Params{NumBatches: 2, ZkpBatchSize: zkp, ZkpBatchesPerBatch: k, BloomFilterCapacity: 1024, BloomFilterNumIters: 3}
}

func testParams() Params {
	return Params{
		Strategy: hashers.RFC6962SHA256,
		Tree:     merkle.TreeOptions{Height: 6, CanopyDepth: 1, RootHistory: 8},
		Input:    qparams(2, 1),
		Output:   qparams(2, 2),
	}
}

func leaf(i int) merkle.Hash {
	var h merkle.Hash
	h[0] = 0x11
	binary.BigEndian.PutUint64(h[24:], uint64(i))
	return h
}

func instruction(t *testing.T, tr *Tree, k queue.Kind, b PendingBatch, newRoot merkle.Hash) Instruction {
	t.Helper()
	ins := Instruction{
		Queue:      k,
		OldRoot:    tr.Root(),
		NewRoot:    newRoot,
		HashChain:  queue.HashChain(tr.Hasher(), k, b.Elements),
		StartIndex: b.StartIndex,
	}
	pih := PublicInputHash(tr.Hasher(), ins.OldRoot, ins.NewRoot, ins.HashChain, ins.StartIndex)
	ins.Proof = pih[:]
	return ins
}

// proveAppends applies every pending output batch, tracking ref.
func proveAppends(t *testing.T, tr *Tree, ref *inmemory.Tree) {
	t.Helper()
	pending, err := tr.Pending(queue.OutputQueue)
	require.NoError(t, err)
	for _, b := range pending {
		for _, e := range b.Elements {
			_, err := ref.Append(e.Value)
			require.NoError(t, err)
		}
		_, err := tr.ApplyProof(echoVerifier{}, instruction(t, tr, queue.OutputQueue, b, ref.Root()))
		require.NoError(t, err)
	}
}

func TestStateTreeAppend(t *testing.T) {
	p := testParams()
	tr, err := NewStateTree(p)
	require.NoError(t, err)
	h := tr.Hasher()
	ref, err := inmemory.New(h, p.Tree)
	require.NoError(t, err)
	require.Equal(t, ref.Root(), tr.Root())

	for i := 0; i < 6; i++ {
		_, err := tr.Append(leaf(i))
		require.NoError(t, err)
	}
	require.True(t, tr.Contains(queue.OutputQueue, leaf(3)))
	pending, err := tr.Pending(queue.OutputQueue)
	require.NoError(t, err)
	var starts []uint64
	for _, b := range pending {
		starts = append(starts, b.StartIndex)
	}
	if diff := cmp.Diff([]uint64{0, 2, 4}, starts); diff != "" {
		t.Fatalf("pending start indices diff (-want +got):\n%s", diff)
	}

	proveAppends(t, tr, ref)
	require.Equal(t, ref.Root(), tr.Root())
	require.Equal(t, uint64(6), tr.NextIndex())
	require.Equal(t, uint64(3), tr.SequenceNumber())
	require.True(t, tr.HasRoot(ref.RootHistory()[2]))
}

func TestApplyProofRejects(t *testing.T) {
	p := testParams()
	tr, err := NewStateTree(p)
	require.NoError(t, err)
	ref, err := inmemory.New(tr.Hasher(), p.Tree)
	require.NoError(t, err)

	_, err = tr.ApplyProof(echoVerifier{}, Instruction{Queue: queue.OutputQueue})
	require.ErrorIs(t, err, queue.ErrBatchNotReady)

	for i := 0; i < 2; i++ {
		_, err := tr.Append(leaf(i))
		require.NoError(t, err)
	}
	pending, err := tr.Pending(queue.OutputQueue)
	require.NoError(t, err)
	_, err = ref.AppendBatch([]merkle.Hash{leaf(0), leaf(1)})
	require.NoError(t, err)
	good := instruction(t, tr, queue.OutputQueue, pending[0], ref.Root())
	before := tr.Encode()

	for _, tc := range []struct {
		desc string
		edit func(*Instruction)
		want error
	}{
		{desc: "old root", edit: func(i *Instruction) { i.OldRoot = leaf(9) }, want: ErrRootMismatch},
		{desc: "start index", edit: func(i *Instruction) { i.StartIndex = 2 }, want: ErrStartIndexMismatch},
		{desc: "hash chain", edit: func(i *Instruction) { i.HashChain = leaf(9) }, want: ErrHashChainMismatch},
		{desc: "proof", edit: func(i *Instruction) { i.Proof = []byte{1} }, want: ErrProofRejected},
		{desc: "new root", edit: func(i *Instruction) { i.NewRoot = leaf(9) }, want: ErrProofRejected},
		{desc: "queue", edit: func(i *Instruction) { i.Queue = queue.AddressQueue }, want: ErrWrongType},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			ins := good
			tc.edit(&ins)
			_, err := tr.ApplyProof(echoVerifier{}, ins)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ApplyProof()=%v, want %v", err, tc.want)
			}
			if !bytes.Equal(before, tr.Encode()) {
				t.Error("failed ApplyProof modified the account")
			}
		})
	}
	_, err = tr.ApplyProof(echoVerifier{}, Instruction{Queue: queue.OutputQueue, OldRoot: leaf(9)})
	require.True(t, errors.IsConsistency(err))

	res, err := tr.ApplyProof(echoVerifier{}, good)
	require.NoError(t, err)
	require.Equal(t, ref.Root(), res.Root)
	require.Equal(t, uint64(1), res.Sequence)
}

func TestNullify(t *testing.T) {
	p := testParams()
	tr, err := NewStateTree(p)
	require.NoError(t, err)
	h := tr.Hasher()
	ref, err := inmemory.New(h, p.Tree)
	require.NoError(t, err)

	_, err = tr.Nullify(leaf(0), 0)
	require.ErrorIs(t, err, ErrLeafNotCommitted)

	for i := 0; i < 4; i++ {
		_, err := tr.Append(leaf(i))
		require.NoError(t, err)
	}
	proveAppends(t, tr, ref)

	for _, i := range []int{2, 0} {
		_, err := tr.Nullify(leaf(i), uint64(i))
		require.NoError(t, err)
	}
	_, err = tr.Nullify(leaf(2), 2)
	require.ErrorIs(t, err, queue.ErrDuplicate)

	pending, err := tr.Pending(queue.InputQueue)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	for _, e := range pending[0].Elements {
		require.NoError(t, ref.Update(e.LeafIndex, NullifiedLeaf(h, e.Value, e.LeafIndex)))
	}
	res, err := tr.ApplyProof(echoVerifier{}, instruction(t, tr, queue.InputQueue, pending[0], ref.Root()))
	require.NoError(t, err)
	require.Equal(t, ref.Root(), res.Root)
	require.Equal(t, uint64(4), tr.NextIndex())
}

func TestAddressTree(t *testing.T) {
	p := testParams()
	tr, err := NewAddressTree(p)
	require.NoError(t, err)
	h := tr.Hasher()
	ref, err := indexed.NewTree(h, p.Tree)
	require.NoError(t, err)
	require.Equal(t, ref.Root(), tr.Root())
	require.Equal(t, uint64(2), tr.NextIndex())

	for _, bad := range []merkle.Hash{{}, indexed.MaxValue} {
		_, err := tr.CreateAddress(bad)
		require.ErrorIs(t, err, ErrInvalidAddress)
	}
	_, err = tr.Append(leaf(1))
	require.ErrorIs(t, err, ErrWrongType)
	_, err = tr.Nullify(leaf(1), 0)
	require.ErrorIs(t, err, ErrWrongType)

	addrs := []merkle.Hash{leaf(50), leaf(10)}
	for _, a := range addrs {
		_, err := tr.CreateAddress(a)
		require.NoError(t, err)
	}
	_, err = tr.CreateAddress(leaf(10))
	require.ErrorIs(t, err, queue.ErrDuplicate)

	pending, err := tr.Pending(queue.AddressQueue)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, uint64(2), pending[0].StartIndex)
	for _, e := range pending[0].Elements {
		_, err := ref.Append(e.Value)
		require.NoError(t, err)
	}
	_, err = tr.ApplyProof(echoVerifier{}, instruction(t, tr, queue.AddressQueue, pending[0], ref.Root()))
	require.NoError(t, err)
	require.Equal(t, ref.Root(), tr.Root())
	require.Equal(t, uint64(4), tr.NextIndex())
}

func TestAddressTreeFull(t *testing.T) {
	p := testParams()
	p.Tree = merkle.TreeOptions{Height: 2, RootHistory: 4}
	tr, err := NewAddressTree(p)
	require.NoError(t, err)
	require.NoError(t, func() error { _, err := tr.CreateAddress(leaf(1)); return err }())
	require.NoError(t, func() error { _, err := tr.CreateAddress(leaf(2)); return err }())
	_, err = tr.CreateAddress(leaf(3))
	require.ErrorIs(t, err, merkle.ErrTreeFull)
	require.True(t, errors.IsCapacity(err))
}

func TestRotationInvalidatesRoots(t *testing.T) {
	for _, tc := range []struct {
		desc string
		// dup is appended first and must be rejected without side effects.
		dup *merkle.Hash
	}{
		{desc: "clean"},
		{desc: "after-duplicate", dup: func() *merkle.Hash { h := leaf(1); return &h }()},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			p := testParams()
			p.Output = qparams(1, 1)
			p.Tree.RootHistory = 4
			tr, err := NewStateTree(p)
			require.NoError(t, err)
			ref, err := inmemory.New(tr.Hasher(), p.Tree)
			require.NoError(t, err)
			empty := tr.Root()

			_, err = tr.Append(leaf(0))
			require.NoError(t, err)
			proveAppends(t, tr, ref)
			_, err = tr.Append(leaf(1))
			require.NoError(t, err)
			proveAppends(t, tr, ref)
			require.True(t, tr.HasRoot(empty))

			if tc.dup != nil {
				_, err = tr.Append(*tc.dup)
				require.ErrorIs(t, err, queue.ErrDuplicate)
				require.True(t, tr.HasRoot(empty))
				require.True(t, tr.Contains(queue.OutputQueue, leaf(0)))
				require.Equal(t, queue.Inserted, tr.output.Batch(0).State())
			}

			// Batch 0 was proven at sequence 1 and its bloom filter is still
			// live: reusing it drops the empty root, which predates leaf 0.
			_, err = tr.Append(leaf(2))
			require.NoError(t, err)
			require.False(t, tr.HasRoot(empty))
			require.True(t, tr.HasRoot(ref.Root()))
			require.False(t, tr.Contains(queue.OutputQueue, leaf(0)))
		})
	}
}

func TestBloomZeroedAfterHistoryTurnover(t *testing.T) {
	p := testParams()
	p.Output = qparams(1, 1)
	p.Tree.RootHistory = 2
	tr, err := NewStateTree(p)
	require.NoError(t, err)
	ref, err := inmemory.New(tr.Hasher(), p.Tree)
	require.NoError(t, err)

	_, err = tr.Append(leaf(0))
	require.NoError(t, err)
	pending, err := tr.Pending(queue.OutputQueue)
	require.NoError(t, err)
	_, err = ref.Append(leaf(0))
	require.NoError(t, err)
	res, err := tr.ApplyProof(echoVerifier{}, instruction(t, tr, queue.OutputQueue, pending[0], ref.Root()))
	require.NoError(t, err)
	require.Empty(t, res.Zeroed)
	require.True(t, tr.Contains(queue.OutputQueue, leaf(0)))

	_, err = tr.Append(leaf(1))
	require.NoError(t, err)
	pending, err = tr.Pending(queue.OutputQueue)
	require.NoError(t, err)
	_, err = ref.Append(leaf(1))
	require.NoError(t, err)
	res, err = tr.ApplyProof(echoVerifier{}, instruction(t, tr, queue.OutputQueue, pending[0], ref.Root()))
	require.NoError(t, err)
	if diff := cmp.Diff(map[queue.Kind][]uint32{queue.OutputQueue: {0}}, res.Zeroed); diff != "" {
		t.Errorf("Zeroed diff (-want +got):\n%s", diff)
	}
	require.False(t, tr.Contains(queue.OutputQueue, leaf(0)))
}

func TestEncodeDecode(t *testing.T) {
	p := testParams()
	st, err := NewStateTree(p)
	require.NoError(t, err)
	ref, err := inmemory.New(st.Hasher(), p.Tree)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := st.Append(leaf(i))
		require.NoError(t, err)
	}
	proveAppends(t, st, ref)
	_, err = st.Nullify(leaf(1), 1)
	require.NoError(t, err)

	at, err := NewAddressTree(p)
	require.NoError(t, err)
	_, err = at.CreateAddress(leaf(7))
	require.NoError(t, err)

	for _, tr := range []*Tree{st, at} {
		b := tr.Encode()
		require.Len(t, b, EncodedSize(tr.Type(), p))
		require.Equal(t, "CAC1", string(b[0:4]))
		require.Equal(t, byte(tr.Type()), b[5])
		back, err := Decode(b)
		require.NoError(t, err)
		require.Equal(t, b, back.Encode())
		require.Equal(t, tr.Root(), back.Root())
		if diff := cmp.Diff(p, back.Params()); tr.Type() == StateTree && diff != "" {
			t.Errorf("Params diff (-want +got):\n%s", diff)
		}

		for name, edit := range map[string]func([]byte) []byte{
			"short":   func(b []byte) []byte { return b[:4] },
			"magic":   func(b []byte) []byte { b[0] = 0; return b },
			"version": func(b []byte) []byte { b[4] = 3; return b },
			"type":    func(b []byte) []byte { b[5] = 9; return b },
			"length":  func(b []byte) []byte { return append(b, 0) },
			"inner":   func(b []byte) []byte { b[HeaderSize] = 'X'; return b },
		} {
			_, err := Decode(edit(append([]byte(nil), b...)))
			require.ErrorIs(t, err, ErrCorrupt, "%s: %s", tr.Type(), name)
		}
	}
}

func TestInstructionCodec(t *testing.T) {
	ins := Instruction{
		Queue:      queue.InputQueue,
		OldRoot:    leaf(1),
		NewRoot:    leaf(2),
		HashChain:  leaf(3),
		StartIndex: 42,
		Proof:      []byte("proof"),
	}
	b := ins.Encode()
	require.Len(t, b, InstructionHeaderSize+5)
	require.Equal(t, uint64(42), binary.BigEndian.Uint64(b[8:]))
	require.Equal(t, leaf(2), merkle.MustHash(b[48:80]))
	back, err := DecodeInstruction(b)
	require.NoError(t, err)
	if diff := cmp.Diff(ins, back); diff != "" {
		t.Errorf("DecodeInstruction diff (-want +got):\n%s", diff)
	}

	_, err = DecodeInstruction(b[:InstructionHeaderSize+2])
	require.ErrorIs(t, err, ErrBadInstruction)
	bad := append([]byte(nil), b...)
	bad[0] = 0
	_, err = DecodeInstruction(bad)
	require.ErrorIs(t, err, ErrBadInstruction)
}
