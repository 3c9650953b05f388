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

package queue

import (
	"encoding/binary"
	"testing"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testParams(zkp, k, n uint32) Params {
	return Params{
		NumBatches:          n,
		ZkpBatchSize:        zkp,
		ZkpBatchesPerBatch:  k,
		BloomFilterCapacity: 2048,
		BloomFilterNumIters: 3,
	}
}

func newSet(t *testing.T, kind Kind, p Params) *BatchSet {
	t.Helper()
	bs, err := New(kind, p, hashers.RFC6962SHA256, 0)
	require.NoError(t, err)
	return bs
}

func val(i int) merkle.Hash {
	var h merkle.Hash
	h[0] = 0xaa
	binary.BigEndian.PutUint64(h[24:], uint64(i))
	return h
}

func insertN(t *testing.T, bs *BatchSet, from, n int) {
	t.Helper()
	for i := from; i < from+n; i++ {
		if _, err := bs.Insert(Element{Value: val(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	for _, tc := range []struct {
		desc string
		p    Params
		ok   bool
	}{
		{desc: "ok", p: testParams(10, 2, 2), ok: true},
		{desc: "one batch", p: testParams(10, 2, 1)},
		{desc: "five batches", p: testParams(10, 2, 5)},
		{desc: "zero zkp", p: testParams(0, 2, 2)},
		{desc: "zero k", p: testParams(10, 0, 2)},
		{desc: "unaligned bloom", p: Params{NumBatches: 2, ZkpBatchSize: 1, ZkpBatchesPerBatch: 1, BloomFilterCapacity: 12, BloomFilterNumIters: 1}},
		{desc: "no iters", p: Params{NumBatches: 2, ZkpBatchSize: 1, ZkpBatchesPerBatch: 1, BloomFilterCapacity: 16}},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.p.Validate()
			if got := err == nil; got != tc.ok {
				t.Fatalf("Validate()=%v, want ok=%v", err, tc.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("Validate()=%v, want ErrInvalidParams", err)
			}
		})
	}
	_, err := New(UnknownKind, testParams(1, 1, 2), hashers.RFC6962SHA256, 0)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestBatchClosesAtBoundary(t *testing.T) {
	bs := newSet(t, OutputQueue, testParams(10, 1, 2))
	for i := 0; i < 10; i++ {
		res, err := bs.Insert(Element{Value: val(i)})
		require.NoError(t, err)
		require.Equal(t, uint32(0), res.BatchIndex)
		require.Equal(t, i == 9, res.Closed, "insert %d", i)
	}
	require.Equal(t, Full, bs.Batch(0).State())
	require.Equal(t, uint32(1), bs.CurrentBatch())

	// The explicit close is a no-op at the boundary.
	id, err := bs.CloseBatch()
	require.NoError(t, err)
	require.Equal(t, uint32(0), id)

	// The 11th element lands in the rotated batch.
	res, err := bs.Insert(Element{Value: val(10)})
	require.NoError(t, err)
	require.Equal(t, uint32(1), res.BatchIndex)
	require.Equal(t, uint64(10), bs.Batch(1).StartIndex())

	_, err = bs.CloseBatch()
	require.ErrorIs(t, err, ErrBatchNotReady)

	insertN(t, bs, 11, 9)
	_, err = bs.Insert(Element{Value: val(20)})
	require.ErrorIs(t, err, ErrBatchFull)
	require.True(t, errors.IsCapacity(err))
}

func TestDuplicates(t *testing.T) {
	bs := newSet(t, AddressQueue, testParams(2, 1, 2))
	insertN(t, bs, 0, 3)
	for _, i := range []int{0, 1, 2} {
		_, err := bs.Insert(Element{Value: val(i)})
		require.ErrorIs(t, err, ErrDuplicate, "value %d", i)
		require.True(t, errors.IsConsistency(err))
		require.True(t, bs.Contains(val(i)))
	}
	require.False(t, bs.Contains(val(3)))
}

func TestFalsePositivesTolerated(t *testing.T) {
	p := Params{NumBatches: 2, ZkpBatchSize: 50, ZkpBatchesPerBatch: 1, BloomFilterCapacity: 8, BloomFilterNumIters: 1}
	bs := newSet(t, AddressQueue, p)
	insertN(t, bs, 0, 50)
	insertN(t, bs, 50, 40)
	require.NotZero(t, bs.FalsePositives())
}

func TestHashChains(t *testing.T) {
	h, err := hashers.New(hashers.RFC6962SHA256)
	require.NoError(t, err)

	bs := newSet(t, OutputQueue, testParams(3, 2, 2))
	insertN(t, bs, 0, 4)
	ready := bs.ReadyZkpBatches()
	require.Len(t, ready, 1)
	want := hashers.Children(h, hashers.Children(h, val(0), val(1)), val(2))
	if diff := cmp.Diff(ZkpBatchRef{BatchIndex: 0, ZkpIndex: 0, StartIndex: 0, HashChain: want}, ready[0]); diff != "" {
		t.Errorf("ReadyZkpBatches() diff (-want +got):\n%s", diff)
	}
	elems, chain, err := bs.ZkpBatch(0, 0)
	require.NoError(t, err)
	require.Equal(t, want, chain)
	require.Equal(t, []Element{{Value: val(0)}, {Value: val(1)}, {Value: val(2)}}, elems)
	require.Equal(t, want, HashChain(h, OutputQueue, elems))
	_, _, err = bs.ZkpBatch(0, 1)
	require.ErrorIs(t, err, ErrBatchNotReady)

	in := newSet(t, InputQueue, testParams(1, 1, 2))
	_, err = in.Insert(Element{Value: val(7), LeafIndex: 300})
	require.NoError(t, err)
	var idx merkle.Hash
	binary.BigEndian.PutUint64(idx[24:], 300)
	_, chain, err = in.ZkpBatch(0, 0)
	require.NoError(t, err)
	require.Equal(t, hashers.Children(h, val(7), idx), chain)
}

func TestApplyProofOrder(t *testing.T) {
	bs := newSet(t, OutputQueue, testParams(2, 2, 2))
	insertN(t, bs, 0, 6)
	ready := bs.ReadyZkpBatches()
	var got [][2]uint32
	for _, r := range ready {
		got = append(got, [2]uint32{r.BatchIndex, r.ZkpIndex})
	}
	if diff := cmp.Diff([][2]uint32{{0, 0}, {0, 1}, {1, 0}}, got); diff != "" {
		t.Fatalf("ReadyZkpBatches() diff (-want +got):\n%s", diff)
	}
	require.Equal(t, uint64(4), ready[2].StartIndex)

	err := bs.ApplyProof(0, 1, 1)
	require.ErrorIs(t, err, ErrOutOfOrder)
	require.NoError(t, bs.ApplyProof(0, 0, 1))
	require.Equal(t, Full, bs.Batch(0).State())
	require.NoError(t, bs.ApplyProof(0, 1, 2))
	require.Equal(t, Inserted, bs.Batch(0).State())
	require.Equal(t, uint64(2), bs.Batch(0).RootSequence())
	require.Equal(t, uint32(1), bs.PendingBatch())

	// Zkp batches of a filling batch can be proven before it closes.
	require.NoError(t, bs.ApplyProof(1, 0, 3))
	require.Equal(t, Fill, bs.Batch(1).State())
	err = bs.ApplyProof(1, 1, 4)
	require.ErrorIs(t, err, ErrBatchNotReady)

	insertN(t, bs, 6, 2)
	require.NoError(t, bs.ApplyProof(1, 1, 4))
	require.Equal(t, Inserted, bs.Batch(1).State())
	require.Empty(t, bs.ReadyZkpBatches())
}

func TestZeroBloomFilters(t *testing.T) {
	bs := newSet(t, AddressQueue, testParams(2, 1, 2))
	insertN(t, bs, 0, 2)
	require.NoError(t, bs.ApplyProof(0, 0, 5))

	for _, tc := range []struct {
		current uint64
		want    []uint32
	}{
		{current: 5},
		{current: 6},
		{current: 7, want: []uint32{0}},
		{current: 8},
	} {
		got := bs.ZeroBloomFilters(tc.current, 3)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ZeroBloomFilters(%d) diff (-want +got):\n%s", tc.current, diff)
		}
	}
	require.True(t, bs.Batch(0).BloomZeroed())
	require.False(t, bs.Contains(val(0)))
}

func TestRotationForcesZero(t *testing.T) {
	bs := newSet(t, AddressQueue, testParams(2, 1, 2))
	insertN(t, bs, 0, 2)
	require.NoError(t, bs.ApplyProof(0, 0, 5))
	insertN(t, bs, 2, 2)
	require.Equal(t, uint32(0), bs.CurrentBatch())

	// A failed insert must leave the proven batch and its filter alone.
	_, err := bs.Insert(Element{Value: val(3)})
	require.ErrorIs(t, err, ErrDuplicate)
	require.Equal(t, Inserted, bs.Batch(0).State())
	require.True(t, bs.Contains(val(0)))

	res, err := bs.Insert(Element{Value: val(4)})
	require.NoError(t, err)
	require.Equal(t, uint64(5), res.InvalidateRootsBefore)
	require.Equal(t, uint32(0), res.BatchIndex)
	require.Equal(t, uint64(4), bs.Batch(0).StartIndex())
	require.False(t, bs.Contains(val(0)))

	// A batch zeroed ahead of rotation needs no invalidation.
	require.NoError(t, bs.ApplyProof(1, 0, 6))
	bs.ZeroBloomFilters(100, 3)
	insertN(t, bs, 5, 1)
	res, err = bs.Insert(Element{Value: val(6)})
	require.NoError(t, err)
	require.Zero(t, res.InvalidateRootsBefore)
}

func TestEncodeDecode(t *testing.T) {
	p := testParams(2, 1, 2)
	bs := newSet(t, InputQueue, p)
	for i := 0; i < 3; i++ {
		_, err := bs.Insert(Element{Value: val(i), LeafIndex: uint64(10 + i)})
		require.NoError(t, err)
	}
	require.NoError(t, bs.ApplyProof(0, 0, 1))

	b := bs.Encode()
	require.Len(t, b, EncodedSize(p))
	require.Equal(t, 440, BatchStride(p))
	require.Equal(t, HeaderSize+440, BatchOffset(p, 1))
	require.Equal(t, "BQS1", string(b[0:4]))
	require.Equal(t, byte(InputQueue), b[5])
	require.Equal(t, uint32(1), binary.BigEndian.Uint32(b[32:]))
	require.Equal(t, uint64(4), binary.BigEndian.Uint64(b[40:]))
	b1 := b[BatchOffset(p, 1):]
	require.Equal(t, uint64(1), binary.BigEndian.Uint64(b1[24:]))
	elemOff := BatchHeaderSize + 32 + 256 + 32
	require.Equal(t, val(2), merkle.MustHash(b1[elemOff:elemOff+32]))
	require.Equal(t, uint64(12), binary.BigEndian.Uint64(b1[elemOff+32:]))

	back, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, b, back.Encode())
	require.True(t, back.Contains(val(0)))
	require.True(t, back.Contains(val(2)))
	_, err = back.Insert(Element{Value: val(2)})
	require.ErrorIs(t, err, ErrDuplicate)
	if diff := cmp.Diff(bs.ReadyZkpBatches(), back.ReadyZkpBatches()); diff != "" {
		t.Errorf("ReadyZkpBatches() diff after decode (-want +got):\n%s", diff)
	}

	for name, edit := range map[string]func([]byte) []byte{
		"short":    func(b []byte) []byte { return b[:10] },
		"magic":    func(b []byte) []byte { b[0] = 'X'; return b },
		"version":  func(b []byte) []byte { b[4] = 9; return b },
		"kind":     func(b []byte) []byte { b[5] = 0; return b },
		"length":   func(b []byte) []byte { return b[:len(b)-1] },
		"cursor":   func(b []byte) []byte { binary.BigEndian.PutUint32(b[32:], 7); return b },
		"state":    func(b []byte) []byte { b[HeaderSize] = 9; return b },
		"inserted": func(b []byte) []byte { binary.BigEndian.PutUint64(b[HeaderSize+24:], 99); return b },
		"bloom":    func(b []byte) []byte { b[HeaderSize+BatchHeaderSize] = 'X'; return b },
		"capacity": func(b []byte) []byte { binary.BigEndian.PutUint64(b[24:], 1<<62); return b },
		"huge":     func(b []byte) []byte { binary.BigEndian.PutUint64(b[24:], 1<<36); return b },
		"zkp-size": func(b []byte) []byte { binary.BigEndian.PutUint32(b[12:], 1<<31); return b },
		"batches":  func(b []byte) []byte { binary.BigEndian.PutUint32(b[8:], 1<<30); return b },
		"params":   func(b []byte) []byte { binary.BigEndian.PutUint64(b[24:], 2047); return b },
	} {
		_, err := Decode(edit(append([]byte(nil), b...)))
		require.ErrorIs(t, err, ErrCorrupt, name)
	}
}

func TestClone(t *testing.T) {
	bs := newSet(t, OutputQueue, testParams(2, 1, 2))
	insertN(t, bs, 0, 1)
	c := bs.Clone()
	insertN(t, c, 1, 1)
	require.Equal(t, uint64(1), bs.Batch(0).NumInserted())
	require.Equal(t, Full, c.Batch(0).State())
	require.False(t, bs.Contains(val(1)))
}
