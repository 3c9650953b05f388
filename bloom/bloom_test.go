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

package bloom

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/canopyledger/canopy/merkle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randValues(r *rand.Rand, n int) []merkle.Hash {
	out := make([]merkle.Hash, n)
	for i := range out {
		r.Read(out[i][:])
	}
	return out
}

func TestNewValidatesParams(t *testing.T) {
	for _, capacity := range []uint64{0, 1, 7, 9, 1001} {
		_, err := New(capacity, 3)
		require.ErrorIs(t, err, ErrCapacityNotByteAligned, "capacity %d", capacity)
	}
	_, err := New(64, 0)
	require.ErrorIs(t, err, ErrNoIterations)
	f, err := New(64, 3)
	require.NoError(t, err)
	require.True(t, f.IsZero())
}

func TestNoFalseNegatives(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for _, tc := range []struct {
		capacity uint64
		iters    uint32
		n        int
	}{
		{capacity: 8, iters: 1, n: 20},
		{capacity: 1024, iters: 3, n: 100},
		{capacity: 16384, iters: 7, n: 1000},
	} {
		f, err := New(tc.capacity, tc.iters)
		require.NoError(t, err)
		values := randValues(r, tc.n)
		for _, v := range values {
			f.Insert(v)
		}
		for _, v := range values {
			require.True(t, f.Contains(v), "inserted value %s reported absent", v.Short())
		}
		require.Equal(t, uint64(tc.n), f.Inserted())
	}
}

// TestFalsePositiveBudget checks the configured false positive budget holds
// empirically for filters sized by OptimalParameters.
func TestFalsePositiveBudget(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for _, tc := range []struct {
		n    uint64
		rate float64
	}{
		{n: 500, rate: 0.05},
		{n: 1000, rate: 0.01},
	} {
		capacity, k, err := OptimalParameters(tc.n, tc.rate)
		require.NoError(t, err)
		require.Zero(t, capacity%8)
		require.NoError(t, CheckBudget(capacity, tc.n, k, tc.rate*1.05))

		f, err := New(capacity, k)
		require.NoError(t, err)
		for _, v := range randValues(r, int(tc.n)) {
			f.Insert(v)
		}
		const probes = 20000
		hits := 0
		for _, v := range randValues(r, probes) {
			if f.Contains(v) {
				hits++
			}
		}
		observed := float64(hits) / probes
		assert.Less(t, observed, 2*tc.rate, "n=%d: observed rate %.4f", tc.n, observed)
	}

	require.Error(t, CheckBudget(64, 1000, 3, 0.01))
	_, _, err := OptimalParameters(0, 0.01)
	require.Error(t, err)
}

func TestZero(t *testing.T) {
	f, err := New(256, 4)
	require.NoError(t, err)
	v := merkle.Hash{1, 2, 3}
	f.Insert(v)
	require.False(t, f.IsZero())
	f.Zero()
	require.True(t, f.IsZero())
	require.False(t, f.Contains(v))
	require.Zero(t, f.Inserted())
}

func TestEncodeDecode(t *testing.T) {
	f, err := New(128, 3)
	require.NoError(t, err)
	v := merkle.Hash{9}
	f.Insert(v)

	b := f.Encode()
	require.Len(t, b, HeaderSize+16)
	require.Equal(t, "BLM1", string(b[0:4]))
	require.Equal(t, uint32(3), binary.BigEndian.Uint32(b[8:]))
	require.Equal(t, uint64(128), binary.BigEndian.Uint64(b[16:]))
	require.Equal(t, uint64(1), binary.BigEndian.Uint64(b[24:]))

	back, err := Decode(b)
	require.NoError(t, err)
	require.True(t, back.Contains(v))
	require.Equal(t, f.Inserted(), back.Inserted())

	for name, edit := range map[string]func([]byte) []byte{
		"short":     func(b []byte) []byte { return b[:8] },
		"magic":     func(b []byte) []byte { b[1] = 'X'; return b },
		"version":   func(b []byte) []byte { b[4] = 2; return b },
		"bit order": func(b []byte) []byte { b[5] = 1; return b },
		"capacity":  func(b []byte) []byte { binary.BigEndian.PutUint64(b[16:], 12); return b },
		"iters":     func(b []byte) []byte { binary.BigEndian.PutUint32(b[8:], 0); return b },
		"payload":   func(b []byte) []byte { return b[:len(b)-1] },
	} {
		_, err := Decode(edit(append([]byte(nil), b...)))
		require.ErrorIs(t, err, ErrCorrupt, name)
	}
}
