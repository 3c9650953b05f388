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

package prover

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/util/clock"
	"github.com/stretchr/testify/require"
)

func TestLocalProve(t *testing.T) {
	ctx := context.Background()
	h := hasher(t)
	l := NewLocal(h, clock.System)
	for c, w := range witnesses(t) {
		t.Run(string(c), func(t *testing.T) {
			p, err := l.Prove(ctx, w)
			require.NoError(t, err)
			require.NoError(t, DigestVerifier{}.Verify(w.PublicInputHash, p.Data))
			require.Equal(t, 1, l.Attempts(w.PublicInputHash))
		})
	}
}

func TestLocalFailures(t *testing.T) {
	ctx := context.Background()
	w := witnesses(t)[AppendCircuit]
	l := NewLocal(hasher(t), clock.System)
	l.Fail = func(_ *Witness, attempt int) error {
		if attempt < 3 {
			return fmt.Errorf("attempt %d", attempt)
		}
		return nil
	}
	for i := 1; i < 3; i++ {
		_, err := l.Prove(ctx, w)
		require.ErrorIs(t, err, ErrUnavailable)
		require.True(t, errors.IsTransient(err))
	}
	_, err := l.Prove(ctx, w)
	require.NoError(t, err)
	require.Equal(t, 3, l.Attempts(w.PublicInputHash))

	bad := *w
	bad.NewRoot[0] ^= 1
	_, err = l.Prove(ctx, &bad)
	require.ErrorIs(t, err, ErrInvalidWitness)
	require.False(t, errors.IsTransient(err))
}

func TestLocalDelay(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	l := NewLocal(hasher(t), fake)
	l.Delay = time.Second
	w := witnesses(t)[UpdateCircuit]

	type result struct {
		p   *Proof
		err error
	}
	done := make(chan result, 1)
	go func() {
		p, err := l.Prove(context.Background(), w)
		done <- result{p, err}
	}()
	for fake.Timers() == 0 {
		time.Sleep(time.Millisecond)
	}
	select {
	case <-done:
		t.Fatal("Prove() returned before the delay elapsed")
	default:
	}
	fake.Advance(time.Second)
	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, int64(1000), r.p.Millis)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Prove(ctx, w)
	require.Equal(t, errors.DeadlineExceeded, errors.ErrorCode(err))
}

func TestDigestVerifier(t *testing.T) {
	w := witnesses(t)[AppendCircuit]
	err := DigestVerifier{}.Verify(w.PublicInputHash, []byte("forged"))
	require.ErrorIs(t, err, ErrDigestMismatch)
}
