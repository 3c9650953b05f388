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
	"sync"
	"time"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/util/clock"
	"k8s.io/klog/v2"
)

// Local proves witnesses in process. It checks each witness natively and
// answers with the public input hash as the proof, which DigestVerifier
// accepts. It is safe for concurrent use.
type Local struct {
	hasher hashers.Hasher
	ts     clock.TimeSource

	// Delay is waited out on the TimeSource before every answer.
	Delay time.Duration
	// Fail, if set, is consulted before every attempt. A non-nil result is
	// returned as a transient failure. attempt counts from 1 per public
	// input hash.
	Fail func(w *Witness, attempt int) error

	mu       sync.Mutex
	attempts map[merkle.Hash]int
}

// NewLocal returns a Local prover hashing with h.
func NewLocal(h hashers.Hasher, ts clock.TimeSource) *Local {
	return &Local{hasher: h, ts: ts, attempts: make(map[merkle.Hash]int)}
}

// Prove implements Prover.
func (l *Local) Prove(ctx context.Context, w *Witness) (*Proof, error) {
	start := l.ts.Now()
	l.mu.Lock()
	l.attempts[w.PublicInputHash]++
	attempt := l.attempts[w.PublicInputHash]
	l.mu.Unlock()

	if l.Delay > 0 {
		if err := clock.Sleep(ctx, l.ts, l.Delay); err != nil {
			return nil, errors.Errorf(errors.DeadlineExceeded, "%s: %w", w, err)
		}
	}
	if l.Fail != nil {
		if err := l.Fail(w, attempt); err != nil {
			klog.V(1).Infof("%s: local proof attempt %d failed: %v", w, attempt, err)
			return nil, errors.Errorf(errors.Unavailable, "%s: %v: %w", w, err, ErrUnavailable)
		}
	}
	if err := w.Check(l.hasher); err != nil {
		return nil, err
	}
	pih := w.PublicInputHash
	return &Proof{Data: pih[:], Millis: clock.MillisSince(l.ts, start)}, nil
}

// Attempts returns how often a proof for the public input hash was asked for.
func (l *Local) Attempts(publicInput merkle.Hash) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts[publicInput]
}
