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
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/quota"
	"github.com/canopyledger/canopy/storage"
	"github.com/canopyledger/canopy/util/clock"
	"k8s.io/klog/v2"
)

// ErrBatcherStopped is returned by Add once an earlier transaction failed
// for a reason other than the window closing.
var ErrBatcherStopped = errors.New(errors.Aborted, "coordinator: transaction batcher stopped")

// TxBatcher groups proven instructions into transactions. A transaction is
// flushed once it holds MaxInstructionsPerTx instructions, or early once
// fewer than FlushThresholdSlots slots remain in the submission window.
// Flushed transactions are submitted in order by a separate goroutine while
// the next one fills.
//
// Once the window closes, either because the slot source says so or because
// the submitter returns storage.ErrNotEligible, nothing more is submitted and
// every instruction not yet committed is kept for Leftovers.
type TxBatcher struct {
	cfg       Config
	id        storage.AccountID
	label     string
	submitter storage.Submitter
	slots     clock.SlotSource
	quota     quota.Manager
	ts        clock.TimeSource

	// pending is only touched by the caller's goroutine.
	pending []*ProofResult
	txs     chan []*ProofResult
	done    chan struct{}

	mu        sync.Mutex
	closed    bool
	err       error
	rejected  bool
	leftovers []*ProofResult
	committed int
	sigs      []storage.Signature
}

func newTxBatcher(ctx context.Context, c *Coordinator, id storage.AccountID, label string) *TxBatcher {
	b := &TxBatcher{
		cfg:       c.cfg,
		id:        id,
		label:     label,
		submitter: c.submitter,
		slots:     c.slots,
		quota:     c.quota,
		ts:        c.ts,
		txs:       make(chan []*ProofResult, 1),
		done:      make(chan struct{}),
	}
	go b.submitLoop(ctx)
	return b
}

// state returns the error Add should fail with, if any.
func (b *TxBatcher) state() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed:
		return errors.Errorf(errors.PermissionDenied, "%s: %w", b.label, storage.ErrNotEligible)
	case b.err != nil:
		return errors.Errorf(errors.Aborted, "%s: %v: %w", b.label, b.err, ErrBatcherStopped)
	}
	return nil
}

func (b *TxBatcher) closeWindow() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		windowCloses.Inc(b.label)
	}
}

// Add appends r to the pending transaction, flushing it if it is full or
// the window is about to close. It fails with storage.ErrNotEligible once
// the window has closed; r is then kept for Leftovers.
func (b *TxBatcher) Add(ctx context.Context, r *ProofResult) error {
	if err := b.state(); err != nil {
		b.keep(r)
		return err
	}
	remaining, err := b.slots.SlotsRemaining(ctx)
	if err != nil {
		b.keep(r)
		return err
	}
	if remaining <= 0 {
		klog.Infof("%s: submission window closed with %d instructions pending", b.label, len(b.pending)+1)
		b.closeWindow()
		b.keep(r)
		return b.state()
	}
	b.pending = append(b.pending, r)
	if len(b.pending) >= b.cfg.MaxInstructionsPerTx || remaining < b.cfg.FlushThresholdSlots {
		if remaining < b.cfg.FlushThresholdSlots {
			klog.V(1).Infof("%s: %d slots left, flushing %d instructions early", b.label, remaining, len(b.pending))
		}
		return b.Flush(ctx)
	}
	return nil
}

// Flush hands the pending transaction to the submission goroutine.
func (b *TxBatcher) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	tx := b.pending
	b.pending = nil
	select {
	case b.txs <- tx:
		return nil
	case <-ctx.Done():
		b.keep(tx...)
		return ctx.Err()
	}
}

// Close flushes nothing: it waits for the transactions already flushed and
// returns the error which stopped the batcher, if any. Pending instructions
// join the leftovers.
func (b *TxBatcher) Close() error {
	close(b.txs)
	<-b.done
	b.keep(b.pending...)
	b.pending = nil
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.closed {
		return errors.Errorf(errors.PermissionDenied, "%s: %w", b.label, storage.ErrNotEligible)
	}
	return nil
}

// Leftovers returns the instructions which were proven but not committed,
// in sequence order. Only meaningful after Close.
func (b *TxBatcher) Leftovers() []*ProofResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]*ProofResult(nil), b.leftovers...)
	slices.SortFunc(out, func(x, y *ProofResult) int { return cmp.Compare(x.Sequence, y.Sequence) })
	return out
}

// Committed returns the number of instructions in accepted transactions.
func (b *TxBatcher) Committed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

// Rejected reports whether the submitter refused a transaction outright,
// as opposed to the batcher failing for a local or transient reason.
func (b *TxBatcher) Rejected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

// Signatures returns the accepted transactions in submission order.
func (b *TxBatcher) Signatures() []storage.Signature {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]storage.Signature(nil), b.sigs...)
}

func (b *TxBatcher) keep(rs ...*ProofResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leftovers = append(b.leftovers, rs...)
}

func (b *TxBatcher) submitLoop(ctx context.Context) {
	defer close(b.done)
	for tx := range b.txs {
		if b.state() != nil {
			b.keep(tx...)
			continue
		}
		sig, submitted, err := b.submit(ctx, tx)
		switch {
		case err == nil:
			b.mu.Lock()
			b.committed += len(tx)
			b.sigs = append(b.sigs, sig)
			b.mu.Unlock()
			txsSubmitted.Inc(b.label)
			instructionsSent.Add(float64(len(tx)), b.label)
			txSize.Observe(float64(len(tx)), b.label)
			klog.V(1).Infof("%s: committed %d instructions from sequence %d in %s", b.label, len(tx), tx[0].Sequence, sig)
		case errors.IsEligibility(err):
			klog.Infof("%s: submitter closed the window: %v", b.label, err)
			b.closeWindow()
			b.keep(tx...)
		default:
			txFailures.Inc(b.label)
			klog.Errorf("%s: transaction of %d instructions from sequence %d failed: %v", b.label, len(tx), tx[0].Sequence, err)
			b.mu.Lock()
			b.err = err
			b.rejected = submitted && !errors.IsTransient(err) && ctx.Err() == nil
			b.mu.Unlock()
			b.keep(tx...)
		}
	}
}

// submit sends tx. submitted is false if it failed before reaching the
// submitter.
func (b *TxBatcher) submit(ctx context.Context, tx []*ProofResult) (sig storage.Signature, submitted bool, err error) {
	specs := quota.Specs(b.label, quota.Submit)
	if err := b.quota.GetTokens(ctx, len(tx), specs); err != nil {
		quota.Metrics.IncAcquired(len(tx), specs, false)
		return "", false, err
	}
	quota.Metrics.IncAcquired(len(tx), specs, true)

	ins := make([]batched.Instruction, len(tx))
	for i, r := range tx {
		ins[i] = r.Instruction
	}
	err = retry(ctx, b.cfg, b.ts, b.label+": submit", func(ctx context.Context) error {
		var err error
		sig, err = b.submitter.Submit(ctx, b.id, ins)
		return err
	})
	if err != nil {
		err2 := b.quota.PutTokens(ctx, len(tx), specs)
		quota.Metrics.IncReturned(len(tx), specs, err2 == nil)
		return "", true, err
	}
	return sig, true, nil
}
