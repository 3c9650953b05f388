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

// Package coordinator drives pending queue elements into the accumulators:
// it fetches full zkp batches from the host, builds a witness per zkp batch,
// proves them concurrently, puts the proofs back into order and commits them
// in transactions while the submission window is open. Proofs which could
// not be committed before the window closed are kept in a proof cache for
// the next window.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/canopyledger/canopy/coordinator/prover"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/monitoring"
	"github.com/canopyledger/canopy/proofcache"
	"github.com/canopyledger/canopy/queue"
	"github.com/canopyledger/canopy/quota"
	"github.com/canopyledger/canopy/storage"
	"github.com/canopyledger/canopy/util/clock"
	"golang.org/x/sync/semaphore"
	"k8s.io/klog/v2"
)

// ErrProofStuck is returned when a zkp batch could not be proven within
// the configured retries.
var ErrProofStuck = errors.New(errors.Unavailable, "coordinator: zkp batch stuck")

// Deps are the collaborators of a Coordinator. Cache, Quota, Slots,
// TimeSource and MetricFactory are optional.
type Deps struct {
	Host          storage.HostQuery
	Submitter     storage.Submitter
	Prover        prover.Prover
	Cache         proofcache.Cache
	Quota         quota.Manager
	Slots         clock.SlotSource
	TimeSource    clock.TimeSource
	MetricFactory monitoring.MetricFactory
}

// Coordinator processes the queues of host accounts. Queues of different
// accounts may be processed concurrently; the queues of one account are
// processed one at a time.
type Coordinator struct {
	cfg       Config
	host      storage.HostQuery
	submitter storage.Submitter
	prover    prover.Prover
	cache     proofcache.Cache
	quota     quota.Manager
	slots     clock.SlotSource
	ts        clock.TimeSource

	refs refTrees
}

// New returns a Coordinator. Zero fields of cfg take their defaults.
func New(cfg Config, d Deps) (*Coordinator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Host == nil || d.Submitter == nil || d.Prover == nil {
		return nil, errors.New(errors.InvalidArgument, "coordinator: host, submitter and prover are required")
	}
	metricsOnce.Do(func() { createMetrics(d.MetricFactory) })
	quota.InitMetrics(monitoringOrInert(d.MetricFactory))
	c := &Coordinator{
		cfg:       cfg,
		host:      d.Host,
		submitter: d.Submitter,
		prover:    d.Prover,
		cache:     d.Cache,
		quota:     d.Quota,
		slots:     d.Slots,
		ts:        d.TimeSource,
	}
	if c.quota == nil {
		c.quota = quota.Noop()
	}
	if c.slots == nil {
		c.slots = clock.Unbounded{}
	}
	if c.ts == nil {
		c.ts = clock.System
	}
	return c, nil
}

func monitoringOrInert(mf monitoring.MetricFactory) monitoring.MetricFactory {
	if mf == nil {
		return monitoring.InertMetricFactory{}
	}
	return mf
}

var _ Operation = (*Coordinator)(nil)

// Label names a queue in logs and metrics.
func Label(id storage.AccountID, k queue.Kind) string {
	return fmt.Sprintf("%s/%s", id, k)
}

// ExecutePass processes every queue of the account in turn. A closed
// submission window ends the pass early without error.
func (c *Coordinator) ExecutePass(ctx context.Context, id storage.AccountID, _ *OperationInfo) (int, error) {
	ref, err := c.refs.get(ctx, c.host, id)
	if err != nil {
		return 0, err
	}
	total := 0
	// Appends go first so that nullifications run against the freshest root.
	for _, k := range ref.queues {
		n, err := c.ProcessQueue(ctx, id, k)
		total += n
		if errors.IsEligibility(err) {
			klog.Infof("%s: window closed, skipping the remaining queues", id)
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ProcessQueue runs one cycle over the queue of kind k and returns the
// number of instructions committed. The error wraps storage.ErrNotEligible
// if the submission window closed during the cycle.
func (c *Coordinator) ProcessQueue(ctx context.Context, id storage.AccountID, k queue.Kind) (int, error) {
	ref, err := c.refs.get(ctx, c.host, id)
	if err != nil {
		return 0, err
	}
	ref.mu.Lock()
	defer ref.mu.Unlock()

	cy := &cycle{c: c, id: id, kind: k, label: Label(id, k), ref: ref}
	defer cy.setPhase(PhaseIdle)
	return cy.run(ctx)
}

// cycle is one pass over one queue.
type cycle struct {
	c     *Coordinator
	id    storage.AccountID
	kind  queue.Kind
	label string
	ref   *refTree
	phase Phase
	// stopFetch cancels a streaming fetch still in flight.
	stopFetch context.CancelFunc
}

func (cy *cycle) setPhase(p Phase) {
	if cy.phase == p {
		return
	}
	klog.V(2).Infof("%s: %v -> %v", cy.label, cy.phase, p)
	cy.phase = p
	phaseGauge.Set(float64(p), cy.label)
}

func (cy *cycle) run(ctx context.Context) (int, error) {
	cfg := cy.c.cfg
	cy.setPhase(PhaseFetching)
	zkp := cy.ref.zkp[cy.kind]
	if zkp == 0 {
		return 0, errors.Errorf(errors.InvalidArgument, "%s: %s tree has no %s queue", cy.label, cy.ref.typ, cy.kind)
	}
	pageSize := uint64(cfg.PageSizeBatches) * zkp
	f := &fetcher{c: cy.c, id: cy.id, kind: cy.kind, label: cy.label}
	first, err := f.page(ctx, 0, pageSize)
	if err != nil {
		return 0, err
	}
	total := first.Total - first.Total%zkp
	if limit := uint64(cfg.MaxZkpBatchesPerCycle) * zkp; limit > 0 && total > limit {
		total = limit
	}
	if total == 0 {
		klog.V(1).Infof("%s: nothing to do", cy.label)
		return 0, nil
	}
	if uint64(len(first.Elements)) > total {
		first.Elements = first.Elements[:total]
	}
	if err := cy.ref.syncTo(ctx, cy.c.host, first.InitialRoot); err != nil {
		return 0, err
	}
	klog.V(1).Infof("%s: %d elements in %d zkp batches pending at root %s", cy.label, total, total/zkp, first.InitialRoot.Short())

	var (
		src      elementSource
		fetchErr = make(chan error, 1)
	)
	fctx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()
	cy.stopFetch = cancelFetch
	if cy.kind == queue.AddressQueue {
		// Address batches are proven while later pages are still in flight.
		buf := NewStreamBuffer(first.Elements)
		go func() {
			err := f.rest(fctx, first, total, pageSize, buf.Append)
			buf.Finish(err)
			fetchErr <- err
		}()
		src = &streamSource{buf: buf, zkp: int(zkp)}
	} else {
		elems := append([]queue.Element(nil), first.Elements...)
		err := f.rest(ctx, first, total, pageSize, func(p []queue.Element) { elems = append(elems, p...) })
		fetchErr <- err
		if err != nil {
			return 0, err
		}
		src = &sliceSource{elems: elems, zkp: int(zkp)}
	}

	n, err := cy.prove(ctx, src, first.StartIndex, zkp)
	cancelFetch()
	if ferr := <-fetchErr; err == nil {
		err = ferr
	}
	return n, err
}

// prove dispatches a proof job per zkp batch of src, reassembles the
// results and commits them.
func (cy *cycle) prove(ctx context.Context, src elementSource, start, zkp uint64) (int, error) {
	cfg := cy.c.cfg
	buf, err := NewReassemblyBuffer(cfg.ReassemblyCapacity, 0)
	if err != nil {
		return 0, err
	}
	batcher := newTxBatcher(ctx, cy.c, cy.id, cy.label)

	var (
		workers = semaphore.NewWeighted(int64(cfg.NumProofWorkers))
		window  = semaphore.NewWeighted(int64(cfg.ReassemblyCapacity))
		results = make(chan *jobResult, cfg.ReassemblyCapacity)
		// dispatchErr is written by the dispatcher before results is closed.
		dispatchErr error
	)
	dctx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	cy.setPhase(PhaseProofPending)

	go func() {
		var wg sync.WaitGroup
		defer close(results)
		defer wg.Wait()
		for seq := uint64(0); ; seq++ {
			elems, ok, err := src.next()
			if err != nil {
				dispatchErr = err
				return
			}
			if !ok {
				return
			}
			if err := window.Acquire(dctx, 1); err != nil {
				return
			}
			w, err := cy.ref.build(cy.kind, start+seq*zkp, elems)
			if err != nil {
				window.Release(1)
				dispatchErr = err
				return
			}
			if err := workers.Acquire(dctx, 1); err != nil {
				window.Release(1)
				return
			}
			wg.Add(1)
			go func(seq uint64) {
				defer wg.Done()
				defer workers.Release(1)
				results <- cy.proveOne(ctx, seq, w)
			}(seq)
		}
	}()

	var (
		stopErr error
		drain   []*ProofResult
	)
	stop := func(err error) {
		if stopErr == nil {
			stopErr = err
			stopDispatch()
			if cy.stopFetch != nil {
				cy.stopFetch()
			}
		}
	}
	for jr := range results {
		if jr.err != nil {
			proofsRequested.Inc(cy.label, "failed")
			stop(jr.err)
			continue
		}
		if stopErr != nil {
			window.Release(1)
			drain = append(drain, jr.ProofResult)
			continue
		}
		cy.setPhase(PhaseReassembling)
		if err := buf.Insert(jr.ProofResult); err != nil {
			window.Release(1)
			stop(err)
			continue
		}
		for r, ok := buf.PopNext(); ok; r, ok = buf.PopNext() {
			window.Release(1)
			if err := batcher.Add(ctx, r); err != nil {
				stop(err)
			}
		}
		reassemblyDepth.Set(float64(buf.Len()), cy.label)
	}
	if stopErr == nil && dispatchErr != nil {
		stop(dispatchErr)
	}

	cy.setPhase(PhaseCommitting)
	if stopErr == nil {
		if err := batcher.Flush(ctx); err != nil {
			stop(err)
		}
	}
	closeErr := batcher.Close()
	if closeErr != nil {
		stop(closeErr)
	}
	drain = append(drain, batcher.Leftovers()...)
	drain = append(drain, buf.Drain()...)
	reassemblyDepth.Set(0, cy.label)
	committed := batcher.Committed()

	if stopErr == nil {
		klog.Infof("%s: committed %d instructions in %d transactions", cy.label, committed, len(batcher.Signatures()))
		return committed, nil
	}
	// A rejected transaction means the reference tree and the host disagree;
	// the proofs built on top of it are not worth keeping.
	if batcher.Rejected() {
		if len(drain) > 0 {
			klog.Warningf("%s: dropping %d proofs after %v", cy.label, len(drain), closeErr)
		}
	} else {
		cy.drain(ctx, drain)
	}
	return committed, stopErr
}

type jobResult struct {
	*ProofResult
	err error
}

// proveOne turns the witness for sequence seq into an instruction, from the
// proof cache if it has one.
func (cy *cycle) proveOne(ctx context.Context, seq uint64, w *prover.Witness) *jobResult {
	start := cy.c.ts.Now()
	if r := cy.fromCache(ctx, seq, w); r != nil {
		r.SubmittedAt = start
		return &jobResult{ProofResult: r}
	}

	specs := quota.Specs(cy.label, quota.Prove)
	if err := cy.c.quota.GetTokens(ctx, 1, specs); err != nil {
		quota.Metrics.IncAcquired(1, specs, false)
		return &jobResult{err: err}
	}
	quota.Metrics.IncAcquired(1, specs, true)

	var p *prover.Proof
	err := retry(ctx, cy.c.cfg, cy.c.ts, fmt.Sprintf("%s: prove %s", cy.label, w), func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, cy.c.cfg.ProofTimeout)
		defer cancel()
		var err error
		p, err = cy.c.prover.Prove(pctx, w)
		return err
	})
	if err != nil {
		klog.Errorf("%s: zkp batch %d (%s) stuck: %v", cy.label, seq, w, err)
		return &jobResult{err: errors.Errorf(errors.Unavailable, "%s: sequence %d: %v: %w", cy.label, seq, err, ErrProofStuck)}
	}
	ins, err := w.Instruction(p.Data)
	if err != nil {
		return &jobResult{err: err}
	}
	r := &ProofResult{
		Sequence:        seq,
		Instruction:     ins,
		ProofMillis:     p.Millis,
		RoundTripMillis: clock.MillisSince(cy.c.ts, start),
		SubmittedAt:     start,
	}
	proofsRequested.Inc(cy.label, "proved")
	proofLatency.Observe(float64(r.ProofMillis)/1000, cy.label)
	proofRoundTrip.Observe(float64(r.RoundTripMillis)/1000, cy.label)
	return &jobResult{ProofResult: r}
}

// fromCache returns a cached proof for w, or nil. Entries for the same
// roots but another batch are discarded.
func (cy *cycle) fromCache(ctx context.Context, seq uint64, w *prover.Witness) *ProofResult {
	if cy.c.cache == nil {
		return nil
	}
	e, err := cy.c.cache.Take(ctx, proofcache.Key{OldRoot: w.OldRoot, NewRoot: w.NewRoot})
	if err != nil {
		klog.Warningf("%s: proof cache: %v", cy.label, err)
		return nil
	}
	if e == nil {
		return nil
	}
	ins, err := w.Instruction(e.Instruction.Proof)
	if err != nil || ins.Queue != e.Instruction.Queue || ins.HashChain != e.Instruction.HashChain || ins.StartIndex != e.Instruction.StartIndex {
		klog.Warningf("%s: discarding cached proof for %s: it proves another batch", cy.label, e.Key())
		return nil
	}
	cacheHits.Inc(cy.label)
	proofsRequested.Inc(cy.label, "cached")
	return &ProofResult{Sequence: seq, Instruction: ins, ProofMillis: e.ProofMillis, Cached: true}
}

// drain moves proven but uncommitted instructions into the proof cache.
func (cy *cycle) drain(ctx context.Context, rs []*ProofResult) {
	if len(rs) == 0 {
		return
	}
	if cy.c.cache == nil {
		klog.Warningf("%s: no proof cache, dropping %d proofs", cy.label, len(rs))
		return
	}
	kept := 0
	for _, r := range rs {
		err := cy.c.cache.Put(ctx, &proofcache.Entry{Instruction: r.Instruction, ProofMillis: r.ProofMillis})
		if err != nil {
			klog.Warningf("%s: caching proof for sequence %d: %v", cy.label, r.Sequence, err)
			if errors.IsCapacity(err) {
				break
			}
			continue
		}
		kept++
	}
	proofsDrained.Add(float64(kept), cy.label)
	klog.Infof("%s: moved %d of %d uncommitted proofs into the proof cache", cy.label, kept, len(rs))
}
