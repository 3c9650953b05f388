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

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/queue"
	"github.com/canopyledger/canopy/storage"
	"k8s.io/klog/v2"
)

// ErrFetchTimeout is returned when the host did not answer a page request
// within the fetch timeout.
var ErrFetchTimeout = errors.New(errors.DeadlineExceeded, "coordinator: page fetch timed out")

// fetcher reads the pending elements of one queue page by page. Every page
// must be read at the root of the first one; the first page read at another
// root ends the fetch, keeping the pages before it.
type fetcher struct {
	c     *Coordinator
	id    storage.AccountID
	kind  queue.Kind
	label string
}

// page reads limit elements at offset, retrying transient failures.
func (f *fetcher) page(ctx context.Context, offset, limit uint64) (*storage.Page, error) {
	var p *storage.Page
	err := retry(ctx, f.c.cfg, f.c.ts, f.label+": fetch", func(ctx context.Context) error {
		fctx, cancel := context.WithTimeout(ctx, f.c.cfg.FetchTimeout)
		defer cancel()
		var err error
		p, err = f.c.host.QueueElements(fctx, f.id, f.kind, offset, limit)
		if err != nil && fctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return errors.Errorf(errors.DeadlineExceeded, "offset %d after %v: %w", offset, f.c.cfg.FetchTimeout, ErrFetchTimeout)
		}
		return err
	})
	if err != nil {
		fetchFailures.Inc(f.label)
		return nil, err
	}
	pagesFetched.Inc(f.label)
	return p, nil
}

// rest reads the elements after first up to total, handing each page to
// emit. It stops without error at the first page read at another root.
func (f *fetcher) rest(ctx context.Context, first *storage.Page, total, pageSize uint64, emit func([]queue.Element)) error {
	for offset := uint64(len(first.Elements)); offset < total; {
		p, err := f.page(ctx, offset, min(pageSize, total-offset))
		if err != nil {
			return err
		}
		if p.InitialRoot != first.InitialRoot || p.RootSeq != first.RootSeq {
			rootMismatches.Inc(f.label)
			klog.Warningf("%s: page at offset %d read at root %s (seq %d), first page at %s (seq %d); keeping %d elements", f.label, offset, p.InitialRoot.Short(), p.RootSeq, first.InitialRoot.Short(), first.RootSeq, offset)
			return nil
		}
		if len(p.Elements) == 0 {
			klog.Warningf("%s: empty page at offset %d of %d", f.label, offset, total)
			return nil
		}
		emit(p.Elements)
		offset += uint64(len(p.Elements))
	}
	return nil
}

// elementSource hands out the fetched elements one zkp batch at a time.
type elementSource interface {
	// next returns the next full zkp batch, or false once there is none.
	next() ([]queue.Element, bool, error)
}

// sliceSource serves elements fetched before proving started.
type sliceSource struct {
	elems []queue.Element
	zkp   int
	pos   int
}

func (s *sliceSource) next() ([]queue.Element, bool, error) {
	if s.pos+s.zkp > len(s.elems) {
		return nil, false, nil
	}
	out := s.elems[s.pos : s.pos+s.zkp]
	s.pos += s.zkp
	return out, true, nil
}

// WakeReason tells a stream consumer why it woke up.
type WakeReason int

const (
	// WakeData means enough elements are available.
	WakeData WakeReason = iota + 1
	// WakeComplete means the fetch finished, successfully or not, before
	// enough elements were available.
	WakeComplete
)

func (r WakeReason) String() string {
	switch r {
	case WakeData:
		return "data"
	case WakeComplete:
		return "complete"
	}
	return "unknown"
}

// StreamBuffer is filled page by page by a fetching goroutine while
// consumers already work on the elements available. Pages are appended
// whole, so a consumer never sees part of one.
type StreamBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	elems    []queue.Element
	pages    int
	complete bool
	err      error
}

// NewStreamBuffer returns a buffer holding the elements of the first page.
func NewStreamBuffer(first []queue.Element) *StreamBuffer {
	s := &StreamBuffer{elems: append([]queue.Element(nil), first...), pages: 1}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Append adds a page and wakes every waiter.
func (s *StreamBuffer) Append(page []queue.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elems = append(s.elems, page...)
	s.pages++
	s.cond.Broadcast()
}

// Finish marks the fetch as complete and wakes every waiter. err is the
// reason the fetch stopped early, if any.
func (s *StreamBuffer) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete = true
	s.err = err
	s.cond.Broadcast()
}

// Wait blocks until elements [from, from+n) are available or the fetch is
// complete. With WakeData it returns a copy of those elements; with
// WakeComplete it returns the error the fetch finished with.
func (s *StreamBuffer) Wait(from, n int) ([]queue.Element, WakeReason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.elems) < from+n && !s.complete {
		s.cond.Wait()
	}
	if len(s.elems) >= from+n {
		return append([]queue.Element(nil), s.elems[from:from+n]...), WakeData, nil
	}
	return nil, WakeComplete, s.err
}

// Pages returns the number of pages appended, the first included.
func (s *StreamBuffer) Pages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages
}

// streamSource serves a StreamBuffer one zkp batch at a time.
type streamSource struct {
	buf *StreamBuffer
	zkp int
	pos int
}

func (s *streamSource) next() ([]queue.Element, bool, error) {
	elems, reason, err := s.buf.Wait(s.pos, s.zkp)
	if reason == WakeComplete {
		return nil, false, err
	}
	s.pos += s.zkp
	return elems, true, nil
}
