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

package clock

import (
	"sync"
	"time"
)

// Fake is a TimeSource whose time only moves when Set or Advance is called.
// Timers fire synchronously inside those calls. For tests.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers map[uint64]*fakeTimer
	nextID uint64
}

// NewFake returns a Fake reporting t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t, timers: make(map[uint64]*fakeTimer)}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTimer registers a timer due d after the current fake time. A timer
// with d <= 0 fires immediately.
func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{f: f, id: f.nextID, due: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.nextID++
	if !t.fire(f.now) {
		f.timers[t.id] = t
	}
	return t
}

// Timers returns the number of registered timers which have not fired or
// been stopped. Tests use it to wait until a goroutine is blocked on one.
func (f *Fake) Timers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// Set moves the fake time to t and fires every timer now due.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
	for id, timer := range f.timers {
		if timer.fire(t) {
			delete(f.timers, id)
		}
	}
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.Set(f.Now().Add(d))
}

func (f *Fake) stop(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.timers[id]; !ok {
		return false
	}
	delete(f.timers, id)
	return true
}

type fakeTimer struct {
	f   *Fake
	id  uint64
	due time.Time
	ch  chan time.Time
}

func (t *fakeTimer) Chan() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool { return t.f.stop(t.id) }

// fire delivers now if the timer is due. The channel is buffered with room
// for exactly one value and each timer fires at most once.
func (t *fakeTimer) fire(now time.Time) bool {
	if now.Before(t.due) {
		return false
	}
	t.ch <- now
	return true
}
