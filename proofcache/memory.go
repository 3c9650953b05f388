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

package proofcache

import (
	"context"
	"sync"
	"time"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/util/clock"
)

type memoryEntry struct {
	e       Entry
	expires time.Time
}

// Memory is a bounded in-process Cache.
type Memory struct {
	capacity int
	ttl      time.Duration
	ts       clock.TimeSource

	mu      sync.Mutex
	entries map[Key]memoryEntry
}

// NewMemory returns a cache holding at most capacity entries, each for at
// most ttl. A zero ttl keeps entries until taken.
func NewMemory(capacity int, ttl time.Duration, ts clock.TimeSource) (*Memory, error) {
	if capacity <= 0 {
		return nil, errors.Errorf(errors.InvalidArgument, "proofcache: capacity %d", capacity)
	}
	return &Memory{capacity: capacity, ttl: ttl, ts: ts, entries: make(map[Key]memoryEntry)}, nil
}

// Put implements Cache.
func (m *Memory) Put(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.ts.Now()
	m.expireLocked(now)
	k := e.Key()
	if _, ok := m.entries[k]; !ok && len(m.entries) >= m.capacity {
		return errors.Errorf(errors.ResourceExhausted, "%s: %d entries: %w", k, len(m.entries), ErrCacheFull)
	}
	me := memoryEntry{e: *e}
	me.e.Instruction.Proof = append([]byte(nil), e.Instruction.Proof...)
	if m.ttl > 0 {
		me.expires = now.Add(m.ttl)
	}
	m.entries[k] = me
	return nil
}

// Take implements Cache.
func (m *Memory) Take(_ context.Context, k Key) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(m.ts.Now())
	me, ok := m.entries[k]
	if !ok {
		return nil, nil
	}
	delete(m.entries, k)
	return &me.e, nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(m.ts.Now())
	return len(m.entries)
}

func (m *Memory) expireLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for k, me := range m.entries {
		if !now.Before(me.expires) {
			delete(m.entries, k)
		}
	}
}
