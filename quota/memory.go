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

package quota

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/canopyledger/canopy/util/clock"
	"k8s.io/klog/v2"
)

// Bucket configures a token bucket.
type Bucket struct {
	Capacity        int     `yaml:"capacity"`
	RefillPerSecond float64 `yaml:"refill_per_second"`
}

type bucket struct {
	cfg    Bucket
	tokens float64
	last   time.Time
}

func (b *bucket) refill(now time.Time) {
	if d := now.Sub(b.last).Seconds(); d > 0 {
		b.tokens = math.Min(float64(b.cfg.Capacity), b.tokens+d*b.cfg.RefillPerSecond)
	}
	b.last = now
}

// Memory is a Manager keeping one token bucket per spec name. Specs whose
// Group has no configured Bucket are unlimited.
type Memory struct {
	ts     clock.TimeSource
	limits map[Group]Bucket

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewMemory returns a Memory manager. Buckets start full.
func NewMemory(ts clock.TimeSource, limits map[Group]Bucket) *Memory {
	return &Memory{ts: ts, limits: limits, buckets: make(map[string]*bucket)}
}

// bucketFor returns the refilled bucket of s, or nil if s is unlimited.
// Callers hold m.mu.
func (m *Memory) bucketFor(s Spec, now time.Time) *bucket {
	cfg, ok := m.limits[s.Group]
	if !ok {
		return nil
	}
	b, ok := m.buckets[s.Name()]
	if !ok {
		b = &bucket{cfg: cfg, tokens: float64(cfg.Capacity), last: now}
		m.buckets[s.Name()] = b
	}
	b.refill(now)
	return b
}

// GetTokens implements Manager.
func (m *Memory) GetTokens(_ context.Context, numTokens int, specs []Spec) error {
	if err := validate(numTokens, specs); err != nil {
		return err
	}
	now := m.ts.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	taken := make([]*bucket, 0, len(specs))
	for _, s := range specs {
		b := m.bucketFor(s, now)
		if b == nil {
			continue
		}
		if b.tokens < float64(numTokens) {
			klog.V(2).Infof("quota: %v has %.1f tokens, want %d", s, b.tokens, numTokens)
			return ErrNoTokens
		}
		taken = append(taken, b)
	}
	for _, b := range taken {
		b.tokens -= float64(numTokens)
	}
	return nil
}

// PutTokens implements Manager.
func (m *Memory) PutTokens(_ context.Context, numTokens int, specs []Spec) error {
	if err := validate(numTokens, specs); err != nil {
		return err
	}
	now := m.ts.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range specs {
		if b := m.bucketFor(s, now); b != nil {
			b.tokens = math.Min(float64(b.cfg.Capacity), b.tokens+float64(numTokens))
		}
	}
	return nil
}

// ResetQuota implements Manager.
func (m *Memory) ResetQuota(_ context.Context, specs []Spec) error {
	if err := validateSpecs(specs); err != nil {
		return err
	}
	now := m.ts.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range specs {
		if b := m.bucketFor(s, now); b != nil {
			b.tokens = float64(b.cfg.Capacity)
		}
	}
	return nil
}

// Tokens returns the tokens currently available for s, or -1 if s is
// unlimited.
func (m *Memory) Tokens(s Spec) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucketFor(s, m.ts.Now())
	if b == nil {
		return -1
	}
	return b.tokens
}
