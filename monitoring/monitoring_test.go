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

package monitoring

import (
	"math"
	"testing"
)

func TestInertCounterAndGauge(t *testing.T) {
	var f InertMetricFactory
	c := f.NewCounter("runs", "help", "queue")
	c.Inc("a")
	c.Add(2.5, "a")
	c.Inc("b")
	c.Inc() // wrong label count, dropped
	if got, want := c.Value("a"), 3.5; got != want {
		t.Errorf("Value(a)=%v, want %v", got, want)
	}
	if got, want := c.Value("b"), 1.0; got != want {
		t.Errorf("Value(b)=%v, want %v", got, want)
	}

	g := f.NewGauge("phase", "help")
	g.Set(4)
	g.Set(3.5)
	if got, want := g.Value(), 3.5; got != want {
		t.Errorf("gauge Value()=%v, want %v", got, want)
	}
}

func TestInertHistogram(t *testing.T) {
	var f InertMetricFactory
	h := f.NewHistogramWithBuckets("latency", "help", ProofLatencyBuckets(), "queue", "outcome")
	h.Observe(1, "a", "ok")
	h.Observe(2, "a", "ok")
	h.Observe(5, "a", "err")
	h.Observe(5, "a")
	if n, sum := h.Info("a", "ok"); n != 2 || sum != 3 {
		t.Errorf("Info(a, ok)=(%d, %v), want (2, 3)", n, sum)
	}
	if n, _ := h.Info("b", "ok"); n != 0 {
		t.Errorf("Info(b, ok) count=%d, want 0", n)
	}
}

func TestBuckets(t *testing.T) {
	for _, tc := range []struct {
		name        string
		buckets     []float64
		first, last float64
		tolerance   float64
	}{
		{name: "latency", buckets: LatencyBuckets(), first: 0.01, last: 120, tolerance: 10},
		{name: "proof", buckets: ProofLatencyBuckets(), first: 0.05, last: 3600, tolerance: 900},
		{name: "size", buckets: SizeBuckets(), first: 1, last: 65536},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.buckets
			if b[0] != tc.first {
				t.Errorf("first bucket %v, want %v", b[0], tc.first)
			}
			if got := b[len(b)-1]; math.Abs(got-tc.last) > tc.tolerance {
				t.Errorf("last bucket %v, want %v±%v", got, tc.last, tc.tolerance)
			}
			for i := 1; i < len(b); i++ {
				if b[i] <= b[i-1] {
					t.Fatalf("buckets not increasing at %d: %v", i, b)
				}
			}
		})
	}
}
