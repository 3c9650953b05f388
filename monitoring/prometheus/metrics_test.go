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

package prometheus

import (
	"testing"

	"github.com/canopyledger/canopy/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

func newFactory() MetricFactory {
	return MetricFactory{Prefix: "canopy_", Registerer: prometheus.NewRegistry()}
}

func TestCounter(t *testing.T) {
	f := newFactory()
	for _, tc := range []struct {
		desc   string
		labels []string
		vals   []string
	}{
		{desc: "unlabelled"},
		{desc: "labelled", labels: []string{"queue", "kind"}, vals: []string{"q1", "address"}},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			c := f.NewCounter("runs_"+tc.desc, "runs", tc.labels...)
			c.Inc(tc.vals...)
			c.Add(2, tc.vals...)
			if got, want := c.Value(tc.vals...), 3.0; got != want {
				t.Errorf("Value()=%v, want %v", got, want)
			}
			// A mismatched label count is dropped rather than panicking.
			c.Inc(append(tc.vals, "extra")...)
			if got, want := c.Value(tc.vals...), 3.0; got != want {
				t.Errorf("Value() after bad Inc=%v, want %v", got, want)
			}
		})
	}
}

func TestGauge(t *testing.T) {
	g := newFactory().NewGauge("phase", "phase", "queue")
	g.Set(3, "q")
	g.Set(1.5, "q")
	if got, want := g.Value("q"), 1.5; got != want {
		t.Errorf("Value()=%v, want %v", got, want)
	}
	if got := g.Value("other"); got != 0 {
		t.Errorf("Value(other)=%v, want 0", got)
	}
}

func TestHistogram(t *testing.T) {
	h := newFactory().NewHistogramWithBuckets("proof_seconds", "latency", monitoring.ProofLatencyBuckets(), "queue")
	for _, v := range []float64{0.1, 0.4, 2} {
		h.Observe(v, "q")
	}
	if n, sum := h.Info("q"); n != 3 || sum != 2.5 {
		t.Errorf("Info()=(%d, %v), want (3, 2.5)", n, sum)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	f := newFactory()
	f.NewCounter("dup", "first")
	defer func() {
		if recover() == nil {
			t.Error("registering the same name twice did not panic")
		}
	}()
	f.NewCounter("dup", "second")
}
