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
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// InertMetricFactory creates metrics which only live in memory.
type InertMetricFactory struct{}

// NewCounter returns an in-memory Counter.
func (InertMetricFactory) NewCounter(name, _ string, labelNames ...string) Counter {
	return &InertFloat{name: name, labels: len(labelNames), vals: make(map[string]float64)}
}

// NewGauge returns an in-memory Gauge.
func (InertMetricFactory) NewGauge(name, _ string, labelNames ...string) Gauge {
	return &InertFloat{name: name, labels: len(labelNames), vals: make(map[string]float64)}
}

// NewHistogram returns an in-memory Histogram.
func (InertMetricFactory) NewHistogram(name, _ string, labelNames ...string) Histogram {
	return &InertDistribution{name: name, labels: len(labelNames), vals: make(map[string]dist)}
}

// NewHistogramWithBuckets returns an in-memory Histogram; buckets are
// ignored.
func (f InertMetricFactory) NewHistogramWithBuckets(name, help string, _ []float64, labelNames ...string) Histogram {
	return f.NewHistogram(name, help, labelNames...)
}

// labelKey joins labelVals into a map key, logging and returning false if
// there are not want of them.
func labelKey(name string, labelVals []string, want int) (string, bool) {
	if len(labelVals) != want {
		klog.Errorf("metric %s: got %d label values %v, want %d", name, len(labelVals), labelVals, want)
		return "", false
	}
	return strings.Join(labelVals, "\x00"), true
}

// InertFloat backs in-memory counters and gauges.
type InertFloat struct {
	name   string
	labels int
	mu     sync.Mutex
	vals   map[string]float64
}

func (m *InertFloat) apply(labelVals []string, fn func(float64) float64) {
	key, ok := labelKey(m.name, labelVals, m.labels)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = fn(m.vals[key])
}

// Inc adds one.
func (m *InertFloat) Inc(labelVals ...string) { m.Add(1, labelVals...) }

// Add adds val.
func (m *InertFloat) Add(val float64, labelVals ...string) {
	m.apply(labelVals, func(v float64) float64 { return v + val })
}

// Set replaces the value.
func (m *InertFloat) Set(val float64, labelVals ...string) {
	m.apply(labelVals, func(float64) float64 { return val })
}

// Value returns the current value.
func (m *InertFloat) Value(labelVals ...string) float64 {
	key, ok := labelKey(m.name, labelVals, m.labels)
	if !ok {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vals[key]
}

type dist struct {
	count uint64
	sum   float64
}

// InertDistribution backs in-memory histograms.
type InertDistribution struct {
	name   string
	labels int
	mu     sync.Mutex
	vals   map[string]dist
}

// Observe records val.
func (m *InertDistribution) Observe(val float64, labelVals ...string) {
	key, ok := labelKey(m.name, labelVals, m.labels)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.vals[key]
	d.count++
	d.sum += val
	m.vals[key] = d
}

// Info returns the count and sum of observations.
func (m *InertDistribution) Info(labelVals ...string) (uint64, float64) {
	key, ok := labelKey(m.name, labelVals, m.labels)
	if !ok {
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.vals[key]
	return d.count, d.sum
}
