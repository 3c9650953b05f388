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

// Package prometheus is a MetricFactory backed by Prometheus collectors.
package prometheus

import (
	"fmt"

	"github.com/canopyledger/canopy/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"k8s.io/klog/v2"
)

// MetricFactory registers every metric it creates with Registerer, or with
// the default registry if that is nil. Names are prefixed with Prefix.
type MetricFactory struct {
	Prefix     string
	Registerer prometheus.Registerer
}

func (f MetricFactory) register(c prometheus.Collector) {
	r := f.Registerer
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	r.MustRegister(c)
}

// NewCounter returns a Counter backed by a CounterVec.
func (f MetricFactory) NewCounter(name, help string, labelNames ...string) monitoring.Counter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: f.Prefix + name, Help: help}, labelNames)
	f.register(vec)
	return &Counter{labelNames: labelNames, vec: vec}
}

// NewGauge returns a Gauge backed by a GaugeVec.
func (f MetricFactory) NewGauge(name, help string, labelNames ...string) monitoring.Gauge {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: f.Prefix + name, Help: help}, labelNames)
	f.register(vec)
	return &Gauge{labelNames: labelNames, vec: vec}
}

// NewHistogram returns a Histogram with the default latency buckets.
func (f MetricFactory) NewHistogram(name, help string, labelNames ...string) monitoring.Histogram {
	return f.NewHistogramWithBuckets(name, help, monitoring.LatencyBuckets(), labelNames...)
}

// NewHistogramWithBuckets returns a Histogram backed by a HistogramVec.
func (f MetricFactory) NewHistogramWithBuckets(name, help string, buckets []float64, labelNames ...string) monitoring.Histogram {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: f.Prefix + name, Help: help, Buckets: buckets}, labelNames)
	f.register(vec)
	return &Histogram{labelNames: labelNames, vec: vec}
}

// Counter wraps a CounterVec. A vector without labels holds one series.
type Counter struct {
	labelNames []string
	vec        *prometheus.CounterVec
}

func (m *Counter) with(labelVals []string) (prometheus.Counter, bool) {
	labels, err := labelsFor(m.labelNames, labelVals)
	if err != nil {
		klog.Error(err)
		return nil, false
	}
	return m.vec.With(labels), true
}

// Inc adds one.
func (m *Counter) Inc(labelVals ...string) {
	if c, ok := m.with(labelVals); ok {
		c.Inc()
	}
}

// Add adds val, which must not be negative.
func (m *Counter) Add(val float64, labelVals ...string) {
	if c, ok := m.with(labelVals); ok {
		c.Add(val)
	}
}

// Value returns the current count.
func (m *Counter) Value(labelVals ...string) float64 {
	c, ok := m.with(labelVals)
	if !ok {
		return 0
	}
	pb, ok := read(c)
	if !ok || pb.Counter == nil {
		return 0
	}
	return pb.Counter.GetValue()
}

// Gauge wraps a GaugeVec.
type Gauge struct {
	labelNames []string
	vec        *prometheus.GaugeVec
}

func (m *Gauge) with(labelVals []string) (prometheus.Gauge, bool) {
	labels, err := labelsFor(m.labelNames, labelVals)
	if err != nil {
		klog.Error(err)
		return nil, false
	}
	return m.vec.With(labels), true
}

// Set replaces the value.
func (m *Gauge) Set(val float64, labelVals ...string) {
	if g, ok := m.with(labelVals); ok {
		g.Set(val)
	}
}

// Value returns the current value.
func (m *Gauge) Value(labelVals ...string) float64 {
	g, ok := m.with(labelVals)
	if !ok {
		return 0
	}
	pb, ok := read(g)
	if !ok || pb.Gauge == nil {
		return 0
	}
	return pb.Gauge.GetValue()
}

// Histogram wraps a HistogramVec.
type Histogram struct {
	labelNames []string
	vec        *prometheus.HistogramVec
}

func (m *Histogram) with(labelVals []string) (prometheus.Observer, bool) {
	labels, err := labelsFor(m.labelNames, labelVals)
	if err != nil {
		klog.Error(err)
		return nil, false
	}
	return m.vec.With(labels), true
}

// Observe records val.
func (m *Histogram) Observe(val float64, labelVals ...string) {
	if o, ok := m.with(labelVals); ok {
		o.Observe(val)
	}
}

// Info returns the count and sum of observations.
func (m *Histogram) Info(labelVals ...string) (uint64, float64) {
	o, ok := m.with(labelVals)
	if !ok {
		return 0, 0
	}
	metric, ok := o.(prometheus.Metric)
	if !ok {
		return 0, 0
	}
	pb, ok := read(metric)
	if !ok || pb.Histogram == nil {
		return 0, 0
	}
	return pb.Histogram.GetSampleCount(), pb.Histogram.GetSampleSum()
}

func read(m prometheus.Metric) (*dto.Metric, bool) {
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		klog.Errorf("reading metric %s: %v", m.Desc(), err)
		return nil, false
	}
	return &pb, true
}

func labelsFor(names, values []string) (prometheus.Labels, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("got %d values %v for %d labels %v", len(values), values, len(names), names)
	}
	labels := make(prometheus.Labels, len(names))
	for i, name := range names {
		labels[name] = values[i]
	}
	return labels, nil
}
