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

// Package monitoring holds the metric abstractions used by the coordinator
// and the hosts. Backends live in subpackages; InertMetricFactory keeps
// values in memory for tests and for binaries without an exporter.
package monitoring

// MetricFactory creates labelled metrics. Label values passed to the
// returned metrics must match labelNames in number.
type MetricFactory interface {
	NewCounter(name, help string, labelNames ...string) Counter
	NewGauge(name, help string, labelNames ...string) Gauge
	NewHistogram(name, help string, labelNames ...string) Histogram
	NewHistogramWithBuckets(name, help string, buckets []float64, labelNames ...string) Histogram
}

// Counter is a monotonically increasing value.
type Counter interface {
	Inc(labelVals ...string)
	Add(val float64, labelVals ...string)
	// Value is mostly for tests.
	Value(labelVals ...string) float64
}

// Gauge reports a current reading, such as a queue's phase or the depth of
// its reassembly buffer. Readings are only ever replaced.
type Gauge interface {
	Set(val float64, labelVals ...string)
	Value(labelVals ...string) float64
}

// Histogram records a distribution of observations.
type Histogram interface {
	Observe(val float64, labelVals ...string)
	// Info returns the observation count and sum.
	Info(labelVals ...string) (uint64, float64)
}
