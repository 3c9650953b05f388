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

// ExpBuckets returns n bucket bounds starting at base, each mult times the
// previous one.
func ExpBuckets(base, mult float64, n uint) []float64 {
	r := make([]float64, n)
	for i, v := uint(0), base; i < n; i, v = i+1, v*mult {
		r[i] = v
	}
	return r
}

// LatencyBuckets covers RPC latencies from 10ms to roughly two minutes.
func LatencyBuckets() []float64 {
	return ExpBuckets(0.01, 1.25, 43)
}

// ProofLatencyBuckets covers proof generation from 50ms to roughly an hour.
func ProofLatencyBuckets() []float64 {
	return ExpBuckets(0.05, 1.5, 29)
}

// SizeBuckets covers batch sizes from 1 to 65536 in powers of two.
func SizeBuckets() []float64 {
	return ExpBuckets(1, 2, 17)
}
