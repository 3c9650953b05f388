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

package bloom

import (
	"math"

	"github.com/canopyledger/canopy/errors"
)

// FalsePositiveRate returns the expected false positive rate of a filter of
// capacity bits holding n elements with k hash rounds: (1 - e^(-kn/m))^k.
func FalsePositiveRate(capacity, n uint64, k uint32) float64 {
	if capacity == 0 {
		return 1
	}
	return math.Pow(1-math.Exp(-float64(k)*float64(n)/float64(capacity)), float64(k))
}

// OptimalParameters returns the smallest byte-aligned capacity and the
// matching number of hash rounds for n elements at false positive rate p.
func OptimalParameters(n uint64, p float64) (capacity uint64, k uint32, err error) {
	if n == 0 || p <= 0 || p >= 1 {
		return 0, 0, errors.Errorf(errors.InvalidArgument, "bloom: no parameters for %d elements at rate %v", n, p)
	}
	m := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	capacity = (uint64(m) + 7) &^ 7
	k = uint32(math.Round(float64(capacity) / float64(n) * math.Ln2))
	if k == 0 {
		k = 1
	}
	return capacity, k, nil
}

// CheckBudget returns an error if a filter of capacity bits and k rounds
// exceeds false positive rate p once n elements are inserted.
func CheckBudget(capacity, n uint64, k uint32, p float64) error {
	if got := FalsePositiveRate(capacity, n, k); got > p {
		return errors.Errorf(errors.InvalidArgument, "bloom: %d bits with %d rounds reach false positive rate %.4g for %d elements, budget %.4g", capacity, k, got, n, p)
	}
	return nil
}
