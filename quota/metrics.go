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
	"strconv"
	"sync"

	"github.com/canopyledger/canopy/monitoring"
)

var (
	// Metrics records how callers interact with a Manager. It is updated by
	// the callers, not by Manager implementations.
	Metrics     = &m{}
	metricsOnce sync.Once
)

type m struct {
	AcquiredTokens monitoring.Counter
	ReturnedTokens monitoring.Counter
}

// IncAcquired counts tokens requested from specs.
func (m *m) IncAcquired(tokens int, specs []Spec, success bool) {
	m.add(m.AcquiredTokens, tokens, specs, success)
}

// IncReturned counts tokens handed back to specs.
func (m *m) IncReturned(tokens int, specs []Spec, success bool) {
	m.add(m.ReturnedTokens, tokens, specs, success)
}

func (m *m) add(c monitoring.Counter, tokens int, specs []Spec, success bool) {
	if c == nil {
		return
	}
	for _, s := range specs {
		c.Add(float64(tokens), s.Name(), strconv.FormatBool(success))
	}
}

// InitMetrics creates Metrics with mf. Only the first call has an effect.
func InitMetrics(mf monitoring.MetricFactory) {
	metricsOnce.Do(func() {
		Metrics.AcquiredTokens = mf.NewCounter("quota_acquired_tokens", "Number of quota tokens requested", "spec", "success")
		Metrics.ReturnedTokens = mf.NewCounter("quota_returned_tokens", "Number of quota tokens returned for abandoned work", "spec", "success")
	})
}
