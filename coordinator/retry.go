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

package coordinator

import (
	"context"
	"time"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/util/clock"
	"github.com/cenkalti/backoff/v4"
	"k8s.io/klog/v2"
)

// retry runs op until it succeeds, fails with a non-transient error, or
// cfg.MaxRetries retries were spent. Waits between attempts back off
// exponentially on ts.
func retry(ctx context.Context, cfg Config, ts clock.TimeSource, what string, op func(context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.RetryInitialInterval
	eb.MaxInterval = cfg.RetryMaxInterval
	eb.MaxElapsedTime = 0
	eb.Clock = ts
	eb.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(cfg.MaxRetries)), ctx)

	attempt := 0
	return backoff.RetryNotifyWithTimer(func() error {
		attempt++
		err := op(ctx)
		if err != nil && !errors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		klog.V(1).Infof("%s: attempt %d failed, retrying in %v: %v", what, attempt, wait, err)
	}, &backoffTimer{ts: ts})
}

// backoffTimer runs backoff's waits on a clock.TimeSource.
type backoffTimer struct {
	ts clock.TimeSource
	t  clock.Timer
}

func (b *backoffTimer) Start(d time.Duration) { b.t = b.ts.NewTimer(d) }

func (b *backoffTimer) Stop() {
	if b.t != nil {
		b.t.Stop()
	}
}

func (b *backoffTimer) C() <-chan time.Time { return b.t.Chan() }
