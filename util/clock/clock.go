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

// Package clock abstracts time for the coordinator: wall-clock timestamps,
// timers that tests can fire by hand, and the host's slot clock which bounds
// the window in which commits may be submitted.
package clock

import (
	"context"
	"time"
)

// System is the TimeSource backed by the real clock.
var System TimeSource = systemTimeSource{}

// TimeSource provides the current time and timers relative to it.
type TimeSource interface {
	Now() time.Time
	// NewTimer returns a Timer which fires once d has elapsed on this
	// TimeSource.
	NewTimer(d time.Duration) Timer
}

// Timer fires once. See time.Timer.
type Timer interface {
	Chan() <-chan time.Time
	// Stop returns false if the Timer already fired or was stopped.
	Stop() bool
}

// SecondsSince returns the seconds elapsed since t as seen by ts.
func SecondsSince(ts TimeSource, t time.Time) float64 {
	return ts.Now().Sub(t).Seconds()
}

// MillisSince returns the whole milliseconds elapsed since t as seen by ts.
func MillisSince(ts TimeSource, t time.Time) int64 {
	return ts.Now().Sub(t).Milliseconds()
}

// Sleep blocks until d has elapsed on ts or ctx is done, in which case it
// returns ctx.Err().
func Sleep(ctx context.Context, ts TimeSource, d time.Duration) error {
	timer := ts.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type systemTimeSource struct{}

func (systemTimeSource) Now() time.Time { return time.Now() }

func (systemTimeSource) NewTimer(d time.Duration) Timer {
	return systemTimer{time.NewTimer(d)}
}

type systemTimer struct {
	*time.Timer
}

func (t systemTimer) Chan() <-chan time.Time { return t.C }
