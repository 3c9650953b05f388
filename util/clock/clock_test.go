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

package clock

import (
	"context"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func checkNotFiring(t *testing.T, timer Timer) {
	t.Helper()
	select {
	case tm := <-timer.Chan():
		t.Errorf("timer fired at %v", tm)
	default:
	}
}

func TestFakeTimerFiresOnce(t *testing.T) {
	f := NewFake(base)
	timer := f.NewTimer(10 * time.Millisecond)

	f.Advance(9 * time.Millisecond)
	checkNotFiring(t, timer)

	f.Advance(time.Millisecond)
	if got, want := <-timer.Chan(), base.Add(10*time.Millisecond); !got.Equal(want) {
		t.Errorf("timer fired at %v, want %v", got, want)
	}
	f.Advance(time.Hour)
	checkNotFiring(t, timer)
	if timer.Stop() {
		t.Error("Stop() after firing returned true")
	}
}

func TestFakeTimerStop(t *testing.T) {
	f := NewFake(base)
	timer := f.NewTimer(time.Second)
	if got := f.Timers(); got != 1 {
		t.Fatalf("Timers()=%d, want 1", got)
	}
	if !timer.Stop() {
		t.Error("Stop() before firing returned false")
	}
	f.Advance(2 * time.Second)
	checkNotFiring(t, timer)
	if got := f.Timers(); got != 0 {
		t.Errorf("Timers()=%d after Stop, want 0", got)
	}
}

func TestFakeTimerZeroDuration(t *testing.T) {
	f := NewFake(base)
	timer := f.NewTimer(0)
	select {
	case <-timer.Chan():
	default:
		t.Error("zero-duration timer did not fire immediately")
	}
}

func TestSleep(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		cancel  bool
		wantErr error
	}{
		{desc: "fires"},
		{desc: "canceled", cancel: true, wantErr: context.Canceled},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			f := NewFake(base)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- Sleep(ctx, f, time.Minute) }()

			for f.Timers() == 0 {
				time.Sleep(time.Millisecond)
			}
			if tc.cancel {
				cancel()
			} else {
				f.Advance(time.Minute)
			}
			if err := <-done; err != tc.wantErr {
				t.Errorf("Sleep()=%v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSinceHelpers(t *testing.T) {
	f := NewFake(base.Add(1500 * time.Millisecond))
	if got, want := SecondsSince(f, base), 1.5; got != want {
		t.Errorf("SecondsSince()=%v, want %v", got, want)
	}
	if got, want := MillisSince(f, base), int64(1500); got != want {
		t.Errorf("MillisSince()=%v, want %v", got, want)
	}
}
