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
	"math"
	"time"

	"github.com/canopyledger/canopy/errors"
)

// SlotSource reports how much of the current eligibility window is left.
type SlotSource interface {
	// SlotsRemaining returns the number of slots left before the window
	// closes. Zero or less means the window is closed.
	SlotsRemaining(ctx context.Context) (int64, error)
}

// Unbounded is a SlotSource whose window never closes.
type Unbounded struct{}

// SlotsRemaining always returns math.MaxInt64.
func (Unbounded) SlotsRemaining(context.Context) (int64, error) { return math.MaxInt64, nil }

// Window is the half-open slot range [Start, End). If Period is non-zero the
// window repeats every Period slots, and Start and End are offsets into each
// period.
type Window struct {
	Start  uint64 `yaml:"start"`
	End    uint64 `yaml:"end"`
	Period uint64 `yaml:"period"`
}

// Validate checks that the window is non-empty and fits its period.
func (w Window) Validate() error {
	if w.End <= w.Start {
		return errors.Errorf(errors.InvalidArgument, "clock: empty slot window [%d, %d)", w.Start, w.End)
	}
	if w.Period > 0 && w.End > w.Period {
		return errors.Errorf(errors.InvalidArgument, "clock: slot window end %d exceeds period %d", w.End, w.Period)
	}
	return nil
}

// Remaining returns End minus slot when slot is inside the window and zero
// otherwise.
func (w Window) Remaining(slot uint64) int64 {
	if w.Period > 0 {
		slot %= w.Period
	}
	if slot < w.Start || slot >= w.End {
		return 0
	}
	return int64(w.End - slot)
}

// SlotClock derives slots from a TimeSource: slot n starts at
// genesis + n*duration.
type SlotClock struct {
	ts       TimeSource
	genesis  time.Time
	duration time.Duration
	window   Window
}

// NewSlotClock returns a SlotClock for the given window.
func NewSlotClock(ts TimeSource, genesis time.Time, duration time.Duration, w Window) (*SlotClock, error) {
	if duration <= 0 {
		return nil, errors.Errorf(errors.InvalidArgument, "clock: slot duration %v must be positive", duration)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &SlotClock{ts: ts, genesis: genesis, duration: duration, window: w}, nil
}

// Slot returns the current slot, or zero before genesis.
func (c *SlotClock) Slot() uint64 {
	d := c.ts.Now().Sub(c.genesis)
	if d < 0 {
		return 0
	}
	return uint64(d / c.duration)
}

// Window returns the configured window.
func (c *SlotClock) Window() Window { return c.window }

// SlotsRemaining implements SlotSource.
func (c *SlotClock) SlotsRemaining(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.window.Remaining(c.Slot()), nil
}
