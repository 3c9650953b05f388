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

package errors

// Kind groups error codes by the reaction they require from the caller.
type Kind int

const (
	// KindUnknown is returned for nil errors and codes that have no kind.
	KindUnknown Kind = iota
	// KindCapacity errors are structural: a tree, batch or buffer is full.
	// They fail the current operation and never corrupt stored state.
	KindCapacity
	// KindConsistency errors abort the in-progress cycle, which has to be
	// restarted from a fresh fetch.
	KindConsistency
	// KindTransient errors may succeed when retried.
	KindTransient
	// KindEligibility signals that the submission window has closed.
	KindEligibility
)

func (k Kind) String() string {
	switch k {
	case KindCapacity:
		return "capacity"
	case KindConsistency:
		return "consistency"
	case KindTransient:
		return "transient"
	case KindEligibility:
		return "eligibility"
	}
	return "unknown"
}

// ErrNotEligible is returned by submitters once the caller may no longer
// commit state transitions in the current window. Wrap it rather than
// creating a new error so that KindOf recognises it.
var ErrNotEligible = New(PermissionDenied, "no longer eligible to submit in the current window")

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if Is(err, ErrNotEligible) {
		return KindEligibility
	}
	switch ErrorCode(err) {
	case ResourceExhausted:
		return KindCapacity
	case Aborted, FailedPrecondition, AlreadyExists, DataLoss:
		return KindConsistency
	case Unavailable, DeadlineExceeded:
		return KindTransient
	}
	return KindUnknown
}

// IsCapacity reports whether err is a capacity error.
func IsCapacity(err error) bool { return KindOf(err) == KindCapacity }

// IsConsistency reports whether err is a consistency error.
func IsConsistency(err error) bool { return KindOf(err) == KindConsistency }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsEligibility reports whether err signals a closed submission window.
func IsEligibility(err error) bool { return KindOf(err) == KindEligibility }
