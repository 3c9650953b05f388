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

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodes(t *testing.T) {
	tests := []struct {
		got  Code
		want codes.Code
	}{
		{got: Canceled, want: codes.Canceled},
		{got: InvalidArgument, want: codes.InvalidArgument},
		{got: DeadlineExceeded, want: codes.DeadlineExceeded},
		{got: AlreadyExists, want: codes.AlreadyExists},
		{got: ResourceExhausted, want: codes.ResourceExhausted},
		{got: FailedPrecondition, want: codes.FailedPrecondition},
		{got: Aborted, want: codes.Aborted},
		{got: OutOfRange, want: codes.OutOfRange},
		{got: Unavailable, want: codes.Unavailable},
		{got: DataLoss, want: codes.DataLoss},
	}
	for _, test := range tests {
		if uint32(test.got) != uint32(test.want) {
			t.Errorf("got = %v, want = %v", test.got, test.want)
		}
	}
}

func TestErrorf(t *testing.T) {
	base := New(ResourceExhausted, "tree full")
	err := Errorf(Aborted, "append %d: %w", 7, base)
	if got, want := err.Error(), "append 7: tree full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := ErrorCode(err); got != Aborted {
		t.Errorf("ErrorCode() = %v, want %v", got, Aborted)
	}
	if !Is(err, base) {
		t.Errorf("Is(%v, %v) = false, want true", err, base)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		desc string
		err  error
		want Code
	}{
		{desc: "nil", err: nil, want: OK},
		{desc: "plain", err: fmt.Errorf("boom"), want: Unknown},
		{desc: "wrapped", err: fmt.Errorf("ctx: %w", New(OutOfRange, "x")), want: OutOfRange},
		{desc: "deadline", err: fmt.Errorf("fetch: %w", context.DeadlineExceeded), want: DeadlineExceeded},
		{desc: "canceled", err: context.Canceled, want: Canceled},
		{desc: "status", err: status.Error(codes.Unavailable, "down"), want: Unavailable},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			if got := ErrorCode(test.err); got != test.want {
				t.Errorf("ErrorCode() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		desc string
		err  error
		want Kind
	}{
		{desc: "nil", err: nil, want: KindUnknown},
		{desc: "full", err: New(ResourceExhausted, "full"), want: KindCapacity},
		{desc: "mismatch", err: New(Aborted, "root mismatch"), want: KindConsistency},
		{desc: "duplicate", err: New(AlreadyExists, "dup"), want: KindConsistency},
		{desc: "timeout", err: fmt.Errorf("page: %w", context.DeadlineExceeded), want: KindTransient},
		{desc: "unavailable", err: New(Unavailable, "retry"), want: KindTransient},
		{desc: "eligibility", err: fmt.Errorf("submit: %w", ErrNotEligible), want: KindEligibility},
		{desc: "argument", err: New(InvalidArgument, "bad"), want: KindUnknown},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			if got := KindOf(test.err); got != test.want {
				t.Errorf("KindOf() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestToStatus(t *testing.T) {
	err := ToStatus(New(ResourceExhausted, "batch full"))
	s, ok := status.FromError(err)
	if !ok {
		t.Fatalf("ToStatus() returned non-status error %v", err)
	}
	if s.Code() != codes.ResourceExhausted || s.Message() != "batch full" {
		t.Errorf("ToStatus() = %v, want ResourceExhausted/batch full", s)
	}
	if ToStatus(nil) != nil {
		t.Error("ToStatus(nil) != nil")
	}
}
