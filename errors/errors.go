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

// Package errors defines an error representation that associates an error
// message to an error code.
//
// Codes mirror gRPC codes so that errors can cross an RPC boundary without
// losing information, while the packages that create them stay independent of
// any transport. On top of the codes the package classifies every error into
// one of a small number of kinds (capacity, consistency, transient,
// eligibility) which callers use to choose between retrying, aborting a cycle
// and stopping cleanly.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code is the error code of a CanopyError. Values are identical to the
// corresponding gRPC codes.
type Code uint32

// Error codes, see google.golang.org/grpc/codes for descriptions.
const (
	OK                 = Code(codes.OK)
	Canceled           = Code(codes.Canceled)
	Unknown            = Code(codes.Unknown)
	InvalidArgument    = Code(codes.InvalidArgument)
	DeadlineExceeded   = Code(codes.DeadlineExceeded)
	NotFound           = Code(codes.NotFound)
	AlreadyExists      = Code(codes.AlreadyExists)
	PermissionDenied   = Code(codes.PermissionDenied)
	ResourceExhausted  = Code(codes.ResourceExhausted)
	FailedPrecondition = Code(codes.FailedPrecondition)
	Aborted            = Code(codes.Aborted)
	OutOfRange         = Code(codes.OutOfRange)
	Unimplemented      = Code(codes.Unimplemented)
	Internal           = Code(codes.Internal)
	Unavailable        = Code(codes.Unavailable)
	DataLoss           = Code(codes.DataLoss)
	Unauthenticated    = Code(codes.Unauthenticated)
)

func (c Code) String() string {
	return codes.Code(c).String()
}

// CanopyError associates an error message with a Code.
type CanopyError interface {
	error
	Code() Code
}

type canopyError struct {
	code Code
	msg  string
	err  error
}

func (e *canopyError) Error() string { return e.msg }

func (e *canopyError) Code() Code { return e.code }

func (e *canopyError) Unwrap() error { return e.err }

// New returns a CanopyError with the given code and message.
func New(code Code, msg string) error {
	return &canopyError{code: code, msg: msg}
}

// Errorf returns a CanopyError with the given code and a formatted message.
// A %w verb in the format keeps the wrapped error reachable by errors.Is and
// errors.As.
func Errorf(code Code, format string, a ...interface{}) error {
	err := fmt.Errorf(format, a...)
	return &canopyError{code: code, msg: err.Error(), err: stderrors.Unwrap(err)}
}

// ErrorCode returns the Code of the first CanopyError in err's chain.
// Context errors map to their gRPC equivalents and nil maps to OK; anything
// else is Unknown.
func ErrorCode(err error) Code {
	if err == nil {
		return OK
	}
	var cerr CanopyError
	if stderrors.As(err, &cerr) {
		return cerr.Code()
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return DeadlineExceeded
	case stderrors.Is(err, context.Canceled):
		return Canceled
	}
	if s, ok := status.FromError(err); ok {
		return Code(s.Code())
	}
	return Unknown
}

// ToStatus converts err into a gRPC status error carrying the same code.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(codes.Code(ErrorCode(err)), err.Error())
}

// Is, As and Unwrap re-export the standard library helpers so that callers
// importing this package under the name errors need not alias either one.
var (
	Is     = stderrors.Is
	As     = stderrors.As
	Unwrap = stderrors.Unwrap
)
