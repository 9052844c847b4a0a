// Copyright 2022 Intel Corporation. All Rights Reserved.
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

// Package rackerr defines the fatal error kinds the core operations of the
// pool raise: NotFound, CapacityExceeded, Unsupported and TransportError.
// None of these are meant to be recovered from along the core's hot paths;
// a caller that gets one is expected to log it with a stack trace and
// terminate, per the no-partial-migration-recovery policy.
package rackerr

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a core fatal error.
type Kind string

const (
	// KindNotFound marks a failed lookup of a page, rack or mac id.
	KindNotFound Kind = "not-found"
	// KindCapacityExceeded marks exhaustion of the page id or slab allocator.
	KindCapacityExceeded Kind = "capacity-exceeded"
	// KindUnsupported marks an operation this implementation deliberately
	// never completes (freePage, byte-granular alloc/free, lost-rack reconnect).
	KindUnsupported Kind = "unsupported"
	// KindTransportError marks an RPC or RDMA failure propagated from the transport.
	KindTransportError Kind = "transport-error"
)

// Error is a typed, stack-trace-carrying core error.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return e.cause.Error()
}

// Unwrap exposes the wrapped stack-tracing cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is a rackerr.Error of the same Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

func make(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: pkgerrors.Errorf(format, args...)}
}

// NotFound builds a KindNotFound error with a stack trace attached.
func NotFound(format string, args ...interface{}) error {
	return make(KindNotFound, format, args...)
}

// CapacityExceeded builds a KindCapacityExceeded error with a stack trace attached.
func CapacityExceeded(format string, args ...interface{}) error {
	return make(KindCapacityExceeded, format, args...)
}

// Unsupported builds a KindUnsupported error with a stack trace attached.
func Unsupported(format string, args ...interface{}) error {
	return make(KindUnsupported, format, args...)
}

// TransportError wraps err, from the RPC/RDMA transport, with a stack trace.
func TransportError(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindTransportError, cause: pkgerrors.Wrapf(err, format, args...)}
}

// IsKind reports whether err is a rackerr.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
