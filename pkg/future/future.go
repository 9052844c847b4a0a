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

// Package future implements the cooperative RPC/RDMA discipline every call
// on the access path is built on: a call returns a Future immediately, the
// caller polls TryGet without blocking the OS thread, and Yield hands control
// back to the Go scheduler between polls. Get is the same discipline with the
// polling loop folded into a channel receive, which is how a goroutine
// yields control while waiting on a simple RPC round trip.
package future

import (
	"context"
	"runtime"

	"github.com/hashicorp/go-multierror"
)

// Future is a single pending result of an RPC call or RDMA submission.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// New creates a Future that Resolve must be called on exactly once.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Done returns an already-resolved Future, for call sites that can answer
// synchronously but still participate in the Future-returning contract.
func Done[T any](value T, err error) *Future[T] {
	f := New[T]()
	f.Resolve(value, err)
	return f
}

// Resolve makes the future ready. Calling it more than once panics, matching
// a future being a single-assignment cell.
func (f *Future[T]) Resolve(value T, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// TryGet is the non-blocking poll: ok is false while the future is still pending.
func (f *Future[T]) TryGet() (value T, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return value, nil, false
	}
}

// Get blocks the calling goroutine until the future resolves or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Yield gives the Go scheduler a chance to run other goroutines. Callers
// that spin on TryGet in a loop (e.g. polling an RDMA batch submission for
// completion) call Yield between polls rather than busy-waiting.
func Yield() {
	runtime.Gosched()
}

// WaitAll polls every future to completion and joins their errors, used by
// an invalidation broadcast that must wait for every recipient to
// acknowledge before reporting success.
func WaitAll[T any](ctx context.Context, futures []*Future[T]) ([]T, error) {
	values := make([]T, len(futures))
	var merr *multierror.Error

	for i, f := range futures {
		v, err := f.Get(ctx)
		values[i] = v
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	return values, merr.ErrorOrNil()
}
