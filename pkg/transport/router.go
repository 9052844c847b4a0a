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

package transport

import (
	"context"
	"sync"

	logger "github.com/rackmem/rackmem/pkg/log"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fatalKinds are the rackerr kinds this pool's core operations never retry
// or partially recover from: a handler that returns one of these is
// reporting a condition Dispatch treats as unrecoverable for the process,
// not just the one request.
var fatalKinds = []rackerr.Kind{
	rackerr.KindNotFound, rackerr.KindCapacityExceeded,
	rackerr.KindUnsupported, rackerr.KindTransportError,
}

func terminateOnFatal(method string, err error) {
	for _, kind := range fatalKinds {
		if rackerr.IsKind(err, kind) {
			logger.Fatal("%s: %+v", method, err)
		}
	}
}

// Router holds the handlers a server side registers one rpcapi method
// against, keyed by the Method strings in methods.go.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]func(ctx context.Context, payload []byte) ([]byte, error)
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]func(context.Context, []byte) ([]byte, error))}
}

// Register binds method to fn: when Dispatch receives an Envelope naming
// method, it gob-decodes the payload into a *Req, calls fn, and gob-encodes
// the *Reply back out. Req and Reply must be the same pair of types the
// calling client stub uses for the same method.
func Register[Req, Reply any](r *Router, method string, fn func(context.Context, *Req) (*Reply, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = func(ctx context.Context, payload []byte) ([]byte, error) {
		req := new(Req)
		if err := unmarshalGob(payload, req); err != nil {
			return nil, rackerr.TransportError(err, "decoding request for %s", method)
		}
		reply, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		out, err := marshalGob(reply)
		if err != nil {
			return nil, rackerr.TransportError(err, "encoding reply for %s", method)
		}
		return out, nil
	}
}

// Dispatch implements the dispatcher interface grpc.ServiceDesc invokes.
// Every RPC method on every daemon and master server funnels through this
// one call, which makes it the single place to catch the fatal-kind errors
// (NotFound, CapacityExceeded, Unsupported, TransportError) a handler
// returns, which the pool never retries or partially recovers from. A
// method with no registered handler is answered with codes.Unimplemented
// and is not treated as fatal.
func (r *Router) Dispatch(ctx context.Context, env *Envelope) (*Envelope, error) {
	r.mu.RLock()
	h, ok := r.handlers[env.Method]
	r.mu.RUnlock()

	var out []byte
	var err error
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "no handler registered for %q", env.Method)
	} else {
		out, err = h(ctx, env.Payload)
	}
	if err != nil {
		terminateOnFatal(env.Method, err)
		return nil, err
	}
	return &Envelope{Method: env.Method, Payload: out}, nil
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "rackmem.transport.Transport",
	HandlerType: (*dispatcher)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Dispatch",
			Handler:    dispatchHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rackmem/transport.proto",
}

func dispatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(dispatcher).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: dispatchFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(dispatcher).Dispatch(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}
