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

	"google.golang.org/grpc"

	"github.com/rackmem/rackmem/pkg/future"
	"github.com/rackmem/rackmem/pkg/instrumentation"
	"github.com/rackmem/rackmem/pkg/rackerr"
)

// Client is a dialed connection to a master, daemon or client peer. All
// rpcapi service stubs in clients.go are built on top of one of these.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to address, instrumented the same way every other gRPC
// client in this tree is.
func Dial(ctx context.Context, address string) (*Client, error) {
	opts := instrumentation.InjectGrpcClientTrace(grpc.WithInsecure(), grpc.WithBlock())
	conn, err := grpc.DialContext(ctx, address, opts...)
	if err != nil {
		return nil, rackerr.TransportError(err, "dialing %s", address)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes method synchronously, gob-encoding req and decoding the
// reply payload into reply.
func (c *Client) Call(ctx context.Context, method string, req, reply interface{}) error {
	payload, err := marshalGob(req)
	if err != nil {
		return rackerr.TransportError(err, "encoding request for %s", method)
	}
	in := &Envelope{Method: method, Payload: payload}
	out := new(Envelope)
	if err := c.conn.Invoke(ctx, dispatchFullMethod, in, out, grpc.ForceCodec(gobCodec{})); err != nil {
		return rackerr.TransportError(err, "rpc %s", method)
	}
	if err := unmarshalGob(out.Payload, reply); err != nil {
		return rackerr.TransportError(err, "decoding reply for %s", method)
	}
	return nil
}

// Invoke calls method and returns a freshly allocated, decoded *Reply. The
// explicit Reply type argument is required since Go cannot infer a return
// type parameter from context; Req is inferred from req.
func Invoke[Reply any, Req any](ctx context.Context, c *Client, method string, req *Req) (*Reply, error) {
	reply := new(Reply)
	if err := c.Call(ctx, method, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// InvokeAsync runs Invoke on a new goroutine and returns immediately with a
// future the caller cooperatively yields on (C11): the goroutine parks on
// network I/O, the calling goroutine is free to service other work and
// later blocks on Future.Get, which the Go scheduler itself parks rather
// than the caller spinning.
func InvokeAsync[Reply any, Req any](ctx context.Context, c *Client, method string, req *Req) *future.Future[*Reply] {
	f := future.New[*Reply]()
	go func() {
		reply, err := Invoke[Reply](ctx, c, method, req)
		f.Resolve(reply, err)
	}()
	return f
}
