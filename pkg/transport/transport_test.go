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

package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/transport"
)

func startTestServer(t *testing.T, r *transport.Router) (addr string, stop func()) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := transport.NewServer(r)
	go srv.Serve(lis)

	return lis.Addr().String(), func() {
		srv.Stop()
	}
}

func TestCallRoundtrip(t *testing.T) {
	r := transport.NewRouter()
	transport.Register(r, transport.MethodJoinClient, func(ctx context.Context, req *rpcapi.JoinClientRequest) (*rpcapi.JoinClientReply, error) {
		return &rpcapi.JoinClientReply{MacID: gaddr.MacID(req.RackID + 1)}, nil
	})

	addr, stop := startTestServer(t, r)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, addr)
	require.NoError(t, err)
	defer c.Close()

	mc := transport.MasterClient{C: c}
	reply, err := mc.JoinClient(ctx, &rpcapi.JoinClientRequest{RackID: 4})
	require.NoError(t, err)
	require.Equal(t, gaddr.MacID(5), reply.MacID)
}

func TestCallUnregisteredMethodFails(t *testing.T) {
	r := transport.NewRouter()
	addr, stop := startTestServer(t, r)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, addr)
	require.NoError(t, err)
	defer c.Close()

	mc := transport.MasterClient{C: c}
	_, err = mc.JoinClient(ctx, &rpcapi.JoinClientRequest{RackID: 1})
	require.Error(t, err)
}

func TestInvokeAsyncResolvesFuture(t *testing.T) {
	r := transport.NewRouter()
	transport.Register(r, transport.MethodAllocPage, func(ctx context.Context, req *rpcapi.AllocPageRequest) (*rpcapi.AllocPageReply, error) {
		return &rpcapi.AllocPageReply{StartPageID: gaddr.PageID(1), StartCount: req.Count}, nil
	})

	addr, stop := startTestServer(t, r)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, addr)
	require.NoError(t, err)
	defer c.Close()

	f := transport.InvokeAsync[rpcapi.AllocPageReply](ctx, c, transport.MethodAllocPage, &rpcapi.AllocPageRequest{MacID: 1, Count: 7})
	reply, err := f.Get(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 7, reply.StartCount)
}
