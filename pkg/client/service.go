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

package client

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/rackmem/rackmem/pkg/gaddr"
	logger "github.com/rackmem/rackmem/pkg/log"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/transport"
)

var log = logger.NewLogger("client")

var _ rpcapi.ClientService = (*Client)(nil)

// RemovePageCache drops whatever this client remembers about a page its
// daemon is invalidating. There is no ack payload beyond success: the
// daemon only needs to know the client will not reuse a stale reference.
func (c *Client) RemovePageCache(ctx context.Context, req *rpcapi.RemovePageCacheRequest) (*rpcapi.RemovePageCacheReply, error) {
	c.pages.Erase(req.PageID)
	return &rpcapi.RemovePageCacheReply{}, nil
}

// GetCurrentWriteData hands the daemon back write-combined bytes not yet
// pushed through, so a migration does not lose them. The request names no
// page: the first dirty buffer found on any cached page is returned, and a
// client with nothing dirty returns an empty slice.
func (c *Client) GetCurrentWriteData(ctx context.Context, req *rpcapi.GetCurrentWriteDataRequest) (*rpcapi.GetCurrentWriteDataReply, error) {
	// The request identifies the client, not the page; real dirty-buffer
	// bookkeeping is keyed per page on the client and this stub only
	// needs to prove the RPC surface — return whatever is dirty, if any.
	var data []byte
	c.pages.ForeachAll(func(_ gaddr.PageID, st *pageState) bool {
		if len(st.dirty) > 0 {
			data = st.dirty
			return false
		}
		return true
	})
	return &rpcapi.GetCurrentWriteDataReply{Data: data}, nil
}

// GetPagePastAccessFreq reports the least-recently-touched page this client
// still has cached, input to its daemon's victim-selection scan.
func (c *Client) GetPagePastAccessFreq(ctx context.Context, req *rpcapi.GetPagePastAccessFreqRequest) (*rpcapi.GetPagePastAccessFreqReply, error) {
	var oldestID gaddr.PageID
	var oldestTS int64
	first := true
	c.pages.ForeachAll(func(pid gaddr.PageID, st *pageState) bool {
		ts := st.lastAccess.UnixNano()
		if first || ts < oldestTS {
			oldestID, oldestTS, first = pid, ts, false
		}
		return true
	})
	if first {
		return &rpcapi.GetPagePastAccessFreqReply{}, nil
	}
	return &rpcapi.GetPagePastAccessFreqReply{OldestPageID: oldestID, LastAccessTS: oldestTS}, nil
}

// Server wraps c with the gRPC server a client process listens with, so its
// daemon can reach RemovePageCache/GetCurrentWriteData/GetPagePastAccessFreq.
type Server struct {
	server *grpc.Server
	lis    net.Listener
}

// Listen binds address and begins serving c's ClientService methods.
func Listen(c *Client, address string) (*Server, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, rackerr.TransportError(err, "client: listening on %s", address)
	}

	r := transport.NewRouter()
	transport.Register(r, transport.MethodRemovePageCache, c.RemovePageCache)
	transport.Register(r, transport.MethodGetCurrentWriteData, c.GetCurrentWriteData)
	transport.Register(r, transport.MethodGetPagePastAccessFreq, c.GetPagePastAccessFreq)

	srv := transport.NewServer(r)
	s := &Server{server: srv, lis: lis}
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error("gRPC server exited: %v", err)
		}
	}()
	return s, nil
}

// Addr returns the bound listen address, useful when address was ":0".
func (s *Server) Addr() net.Addr { return s.lis.Addr() }

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	s.server.GracefulStop()
}
