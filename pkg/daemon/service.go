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

package daemon

import (
	"context"
	"net"
	"strconv"

	"google.golang.org/grpc"

	"github.com/rackmem/rackmem/pkg/config"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/stats"
	"github.com/rackmem/rackmem/pkg/transport"
)

// Service wraps a Daemon together with its master connection, listener and
// gRPC server, the unit cmd/rackmem-daemon actually runs.
type Service struct {
	cfg    *config.DaemonConfig
	daemon *Daemon
	server *grpc.Server
	lis    net.Listener
	master *transport.Client
}

// NewService dials cfg.MasterAddress and builds a Service, but neither
// joins the cluster nor starts listening yet.
func NewService(ctx context.Context, cfg *config.DaemonConfig) (*Service, error) {
	masterConn, err := transport.Dial(ctx, cfg.MasterAddress)
	if err != nil {
		return nil, rackerr.TransportError(err, "daemon: dialing master at %s", cfg.MasterAddress)
	}

	region, err := NewCXLRegion(cfg.FreePageNum)
	if err != nil {
		return nil, err
	}

	d := New(cfg, region, transport.MasterClient{C: masterConn})
	return &Service{
		cfg:    cfg,
		daemon: d,
		server: NewServer(d),
		master: masterConn,
	}, nil
}

// Daemon returns the underlying Daemon, mainly for tests.
func (s *Service) Daemon() *Daemon { return s.daemon }

// Start joins the cluster, binds the configured listen address and begins
// serving in the background.
func (s *Service) Start(ctx context.Context) error {
	if err := stats.Register(); err != nil {
		return rackerr.TransportError(err, "daemon: registering stats views")
	}

	lis, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return rackerr.TransportError(err, "daemon: listening on %s", s.cfg.ListenAddress)
	}
	s.lis = lis

	var port int32
	if _, portStr, splitErr := net.SplitHostPort(lis.Addr().String()); splitErr == nil {
		if p, convErr := strconv.Atoi(portStr); convErr == nil {
			port = int32(p)
		}
	}

	if err := s.daemon.Join(ctx, s.cfg.ListenAddress, port); err != nil {
		return err
	}

	s.daemon.Log.Info("joined cluster as %s, listening on %s", s.daemon.MacID, lis.Addr())
	go func() {
		if err := s.server.Serve(lis); err != nil {
			s.daemon.Log.Error("gRPC server exited: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down and closes the master connection.
func (s *Service) Stop() {
	s.server.GracefulStop()
	s.master.Close()
	stats.Unregister()
}
