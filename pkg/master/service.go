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

package master

import (
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/rackmem/rackmem/pkg/config"
	logger "github.com/rackmem/rackmem/pkg/log"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/stats"
)

// Service wraps a ClusterManager together with the listener and gRPC server
// it's reachable on, the unit cmd/rackmem-master actually runs.
type Service struct {
	cfg     *config.MasterConfig
	cluster *ClusterManager
	server  *grpc.Server
	lis     net.Listener
}

// NewService builds a Service from cfg but does not start listening yet.
func NewService(cfg *config.MasterConfig) *Service {
	cluster := NewClusterManager()
	cluster.Log = logger.NewLogger(fmt.Sprintf("master.%s", cfg.ListenAddress))
	return &Service{
		cfg:     cfg,
		cluster: cluster,
		server:  NewServer(cluster),
	}
}

// Cluster returns the underlying ClusterManager, mainly for tests.
func (s *Service) Cluster() *ClusterManager { return s.cluster }

// Start binds the configured listen address and begins serving in the
// background. It returns once the listener is open; Serve runs in its own
// goroutine until Stop is called.
func (s *Service) Start() error {
	if err := stats.Register(); err != nil {
		return rackerr.TransportError(err, "master: registering stats views")
	}

	lis, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return rackerr.TransportError(err, "master: listening on %s", s.cfg.ListenAddress)
	}
	s.lis = lis

	s.cluster.Log.Info("listening on %s", lis.Addr())
	go func() {
		if err := s.server.Serve(lis); err != nil {
			s.cluster.Log.Error("gRPC server exited: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Service) Stop() {
	s.server.GracefulStop()
	stats.Unregister()
}
