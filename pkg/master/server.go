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
	"google.golang.org/grpc"

	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/transport"
)

// NewServer builds the gRPC server a master process listens with, routing
// every rpcapi.MasterService method to c.
func NewServer(c *ClusterManager) *grpc.Server {
	r := transport.NewRouter()
	transport.Register(r, transport.MethodJoinDaemon, c.JoinDaemon)
	transport.Register(r, transport.MethodAllocPage, c.AllocPage)
	transport.Register(r, transport.MethodFreePage, c.FreePage)
	transport.Register(r, transport.MethodLatchRemotePage, c.LatchRemotePage)
	transport.Register(r, transport.MethodUnLatchRemotePage, c.UnLatchRemotePage)
	transport.Register(r, transport.MethodUnLatchPageAndSwap, c.UnLatchPageAndSwap)
	transport.Register(r, transport.MethodJoinClient, c.JoinClient)
	return transport.NewServer(r)
}

var _ rpcapi.MasterService = (*ClusterManager)(nil)
