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
	"google.golang.org/grpc"

	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/transport"
)

// NewServer builds the gRPC server a daemon process listens with, routing
// both its peer-facing (DaemonService) and client-facing (ClientFacingService)
// methods to d over the same single Dispatch RPC.
func NewServer(d *Daemon) *grpc.Server {
	r := transport.NewRouter()

	transport.Register(r, transport.MethodGetPageRDMARef, d.GetPageRDMARef)
	transport.Register(r, transport.MethodDelPageRDMARef, d.DelPageRDMARef)
	transport.Register(r, transport.MethodTryMigratePage, d.TryMigratePage)
	transport.Register(r, transport.MethodAllocPageMemory, d.AllocPageMemory)

	transport.Register(r, transport.MethodJoinRack, d.JoinRack)
	transport.Register(r, transport.MethodGetPageRefOrProxy, d.GetPageRefOrProxy)
	transport.Register(r, transport.MethodClientAllocPage, d.ClientAllocPage)

	return transport.NewServer(r)
}

var (
	_ rpcapi.DaemonService       = (*Daemon)(nil)
	_ rpcapi.ClientFacingService = (*Daemon)(nil)
)
