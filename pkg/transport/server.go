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
	"google.golang.org/grpc"

	"github.com/rackmem/rackmem/pkg/instrumentation"
)

// NewServer builds a *grpc.Server that dispatches every call through r.
// Callers still Serve() it on their own net.Listener.
func NewServer(r *Router) *grpc.Server {
	opts := instrumentation.InjectGrpcServerTrace(grpc.ForceServerCodec(gobCodec{}))
	s := grpc.NewServer(opts...)
	s.RegisterService(&serviceDesc, r)
	return s
}
