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

import "context"

// Envelope is the only message type that ever crosses the wire at the gRPC
// layer. Method selects which registered handler the Router dispatches to;
// Payload is that handler's request or reply, gob-encoded independently of
// the envelope itself.
type Envelope struct {
	Method  string
	Payload []byte
}

// dispatcher is the interface grpc.ServiceDesc checks a Router against
// when it's registered on a *grpc.Server.
type dispatcher interface {
	Dispatch(ctx context.Context, env *Envelope) (*Envelope, error)
}
