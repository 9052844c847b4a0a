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

// Package transport carries master/daemon/client RPCs over a single gRPC
// method (Dispatch) whose payload is encoded with encoding/gob instead of
// protobuf, so new request/reply shapes never need a .proto recompile: the
// wire envelope is fixed, only its Payload's schema changes across calls.
package transport

import (
	"bytes"
	"encoding/gob"
)

// gobCodec implements google.golang.org/grpc/encoding.Codec over gob. It is
// installed per-call (client) and per-server via grpc.ForceCodec /
// grpc.ForceServerCodec rather than negotiated by content-subtype, since
// every call in this tree uses it unconditionally.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string {
	return "gob"
}

func marshalGob(v interface{}) ([]byte, error) {
	return gobCodec{}.Marshal(v)
}

func unmarshalGob(data []byte, v interface{}) error {
	return gobCodec{}.Unmarshal(data, v)
}
