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

package rdma_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/rdma"
)

func TestReadWriteRoundtrip(t *testing.T) {
	reg := rdma.NewRegistry()
	slab := make([]byte, 64)
	h := reg.Register(slab)

	conn := rdma.NewLoopbackConn(reg)
	ctx := context.Background()

	_, err := conn.Write(ctx, h, 8, []byte("hello")).Get(ctx)
	require.NoError(t, err)

	out := make([]byte, 5)
	_, err = conn.Read(ctx, h, 8, out).Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "hello", string(out))
}

func TestReadOutOfBoundsFails(t *testing.T) {
	reg := rdma.NewRegistry()
	h := reg.Register(make([]byte, 4))
	conn := rdma.NewLoopbackConn(reg)
	ctx := context.Background()

	_, err := conn.Read(ctx, h, 0, make([]byte, 16)).Get(ctx)
	require.Error(t, err)
}

func TestDeregisterInvalidatesHandle(t *testing.T) {
	reg := rdma.NewRegistry()
	h := reg.Register(make([]byte, 8))
	reg.Deregister(h)

	conn := rdma.NewLoopbackConn(reg)
	ctx := context.Background()
	_, err := conn.Read(ctx, h, 0, make([]byte, 1)).Get(ctx)
	require.Error(t, err)
}

func TestBatchSubmitRunsQueuedOpsInOrder(t *testing.T) {
	reg := rdma.NewRegistry()
	slab := make([]byte, 32)
	h := reg.Register(slab)
	conn := rdma.NewLoopbackConn(reg)
	ctx := context.Background()

	b := conn.NewBatch()
	out1 := make([]byte, 4)
	out2 := make([]byte, 4)
	b.QueueWrite(h, 0, []byte("abcd"))
	b.QueueRead(h, 0, out1)
	b.QueueWrite(h, 4, []byte("efgh"))
	b.QueueRead(h, 4, out2)

	_, err := b.Submit(ctx).Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(out1))
	require.Equal(t, "efgh", string(out2))
}

func TestBatchSubmitFailsOnBadOp(t *testing.T) {
	reg := rdma.NewRegistry()
	h := reg.Register(make([]byte, 4))
	conn := rdma.NewLoopbackConn(reg)
	ctx := context.Background()

	b := conn.NewBatch()
	b.QueueWrite(h, 0, make([]byte, 64))
	_, err := b.Submit(ctx).Get(ctx)
	require.Error(t, err)
}
