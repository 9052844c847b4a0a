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

package conn_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/conn"
	"github.com/rackmem/rackmem/pkg/gaddr"
)

func TestAllocateAssignsIncreasingIDs(t *testing.T) {
	tbl := conn.New()
	id1 := tbl.Allocate(&conn.Entry{RackID: 0})
	id2 := tbl.Allocate(&conn.Entry{RackID: 1})
	require.NotEqual(t, gaddr.InvalidMacID, id1)
	require.NotEqual(t, id1, id2)
}

func TestFindAfterPut(t *testing.T) {
	tbl := conn.New()
	tbl.Put(42, &conn.Entry{RackID: 3, RPCAddress: "10.0.0.1:7001"})

	e, ok := tbl.Find(42)
	require.True(t, ok)
	require.Equal(t, int32(3), e.RackID)
}

func TestGetMissingReturnsError(t *testing.T) {
	tbl := conn.New()
	_, err := tbl.Get(99)
	require.Error(t, err)
}

func TestRemoveDropsEntry(t *testing.T) {
	tbl := conn.New()
	id := tbl.Allocate(&conn.Entry{})
	tbl.Remove(id)
	_, ok := tbl.Find(id)
	require.False(t, ok)
}

func TestForEachVisitsAllEntries(t *testing.T) {
	tbl := conn.New()
	tbl.Allocate(&conn.Entry{RackID: 0})
	tbl.Allocate(&conn.Entry{RackID: 1})
	tbl.Allocate(&conn.Entry{RackID: 2})

	seen := 0
	tbl.ForEach(func(id gaddr.MacID, e *conn.Entry) bool {
		seen++
		return true
	})
	require.Equal(t, 3, seen)
	require.Equal(t, 3, tbl.Len())
}
