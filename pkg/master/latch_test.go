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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/gaddr"
)

func TestLatchRemotePageReturnsCurrentOwner(t *testing.T) {
	d := NewDirectory()
	id := d.AllocateIDs(1)
	d.AddPage(id, 3, 9)

	m := NewLatchManager(d)
	rackID, daemonID, err := m.LatchRemotePage(1, false, id, gaddr.InvalidPageID)
	require.NoError(t, err)
	require.Equal(t, int32(3), rackID)
	require.Equal(t, gaddr.MacID(9), daemonID)
	require.NoError(t, m.UnLatchRemotePage(1, id))
}

func TestExclusiveLatchExcludesAnotherExclusive(t *testing.T) {
	d := NewDirectory()
	id := d.AllocateIDs(1)
	d.AddPage(id, 1, 1)
	m := NewLatchManager(d)

	_, _, err := m.LatchRemotePage(1, true, id, gaddr.InvalidPageID)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		_, _, err := m.LatchRemotePage(2, true, id, gaddr.InvalidPageID)
		require.NoError(t, err)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second exclusive latch should have waited")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, m.UnLatchRemotePage(1, id))
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second exclusive latch should have been granted after release")
	}
	require.NoError(t, m.UnLatchRemotePage(2, id))
}

func TestUnLatchPageAndSwapUpdatesBothOwnersBeforeReleasing(t *testing.T) {
	d := NewDirectory()
	pid := d.AllocateIDs(1)
	swapID := d.AllocateIDs(1)
	d.AddPage(pid, 1, 10)
	d.AddPage(swapID, 2, 20)

	m := NewLatchManager(d)
	_, _, err := m.LatchRemotePage(5, true, pid, swapID)
	require.NoError(t, err)

	err = m.UnLatchPageAndSwap(5, pid, 2, 20, swapID, 1, 10)
	require.NoError(t, err)

	metaP, _ := d.FindPage(pid)
	metaS, _ := d.FindPage(swapID)
	rackID, daemonID := metaP.Owner()
	require.Equal(t, int32(2), rackID)
	require.Equal(t, gaddr.MacID(20), daemonID)
	rackIDSwap, daemonIDSwap := metaS.Owner()
	require.Equal(t, int32(1), rackIDSwap)
	require.Equal(t, gaddr.MacID(10), daemonIDSwap)
}

func TestUnLatchRemotePageWithoutHoldingIsNotFound(t *testing.T) {
	d := NewDirectory()
	id := d.AllocateIDs(1)
	d.AddPage(id, 1, 1)
	m := NewLatchManager(d)
	require.Error(t, m.UnLatchRemotePage(42, id))
}
