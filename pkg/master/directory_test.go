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

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/gaddr"
)

func TestAllocateIDsReturnsDisjointRanges(t *testing.T) {
	d := NewDirectory()
	a := d.AllocateIDs(4)
	b := d.AllocateIDs(3)
	require.Equal(t, a+4, b)
}

func TestAddPageThenFindPage(t *testing.T) {
	d := NewDirectory()
	id := d.AllocateIDs(1)
	d.AddPage(id, 2, 7)

	meta, err := d.FindPage(id)
	require.NoError(t, err)
	rackID, daemonID := meta.Owner()
	require.Equal(t, int32(2), rackID)
	require.Equal(t, gaddr.MacID(7), daemonID)
}

func TestFindPageMissingIsNotFound(t *testing.T) {
	d := NewDirectory()
	_, err := d.FindPage(999)
	require.Error(t, err)
}

func TestRemovePageDropsEntry(t *testing.T) {
	d := NewDirectory()
	id := d.AllocateIDs(1)
	d.AddPage(id, 1, 1)
	d.RemovePage(id)
	_, err := d.FindPage(id)
	require.Error(t, err)
}
