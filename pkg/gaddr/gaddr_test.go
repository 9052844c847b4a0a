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

package gaddr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/gaddr"
)

func TestMakeRoundtrip(t *testing.T) {
	g := gaddr.Make(100, 0x1000)
	require.Equal(t, gaddr.PageID(100), g.PageID())
	require.Equal(t, uint64(0x1000), g.Offset())
}

func TestOffsetMasking(t *testing.T) {
	g := gaddr.Make(1, gaddr.PageSize+42)
	require.Equal(t, gaddr.PageID(1), g.PageID())
	require.Equal(t, uint64(42), g.Offset())
}

func TestInvalidPageID(t *testing.T) {
	require.False(t, gaddr.InvalidPageID.IsValid())
	require.True(t, gaddr.PageID(1).IsValid())
}

func TestPageSize(t *testing.T) {
	require.Equal(t, uint64(2*1024*1024), uint64(gaddr.PageSize))
}
