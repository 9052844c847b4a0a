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

package rpcapi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rpcapi"
)

func TestOpString(t *testing.T) {
	require.Equal(t, "read", rpcapi.OpRead.String())
	require.Equal(t, "write", rpcapi.OpWrite.String())
	require.Equal(t, "write_raw", rpcapi.OpWriteRaw.String())
}

func TestLatchRemotePageRequestNoSwapUsesInvalidPageID(t *testing.T) {
	req := rpcapi.LatchRemotePageRequest{
		MacID:  1,
		PageID: 7,
	}
	require.Equal(t, gaddr.InvalidPageID, req.PageIDSwap)
}

func TestTryMigratePageRequestCarriesHotScore(t *testing.T) {
	req := rpcapi.TryMigratePageRequest{HotScore: 4.0}
	require.Equal(t, 4.0, req.HotScore)
}
