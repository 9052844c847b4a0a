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

package rackerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/rackerr"
)

func TestIsKind(t *testing.T) {
	err := rackerr.NotFound("page %d", 7)
	require.True(t, rackerr.IsKind(err, rackerr.KindNotFound))
	require.False(t, rackerr.IsKind(err, rackerr.KindUnsupported))
}

func TestTransportErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := rackerr.TransportError(cause, "getPageRDMARef(%d)", 100)
	require.True(t, rackerr.IsKind(err, rackerr.KindTransportError))
	require.Contains(t, err.Error(), "connection reset")
}

func TestErrorsIsMatchesByKindNotValue(t *testing.T) {
	a := rackerr.Unsupported("freePage")
	b := rackerr.Unsupported("alloc")
	require.True(t, errors.Is(a, b))
}
