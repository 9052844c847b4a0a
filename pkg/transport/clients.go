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
	"context"

	"github.com/rackmem/rackmem/pkg/rpcapi"
)

// MasterClient implements rpcapi.MasterService over a dialed Client,
// the stub a daemon or client process calls against the master.
type MasterClient struct{ C *Client }

func (m MasterClient) JoinDaemon(ctx context.Context, req *rpcapi.JoinDaemonRequest) (*rpcapi.JoinDaemonReply, error) {
	return Invoke[rpcapi.JoinDaemonReply](ctx, m.C, MethodJoinDaemon, req)
}

func (m MasterClient) AllocPage(ctx context.Context, req *rpcapi.AllocPageRequest) (*rpcapi.AllocPageReply, error) {
	return Invoke[rpcapi.AllocPageReply](ctx, m.C, MethodAllocPage, req)
}

func (m MasterClient) FreePage(ctx context.Context, req *rpcapi.FreePageRequest) (*rpcapi.FreePageReply, error) {
	return Invoke[rpcapi.FreePageReply](ctx, m.C, MethodFreePage, req)
}

func (m MasterClient) LatchRemotePage(ctx context.Context, req *rpcapi.LatchRemotePageRequest) (*rpcapi.LatchRemotePageReply, error) {
	return Invoke[rpcapi.LatchRemotePageReply](ctx, m.C, MethodLatchRemotePage, req)
}

func (m MasterClient) UnLatchRemotePage(ctx context.Context, req *rpcapi.UnLatchRemotePageRequest) (*rpcapi.UnLatchRemotePageReply, error) {
	return Invoke[rpcapi.UnLatchRemotePageReply](ctx, m.C, MethodUnLatchRemotePage, req)
}

func (m MasterClient) UnLatchPageAndSwap(ctx context.Context, req *rpcapi.UnLatchPageAndSwapRequest) (*rpcapi.UnLatchPageAndSwapReply, error) {
	return Invoke[rpcapi.UnLatchPageAndSwapReply](ctx, m.C, MethodUnLatchPageAndSwap, req)
}

func (m MasterClient) JoinClient(ctx context.Context, req *rpcapi.JoinClientRequest) (*rpcapi.JoinClientReply, error) {
	return Invoke[rpcapi.JoinClientReply](ctx, m.C, MethodJoinClient, req)
}

// DaemonClient implements rpcapi.DaemonService over a dialed Client, the
// stub one daemon calls against a peer daemon.
type DaemonClient struct{ C *Client }

func (d DaemonClient) GetPageRDMARef(ctx context.Context, req *rpcapi.GetPageRDMARefRequest) (*rpcapi.GetPageRDMARefReply, error) {
	return Invoke[rpcapi.GetPageRDMARefReply](ctx, d.C, MethodGetPageRDMARef, req)
}

func (d DaemonClient) DelPageRDMARef(ctx context.Context, req *rpcapi.DelPageRDMARefRequest) (*rpcapi.DelPageRDMARefReply, error) {
	return Invoke[rpcapi.DelPageRDMARefReply](ctx, d.C, MethodDelPageRDMARef, req)
}

func (d DaemonClient) TryMigratePage(ctx context.Context, req *rpcapi.TryMigratePageRequest) (*rpcapi.TryMigratePageReply, error) {
	return Invoke[rpcapi.TryMigratePageReply](ctx, d.C, MethodTryMigratePage, req)
}

func (d DaemonClient) AllocPageMemory(ctx context.Context, req *rpcapi.AllocPageMemoryRequest) (*rpcapi.AllocPageMemoryReply, error) {
	return Invoke[rpcapi.AllocPageMemoryReply](ctx, d.C, MethodAllocPageMemory, req)
}

// DaemonFacingClient implements rpcapi.ClientFacingService, the stub a
// client process calls against its rack's daemon.
type DaemonFacingClient struct{ C *Client }

func (d DaemonFacingClient) JoinRack(ctx context.Context, req *rpcapi.JoinRackRequest) (*rpcapi.JoinRackReply, error) {
	return Invoke[rpcapi.JoinRackReply](ctx, d.C, MethodJoinRack, req)
}

func (d DaemonFacingClient) GetPageRefOrProxy(ctx context.Context, req *rpcapi.GetPageRefOrProxyRequest) (*rpcapi.GetPageRefOrProxyReply, error) {
	return Invoke[rpcapi.GetPageRefOrProxyReply](ctx, d.C, MethodGetPageRefOrProxy, req)
}

func (d DaemonFacingClient) ClientAllocPage(ctx context.Context, req *rpcapi.ClientAllocPageRequest) (*rpcapi.ClientAllocPageReply, error) {
	return Invoke[rpcapi.ClientAllocPageReply](ctx, d.C, MethodClientAllocPage, req)
}

// ClientFacingClient implements rpcapi.ClientService, the stub a daemon
// calls against a client in its rack (invalidation, write pull-back).
type ClientFacingClient struct{ C *Client }

func (c ClientFacingClient) RemovePageCache(ctx context.Context, req *rpcapi.RemovePageCacheRequest) (*rpcapi.RemovePageCacheReply, error) {
	return Invoke[rpcapi.RemovePageCacheReply](ctx, c.C, MethodRemovePageCache, req)
}

func (c ClientFacingClient) GetCurrentWriteData(ctx context.Context, req *rpcapi.GetCurrentWriteDataRequest) (*rpcapi.GetCurrentWriteDataReply, error) {
	return Invoke[rpcapi.GetCurrentWriteDataReply](ctx, c.C, MethodGetCurrentWriteData, req)
}

func (c ClientFacingClient) GetPagePastAccessFreq(ctx context.Context, req *rpcapi.GetPagePastAccessFreqRequest) (*rpcapi.GetPagePastAccessFreqReply, error) {
	return Invoke[rpcapi.GetPagePastAccessFreqReply](ctx, c.C, MethodGetPagePastAccessFreq, req)
}
