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

// Method names are the Router dispatch keys both client stubs and server
// registrations agree on. They are not gRPC method names — every call
// actually goes out as the single Dispatch RPC below — but pick the same
// "Service.Method" shape so logs and traces read the way a generated
// service's would.
const (
	MethodJoinDaemon          = "Master.JoinDaemon"
	MethodAllocPage           = "Master.AllocPage"
	MethodFreePage            = "Master.FreePage"
	MethodLatchRemotePage     = "Master.LatchRemotePage"
	MethodUnLatchRemotePage   = "Master.UnLatchRemotePage"
	MethodUnLatchPageAndSwap  = "Master.UnLatchPageAndSwap"
	MethodJoinClient          = "Master.JoinClient"

	MethodGetPageRDMARef  = "Daemon.GetPageRDMARef"
	MethodDelPageRDMARef  = "Daemon.DelPageRDMARef"
	MethodTryMigratePage  = "Daemon.TryMigratePage"
	MethodAllocPageMemory = "Daemon.AllocPageMemory"

	MethodJoinRack           = "DaemonClient.JoinRack"
	MethodGetPageRefOrProxy  = "DaemonClient.GetPageRefOrProxy"
	MethodClientAllocPage    = "DaemonClient.ClientAllocPage"

	MethodRemovePageCache       = "Client.RemovePageCache"
	MethodGetCurrentWriteData   = "Client.GetCurrentWriteData"
	MethodGetPagePastAccessFreq = "Client.GetPagePastAccessFreq"

	// dispatchFullMethod is the one real gRPC method every call above
	// actually travels over.
	dispatchFullMethod = "/rackmem.transport.Transport/Dispatch"
)
