// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"

	"github.com/remora-foundation/remora/transport"
	"github.com/remora-foundation/remora/wire"
)

// Compile-time check: *Registry is a transport handler.
var _ transport.Handler = (*Registry)(nil)

// HandleRequest routes one decoded wire request to the operation
// named by its Type. Transports call this for every inbound request;
// origin identifies the requesting endpoint and owns any handles the
// request creates.
//
// getSingleton and getSingletonSync share one implementation here:
// the blocking behavior of the sync variant is a consumer-side
// property (the consumer cannot proceed until the reply exists), not
// a host-side one.
func (r *Registry) HandleRequest(ctx context.Context, origin transport.Origin, req wire.Request) (any, error) {
	switch req.Type {
	case wire.TypeNew:
		return r.Create(ctx, origin, req.ClassName, req.Args)
	case wire.TypeGetSingleton, wire.TypeGetSingletonSync:
		return r.GetSingleton(ctx, origin, req.ClassName, req.Args)
	case wire.TypeCall:
		return r.CallMethod(ctx, req.ID, req.Method, req.Args)
	case wire.TypeRelease:
		r.Release(req.IDs)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}
}
