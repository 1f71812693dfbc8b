// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botservice

import (
	"context"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/api"
	"github.com/primo-rp/communitybot/pkg/schema"
	"google.golang.org/grpc/codes"
)

// Webhook dispatches one Telegram update. Handler errors are consumed by
// the middleware chain, so a non-OK status here means the update could not
// be routed at all.
func Webhook(ctx context.Context, req schema.WebhookRequest, s *Service) (*api.NoReturn, error) {
	if err := s.Router().Dispatch(ctx, req.Update); err != nil {
		return nil, api.AsStatus(codes.Internal, errors.Wrap(err, "dispatching update"))
	}
	return &api.NoReturn{}, nil
}
