// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botservice

import (
	"context"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/api"
	"github.com/primo-rp/communitybot/internal/botdb"
	"github.com/primo-rp/communitybot/pkg/roster"
	"github.com/primo-rp/communitybot/pkg/schema"
	"google.golang.org/grpc/codes"
)

// Role assigns or releases a character role and refreshes the affected
// game's pinned roster.
func Role(ctx context.Context, req schema.RoleRequest, s *Service) (*schema.RoleResponse, error) {
	var role schema.Role
	var err error
	switch req.Action {
	case schema.RoleActionAssign:
		role, err = s.Store.AssignRole(ctx, req.Role, req.Member)
	case schema.RoleActionRelease:
		role, err = s.Store.ReleaseRole(ctx, req.Role)
	default:
		return nil, api.AsStatus(codes.InvalidArgument, errors.Errorf("unknown action %q", req.Action))
	}
	switch {
	case errors.Is(err, botdb.ErrNotFound):
		return nil, api.AsStatus(codes.NotFound, err)
	case errors.Is(err, botdb.ErrRoleOccupied), errors.Is(err, botdb.ErrMemberBanned):
		return nil, api.AsStatus(codes.FailedPrecondition, err)
	case err != nil:
		return nil, api.AsStatus(codes.Internal, err)
	}
	if game, err := roster.GameFor(role.Region); err == nil {
		if _, err := s.refreshRoster(ctx, game); err != nil {
			return nil, api.AsStatus(codes.Internal, err)
		}
	}
	return &schema.RoleResponse{Role: role.Name, Occupant: role.Occupant}, nil
}

// RosterUpdate re-renders the pinned roster for the requested game, or for
// every game when none is named.
func RosterUpdate(ctx context.Context, req schema.RosterUpdateRequest, s *Service) (*schema.RosterUpdateResponse, error) {
	games := roster.Games
	if req.Game != "" {
		games = []roster.Game{roster.Game(req.Game)}
	}
	var updated []string
	for _, game := range games {
		changed, err := s.refreshRoster(ctx, game)
		if err != nil {
			return nil, api.AsStatus(codes.Internal, errors.Wrapf(err, "refreshing %s roster", game))
		}
		if changed {
			updated = append(updated, string(game))
		}
	}
	return &schema.RosterUpdateResponse{Updated: updated}, nil
}
