// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botservice

import (
	"context"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/api"
	"github.com/primo-rp/communitybot/internal/botdb"
	"github.com/primo-rp/communitybot/pkg/schema"
	"google.golang.org/grpc/codes"
)

var actionStatus = map[string]schema.MemberStatus{
	schema.MemberActionPromote: schema.MemberAdmin,
	schema.MemberActionDemote:  schema.MemberActive,
	schema.MemberActionBan:     schema.MemberBanned,
	schema.MemberActionUnban:   schema.MemberActive,
}

// MemberStatus changes a member's standing. Banning releases every role the
// member holds and refreshes the pinned rosters.
func MemberStatus(ctx context.Context, req schema.MemberStatusRequest, s *Service) (*schema.MemberStatusResponse, error) {
	to, ok := actionStatus[req.Action]
	if !ok {
		return nil, api.AsStatus(codes.InvalidArgument, errors.Errorf("unknown action %q", req.Action))
	}
	if req.Action == schema.MemberActionUnban {
		m, err := s.Store.Member(ctx, req.Member)
		if errors.Is(err, botdb.ErrNotFound) {
			return nil, api.AsStatus(codes.NotFound, errors.Wrap(err, "fetching member"))
		} else if err != nil {
			return nil, api.AsStatus(codes.Internal, errors.Wrap(err, "fetching member"))
		}
		if m.Status != schema.MemberBanned {
			return nil, api.AsStatus(codes.FailedPrecondition, errors.Errorf("member %d is not banned", req.Member))
		}
	}
	m, err := s.Store.SetStatus(ctx, req.Member, to)
	switch {
	case errors.Is(err, botdb.ErrNotFound):
		return nil, api.AsStatus(codes.NotFound, errors.Wrap(err, "changing status"))
	case errors.Is(err, botdb.ErrInvalidTransition):
		return nil, api.AsStatus(codes.FailedPrecondition, errors.Wrap(err, "changing status"))
	case err != nil:
		return nil, api.AsStatus(codes.Internal, errors.Wrap(err, "changing status"))
	}
	if to == schema.MemberBanned {
		released, err := s.Store.ReleaseRolesByMember(ctx, req.Member)
		if err != nil {
			return nil, api.AsStatus(codes.Internal, errors.Wrap(err, "releasing roles"))
		}
		if released > 0 {
			if err := s.refreshAllRosters(ctx); err != nil {
				return nil, api.AsStatus(codes.Internal, err)
			}
		}
	}
	return &schema.MemberStatusResponse{Member: m.ID, Status: m.Status}, nil
}
