// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botservice

import (
	"context"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/api"
	"github.com/primo-rp/communitybot/pkg/schema"
	"github.com/primo-rp/communitybot/pkg/telegram"
	"google.golang.org/grpc/codes"
)

// Broadcast fans an announcement out to the community, one delivery task
// per member. Banned members are never addressed.
func Broadcast(ctx context.Context, req schema.BroadcastRequest, s *Service) (*schema.BroadcastResponse, error) {
	if s.Queue == nil {
		return nil, api.AsStatus(codes.FailedPrecondition, errors.New("task queue not configured"))
	}
	ids, err := s.Store.MemberIDs(ctx, req.IncludeAdmins)
	if err != nil {
		return nil, api.AsStatus(codes.Internal, errors.Wrap(err, "listing members"))
	}
	var enqueued int
	for _, id := range ids {
		msg := schema.BroadcastSendRequest{Chat: id, Text: req.Text}
		if _, err := s.Queue.Add(ctx, s.TaskURL, msg); err != nil {
			return nil, api.AsStatus(codes.Internal, errors.Wrapf(err, "enqueueing delivery to %d", id))
		}
		enqueued++
	}
	return &schema.BroadcastResponse{Enqueued: enqueued}, nil
}

// BroadcastSend delivers one broadcast message. Telegram flood control
// responses grow the limiter backoff and surface as ResourceExhausted so
// the task queue redelivers after the server-provided delay.
func BroadcastSend(ctx context.Context, req schema.BroadcastSendRequest, s *Service) (*api.NoReturn, error) {
	if err := s.Limiter.Wait(ctx); err != nil {
		return nil, api.AsStatus(codes.Canceled, errors.Wrap(err, "waiting for rate limiter"))
	}
	_, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{
		Chat:      telegram.ChatID(req.Chat),
		Text:      req.Text,
		ParseMode: "HTML",
	})
	if retry, ok := telegram.IsTooManyRequests(err); ok {
		s.Limiter.Backoff()
		return nil, api.AsStatus(codes.ResourceExhausted, errors.Wrap(err, "flood control"), api.RetryAfter(retry))
	} else if err != nil {
		return nil, api.AsStatus(codes.Internal, errors.Wrap(err, "sending broadcast"))
	}
	s.Limiter.Success()
	return &api.NoReturn{}, nil
}
