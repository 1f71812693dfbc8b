// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package botdb stores members, message counts, character roles, pinned
// rosters, and questionnaires.
package botdb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/pkg/roster"
	"github.com/primo-rp/communitybot/pkg/schema"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoleOccupied is returned when assigning a role somebody holds.
	ErrRoleOccupied = errors.New("role occupied")
	// ErrMemberBanned is returned when a banned member would gain a role.
	ErrMemberBanned = errors.New("member banned")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the bot's persistence interface.
type Store interface {
	// EnsureMember registers the member if absent and refreshes their
	// name fields if present. It never lowers an existing status.
	EnsureMember(ctx context.Context, m schema.Member) (schema.Member, error)
	Member(ctx context.Context, id int64) (schema.Member, error)
	// SetStatus applies a status change. Allowed transitions are
	// active<->admin, any->banned, and banned->active.
	SetStatus(ctx context.Context, id int64, to schema.MemberStatus) (schema.Member, error)
	// MemberIDs lists active members ascending by ID, optionally
	// including admins. Banned members are never listed.
	MemberIDs(ctx context.Context, includeAdmins bool) ([]int64, error)

	// AddMessage counts one group message, registering the member first
	// if needed.
	AddMessage(ctx context.Context, msg schema.MemberMessage) error
	MessageStats(ctx context.Context, member int64, now time.Time) (schema.MessageStats, error)

	// InitRoles creates any missing roles, leaving existing ones (and
	// their occupants) untouched. It returns the number created.
	InitRoles(ctx context.Context, defs []roster.Def) (int, error)
	Role(ctx context.Context, name string) (schema.Role, error)
	AssignRole(ctx context.Context, name string, member int64) (schema.Role, error)
	ReleaseRole(ctx context.Context, name string) (schema.Role, error)
	// ReleaseRolesByMember frees every role the member holds and returns
	// how many were freed.
	ReleaseRolesByMember(ctx context.Context, member int64) (int, error)
	RolesByMember(ctx context.Context, member int64) ([]schema.Role, error)
	RolesByRegion(ctx context.Context, region roster.Region) ([]schema.Role, error)
	// RoleOccupancy maps every role name of one game to whether it is
	// taken. Covering free roles too lets a roster re-render strip marks
	// left by a release or a ban.
	RoleOccupancy(ctx context.Context, game roster.Game) (map[string]bool, error)
	RegionStats(ctx context.Context, game roster.Game) ([]schema.RegionStats, error)

	SaveRoster(ctx context.Context, m schema.RosterMessage) error
	Roster(ctx context.Context, game roster.Game) (schema.RosterMessage, error)

	SaveQuestionnaire(ctx context.Context, q schema.Questionnaire) error
	Questionnaire(ctx context.Context, id string) (schema.Questionnaire, error)
	// DraftQuestionnaire returns the member's in-progress application,
	// if any. Submitted and decided applications are not drafts.
	DraftQuestionnaire(ctx context.Context, member int64) (schema.Questionnaire, error)
	QuestionnaireByThread(ctx context.Context, thread int64) (schema.Questionnaire, error)
}

// validTransition reports whether a member may move between two statuses.
func validTransition(from, to schema.MemberStatus) bool {
	if to == schema.MemberBanned {
		return true
	}
	switch from {
	case schema.MemberActive:
		return to == schema.MemberAdmin
	case schema.MemberAdmin:
		return to == schema.MemberActive
	case schema.MemberBanned:
		return to == schema.MemberActive
	}
	return false
}

// draft reports whether the questionnaire is still being filled in.
func draft(s schema.QuestionnaireState) bool {
	switch s {
	case schema.QuestionnaireRole, schema.QuestionnaireSortol, schema.QuestionnaireCodePhrase, schema.QuestionnairePreview:
		return true
	}
	return false
}

// startOfDay returns UTC midnight of t's day.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek returns UTC midnight of the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	d := startOfDay(t)
	return d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
}

// startOfMonth returns UTC midnight of the first of t's month.
func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
