// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the stored entities and service message types.
package schema

import (
	"time"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/pkg/roster"
	"github.com/primo-rp/communitybot/pkg/telegram"
)

// MemberStatus is a community member's standing.
type MemberStatus string

const (
	MemberActive MemberStatus = "active"
	MemberAdmin  MemberStatus = "admin"
	MemberBanned MemberStatus = "banned"
)

// Member is a registered community member.
type Member struct {
	ID       int64        `firestore:"id"`
	Username string       `firestore:"username,omitempty"`
	FullName string       `firestore:"full_name,omitempty"`
	Status   MemberStatus `firestore:"status"`
	Created  time.Time    `firestore:"created"`
	Updated  time.Time    `firestore:"updated"`
}

// MemberMessage is one counted group message, stored under its member.
type MemberMessage struct {
	Member  int64     `firestore:"member"`
	Text    string    `firestore:"text"`
	Created time.Time `firestore:"created"`
}

// MessageStats are per-member message counts over the standard windows.
// All windows are UTC-aligned; weeks start on Monday.
type MessageStats struct {
	Day   int64 `json:"day"`
	Week  int64 `json:"week"`
	Month int64 `json:"month"`
	Total int64 `json:"total"`
}

// Role is a character role. Occupant is 0 while the role is free.
type Role struct {
	Name     string        `firestore:"name"`
	Region   roster.Region `firestore:"region"`
	Occupant int64         `firestore:"occupant"`
}

// Occupied reports whether the role is taken.
func (r Role) Occupied() bool {
	return r.Occupant != 0
}

// RegionStats count roles per region.
type RegionStats struct {
	Region   roster.Region `json:"region"`
	Total    int           `json:"total"`
	Occupied int           `json:"occupied"`
	Free     int           `json:"free"`
}

// RosterMessage records the pinned roster message for one game so it can be
// re-rendered in place when occupancy changes.
type RosterMessage struct {
	Game      roster.Game `firestore:"game"`
	Chat      int64       `firestore:"chat"`
	MessageID int64       `firestore:"message_id"`
	Text      string      `firestore:"text"`
}

// QuestionnaireState tracks an application through its lifecycle.
type QuestionnaireState string

const (
	// Draft states, in fill-in order.
	QuestionnaireRole       QuestionnaireState = "role"
	QuestionnaireSortol     QuestionnaireState = "sortol"
	QuestionnaireCodePhrase QuestionnaireState = "code_phrase"
	QuestionnairePreview    QuestionnaireState = "preview"

	QuestionnaireSubmitted QuestionnaireState = "submitted"
	QuestionnaireAccepted  QuestionnaireState = "accepted"
	QuestionnaireRejected  QuestionnaireState = "rejected"
	QuestionnaireCancelled QuestionnaireState = "cancelled"
)

// Questionnaire is a membership application.
type Questionnaire struct {
	ID         string             `firestore:"id"`
	Member     int64              `firestore:"member"`
	ThreadID   int64              `firestore:"thread_id,omitempty"`
	Role       string             `firestore:"role,omitempty"`
	Sortol     string             `firestore:"sortol,omitempty"`
	CodePhrase string             `firestore:"code_phrase,omitempty"`
	State      QuestionnaireState `firestore:"state"`
	Created    time.Time          `firestore:"created"`
	Updated    time.Time          `firestore:"updated"`
}

// WebhookRequest wraps one Telegram update for the webhook endpoint.
type WebhookRequest struct {
	Update *telegram.Update `form:",required"`
}

func (r WebhookRequest) Validate() error {
	if r.Update == nil {
		return errors.New("update required")
	}
	return nil
}

// BroadcastRequest asks the service to fan an announcement out to members.
type BroadcastRequest struct {
	Text          string `form:",required"`
	IncludeAdmins bool   `form:""`
}

func (r BroadcastRequest) Validate() error {
	if r.Text == "" {
		return errors.New("text required")
	}
	return nil
}

// BroadcastResponse reports how many deliveries were enqueued.
type BroadcastResponse struct {
	Enqueued int `json:"enqueued"`
}

// BroadcastSendRequest delivers one broadcast message; it is the task queue
// target payload.
type BroadcastSendRequest struct {
	Chat int64  `form:",required"`
	Text string `form:",required"`
}

func (r BroadcastSendRequest) Validate() error {
	if r.Chat == 0 {
		return errors.New("chat required")
	}
	if r.Text == "" {
		return errors.New("text required")
	}
	return nil
}

// RosterUpdateRequest re-renders the pinned roster for one game, or all
// games when Game is empty.
type RosterUpdateRequest struct {
	Game string `form:""`
}

func (r RosterUpdateRequest) Validate() error {
	switch roster.Game(r.Game) {
	case "", roster.GameGenshin, roster.GameHSR:
		return nil
	}
	return errors.Errorf("unknown game %q", r.Game)
}

// RosterUpdateResponse lists the games whose pinned message was edited.
type RosterUpdateResponse struct {
	Updated []string `json:"updated"`
}

// Member status actions.
const (
	MemberActionPromote = "promote"
	MemberActionDemote  = "demote"
	MemberActionBan     = "ban"
	MemberActionUnban   = "unban"
)

// MemberStatusRequest changes a member's standing.
type MemberStatusRequest struct {
	Member int64  `form:",required"`
	Action string `form:",required"`
}

func (r MemberStatusRequest) Validate() error {
	if r.Member == 0 {
		return errors.New("member required")
	}
	switch r.Action {
	case MemberActionPromote, MemberActionDemote, MemberActionBan, MemberActionUnban:
		return nil
	}
	return errors.Errorf("unknown action %q", r.Action)
}

// MemberStatusResponse returns the member's resulting standing.
type MemberStatusResponse struct {
	Member int64        `json:"member"`
	Status MemberStatus `json:"status"`
}

// Role actions.
const (
	RoleActionAssign  = "assign"
	RoleActionRelease = "release"
)

// RoleRequest assigns or releases a character role.
type RoleRequest struct {
	Action string `form:",required"`
	Role   string `form:",required"`
	Member int64  `form:""`
}

func (r RoleRequest) Validate() error {
	switch r.Action {
	case RoleActionAssign:
		if r.Member == 0 {
			return errors.New("member required for assign")
		}
	case RoleActionRelease:
	default:
		return errors.Errorf("unknown action %q", r.Action)
	}
	if r.Role == "" {
		return errors.New("role required")
	}
	return nil
}

// RoleResponse returns the role's resulting occupancy.
type RoleResponse struct {
	Role     string `json:"role"`
	Occupant int64  `json:"occupant,omitempty"`
}
