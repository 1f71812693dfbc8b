// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botdb

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/pkg/roster"
	"github.com/primo-rp/communitybot/pkg/schema"
)

func TestEnsureMember(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	m, err := s.EnsureMember(ctx, schema.Member{ID: 100, Username: "venti", FullName: "Venti"})
	if err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	if m.Status != schema.MemberActive {
		t.Errorf("new member status: got %s, want %s", m.Status, schema.MemberActive)
	}
	// Promotion via registration sticks.
	if m, err = s.EnsureMember(ctx, schema.Member{ID: 100, Status: schema.MemberAdmin}); err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	if m.Status != schema.MemberAdmin {
		t.Errorf("promoted status: got %s, want %s", m.Status, schema.MemberAdmin)
	}
	// Plain re-registration never demotes and keeps name fields.
	if m, err = s.EnsureMember(ctx, schema.Member{ID: 100}); err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	if m.Status != schema.MemberAdmin {
		t.Errorf("re-registered status: got %s, want %s", m.Status, schema.MemberAdmin)
	}
	if m.Username != "venti" || m.FullName != "Venti" {
		t.Errorf("re-registered names: got %q/%q, want venti/Venti", m.Username, m.FullName)
	}
	// Registration never unbans.
	if _, err := s.SetStatus(ctx, 100, schema.MemberBanned); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if m, err = s.EnsureMember(ctx, schema.Member{ID: 100}); err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	if m.Status != schema.MemberBanned {
		t.Errorf("banned re-registration status: got %s, want %s", m.Status, schema.MemberBanned)
	}
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name string
		from schema.MemberStatus
		to   schema.MemberStatus
		err  error
	}{
		{name: "promote", from: schema.MemberActive, to: schema.MemberAdmin},
		{name: "demote", from: schema.MemberAdmin, to: schema.MemberActive},
		{name: "ban active", from: schema.MemberActive, to: schema.MemberBanned},
		{name: "ban admin", from: schema.MemberAdmin, to: schema.MemberBanned},
		{name: "unban", from: schema.MemberBanned, to: schema.MemberActive},
		{name: "banned to admin", from: schema.MemberBanned, to: schema.MemberAdmin, err: ErrInvalidTransition},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewMemoryStore()
			if _, err := s.EnsureMember(ctx, schema.Member{ID: 7, Status: tc.from}); err != nil {
				t.Fatalf("EnsureMember: %v", err)
			}
			if tc.from == schema.MemberBanned {
				if _, err := s.SetStatus(ctx, 7, schema.MemberBanned); err != nil {
					t.Fatalf("SetStatus(banned): %v", err)
				}
			}
			m, err := s.SetStatus(ctx, 7, tc.to)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("SetStatus: got %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetStatus: %v", err)
			}
			if m.Status != tc.to {
				t.Errorf("status: got %s, want %s", m.Status, tc.to)
			}
		})
	}
	t.Run("unknown member", func(t *testing.T) {
		s := NewMemoryStore()
		if _, err := s.SetStatus(ctx, 404, schema.MemberBanned); !errors.Is(err, ErrNotFound) {
			t.Fatalf("SetStatus: got %v, want %v", err, ErrNotFound)
		}
	})
}

func TestMemberIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, m := range []schema.Member{
		{ID: 30},
		{ID: 10},
		{ID: 20, Status: schema.MemberAdmin},
		{ID: 40, Status: schema.MemberBanned},
	} {
		if _, err := s.EnsureMember(ctx, m); err != nil {
			t.Fatalf("EnsureMember: %v", err)
		}
	}
	ids, err := s.MemberIDs(ctx, false)
	if err != nil {
		t.Fatalf("MemberIDs: %v", err)
	}
	if diff := cmp.Diff([]int64{10, 30}, ids); diff != "" {
		t.Errorf("active IDs mismatch (-want +got):\n%s", diff)
	}
	ids, err = s.MemberIDs(ctx, true)
	if err != nil {
		t.Fatalf("MemberIDs: %v", err)
	}
	if diff := cmp.Diff([]int64{10, 20, 30}, ids); diff != "" {
		t.Errorf("IDs with admins mismatch (-want +got):\n%s", diff)
	}
}

func TestMessageStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	// A Wednesday afternoon. The week window opens Monday the 10th, the
	// month window on the 1st, the day window at midnight.
	now := time.Date(2025, time.March, 12, 15, 30, 0, 0, time.UTC)
	for _, created := range []time.Time{
		time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC),   // today
		time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),   // Monday midnight, in week
		time.Date(2025, time.March, 9, 23, 59, 0, 0, time.UTC),  // Sunday, out of week
		time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),   // in month
		time.Date(2025, time.February, 28, 8, 0, 0, 0, time.UTC), // last month
	} {
		if err := s.AddMessage(ctx, schema.MemberMessage{Member: 5, Text: "hi", Created: created}); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}
	stats, err := s.MessageStats(ctx, 5, now)
	if err != nil {
		t.Fatalf("MessageStats: %v", err)
	}
	want := schema.MessageStats{Day: 1, Week: 2, Month: 4, Total: 5}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	// AddMessage auto-registers the member.
	if _, err := s.Member(ctx, 5); err != nil {
		t.Errorf("Member after AddMessage: %v", err)
	}
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defs := []roster.Def{
		{Name: "Кафка", Region: roster.HSRHunters},
		{Name: "Паимон", Region: roster.GenshinOther},
		{Name: "Венти", Region: roster.Mondstadt},
	}
	created, err := s.InitRoles(ctx, defs)
	if err != nil {
		t.Fatalf("InitRoles: %v", err)
	}
	if created != 3 {
		t.Fatalf("InitRoles created: got %d, want 3", created)
	}
	// Re-init keeps existing roles.
	if created, err = s.InitRoles(ctx, defs); err != nil || created != 0 {
		t.Fatalf("InitRoles again: got (%d, %v), want (0, nil)", created, err)
	}
	if _, err := s.EnsureMember(ctx, schema.Member{ID: 1}); err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	if _, err := s.AssignRole(ctx, "Венти", 1); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	// Occupied roles cannot be reassigned.
	if _, err := s.EnsureMember(ctx, schema.Member{ID: 2}); err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	if _, err := s.AssignRole(ctx, "Венти", 2); !errors.Is(err, ErrRoleOccupied) {
		t.Fatalf("AssignRole occupied: got %v, want %v", err, ErrRoleOccupied)
	}
	// Unknown roles and members are rejected.
	if _, err := s.AssignRole(ctx, "Нахида", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AssignRole unknown role: got %v, want %v", err, ErrNotFound)
	}
	if _, err := s.AssignRole(ctx, "Кафка", 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AssignRole unknown member: got %v, want %v", err, ErrNotFound)
	}
	// Banned members cannot take roles.
	if _, err := s.SetStatus(ctx, 2, schema.MemberBanned); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := s.AssignRole(ctx, "Кафка", 2); !errors.Is(err, ErrMemberBanned) {
		t.Fatalf("AssignRole banned: got %v, want %v", err, ErrMemberBanned)
	}
	// Occupancy covers free roles too, so releases can be rendered out.
	occupancy, err := s.RoleOccupancy(ctx, roster.GameGenshin)
	if err != nil {
		t.Fatalf("RoleOccupancy: %v", err)
	}
	if diff := cmp.Diff(map[string]bool{"Венти": true, "Паимон": false}, occupancy); diff != "" {
		t.Errorf("occupancy mismatch (-want +got):\n%s", diff)
	}
	// Releasing by member frees everything they hold.
	if _, err := s.AssignRole(ctx, "Паимон", 1); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	released, err := s.ReleaseRolesByMember(ctx, 1)
	if err != nil {
		t.Fatalf("ReleaseRolesByMember: %v", err)
	}
	if released != 2 {
		t.Errorf("released: got %d, want 2", released)
	}
	roles, err := s.RolesByMember(ctx, 1)
	if err != nil {
		t.Fatalf("RolesByMember: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("roles after release: got %d, want 0", len(roles))
	}
}

func TestRegionStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.InitRoles(ctx, []roster.Def{
		{Name: "Венти", Region: roster.Mondstadt},
		{Name: "Джинн", Region: roster.Mondstadt},
		{Name: "Кафка", Region: roster.HSRHunters},
	}); err != nil {
		t.Fatalf("InitRoles: %v", err)
	}
	if _, err := s.EnsureMember(ctx, schema.Member{ID: 1}); err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	if _, err := s.AssignRole(ctx, "Венти", 1); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	stats, err := s.RegionStats(ctx, roster.GameGenshin)
	if err != nil {
		t.Fatalf("RegionStats: %v", err)
	}
	var mondstadt schema.RegionStats
	for _, rs := range stats {
		if rs.Region == roster.Mondstadt {
			mondstadt = rs
		}
		if rs.Region == roster.HSRHunters {
			t.Errorf("RegionStats leaked a region from the other game: %v", rs)
		}
	}
	want := schema.RegionStats{Region: roster.Mondstadt, Total: 2, Occupied: 1, Free: 1}
	if diff := cmp.Diff(want, mondstadt); diff != "" {
		t.Errorf("Mondstadt stats mismatch (-want +got):\n%s", diff)
	}
}

func TestQuestionnaires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	q := schema.Questionnaire{
		ID:      "q1",
		Member:  9,
		State:   schema.QuestionnaireRole,
		Created: time.Now().UTC(),
		Updated: time.Now().UTC(),
	}
	if err := s.SaveQuestionnaire(ctx, q); err != nil {
		t.Fatalf("SaveQuestionnaire: %v", err)
	}
	got, err := s.DraftQuestionnaire(ctx, 9)
	if err != nil {
		t.Fatalf("DraftQuestionnaire: %v", err)
	}
	if got.ID != "q1" {
		t.Errorf("draft ID: got %q, want q1", got.ID)
	}
	// Submitted questionnaires are no longer drafts but are found by thread.
	q.State = schema.QuestionnaireSubmitted
	q.ThreadID = 55
	if err := s.SaveQuestionnaire(ctx, q); err != nil {
		t.Fatalf("SaveQuestionnaire: %v", err)
	}
	if _, err := s.DraftQuestionnaire(ctx, 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DraftQuestionnaire after submit: got %v, want %v", err, ErrNotFound)
	}
	got, err = s.QuestionnaireByThread(ctx, 55)
	if err != nil {
		t.Fatalf("QuestionnaireByThread: %v", err)
	}
	if got.ID != "q1" {
		t.Errorf("by-thread ID: got %q, want q1", got.ID)
	}
}
