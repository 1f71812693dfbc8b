// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botdb

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/pkg/roster"
	"github.com/primo-rp/communitybot/pkg/schema"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu             sync.Mutex
	members        map[int64]schema.Member
	messages       map[int64][]schema.MemberMessage
	roles          map[string]schema.Role
	rosters        map[roster.Game]schema.RosterMessage
	questionnaires map[string]schema.Questionnaire
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:        make(map[int64]schema.Member),
		messages:       make(map[int64][]schema.MemberMessage),
		roles:          make(map[string]schema.Role),
		rosters:        make(map[roster.Game]schema.RosterMessage),
		questionnaires: make(map[string]schema.Questionnaire),
	}
}

func (s *MemoryStore) EnsureMember(_ context.Context, m schema.Member) (schema.Member, error) {
	if m.ID == 0 {
		return schema.Member{}, errors.New("member id required")
	}
	if m.Status == "" {
		m.Status = schema.MemberActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	cur, ok := s.members[m.ID]
	if !ok {
		m.Created = now
		m.Updated = now
		s.members[m.ID] = m
		return m, nil
	}
	if m.Username != "" {
		cur.Username = m.Username
	}
	if m.FullName != "" {
		cur.FullName = m.FullName
	}
	if m.Status == schema.MemberAdmin && cur.Status == schema.MemberActive {
		cur.Status = schema.MemberAdmin
	}
	cur.Updated = now
	s.members[m.ID] = cur
	return cur, nil
}

func (s *MemoryStore) Member(_ context.Context, id int64) (schema.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return schema.Member{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id int64, to schema.MemberStatus) (schema.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return schema.Member{}, ErrNotFound
	}
	if !validTransition(m.Status, to) {
		return schema.Member{}, errors.Wrapf(ErrInvalidTransition, "%s to %s", m.Status, to)
	}
	m.Status = to
	m.Updated = time.Now().UTC()
	s.members[id] = m
	return m, nil
}

func (s *MemoryStore) MemberIDs(_ context.Context, includeAdmins bool) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, m := range s.members {
		if m.Status == schema.MemberActive || (includeAdmins && m.Status == schema.MemberAdmin) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) AddMessage(ctx context.Context, msg schema.MemberMessage) error {
	if msg.Member == 0 {
		return errors.New("member id required")
	}
	if msg.Created.IsZero() {
		msg.Created = time.Now().UTC()
	}
	if _, err := s.EnsureMember(ctx, schema.Member{ID: msg.Member}); err != nil {
		return errors.Wrap(err, "registering member")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.Member] = append(s.messages[msg.Member], msg)
	return nil
}

func (s *MemoryStore) MessageStats(_ context.Context, member int64, now time.Time) (schema.MessageStats, error) {
	day, week, month := startOfDay(now), startOfWeek(now), startOfMonth(now)
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats schema.MessageStats
	for _, msg := range s.messages[member] {
		stats.Total++
		if !msg.Created.Before(day) {
			stats.Day++
		}
		if !msg.Created.Before(week) {
			stats.Week++
		}
		if !msg.Created.Before(month) {
			stats.Month++
		}
	}
	return stats, nil
}

func (s *MemoryStore) InitRoles(_ context.Context, defs []roster.Def) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var created int
	for _, def := range defs {
		if _, ok := s.roles[def.Name]; ok {
			continue
		}
		s.roles[def.Name] = schema.Role{Name: def.Name, Region: def.Region}
		created++
	}
	return created, nil
}

func (s *MemoryStore) Role(_ context.Context, name string) (schema.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[name]
	if !ok {
		return schema.Role{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) AssignRole(_ context.Context, name string, member int64) (schema.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[name]
	if !ok {
		return schema.Role{}, errors.Wrapf(ErrNotFound, "role %q", name)
	}
	if r.Occupied() {
		return schema.Role{}, errors.Wrapf(ErrRoleOccupied, "role %q", name)
	}
	m, ok := s.members[member]
	if !ok {
		return schema.Role{}, errors.Wrapf(ErrNotFound, "member %d", member)
	}
	if m.Status == schema.MemberBanned {
		return schema.Role{}, errors.Wrapf(ErrMemberBanned, "member %d", member)
	}
	r.Occupant = member
	s.roles[name] = r
	return r, nil
}

func (s *MemoryStore) ReleaseRole(_ context.Context, name string) (schema.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[name]
	if !ok {
		return schema.Role{}, errors.Wrapf(ErrNotFound, "role %q", name)
	}
	r.Occupant = 0
	s.roles[name] = r
	return r, nil
}

func (s *MemoryStore) ReleaseRolesByMember(_ context.Context, member int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var released int
	for name, r := range s.roles {
		if r.Occupant == member {
			r.Occupant = 0
			s.roles[name] = r
			released++
		}
	}
	return released, nil
}

func (s *MemoryStore) filterRoles(keep func(schema.Role) bool) []schema.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schema.Role
	for _, r := range s.roles {
		if keep(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b schema.Role) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (s *MemoryStore) RolesByMember(_ context.Context, member int64) ([]schema.Role, error) {
	return s.filterRoles(func(r schema.Role) bool { return r.Occupant == member }), nil
}

func (s *MemoryStore) RolesByRegion(_ context.Context, region roster.Region) ([]schema.Role, error) {
	return s.filterRoles(func(r schema.Role) bool { return r.Region == region }), nil
}

func (s *MemoryStore) RoleOccupancy(_ context.Context, game roster.Game) (map[string]bool, error) {
	roles := s.filterRoles(func(r schema.Role) bool {
		g, err := roster.GameFor(r.Region)
		return err == nil && g == game
	})
	occupancy := make(map[string]bool)
	for _, r := range roles {
		occupancy[r.Name] = r.Occupied()
	}
	return occupancy, nil
}

func (s *MemoryStore) RegionStats(_ context.Context, game roster.Game) ([]schema.RegionStats, error) {
	regions := roster.Regions(game)
	out := make([]schema.RegionStats, len(regions))
	byRegion := make(map[roster.Region]*schema.RegionStats)
	for i, region := range regions {
		out[i].Region = region
		byRegion[region] = &out[i]
	}
	for _, r := range s.filterRoles(func(schema.Role) bool { return true }) {
		stats, ok := byRegion[r.Region]
		if !ok {
			continue
		}
		stats.Total++
		if r.Occupied() {
			stats.Occupied++
		} else {
			stats.Free++
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveRoster(_ context.Context, m schema.RosterMessage) error {
	if m.Game == "" {
		return errors.New("game required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosters[m.Game] = m
	return nil
}

func (s *MemoryStore) Roster(_ context.Context, game roster.Game) (schema.RosterMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rosters[game]
	if !ok {
		return schema.RosterMessage{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) SaveQuestionnaire(_ context.Context, q schema.Questionnaire) error {
	if q.ID == "" {
		return errors.New("questionnaire id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionnaires[q.ID] = q
	return nil
}

func (s *MemoryStore) Questionnaire(_ context.Context, id string) (schema.Questionnaire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questionnaires[id]
	if !ok {
		return schema.Questionnaire{}, ErrNotFound
	}
	return q, nil
}

func (s *MemoryStore) DraftQuestionnaire(_ context.Context, member int64) (schema.Questionnaire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest schema.Questionnaire
	var found bool
	for _, q := range s.questionnaires {
		if q.Member != member || !draft(q.State) {
			continue
		}
		if !found || q.Updated.After(latest.Updated) {
			latest = q
			found = true
		}
	}
	if !found {
		return schema.Questionnaire{}, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryStore) QuestionnaireByThread(_ context.Context, thread int64) (schema.Questionnaire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.questionnaires {
		if q.ThreadID == thread {
			return q, nil
		}
	}
	return schema.Questionnaire{}, ErrNotFound
}
