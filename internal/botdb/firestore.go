// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botdb

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/pkg/roster"
	"github.com/primo-rp/communitybot/pkg/schema"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore persists bot state in Firestore.
//
// Layout:
//
//	members/{id}                  schema.Member
//	members/{id}/messages/{auto}  schema.MemberMessage
//	roles/{name}                  schema.Role
//	rosters/{game}                schema.RosterMessage
//	questionnaires/{uuid}         schema.Questionnaire
type FirestoreStore struct {
	client *firestore.Client
}

var _ Store = &FirestoreStore{}

// NewFirestore creates a FirestoreStore for the given project.
func NewFirestore(ctx context.Context, project string) (*FirestoreStore, error) {
	if project == "" {
		return nil, errors.New("empty project provided")
	}
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		return nil, errors.Wrap(err, "creating firestore client")
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) memberDoc(id int64) *firestore.DocumentRef {
	return s.client.Collection("members").Doc(strconv.FormatInt(id, 10))
}

func (s *FirestoreStore) EnsureMember(ctx context.Context, m schema.Member) (schema.Member, error) {
	if m.ID == 0 {
		return schema.Member{}, errors.New("member id required")
	}
	if m.Status == "" {
		m.Status = schema.MemberActive
	}
	doc := s.memberDoc(m.ID)
	now := time.Now().UTC()
	var out schema.Member
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		snap, err := t.Get(doc)
		if status.Code(err) == codes.NotFound {
			m.Created = now
			m.Updated = now
			out = m
			return t.Create(doc, m)
		} else if err != nil {
			return errors.Wrap(err, "fetching member")
		}
		var cur schema.Member
		if err := snap.DataTo(&cur); err != nil {
			return errors.Wrap(err, "reading member")
		}
		if m.Username != "" {
			cur.Username = m.Username
		}
		if m.FullName != "" {
			cur.FullName = m.FullName
		}
		// Promotion sticks but registration never demotes or unbans.
		if m.Status == schema.MemberAdmin && cur.Status == schema.MemberActive {
			cur.Status = schema.MemberAdmin
		}
		cur.Updated = now
		out = cur
		return t.Set(doc, cur)
	})
	if err != nil {
		return schema.Member{}, err
	}
	return out, nil
}

func (s *FirestoreStore) Member(ctx context.Context, id int64) (schema.Member, error) {
	snap, err := s.memberDoc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return schema.Member{}, ErrNotFound
	} else if err != nil {
		return schema.Member{}, errors.Wrap(err, "fetching member")
	}
	var m schema.Member
	if err := snap.DataTo(&m); err != nil {
		return schema.Member{}, errors.Wrap(err, "reading member")
	}
	return m, nil
}

func (s *FirestoreStore) SetStatus(ctx context.Context, id int64, to schema.MemberStatus) (schema.Member, error) {
	doc := s.memberDoc(id)
	var out schema.Member
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		snap, err := t.Get(doc)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		} else if err != nil {
			return errors.Wrap(err, "fetching member")
		}
		var m schema.Member
		if err := snap.DataTo(&m); err != nil {
			return errors.Wrap(err, "reading member")
		}
		if !validTransition(m.Status, to) {
			return errors.Wrapf(ErrInvalidTransition, "%s to %s", m.Status, to)
		}
		m.Status = to
		m.Updated = time.Now().UTC()
		out = m
		return t.Set(doc, m)
	})
	if err != nil {
		return schema.Member{}, err
	}
	return out, nil
}

func (s *FirestoreStore) MemberIDs(ctx context.Context, includeAdmins bool) ([]int64, error) {
	statuses := []string{string(schema.MemberActive)}
	if includeAdmins {
		statuses = append(statuses, string(schema.MemberAdmin))
	}
	iter := s.client.Collection("members").Where("status", "in", statuses).Documents(ctx)
	defer iter.Stop()
	var ids []int64
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "iterating members")
		}
		var m schema.Member
		if err := snap.DataTo(&m); err != nil {
			return nil, errors.Wrap(err, "reading member")
		}
		ids = append(ids, m.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *FirestoreStore) AddMessage(ctx context.Context, msg schema.MemberMessage) error {
	if msg.Member == 0 {
		return errors.New("member id required")
	}
	if msg.Created.IsZero() {
		msg.Created = time.Now().UTC()
	}
	if _, err := s.EnsureMember(ctx, schema.Member{ID: msg.Member}); err != nil {
		return errors.Wrap(err, "registering member")
	}
	if _, err := s.memberDoc(msg.Member).Collection("messages").NewDoc().Create(ctx, msg); err != nil {
		return errors.Wrap(err, "recording message")
	}
	return nil
}

func (s *FirestoreStore) MessageStats(ctx context.Context, member int64, now time.Time) (schema.MessageStats, error) {
	day, week, month := startOfDay(now), startOfWeek(now), startOfMonth(now)
	iter := s.memberDoc(member).Collection("messages").Documents(ctx)
	defer iter.Stop()
	var stats schema.MessageStats
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return schema.MessageStats{}, errors.Wrap(err, "iterating messages")
		}
		var msg schema.MemberMessage
		if err := snap.DataTo(&msg); err != nil {
			return schema.MessageStats{}, errors.Wrap(err, "reading message")
		}
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

func (s *FirestoreStore) roleDoc(name string) *firestore.DocumentRef {
	return s.client.Collection("roles").Doc(name)
}

func (s *FirestoreStore) InitRoles(ctx context.Context, defs []roster.Def) (int, error) {
	var created int
	for _, def := range defs {
		role := schema.Role{Name: def.Name, Region: def.Region}
		_, err := s.roleDoc(def.Name).Create(ctx, role)
		if status.Code(err) == codes.AlreadyExists {
			continue
		} else if err != nil {
			return created, errors.Wrapf(err, "creating role %q", def.Name)
		}
		created++
	}
	return created, nil
}

func (s *FirestoreStore) Role(ctx context.Context, name string) (schema.Role, error) {
	snap, err := s.roleDoc(name).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return schema.Role{}, ErrNotFound
	} else if err != nil {
		return schema.Role{}, errors.Wrap(err, "fetching role")
	}
	var r schema.Role
	if err := snap.DataTo(&r); err != nil {
		return schema.Role{}, errors.Wrap(err, "reading role")
	}
	return r, nil
}

func (s *FirestoreStore) AssignRole(ctx context.Context, name string, member int64) (schema.Role, error) {
	roleDoc := s.roleDoc(name)
	memberDoc := s.memberDoc(member)
	var out schema.Role
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		snap, err := t.Get(roleDoc)
		if status.Code(err) == codes.NotFound {
			return errors.Wrapf(ErrNotFound, "role %q", name)
		} else if err != nil {
			return errors.Wrap(err, "fetching role")
		}
		var r schema.Role
		if err := snap.DataTo(&r); err != nil {
			return errors.Wrap(err, "reading role")
		}
		if r.Occupied() {
			return errors.Wrapf(ErrRoleOccupied, "role %q", name)
		}
		msnap, err := t.Get(memberDoc)
		if status.Code(err) == codes.NotFound {
			return errors.Wrapf(ErrNotFound, "member %d", member)
		} else if err != nil {
			return errors.Wrap(err, "fetching member")
		}
		var m schema.Member
		if err := msnap.DataTo(&m); err != nil {
			return errors.Wrap(err, "reading member")
		}
		if m.Status == schema.MemberBanned {
			return errors.Wrapf(ErrMemberBanned, "member %d", member)
		}
		r.Occupant = member
		out = r
		return t.Set(roleDoc, r)
	})
	if err != nil {
		return schema.Role{}, err
	}
	return out, nil
}

func (s *FirestoreStore) ReleaseRole(ctx context.Context, name string) (schema.Role, error) {
	doc := s.roleDoc(name)
	var out schema.Role
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		snap, err := t.Get(doc)
		if status.Code(err) == codes.NotFound {
			return errors.Wrapf(ErrNotFound, "role %q", name)
		} else if err != nil {
			return errors.Wrap(err, "fetching role")
		}
		var r schema.Role
		if err := snap.DataTo(&r); err != nil {
			return errors.Wrap(err, "reading role")
		}
		r.Occupant = 0
		out = r
		return t.Set(doc, r)
	})
	if err != nil {
		return schema.Role{}, err
	}
	return out, nil
}

func (s *FirestoreStore) ReleaseRolesByMember(ctx context.Context, member int64) (int, error) {
	var released int
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		released = 0
		iter := t.Documents(s.client.Collection("roles").Where("occupant", "==", member))
		var updates []*firestore.DocumentSnapshot
		for {
			snap, err := iter.Next()
			if err == iterator.Done {
				break
			} else if err != nil {
				return errors.Wrap(err, "iterating roles")
			}
			updates = append(updates, snap)
		}
		for _, snap := range updates {
			var r schema.Role
			if err := snap.DataTo(&r); err != nil {
				return errors.Wrap(err, "reading role")
			}
			r.Occupant = 0
			if err := t.Set(snap.Ref, r); err != nil {
				return errors.Wrap(err, "releasing role")
			}
			released++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

func (s *FirestoreStore) rolesQuery(ctx context.Context, q firestore.Query) ([]schema.Role, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()
	var out []schema.Role
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "iterating roles")
		}
		var r schema.Role
		if err := snap.DataTo(&r); err != nil {
			return nil, errors.Wrap(err, "reading role")
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b schema.Role) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *FirestoreStore) RolesByMember(ctx context.Context, member int64) ([]schema.Role, error) {
	return s.rolesQuery(ctx, s.client.Collection("roles").Where("occupant", "==", member))
}

func (s *FirestoreStore) RolesByRegion(ctx context.Context, region roster.Region) ([]schema.Role, error) {
	return s.rolesQuery(ctx, s.client.Collection("roles").Where("region", "==", string(region)))
}

func (s *FirestoreStore) gameRoles(ctx context.Context, game roster.Game) ([]schema.Role, error) {
	regions := roster.Regions(game)
	names := make([]string, 0, len(regions))
	for _, r := range regions {
		names = append(names, string(r))
	}
	// Firestore 'in' queries are limited to 30 values; both games fit.
	return s.rolesQuery(ctx, s.client.Collection("roles").Where("region", "in", names))
}

func (s *FirestoreStore) RoleOccupancy(ctx context.Context, game roster.Game) (map[string]bool, error) {
	roles, err := s.gameRoles(ctx, game)
	if err != nil {
		return nil, err
	}
	occupancy := make(map[string]bool)
	for _, r := range roles {
		occupancy[r.Name] = r.Occupied()
	}
	return occupancy, nil
}

func (s *FirestoreStore) RegionStats(ctx context.Context, game roster.Game) ([]schema.RegionStats, error) {
	roles, err := s.gameRoles(ctx, game)
	if err != nil {
		return nil, err
	}
	byRegion := make(map[roster.Region]*schema.RegionStats)
	regions := roster.Regions(game)
	out := make([]schema.RegionStats, len(regions))
	for i, region := range regions {
		out[i].Region = region
		byRegion[region] = &out[i]
	}
	for _, r := range roles {
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

func (s *FirestoreStore) SaveRoster(ctx context.Context, m schema.RosterMessage) error {
	if m.Game == "" {
		return errors.New("game required")
	}
	if _, err := s.client.Collection("rosters").Doc(string(m.Game)).Set(ctx, m); err != nil {
		return errors.Wrap(err, "saving roster")
	}
	return nil
}

func (s *FirestoreStore) Roster(ctx context.Context, game roster.Game) (schema.RosterMessage, error) {
	snap, err := s.client.Collection("rosters").Doc(string(game)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return schema.RosterMessage{}, ErrNotFound
	} else if err != nil {
		return schema.RosterMessage{}, errors.Wrap(err, "fetching roster")
	}
	var m schema.RosterMessage
	if err := snap.DataTo(&m); err != nil {
		return schema.RosterMessage{}, errors.Wrap(err, "reading roster")
	}
	return m, nil
}

func (s *FirestoreStore) SaveQuestionnaire(ctx context.Context, q schema.Questionnaire) error {
	if q.ID == "" {
		return errors.New("questionnaire id required")
	}
	if _, err := s.client.Collection("questionnaires").Doc(q.ID).Set(ctx, q); err != nil {
		return errors.Wrap(err, "saving questionnaire")
	}
	return nil
}

func (s *FirestoreStore) Questionnaire(ctx context.Context, id string) (schema.Questionnaire, error) {
	snap, err := s.client.Collection("questionnaires").Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return schema.Questionnaire{}, ErrNotFound
	} else if err != nil {
		return schema.Questionnaire{}, errors.Wrap(err, "fetching questionnaire")
	}
	var q schema.Questionnaire
	if err := snap.DataTo(&q); err != nil {
		return schema.Questionnaire{}, errors.Wrap(err, "reading questionnaire")
	}
	return q, nil
}

func (s *FirestoreStore) DraftQuestionnaire(ctx context.Context, member int64) (schema.Questionnaire, error) {
	iter := s.client.Collection("questionnaires").Where("member", "==", member).Documents(ctx)
	defer iter.Stop()
	var latest schema.Questionnaire
	var found bool
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return schema.Questionnaire{}, errors.Wrap(err, "iterating questionnaires")
		}
		var q schema.Questionnaire
		if err := snap.DataTo(&q); err != nil {
			return schema.Questionnaire{}, errors.Wrap(err, "reading questionnaire")
		}
		if !draft(q.State) {
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

func (s *FirestoreStore) QuestionnaireByThread(ctx context.Context, thread int64) (schema.Questionnaire, error) {
	iter := s.client.Collection("questionnaires").Where("thread_id", "==", thread).Limit(1).Documents(ctx)
	defer iter.Stop()
	snap, err := iter.Next()
	if err == iterator.Done {
		return schema.Questionnaire{}, ErrNotFound
	} else if err != nil {
		return schema.Questionnaire{}, errors.Wrap(err, "querying questionnaires")
	}
	var q schema.Questionnaire
	if err := snap.DataTo(&q); err != nil {
		return schema.Questionnaire{}, errors.Wrap(err, "reading questionnaire")
	}
	return q, nil
}
