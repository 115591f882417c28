package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/team"
)

type Teams struct {
	mu    sync.RWMutex
	teams map[string]*team.Team
}

func NewTeams() *Teams {
	return &Teams{teams: make(map[string]*team.Team)}
}

func cloneTeam(t *team.Team) *team.Team {
	c := *t
	c.Tools = slices.Clone(t.Tools)
	c.Members = slices.Clone(t.Members)
	c.Projects = slices.Clone(t.Projects)
	return &c
}

func (s *Teams) Create(_ context.Context, t *team.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[t.ID] = cloneTeam(t)
	return nil
}

func (s *Teams) Get(_ context.Context, id string) (*team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, team.ErrNotFound
	}
	return cloneTeam(t), nil
}

func (s *Teams) Replace(_ context.Context, t *team.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[t.ID]; !ok {
		return team.ErrNotFound
	}
	s.teams[t.ID] = cloneTeam(t)
	return nil
}

func (s *Teams) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[id]; !ok {
		return team.ErrNotFound
	}
	delete(s.teams, id)
	return nil
}

func (s *Teams) AddMember(_ context.Context, id string, m project.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return team.ErrNotFound
	}
	if _, ok := t.Member(m.UserID); ok {
		return team.ErrAlreadyMember
	}
	t.Members = append(t.Members, m)
	return nil
}

func (s *Teams) RemoveMembers(_ context.Context, id string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return team.ErrNotFound
	}
	t.Members = slices.DeleteFunc(t.Members, func(m project.Member) bool {
		return slices.Contains(userIDs, m.UserID)
	})
	return nil
}

func (s *Teams) AddProject(_ context.Context, id, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return team.ErrNotFound
	}
	t.Projects = addUnique(t.Projects, projectID)
	return nil
}

func (s *Teams) ListByMember(_ context.Context, userID string) ([]team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []team.Team{}
	for _, t := range s.teams {
		if _, ok := t.Member(userID); ok {
			out = append(out, *cloneTeam(t))
		}
	}
	return out, nil
}
