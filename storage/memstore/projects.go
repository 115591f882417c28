package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrymomot/taskflow/svc/project"
)

type Projects struct {
	mu       sync.RWMutex
	projects map[string]*project.Project
	works    map[string]*project.Work
	order    []string
}

func NewProjects() *Projects {
	return &Projects{projects: make(map[string]*project.Project), works: make(map[string]*project.Work)}
}

func cloneProject(p *project.Project) *project.Project {
	c := *p
	c.Tags = slices.Clone(p.Tags)
	c.Members = slices.Clone(p.Members)
	c.Works = slices.Clone(p.Works)
	return &c
}

func cloneWork(w *project.Work) project.Work {
	c := *w
	c.Tags = slices.Clone(w.Tags)
	c.Tasks = make([]project.Task, len(w.Tasks))
	for i, t := range w.Tasks {
		t.Members = slices.Clone(t.Members)
		c.Tasks[i] = t
	}
	return c
}

func (s *Projects) Create(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = cloneProject(p)
	return nil
}

func (s *Projects) Get(_ context.Context, id string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, project.ErrNotFound
	}
	return cloneProject(p), nil
}

func (s *Projects) Replace(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return project.ErrNotFound
	}
	s.projects[p.ID] = cloneProject(p)
	return nil
}

func (s *Projects) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return project.ErrNotFound
	}
	delete(s.projects, id)
	for wid, w := range s.works {
		if w.ProjectID == id {
			delete(s.works, wid)
		}
	}
	return nil
}

func (s *Projects) AddMember(_ context.Context, id string, m project.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return project.ErrNotFound
	}
	if _, ok := p.Member(m.UserID); ok {
		return project.ErrAlreadyMember
	}
	p.Members = append(p.Members, m)
	return nil
}

func (s *Projects) RemoveMembers(_ context.Context, id string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return project.ErrNotFound
	}
	p.Members = slices.DeleteFunc(p.Members, func(m project.Member) bool {
		return slices.Contains(userIDs, m.UserID)
	})
	return nil
}

func (s *Projects) ListByMember(_ context.Context, userID string) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []project.Project{}
	for _, p := range s.projects {
		if _, ok := p.Member(userID); ok {
			out = append(out, *cloneProject(p))
		}
	}
	slices.SortFunc(out, func(a, b project.Project) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

func (s *Projects) AddWork(_ context.Context, w *project.Work) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[w.ProjectID]
	if !ok {
		return project.ErrNotFound
	}
	c := cloneWork(w)
	s.works[w.ID] = &c
	s.order = append(s.order, w.ID)
	p.Works = append(p.Works, w.ID)
	return nil
}

func (s *Projects) ListWorks(_ context.Context, projectIDs []string) ([]project.Work, error) {
	return s.filterWorks(func(w *project.Work) bool { return slices.Contains(projectIDs, w.ProjectID) }), nil
}

func (s *Projects) ListWorksAssignedTo(_ context.Context, userID string) ([]project.Work, error) {
	return s.filterWorks(func(w *project.Work) bool {
		return slices.ContainsFunc(w.Tasks, func(t project.Task) bool { return slices.Contains(t.Members, userID) })
	}), nil
}

func (s *Projects) filterWorks(keep func(*project.Work) bool) []project.Work {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []project.Work{}
	for _, id := range s.order {
		if w, ok := s.works[id]; ok && keep(w) {
			out = append(out, cloneWork(w))
		}
	}
	return out
}
