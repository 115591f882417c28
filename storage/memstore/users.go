package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/taskflow/svc/user"
)

type Users struct {
	mu    sync.RWMutex
	byID  map[string]*user.User
	email map[string]string
}

func NewUsers() *Users {
	return &Users{byID: make(map[string]*user.User), email: make(map[string]string)}
}

func cloneUser(u *user.User) *user.User {
	c := *u
	c.Projects = slices.Clone(u.Projects)
	c.Teams = slices.Clone(u.Teams)
	c.Notifications = slices.Clone(u.Notifications)
	return &c
}

func (s *Users) Create(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.email[u.Email]; ok {
		return user.ErrEmailTaken
	}
	s.byID[u.ID] = cloneUser(u)
	s.email[u.Email] = u.ID
	return nil
}

func (s *Users) GetByID(_ context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	id, ok := s.email[email]
	s.mu.RUnlock()
	if !ok {
		return nil, user.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *Users) GetByIDs(_ context.Context, ids []string) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (s *Users) update(id string, fn func(u *user.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Users) UpdatePassword(_ context.Context, id, hash string) error {
	return s.update(id, func(u *user.User) { u.PasswordHash = hash })
}

func (s *Users) UpdateAvatar(_ context.Context, id, url string) error {
	return s.update(id, func(u *user.User) { u.Img = url })
}

func addUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

func remove(list []string, v string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == v })
}

func (s *Users) AddProject(_ context.Context, id, projectID string) error {
	return s.update(id, func(u *user.User) { u.Projects = addUnique(u.Projects, projectID) })
}

func (s *Users) RemoveProject(_ context.Context, id, projectID string) error {
	return s.update(id, func(u *user.User) { u.Projects = remove(u.Projects, projectID) })
}

func (s *Users) AddTeam(_ context.Context, id, teamID string) error {
	return s.update(id, func(u *user.User) { u.Teams = addUnique(u.Teams, teamID) })
}

func (s *Users) RemoveTeam(_ context.Context, id, teamID string) error {
	return s.update(id, func(u *user.User) { u.Teams = remove(u.Teams, teamID) })
}

func (s *Users) PushNotification(_ context.Context, id string, n user.Notification) error {
	return s.update(id, func(u *user.User) { u.Notifications = append(u.Notifications, n) })
}

// Search matches name or email case-insensitively, ordered by name.
func (s *Users) Search(_ context.Context, query string, limit int) ([]user.User, error) {
	q := strings.ToLower(query)
	s.mu.RLock()
	var out []user.User
	for _, u := range s.byID {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(u.Email, q) {
			out = append(out, *cloneUser(u))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b user.User) int { return strings.Compare(a.Name, b.Name) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
