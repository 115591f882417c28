// Package user serves account views: profile lookup, search, notifications
// and avatars.
package user

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskflow/pkg/file"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/sanitizer"
	"github.com/dmitrymomot/taskflow/pkg/validator"
)

// MaxAvatarSize bounds avatar uploads.
const MaxAvatarSize = 5 << 20

const searchLimit = 20

// Store persists users. Lookups return ErrNotFound, Create returns
// ErrEmailTaken on a duplicate email.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIDs(ctx context.Context, ids []string) ([]User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateAvatar(ctx context.Context, id, url string) error
	AddProject(ctx context.Context, id, projectID string) error
	RemoveProject(ctx context.Context, id, projectID string) error
	AddTeam(ctx context.Context, id, teamID string) error
	RemoveTeam(ctx context.Context, id, teamID string) error
	PushNotification(ctx context.Context, id string, n Notification) error
	Search(ctx context.Context, query string, limit int) ([]User, error)
}

// Searcher is an external full text index of user profiles.
type Searcher interface {
	Index(ctx context.Context, p Profile) error
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

type Service struct {
	store    Store
	searcher Searcher
	files    file.Storage
	logger   *slog.Logger
}

type Option func(*Service)

func WithSearcher(s Searcher) Option {
	return func(svc *Service) { svc.searcher = s }
}

func WithFileStorage(fs file.Storage) Option {
	return func(svc *Service) { svc.files = fs }
}

func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("user"))
	return s
}

// Me returns the account of id.
func (s *Service) Me(ctx context.Context, id string) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// FindByEmail looks up an account by its normalized email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.Required("email", email),
		validator.ValidEmail("email", email),
	); err != nil {
		return nil, err
	}
	return s.store.GetByEmail(ctx, email)
}

// Search matches name or email. The external index is preferred and the
// store is queried when it is absent or failing.
func (s *Service) Search(ctx context.Context, query string) ([]Profile, error) {
	query = strings.TrimSpace(query)
	if err := validator.Apply(
		validator.Required("q", query),
		validator.MaxLen("q", query, 100),
	); err != nil {
		return nil, err
	}

	if s.searcher != nil {
		users, err := s.searchIndex(ctx, query)
		if err == nil {
			return profiles(users), nil
		}
		s.logger.WarnContext(ctx, "search index unavailable, using store", logger.Error(err))
	}

	users, err := s.store.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	return profiles(users), nil
}

func (s *Service) searchIndex(ctx context.Context, query string) ([]User, error) {
	ids, err := s.searcher.Search(ctx, query, searchLimit)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return s.store.GetByIDs(ctx, ids)
}

// Index adds u to the search index. Failures are logged only.
func (s *Service) Index(ctx context.Context, u *User) {
	if s.searcher == nil || u == nil {
		return
	}
	if err := s.searcher.Index(ctx, u.Profile()); err != nil {
		s.logger.WarnContext(ctx, "failed to index user", logger.UserID(u.ID), logger.Error(err))
	}
}

// Notifications lists the notifications of id, newest first.
func (s *Service) Notifications(ctx context.Context, id string) ([]Notification, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(u.Notifications))
	for i := len(u.Notifications) - 1; i >= 0; i-- {
		out = append(out, u.Notifications[i])
	}
	return out, nil
}

// Notify appends a notification to the user.
func (s *Service) Notify(ctx context.Context, userID string, typ NotificationType, message, link string) error {
	return s.store.PushNotification(ctx, userID, Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   message,
		Link:      link,
		CreatedAt: time.Now().UTC(),
	})
}

// UploadAvatar stores the image and saves its URL on the account.
func (s *Service) UploadAvatar(ctx context.Context, id string, fh *multipart.FileHeader) (*User, error) {
	if s.files == nil {
		return nil, ErrNoStorage
	}
	if fh == nil {
		return nil, validator.ValidationErrors{{Field: "avatar", Message: "file is required"}}
	}
	if err := file.ValidateSize(fh, MaxAvatarSize); err != nil {
		return nil, validator.ValidationErrors{{Field: "avatar", Message: "file must not exceed 5MB"}}
	}
	if err := file.ValidateMIMEType(fh, file.ImageTypes...); err != nil {
		if errors.Is(err, file.ErrMIMETypeNotAllowed) {
			return nil, ErrInvalidImage
		}
		return nil, err
	}

	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}

	f, err := s.files.Save(ctx, fh, file.AvatarKey(id, fh.Filename))
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateAvatar(ctx, id, f.URL); err != nil {
		return nil, err
	}

	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Index(ctx, u)
	return u, nil
}

func profiles(users []User) []Profile {
	out := make([]Profile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Profile())
	}
	return out
}
