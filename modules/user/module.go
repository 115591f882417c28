// Package user mounts the signed-in user's views: profile, notifications,
// memberships, assigned work, people search and avatar upload.
package user

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/taskflow/handler"
	"github.com/dmitrymomot/taskflow/modules/httperr"
	"github.com/dmitrymomot/taskflow/pkg/binder"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/team"
	"github.com/dmitrymomot/taskflow/svc/user"
)

type Users interface {
	Me(ctx context.Context, id string) (*user.User, error)
	Search(ctx context.Context, query string) ([]user.Profile, error)
	Notifications(ctx context.Context, id string) ([]user.Notification, error)
	UploadAvatar(ctx context.Context, id string, fh *multipart.FileHeader) (*user.User, error)
}

type Projects interface {
	ListForUser(ctx context.Context, userID string) ([]project.Project, error)
	WorksForUser(ctx context.Context, userID string) ([]project.Work, error)
	TasksForUser(ctx context.Context, userID string) ([]project.AssignedTask, error)
}

type Teams interface {
	ListForUser(ctx context.Context, userID string) ([]team.Team, error)
}

type Module struct {
	users        Users
	projects     Projects
	teams        Teams
	requireAuth  func(http.Handler) http.Handler
	errorHandler handler.ErrorHandler[handler.Context]
}

type Option func(*Module)

func WithErrorHandler(h handler.ErrorHandler[handler.Context]) Option {
	return func(m *Module) { m.errorHandler = h }
}

func New(users Users, projects Projects, teams Teams, requireAuth func(http.Handler) http.Handler, opts ...Option) *Module {
	m := &Module{
		users:        users,
		projects:     projects,
		teams:        teams,
		requireAuth:  requireAuth,
		errorHandler: handler.NewErrorHandler(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle returns the router. Every route requires a session.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(m.requireAuth)

	r.Get("/find", wrap(m, m.find))
	r.Get("/notifications", wrap(m, m.notifications))
	r.Get("/projects", wrap(m, m.listProjects))
	r.Get("/teams", wrap(m, m.listTeams))
	r.Get("/works", wrap(m, m.listWorks))
	r.Get("/tasks", wrap(m, m.listTasks))
	r.Get("/search/{q}", wrap(m, m.search, binder.Path(chi.URLParam)))
	r.Put("/avatar", wrap(m, m.uploadAvatar, binder.File()))

	return r
}

func wrap[R any](m *Module, h handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](m.errorHandler),
	)
}

var rules = []httperr.Rule{
	httperr.On(user.ErrNotFound, handler.ErrNotFound),
	httperr.On(user.ErrInvalidImage, handler.NewHTTPError(http.StatusUnsupportedMediaType, "invalid_image", "")),
	httperr.On(user.ErrNoStorage, handler.ErrServiceUnavailable),
}

type SearchRequest struct {
	Query string `path:"q"`
}

type AvatarRequest struct {
	Avatar *multipart.FileHeader `file:"avatar"`
}

type UserResponse struct {
	User *user.User `json:"user"`
}

func (m *Module) find(ctx handler.Context, _ struct{}) handler.Response {
	u, err := m.users.Me(ctx, jwt.UserIDFromContext(ctx))
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(u)
}

func (m *Module) notifications(ctx handler.Context, _ struct{}) handler.Response {
	list, err := m.users.Notifications(ctx, jwt.UserIDFromContext(ctx))
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(list)
}

func (m *Module) listProjects(ctx handler.Context, _ struct{}) handler.Response {
	list, err := m.projects.ListForUser(ctx, jwt.UserIDFromContext(ctx))
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(list)
}

func (m *Module) listTeams(ctx handler.Context, _ struct{}) handler.Response {
	list, err := m.teams.ListForUser(ctx, jwt.UserIDFromContext(ctx))
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(list)
}

func (m *Module) listWorks(ctx handler.Context, _ struct{}) handler.Response {
	list, err := m.projects.WorksForUser(ctx, jwt.UserIDFromContext(ctx))
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(list)
}

func (m *Module) listTasks(ctx handler.Context, _ struct{}) handler.Response {
	list, err := m.projects.TasksForUser(ctx, jwt.UserIDFromContext(ctx))
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(list)
}

func (m *Module) search(ctx handler.Context, req SearchRequest) handler.Response {
	list, err := m.users.Search(ctx, req.Query)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(list)
}

func (m *Module) uploadAvatar(ctx handler.Context, req AvatarRequest) handler.Response {
	u, err := m.users.UploadAvatar(ctx, jwt.UserIDFromContext(ctx), req.Avatar)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(UserResponse{User: u})
}
