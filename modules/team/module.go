// Package team mounts the team endpoints. They mirror the project ones and
// add project creation inside a team.
package team

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/taskflow/handler"
	"github.com/dmitrymomot/taskflow/modules/httperr"
	"github.com/dmitrymomot/taskflow/pkg/binder"
	"github.com/dmitrymomot/taskflow/svc/invite"
	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/team"
	"github.com/dmitrymomot/taskflow/svc/user"
)

type Teams interface {
	Create(ctx context.Context, ownerID string, in team.CreateInput) (*team.Team, error)
	Get(ctx context.Context, userID, id string) (*team.Team, error)
	Update(ctx context.Context, userID, id string, in team.UpdateInput) (*team.Team, error)
	Delete(ctx context.Context, userID, id string) error
	Invite(ctx context.Context, userID, id string, in []project.InviteInput) ([]user.Profile, error)
	AcceptInvite(ctx context.Context, code string, in team.AcceptInput) (*team.Team, error)
	UpdateMembers(ctx context.Context, userID, id string, members []project.Member) (*team.Team, error)
	RemoveMembers(ctx context.Context, userID, id string, userIDs []string) (*team.Team, error)
	AddProject(ctx context.Context, userID, id string, in project.CreateInput) (*project.Project, error)
}

type Module struct {
	teams        Teams
	requireAuth  func(http.Handler) http.Handler
	errorHandler handler.ErrorHandler[handler.Context]
}

type Option func(*Module)

func WithErrorHandler(h handler.ErrorHandler[handler.Context]) Option {
	return func(m *Module) { m.errorHandler = h }
}

func New(teams Teams, requireAuth func(http.Handler) http.Handler, opts ...Option) *Module {
	m := &Module{
		teams:        teams,
		requireAuth:  requireAuth,
		errorHandler: handler.NewErrorHandler(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Handle() http.Handler {
	path := binder.Path(chi.URLParam)

	r := chi.NewRouter()
	r.Use(m.requireAuth)

	r.Post("/", wrap(m, m.create, binder.JSON()))
	r.Get("/{id}", wrap(m, m.get, path))
	r.Patch("/{id}", wrap(m, m.update, path, binder.JSON()))
	r.Delete("/{id}", wrap(m, m.delete, path))

	r.Post("/invite/{id}", wrap(m, m.invite, path, binder.JSON()))
	r.Get("/invite/{code}", wrap(m, m.acceptInvite, path, binder.Query()))

	r.Post("/addProject/{id}", wrap(m, m.addProject, path, binder.JSON()))

	r.Patch("/member/{id}", wrap(m, m.updateMembers, path, binder.JSON()))
	r.Patch("/member/remove/{id}", wrap(m, m.removeMembers, path, binder.JSON()))

	return r
}

func wrap[R any](m *Module, h handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](m.errorHandler),
	)
}

var rules = []httperr.Rule{
	httperr.On(team.ErrNotFound, handler.ErrNotFound),
	httperr.On(team.ErrNotMember, handler.NewHTTPError(http.StatusForbidden, "not_member", "")),
	httperr.On(team.ErrForbidden, handler.ErrForbidden),
	httperr.On(team.ErrAlreadyMember, handler.ErrConflict),
	httperr.On(project.ErrOwnerImmutable, handler.NewHTTPError(http.StatusForbidden, "owner_immutable", "")),
	httperr.On(invite.ErrInvalidInvite, httperr.BadRequest("invalid_invite")),
	httperr.On(invite.ErrMismatch, httperr.BadRequest("invite_mismatch")),
	httperr.On(user.ErrNotFound, handler.ErrNotFound),
}
