package team

import (
	"net/http"

	"github.com/dmitrymomot/taskflow/handler"
	"github.com/dmitrymomot/taskflow/modules/httperr"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/team"
	"github.com/dmitrymomot/taskflow/svc/user"
)

var errForeignInvite = handler.ErrForbidden.WithMessage("invitation was issued to another user")

type IDRequest struct {
	ID string `path:"id"`
}

type UpdateRequest struct {
	ID string `path:"id" json:"-"`
	team.UpdateInput
}

type InviteRequest struct {
	ID      string                `path:"id" json:"-"`
	Members []project.InviteInput `json:"members"`
}

type AcceptRequest struct {
	Code   string `path:"code"`
	TeamID string `query:"teamid"`
	UserID string `query:"userid"`
	Access string `query:"access"`
	Role   string `query:"role"`
}

type AddProjectRequest struct {
	ID string `path:"id" json:"-"`
	project.CreateInput
}

type MembersRequest struct {
	ID      string           `path:"id" json:"-"`
	Members []project.Member `json:"members"`
}

type RemoveMembersRequest struct {
	ID      string   `path:"id" json:"-"`
	Members []string `json:"members"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type InviteResponse struct {
	Message string         `json:"message"`
	Invited []user.Profile `json:"invited"`
}

type AcceptResponse struct {
	Message string     `json:"message"`
	Team    *team.Team `json:"team"`
}

func (m *Module) create(ctx handler.Context, req team.CreateInput) handler.Response {
	t, err := m.teams.Create(ctx, jwt.UserIDFromContext(ctx), req)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(t, handler.WithJSONStatus(http.StatusCreated))
}

func (m *Module) get(ctx handler.Context, req IDRequest) handler.Response {
	t, err := m.teams.Get(ctx, jwt.UserIDFromContext(ctx), req.ID)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(t)
}

func (m *Module) update(ctx handler.Context, req UpdateRequest) handler.Response {
	t, err := m.teams.Update(ctx, jwt.UserIDFromContext(ctx), req.ID, req.UpdateInput)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(t)
}

func (m *Module) delete(ctx handler.Context, req IDRequest) handler.Response {
	if err := m.teams.Delete(ctx, jwt.UserIDFromContext(ctx), req.ID); err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(MessageResponse{Message: "team deleted"})
}

func (m *Module) invite(ctx handler.Context, req InviteRequest) handler.Response {
	invited, err := m.teams.Invite(ctx, jwt.UserIDFromContext(ctx), req.ID, req.Members)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(InviteResponse{Message: "invitations sent", Invited: invited})
}

func (m *Module) acceptInvite(ctx handler.Context, req AcceptRequest) handler.Response {
	if req.UserID != jwt.UserIDFromContext(ctx) {
		return httperr.Fail(errForeignInvite)
	}
	t, err := m.teams.AcceptInvite(ctx, req.Code, team.AcceptInput{
		TeamID: req.TeamID,
		UserID: req.UserID,
		Access: req.Access,
		Role:   req.Role,
	})
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(AcceptResponse{Message: "invitation accepted", Team: t})
}

func (m *Module) addProject(ctx handler.Context, req AddProjectRequest) handler.Response {
	p, err := m.teams.AddProject(ctx, jwt.UserIDFromContext(ctx), req.ID, req.CreateInput)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(p, handler.WithJSONStatus(http.StatusCreated))
}

func (m *Module) updateMembers(ctx handler.Context, req MembersRequest) handler.Response {
	t, err := m.teams.UpdateMembers(ctx, jwt.UserIDFromContext(ctx), req.ID, req.Members)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(t)
}

func (m *Module) removeMembers(ctx handler.Context, req RemoveMembersRequest) handler.Response {
	t, err := m.teams.RemoveMembers(ctx, jwt.UserIDFromContext(ctx), req.ID, req.Members)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(t)
}
