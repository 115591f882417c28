package project

import (
	"net/http"

	"github.com/dmitrymomot/taskflow/handler"
	"github.com/dmitrymomot/taskflow/modules/httperr"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/user"
)

var errForeignInvite = handler.ErrForbidden.WithMessage("invitation was issued to another user")

type IDRequest struct {
	ID string `path:"id"`
}

type UpdateRequest struct {
	ID string `path:"id" json:"-"`
	project.UpdateInput
}

type InviteRequest struct {
	ID      string                `path:"id" json:"-"`
	Members []project.InviteInput `json:"members"`
}

type AcceptRequest struct {
	Code      string `path:"code"`
	ProjectID string `query:"projectid"`
	UserID    string `query:"userid"`
	Access    string `query:"access"`
	Role      string `query:"role"`
}

type WorkRequest struct {
	ID string `path:"id" json:"-"`
	project.WorkInput
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
	Message string           `json:"message"`
	Project *project.Project `json:"project"`
}

func (m *Module) create(ctx handler.Context, req project.CreateInput) handler.Response {
	p, err := m.projects.Create(ctx, jwt.UserIDFromContext(ctx), req)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(p, handler.WithJSONStatus(http.StatusCreated))
}

func (m *Module) get(ctx handler.Context, req IDRequest) handler.Response {
	p, err := m.projects.Get(ctx, jwt.UserIDFromContext(ctx), req.ID)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(p)
}

func (m *Module) update(ctx handler.Context, req UpdateRequest) handler.Response {
	p, err := m.projects.Update(ctx, jwt.UserIDFromContext(ctx), req.ID, req.UpdateInput)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(p)
}

func (m *Module) delete(ctx handler.Context, req IDRequest) handler.Response {
	if err := m.projects.Delete(ctx, jwt.UserIDFromContext(ctx), req.ID); err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(MessageResponse{Message: "project deleted"})
}

func (m *Module) invite(ctx handler.Context, req InviteRequest) handler.Response {
	invited, err := m.projects.Invite(ctx, jwt.UserIDFromContext(ctx), req.ID, req.Members)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(InviteResponse{Message: "invitations sent", Invited: invited})
}

func (m *Module) acceptInvite(ctx handler.Context, req AcceptRequest) handler.Response {
	if req.UserID != jwt.UserIDFromContext(ctx) {
		return httperr.Fail(errForeignInvite)
	}
	p, err := m.projects.AcceptInvite(ctx, req.Code, project.AcceptInput{
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		Access:    req.Access,
		Role:      req.Role,
	})
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(AcceptResponse{Message: "invitation accepted", Project: p})
}

func (m *Module) addWork(ctx handler.Context, req WorkRequest) handler.Response {
	w, err := m.projects.AddWork(ctx, jwt.UserIDFromContext(ctx), req.ID, req.WorkInput)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(w, handler.WithJSONStatus(http.StatusCreated))
}

func (m *Module) listWorks(ctx handler.Context, req IDRequest) handler.Response {
	works, err := m.projects.ListWorks(ctx, jwt.UserIDFromContext(ctx), req.ID)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(works)
}

func (m *Module) updateMembers(ctx handler.Context, req MembersRequest) handler.Response {
	p, err := m.projects.UpdateMembers(ctx, jwt.UserIDFromContext(ctx), req.ID, req.Members)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(p)
}

func (m *Module) removeMembers(ctx handler.Context, req RemoveMembersRequest) handler.Response {
	p, err := m.projects.RemoveMembers(ctx, jwt.UserIDFromContext(ctx), req.ID, req.Members)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(p)
}
