// Package team manages teams, their members and the projects created inside
// a team. Membership rules mirror projects.
package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/sanitizer"
	"github.com/dmitrymomot/taskflow/pkg/validator"
	"github.com/dmitrymomot/taskflow/svc/invite"
	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/user"
)

const (
	PermRead          = "team.read"
	PermUpdate        = "team.update"
	PermDelete        = "team.delete"
	PermInvite        = "team.invite"
	PermManageMembers = "team.manage_members"
	PermAddProject    = "team.add_project"
)

const (
	maxNameLen = 120
	maxDescLen = 5000
	maxTools   = 20
	maxInvites = 50
)

type Store interface {
	Create(ctx context.Context, t *Team) error
	Get(ctx context.Context, id string) (*Team, error)
	Replace(ctx context.Context, t *Team) error
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, id string, m project.Member) error
	RemoveMembers(ctx context.Context, id string, userIDs []string) error
	AddProject(ctx context.Context, id, projectID string) error
	ListByMember(ctx context.Context, userID string) ([]Team, error)
}

type Users interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	AddTeam(ctx context.Context, id, teamID string) error
	RemoveTeam(ctx context.Context, id, teamID string) error
}

// Projects creates projects on behalf of a team.
type Projects interface {
	Create(ctx context.Context, ownerID string, in project.CreateInput) (*project.Project, error)
}

type CreateInput struct {
	Name  string `json:"name"`
	Desc  string `json:"desc"`
	Img   string `json:"img"`
	Tools []Tool `json:"tools"`
}

type UpdateInput struct {
	Name  *string `json:"name"`
	Desc  *string `json:"desc"`
	Img   *string `json:"img"`
	Tools *[]Tool `json:"tools"`
}

type AcceptInput struct {
	TeamID string
	UserID string
	Access string
	Role   string
}

type Service struct {
	store    Store
	users    Users
	projects Projects
	notifier project.Notifier
	invites  project.Inviter
	rbac     project.Authorizer
	logger   *slog.Logger
}

func NewService(store Store, users Users, projects Projects, notifier project.Notifier, invites project.Inviter, rbac project.Authorizer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:    store,
		users:    users,
		projects: projects,
		notifier: notifier,
		invites:  invites,
		rbac:     rbac,
		logger:   log.With(logger.Component("team")),
	}
}

func validate(name, desc, img string, tools []Tool) error {
	rules := []validator.Rule{
		validator.Required("name", name),
		validator.MaxLen("name", name, maxNameLen),
		validator.MaxLen("desc", desc, maxDescLen),
		validator.ValidURL("img", img),
		validator.MaxItems("tools", tools, maxTools),
	}
	for i, tool := range tools {
		field := fmt.Sprintf("tools[%d]", i)
		rules = append(rules,
			validator.Required(field+".name", tool.Name),
			validator.Required(field+".link", tool.Link),
			validator.ValidURL(field+".link", tool.Link),
		)
	}
	return validator.Apply(rules...)
}

func cleanTools(tools []Tool) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, Tool{Name: sanitizer.NormalizeName(t.Name), Link: strings.TrimSpace(t.Link)})
	}
	return out
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*Team, error) {
	in.Name = sanitizer.NormalizeName(in.Name)
	in.Desc = strings.TrimSpace(in.Desc)
	in.Tools = cleanTools(in.Tools)
	if err := validate(in.Name, in.Desc, in.Img, in.Tools); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &Team{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Desc:      in.Desc,
		Img:       in.Img,
		Tools:     in.Tools,
		OwnerID:   ownerID,
		Members:   []project.Member{{UserID: ownerID, Role: "Owner", Access: project.AccessOwner}},
		Projects:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	if err := s.users.AddTeam(ctx, ownerID, t.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to link team to owner", logger.TeamID(t.ID), logger.UserID(ownerID), logger.Error(err))
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Team, error) {
	t, _, err := s.authorize(ctx, userID, id, PermRead)
	return t, err
}

func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*Team, error) {
	t, _, err := s.authorize(ctx, userID, id, PermUpdate)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		t.Name = sanitizer.NormalizeName(*in.Name)
	}
	if in.Desc != nil {
		t.Desc = strings.TrimSpace(*in.Desc)
	}
	if in.Img != nil {
		t.Img = *in.Img
	}
	if in.Tools != nil {
		t.Tools = cleanTools(*in.Tools)
	}
	if err := validate(t.Name, t.Desc, t.Img, t.Tools); err != nil {
		return nil, err
	}

	t.UpdatedAt = time.Now().UTC()
	if err := s.store.Replace(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes the team. Projects created in the team are kept.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	t, _, err := s.authorize(ctx, userID, id, PermDelete)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	for _, memberID := range t.MemberIDs() {
		if err := s.users.RemoveTeam(ctx, memberID, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to unlink deleted team", logger.TeamID(id), logger.UserID(memberID), logger.Error(err))
		}
	}
	return nil
}

func (s *Service) Invite(ctx context.Context, userID, id string, in []project.InviteInput) ([]user.Profile, error) {
	t, inviter, err := s.authorize(ctx, userID, id, PermInvite)
	if err != nil {
		return nil, err
	}
	if err := validator.Apply(
		validator.Rule{Check: func() bool { return len(in) > 0 }, Error: validator.FieldError{Field: "members", Message: "is required"}},
		validator.MaxItems("members", in, maxInvites),
	); err != nil {
		return nil, err
	}

	invitees, err := project.ResolveInvitees(ctx, s.users, s.rbac, inviter.Access, in)
	if err != nil {
		return nil, err
	}
	from, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	invited := make([]user.Profile, 0, len(invitees))
	for _, inv := range invitees {
		if _, ok := t.Member(inv.User.ID); ok {
			continue
		}
		claims := invite.Claims{
			Kind:     invite.KindTeam,
			TargetID: t.ID,
			UserID:   inv.User.ID,
			Access:   inv.Access,
			Role:     inv.Role,
		}
		if err := project.SendInvite(ctx, s.invites, s.notifier, s.logger, claims, inv.User, from.Name, t.Name); err != nil {
			return nil, err
		}
		invited = append(invited, inv.User.Profile())
	}
	return invited, nil
}

func (s *Service) AcceptInvite(ctx context.Context, code string, in AcceptInput) (*Team, error) {
	claims, err := s.invites.Verify(code, invite.Claims{
		Kind:     invite.KindTeam,
		TargetID: in.TeamID,
		UserID:   in.UserID,
		Access:   in.Access,
		Role:     in.Role,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, claims.UserID); err != nil {
		return nil, err
	}
	current, err := s.store.Get(ctx, claims.TargetID)
	if err != nil {
		return nil, err
	}
	if _, ok := current.Member(claims.UserID); ok {
		return nil, ErrAlreadyMember
	}
	if err := s.invites.Redeem(ctx, claims); err != nil {
		return nil, err
	}
	if err := s.store.AddMember(ctx, claims.TargetID, project.Member{
		UserID: claims.UserID,
		Role:   claims.Role,
		Access: claims.Access,
	}); err != nil {
		return nil, err
	}
	if err := s.users.AddTeam(ctx, claims.UserID, claims.TargetID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, claims.TargetID)
}

func (s *Service) UpdateMembers(ctx context.Context, userID, id string, members []project.Member) (*Team, error) {
	t, actor, err := s.authorize(ctx, userID, id, PermManageMembers)
	if err != nil {
		return nil, err
	}
	if err := project.ApplyMemberUpdates(t.Members, t.OwnerID, actor.Access, s.rbac, members); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now().UTC()
	if err := s.store.Replace(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) RemoveMembers(ctx context.Context, userID, id string, userIDs []string) (*Team, error) {
	t, _, err := s.authorize(ctx, userID, id, PermManageMembers)
	if err != nil {
		return nil, err
	}
	userIDs = sanitizer.CleanList(userIDs)
	if len(userIDs) == 0 {
		return nil, validator.ValidationErrors{{Field: "members", Message: "is required"}}
	}
	if slices.Contains(userIDs, t.OwnerID) {
		return nil, project.ErrOwnerImmutable
	}

	if err := s.store.RemoveMembers(ctx, id, userIDs); err != nil {
		return nil, err
	}
	for _, uid := range userIDs {
		if _, ok := t.Member(uid); !ok {
			continue
		}
		if err := s.users.RemoveTeam(ctx, uid, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to unlink removed member", logger.TeamID(id), logger.UserID(uid), logger.Error(err))
		}
	}
	return s.store.Get(ctx, id)
}

// AddProject creates a project owned by userID inside the team. Every team
// member joins the project with the same access, capped below owner.
func (s *Service) AddProject(ctx context.Context, userID, id string, in project.CreateInput) (*project.Project, error) {
	t, _, err := s.authorize(ctx, userID, id, PermAddProject)
	if err != nil {
		return nil, err
	}

	in.TeamID = t.ID
	in.Members = make([]project.Member, 0, len(t.Members))
	for _, m := range t.Members {
		if m.UserID == userID {
			continue
		}
		if m.Access == project.AccessOwner {
			m.Access = "admin"
		}
		in.Members = append(in.Members, m)
	}

	p, err := s.projects.Create(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddProject(ctx, t.ID, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// ListForUser returns the teams userID belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Team, error) {
	return s.store.ListByMember(ctx, userID)
}

func (s *Service) authorize(ctx context.Context, userID, id, permission string) (*Team, project.Member, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, project.Member{}, err
	}
	m, ok := t.Member(userID)
	if !ok {
		return nil, project.Member{}, ErrNotMember
	}
	if err := s.rbac.Can(m.Access, permission); err != nil {
		return nil, project.Member{}, errors.Join(ErrForbidden, err)
	}
	return t, m, nil
}
