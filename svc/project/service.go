// Package project manages projects, their members, invitations and works.
//
// Every operation runs on behalf of an authenticated user. Access to a
// project is granted through membership and the member's access level is an
// rbac role.
package project

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
	"github.com/dmitrymomot/taskflow/svc/user"
)

const (
	PermRead          = "project.read"
	PermUpdate        = "project.update"
	PermDelete        = "project.delete"
	PermInvite        = "project.invite"
	PermManageMembers = "project.manage_members"
	PermWorksRead     = "project.works.read"
	PermWorksWrite    = "project.works.write"
)

const (
	AccessOwner   = "owner"
	AccessViewer  = "viewer"
	maxTags       = 20
	maxInvites    = 50
	maxTasks      = 100
	maxTitleLen   = 120
	maxDescLen    = 5000
	defaultStatus = "working"
)

// Store persists projects and works. AddMember returns ErrAlreadyMember when
// the user is a member already.
type Store interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	Replace(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, id string, m Member) error
	RemoveMembers(ctx context.Context, id string, userIDs []string) error
	ListByMember(ctx context.Context, userID string) ([]Project, error)
	AddWork(ctx context.Context, w *Work) error
	ListWorks(ctx context.Context, projectIDs []string) ([]Work, error)
	ListWorksAssignedTo(ctx context.Context, userID string) ([]Work, error)
}

// Users is the part of the user store projects depend on.
type Users interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	AddProject(ctx context.Context, id, projectID string) error
	RemoveProject(ctx context.Context, id, projectID string) error
}

type Notifier interface {
	Notify(ctx context.Context, userID string, typ user.NotificationType, message, link string) error
}

type Inviter interface {
	Issue(c invite.Claims) (string, error)
	Verify(code string, want invite.Claims) (invite.Claims, error)
	Redeem(ctx context.Context, c invite.Claims) error
	Link(code string, c invite.Claims) string
	Send(ctx context.Context, m invite.Message) error
}

type Authorizer interface {
	Can(role, permission string) error
	CanGrant(role, target string) error
	VerifyRole(role string) error
}

type CreateInput struct {
	Title  string   `json:"title"`
	Desc   string   `json:"desc"`
	Img    string   `json:"img"`
	Tags   []string `json:"tags"`
	Status string   `json:"status"`

	// Set when a team creates the project.
	TeamID  string   `json:"-"`
	Members []Member `json:"-"`
}

type UpdateInput struct {
	Title  *string   `json:"title"`
	Desc   *string   `json:"desc"`
	Img    *string   `json:"img"`
	Tags   *[]string `json:"tags"`
	Status *string   `json:"status"`
}

// InviteInput identifies the invitee by id or email.
type InviteInput struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Access string `json:"access"`
}

type AcceptInput struct {
	ProjectID string
	UserID    string
	Access    string
	Role      string
}

type TaskInput struct {
	Title     string    `json:"title"`
	Desc      string    `json:"desc"`
	Status    string    `json:"status"`
	Members   []string  `json:"members"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type WorkInput struct {
	Title string      `json:"title"`
	Desc  string      `json:"desc"`
	Tags  []string    `json:"tags"`
	Tasks []TaskInput `json:"tasks"`
}

type Service struct {
	store    Store
	users    Users
	notifier Notifier
	invites  Inviter
	rbac     Authorizer
	logger   *slog.Logger
}

func NewService(store Store, users Users, notifier Notifier, invites Inviter, rbac Authorizer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:    store,
		users:    users,
		notifier: notifier,
		invites:  invites,
		rbac:     rbac,
		logger:   log.With(logger.Component("project")),
	}
}

// Create stores a project owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*Project, error) {
	in.Title = sanitizer.NormalizeName(in.Title)
	in.Desc = strings.TrimSpace(in.Desc)
	in.Tags = sanitizer.CleanList(in.Tags)
	if in.Status == "" {
		in.Status = defaultStatus
	}
	if err := validator.Apply(
		validator.Required("title", in.Title),
		validator.MaxLen("title", in.Title, maxTitleLen),
		validator.MaxLen("desc", in.Desc, maxDescLen),
		validator.ValidURL("img", in.Img),
		validator.MaxItems("tags", in.Tags, maxTags),
		validator.InList("status", in.Status, Statuses),
	); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Project{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Desc:      in.Desc,
		Img:       in.Img,
		Tags:      in.Tags,
		Status:    in.Status,
		OwnerID:   ownerID,
		TeamID:    in.TeamID,
		Members:   []Member{{UserID: ownerID, Role: "Owner", Access: AccessOwner}},
		Works:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range in.Members {
		if _, ok := p.Member(m.UserID); !ok {
			p.Members = append(p.Members, m)
		}
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	for _, m := range p.Members {
		if err := s.users.AddProject(ctx, m.UserID, p.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to link project to member",
				logger.ProjectID(p.ID), logger.UserID(m.UserID), logger.Error(err))
		}
	}
	return p, nil
}

// Get returns the project if userID may read it.
func (s *Service) Get(ctx context.Context, userID, id string) (*Project, error) {
	p, _, err := s.authorize(ctx, userID, id, PermRead)
	return p, err
}

func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*Project, error) {
	p, _, err := s.authorize(ctx, userID, id, PermUpdate)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		p.Title = sanitizer.NormalizeName(*in.Title)
	}
	if in.Desc != nil {
		p.Desc = strings.TrimSpace(*in.Desc)
	}
	if in.Img != nil {
		p.Img = *in.Img
	}
	if in.Tags != nil {
		p.Tags = sanitizer.CleanList(*in.Tags)
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if err := validator.Apply(
		validator.Required("title", p.Title),
		validator.MaxLen("title", p.Title, maxTitleLen),
		validator.MaxLen("desc", p.Desc, maxDescLen),
		validator.ValidURL("img", p.Img),
		validator.MaxItems("tags", p.Tags, maxTags),
		validator.Required("status", p.Status),
		validator.InList("status", p.Status, Statuses),
	); err != nil {
		return nil, err
	}

	p.UpdatedAt = time.Now().UTC()
	if err := s.store.Replace(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the project and unlinks it from every member.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	p, _, err := s.authorize(ctx, userID, id, PermDelete)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	for _, memberID := range p.MemberIDs() {
		if err := s.users.RemoveProject(ctx, memberID, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to unlink deleted project",
				logger.ProjectID(id), logger.UserID(memberID), logger.Error(err))
		}
	}
	return nil
}

// Invite emails an invitation code to every invitee and adds an invite
// notification. Existing members are skipped. It returns the invited users.
func (s *Service) Invite(ctx context.Context, userID, id string, in []InviteInput) ([]user.Profile, error) {
	p, inviter, err := s.authorize(ctx, userID, id, PermInvite)
	if err != nil {
		return nil, err
	}
	if err := validator.Apply(
		validator.Rule{Check: func() bool { return len(in) > 0 }, Error: validator.FieldError{Field: "members", Message: "is required"}},
		validator.MaxItems("members", in, maxInvites),
	); err != nil {
		return nil, err
	}

	invitees, err := ResolveInvitees(ctx, s.users, s.rbac, inviter.Access, in)
	if err != nil {
		return nil, err
	}

	from, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	invited := make([]user.Profile, 0, len(invitees))
	for _, inv := range invitees {
		if _, ok := p.Member(inv.User.ID); ok {
			continue
		}
		claims := invite.Claims{
			Kind:     invite.KindProject,
			TargetID: p.ID,
			UserID:   inv.User.ID,
			Access:   inv.Access,
			Role:     inv.Role,
		}
		if err := SendInvite(ctx, s.invites, s.notifier, s.logger, claims, inv.User, from.Name, p.Title); err != nil {
			return nil, err
		}
		invited = append(invited, inv.User.Profile())
	}
	return invited, nil
}

// AcceptInvite adds the invitee once the code matches the presented values.
// The code is redeemed on success, so it cannot be replayed after removal.
func (s *Service) AcceptInvite(ctx context.Context, code string, in AcceptInput) (*Project, error) {
	claims, err := s.invites.Verify(code, invite.Claims{
		Kind:     invite.KindProject,
		TargetID: in.ProjectID,
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
	if err := s.store.AddMember(ctx, claims.TargetID, Member{
		UserID: claims.UserID,
		Role:   claims.Role,
		Access: claims.Access,
	}); err != nil {
		return nil, err
	}
	if err := s.users.AddProject(ctx, claims.UserID, claims.TargetID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, claims.TargetID)
}

// UpdateMembers changes role and access of existing members.
func (s *Service) UpdateMembers(ctx context.Context, userID, id string, members []Member) (*Project, error) {
	p, actor, err := s.authorize(ctx, userID, id, PermManageMembers)
	if err != nil {
		return nil, err
	}
	if err := ApplyMemberUpdates(p.Members, p.OwnerID, actor.Access, s.rbac, members); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.Replace(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveMembers drops members and unlinks the project from them. The owner
// cannot be removed.
func (s *Service) RemoveMembers(ctx context.Context, userID, id string, userIDs []string) (*Project, error) {
	p, _, err := s.authorize(ctx, userID, id, PermManageMembers)
	if err != nil {
		return nil, err
	}
	userIDs = sanitizer.CleanList(userIDs)
	if len(userIDs) == 0 {
		return nil, validator.ValidationErrors{{Field: "members", Message: "is required"}}
	}
	if slices.Contains(userIDs, p.OwnerID) {
		return nil, ErrOwnerImmutable
	}

	if err := s.store.RemoveMembers(ctx, id, userIDs); err != nil {
		return nil, err
	}
	for _, uid := range userIDs {
		if _, ok := p.Member(uid); !ok {
			continue
		}
		if err := s.users.RemoveProject(ctx, uid, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to unlink removed member",
				logger.ProjectID(id), logger.UserID(uid), logger.Error(err))
		}
	}
	return s.store.Get(ctx, id)
}

// AddWork creates a work with its tasks. Task assignees must be members.
func (s *Service) AddWork(ctx context.Context, userID, id string, in WorkInput) (*Work, error) {
	p, _, err := s.authorize(ctx, userID, id, PermWorksWrite)
	if err != nil {
		return nil, err
	}

	in.Title = sanitizer.NormalizeName(in.Title)
	in.Tags = sanitizer.CleanList(in.Tags)
	rules := []validator.Rule{
		validator.Required("title", in.Title),
		validator.MaxLen("title", in.Title, maxTitleLen),
		validator.MaxLen("desc", in.Desc, maxDescLen),
		validator.MaxItems("tags", in.Tags, maxTags),
		validator.MaxItems("tasks", in.Tasks, maxTasks),
	}

	w := &Work{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		Title:     in.Title,
		Desc:      strings.TrimSpace(in.Desc),
		Tags:      in.Tags,
		CreatedBy: userID,
		Tasks:     make([]Task, 0, len(in.Tasks)),
		CreatedAt: time.Now().UTC(),
	}
	for i, t := range in.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		t.Title = sanitizer.NormalizeName(t.Title)
		t.Members = sanitizer.CleanList(t.Members)
		if t.Status == "" {
			t.Status = TaskStatuses[0]
		}
		members := t.Members
		start, end := t.StartDate, t.EndDate
		rules = append(rules,
			validator.Required(field+".title", t.Title),
			validator.MaxLen(field+".title", t.Title, maxTitleLen),
			validator.InList(field+".status", t.Status, TaskStatuses),
			validator.Rule{
				Check: func() bool {
					return !slices.ContainsFunc(members, func(uid string) bool { _, ok := p.Member(uid); return !ok })
				},
				Error: validator.FieldError{Field: field + ".members", Message: "must be project members"},
			},
			validator.Rule{
				Check: func() bool { return start.IsZero() || end.IsZero() || !end.Before(start) },
				Error: validator.FieldError{Field: field + ".end_date", Message: "must not be before start_date"},
			},
		)
		w.Tasks = append(w.Tasks, Task{
			ID:        uuid.NewString(),
			Title:     t.Title,
			Desc:      strings.TrimSpace(t.Desc),
			Status:    t.Status,
			Members:   t.Members,
			StartDate: t.StartDate,
			EndDate:   t.EndDate,
		})
	}
	if err := validator.Apply(rules...); err != nil {
		return nil, err
	}

	if err := s.store.AddWork(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) ListWorks(ctx context.Context, userID, id string) ([]Work, error) {
	if _, _, err := s.authorize(ctx, userID, id, PermWorksRead); err != nil {
		return nil, err
	}
	return s.store.ListWorks(ctx, []string{id})
}

// ListForUser returns the projects userID is a member of.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Project, error) {
	return s.store.ListByMember(ctx, userID)
}

// WorksForUser returns the works of every project of userID.
func (s *Service) WorksForUser(ctx context.Context, userID string) ([]Work, error) {
	projects, err := s.store.ListByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []Work{}, nil
	}
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return s.store.ListWorks(ctx, ids)
}

// TasksForUser returns the tasks assigned to userID.
func (s *Service) TasksForUser(ctx context.Context, userID string) ([]AssignedTask, error) {
	works, err := s.store.ListWorksAssignedTo(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []AssignedTask{}
	for _, w := range works {
		for _, t := range w.Tasks {
			if slices.Contains(t.Members, userID) {
				out = append(out, AssignedTask{Task: t, WorkID: w.ID, WorkTitle: w.Title, ProjectID: w.ProjectID})
			}
		}
	}
	return out, nil
}

func (s *Service) authorize(ctx context.Context, userID, id, permission string) (*Project, Member, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, Member{}, err
	}
	m, ok := p.Member(userID)
	if !ok {
		return nil, Member{}, ErrNotMember
	}
	if err := s.rbac.Can(m.Access, permission); err != nil {
		return nil, Member{}, errors.Join(ErrForbidden, err)
	}
	return p, m, nil
}
