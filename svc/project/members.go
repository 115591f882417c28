package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/sanitizer"
	"github.com/dmitrymomot/taskflow/pkg/validator"
	"github.com/dmitrymomot/taskflow/svc/invite"
	"github.com/dmitrymomot/taskflow/svc/user"
)

// Invitee is a resolved invitation target.
type Invitee struct {
	User   *user.User
	Access string
	Role   string
}

type userLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// ResolveInvitees looks up every invitee and checks that inviterAccess may
// grant the requested access. Unknown users and disallowed access levels
// are reported as validation errors.
func ResolveInvitees(ctx context.Context, users userLookup, rbac Authorizer, inviterAccess string, in []InviteInput) ([]Invitee, error) {
	var verrs validator.ValidationErrors
	out := make([]Invitee, 0, len(in))

	for i, inv := range in {
		field := fmt.Sprintf("members[%d]", i)
		if inv.Access == "" {
			inv.Access = AccessViewer
		}
		role := sanitizer.NormalizeName(inv.Role)
		if err := validator.Apply(validator.MaxLen(field+".role", role, 50)); err != nil {
			ve, _ := validator.Extract(err)
			verrs = append(verrs, ve...)
			continue
		}
		if err := rbac.CanGrant(inviterAccess, inv.Access); err != nil {
			verrs = append(verrs, validator.FieldError{Field: field + ".access", Message: "cannot be granted"})
			continue
		}

		var (
			u   *user.User
			err error
		)
		switch {
		case inv.ID != "":
			u, err = users.GetByID(ctx, inv.ID)
		case inv.Email != "":
			u, err = users.GetByEmail(ctx, sanitizer.NormalizeEmail(inv.Email))
		default:
			verrs = append(verrs, validator.FieldError{Field: field, Message: "id or email is required"})
			continue
		}
		if errors.Is(err, user.ErrNotFound) {
			verrs = append(verrs, validator.FieldError{Field: field, Message: "user not found"})
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Invitee{User: u, Access: inv.Access, Role: role})
	}

	if len(verrs) > 0 {
		return nil, verrs
	}
	return out, nil
}

// SendInvite issues the code, emails it and adds an invite notification.
// Email failures are logged, the notification still carries the link.
func SendInvite(ctx context.Context, invites Inviter, notifier Notifier, log *slog.Logger, claims invite.Claims, to *user.User, inviterName, targetName string) error {
	code, err := invites.Issue(claims)
	if err != nil {
		return fmt.Errorf("issue invite: %w", err)
	}

	if err := invites.Send(ctx, invite.Message{
		To:          to.Email,
		InviterName: inviterName,
		TargetName:  targetName,
		Code:        code,
		Claims:      claims,
	}); err != nil {
		log.ErrorContext(ctx, "failed to send invitation email",
			logger.UserID(to.ID), logger.Email(to.Email), logger.Error(err))
	}

	msg := fmt.Sprintf("%s invited you to join %s %q", inviterName, claims.Kind, targetName)
	return notifier.Notify(ctx, to.ID, user.NotificationInvite, msg, invites.Link(code, claims))
}

// ApplyMemberUpdates changes role and access in members in place. The owner
// is immutable and actorAccess must be allowed to grant the new access.
func ApplyMemberUpdates(members []Member, ownerID, actorAccess string, rbac Authorizer, updates []Member) error {
	if len(updates) == 0 {
		return validator.ValidationErrors{{Field: "members", Message: "is required"}}
	}

	var verrs validator.ValidationErrors
	for i, upd := range updates {
		field := fmt.Sprintf("members[%d]", i)
		if upd.UserID == ownerID {
			return ErrOwnerImmutable
		}
		idx := -1
		for j := range members {
			if members[j].UserID == upd.UserID {
				idx = j
				break
			}
		}
		if idx < 0 {
			verrs = append(verrs, validator.FieldError{Field: field + ".user_id", Message: "is not a member"})
			continue
		}
		if upd.Access != "" {
			if err := rbac.CanGrant(actorAccess, upd.Access); err != nil {
				verrs = append(verrs, validator.FieldError{Field: field + ".access", Message: "cannot be granted"})
				continue
			}
			if err := rbac.CanGrant(actorAccess, members[idx].Access); err != nil {
				verrs = append(verrs, validator.FieldError{Field: field + ".access", Message: "member outranks you"})
				continue
			}
			members[idx].Access = upd.Access
		}
		if role := sanitizer.NormalizeName(upd.Role); role != "" {
			members[idx].Role = role
		}
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}
