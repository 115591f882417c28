// Package invite issues and verifies invitation codes for projects and
// teams and emails them as a link plus QR code.
//
// A code is a signed token carrying the target, the invitee and the granted
// access. Acceptance repeats those values as query parameters and they must
// match the signed claims. Each code carries an id and can be redeemed once.
package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskflow/pkg/email"
	"github.com/dmitrymomot/taskflow/pkg/email/templates"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/qrcode"
	"github.com/dmitrymomot/taskflow/pkg/token"
)

var (
	ErrInvalidInvite = errors.New("invalid or expired invitation")
	ErrMismatch      = errors.New("invitation does not match request")
	ErrInviteUsed    = errors.New("invitation already used")
)

type Kind string

const (
	KindProject Kind = "project"
	KindTeam    Kind = "team"
)

type Config struct {
	Secret  string        `env:"INVITE_SECRET,required"`
	TTL     time.Duration `env:"INVITE_TTL" envDefault:"168h"`
	BaseURL string        `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	AppName string        `env:"APP_NAME" envDefault:"Taskflow"`
}

// Claims is the signed payload of an invitation code.
type Claims struct {
	ID       string `json:"jti"`
	Kind     Kind   `json:"kind"`
	TargetID string `json:"target_id"`
	UserID   string `json:"user_id"`
	Access   string `json:"access"`
	Role     string `json:"role"`
	Exp      int64  `json:"exp"`
}

func (c Claims) ExpiresAt() time.Time { return time.Unix(c.Exp, 0) }

// Message describes the email sent with an invitation.
type Message struct {
	To          string
	InviterName string
	TargetName  string
	Code        string
	Claims      Claims
}

// Redemptions marks invitation ids as used. Consume returns false when the
// id was already used.
type Redemptions interface {
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

type Service struct {
	cfg         Config
	redemptions Redemptions
	sender      email.EmailSender
	logger      *slog.Logger
}

func NewService(cfg Config, redemptions Redemptions, sender email.EmailSender, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &Service{
		cfg:         cfg,
		redemptions: redemptions,
		sender:      sender,
		logger:      log.With(logger.Component("invite")),
	}
}

// Issue signs c with a fresh id and the configured TTL.
func (s *Service) Issue(c Claims) (string, error) {
	c.ID = uuid.NewString()
	c.Exp = time.Now().Add(s.cfg.TTL).Unix()
	return token.GenerateToken(c, s.cfg.Secret)
}

// Verify parses code and checks it against the values presented on
// acceptance.
func (s *Service) Verify(code string, want Claims) (Claims, error) {
	c, err := token.ParseToken[Claims](code, s.cfg.Secret)
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidInvite, err)
	}
	if c.Kind != want.Kind || c.TargetID != want.TargetID || c.UserID != want.UserID ||
		c.Access != want.Access || c.Role != want.Role {
		return Claims{}, ErrMismatch
	}
	if c.ID == "" {
		return Claims{}, ErrInvalidInvite
	}
	return c, nil
}

// Redeem consumes the code id of c. A second redemption fails with
// ErrInviteUsed joined with ErrInvalidInvite.
func (s *Service) Redeem(ctx context.Context, c Claims) error {
	fresh, err := s.redemptions.Consume(ctx, c.ID, time.Until(c.ExpiresAt()))
	if err != nil {
		return fmt.Errorf("redeem invite: %w", err)
	}
	if !fresh {
		return errors.Join(ErrInvalidInvite, ErrInviteUsed)
	}
	return nil
}

// Link builds the acceptance URL of the client application.
func (s *Service) Link(code string, c Claims) string {
	q := url.Values{}
	q.Set(string(c.Kind)+"id", c.TargetID)
	q.Set("userid", c.UserID)
	q.Set("access", c.Access)
	q.Set("role", c.Role)
	return fmt.Sprintf("%s/%s/invite/%s?%s", s.cfg.BaseURL, c.Kind, url.PathEscape(code), q.Encode())
}

// Send emails the invitation. The QR code is omitted when it cannot be
// generated.
func (s *Service) Send(ctx context.Context, m Message) error {
	link := s.Link(m.Code, m.Claims)

	qr, err := qrcode.DataURI(link, 256)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to generate invite qr code", logger.Error(err))
		qr = ""
	}

	body, err := templates.Render(ctx, templates.Invite(templates.InviteData{
		AppName:     s.cfg.AppName,
		InviterName: m.InviterName,
		TargetKind:  string(m.Claims.Kind),
		TargetName:  m.TargetName,
		Role:        m.Claims.Access,
		Link:        link,
		QRDataURI:   qr,
		TTLHours:    int(s.cfg.TTL.Hours()),
	}))
	if err != nil {
		return fmt.Errorf("render invite email: %w", err)
	}

	return s.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   m.To,
		Subject:  fmt.Sprintf("You are invited to join %s on %s", m.TargetName, s.cfg.AppName),
		BodyHTML: body,
		Tag:      "invite-" + string(m.Claims.Kind),
	})
}
