// Package auth handles credentials and sessions: password and Google sign
// in, signed session tokens with revocation, and password reset tickets.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/sanitizer"
	"github.com/dmitrymomot/taskflow/pkg/token"
	"github.com/dmitrymomot/taskflow/pkg/validator"
	"github.com/dmitrymomot/taskflow/svc/user"
)

// SubjectPasswordReset is the subject of reset tickets.
const SubjectPasswordReset = "password_reset"

// bcrypt rejects longer inputs.
const maxPasswordBytes = 72

type Config struct {
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"10"`
	ResetTicketTTL time.Duration `env:"RESET_TICKET_TTL" envDefault:"15m"`
	TicketSecret   string        `env:"JWT_SECRET,required"`
}

// Users is the part of the user store auth depends on.
type Users interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// Revocations remembers revoked token ids until the token would expire.
type Revocations interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// StateStore keeps OAuth state tokens. Consume reports whether the state
// existed and removes it.
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (bool, error)
}

// TicketStore marks reset tickets as used. Consume returns false when the
// ticket was consumed before. Release makes a consumed ticket usable again.
type TicketStore interface {
	Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, jti string) error
}

// Indexer receives new accounts for search.
type Indexer interface {
	Index(ctx context.Context, u *user.User)
}

// Session is returned after a successful sign in.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *user.User `json:"user,omitempty"`
}

// ResetTicket is the signed payload that authorizes a password change.
type ResetTicket struct {
	ID      string `json:"jti"`
	Email   string `json:"email"`
	Subject string `json:"sub"`
	Exp     int64  `json:"exp"`
}

func (t ResetTicket) ExpiresAt() time.Time { return time.Unix(t.Exp, 0) }

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Img      string `json:"img"`
}

type ResetInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Ticket   string `json:"ticket"`
}

type Service struct {
	cfg         Config
	users       Users
	tokens      *jwt.Service
	revocations Revocations
	states      StateStore
	tickets     TicketStore
	google      GoogleProvider
	googleTTL   time.Duration
	indexer     Indexer
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithGoogle enables federated sign in.
func WithGoogle(p GoogleProvider, states StateStore, stateTTL time.Duration) Option {
	return func(s *Service) {
		s.google = p
		s.states = states
		s.googleTTL = stateTTL
	}
}

func WithIndexer(i Indexer) Option {
	return func(s *Service) { s.indexer = i }
}

func NewService(cfg Config, users Users, tokens *jwt.Service, revocations Revocations, tickets TicketStore, opts ...Option) *Service {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.ResetTicketTTL <= 0 {
		cfg.ResetTicketTTL = 15 * time.Minute
	}
	s := &Service{
		cfg:         cfg,
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		tickets:     tickets,
		googleTTL:   10 * time.Minute,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.googleTTL <= 0 {
		s.googleTTL = 10 * time.Minute
	}
	s.logger = s.logger.With(logger.Component("auth"))
	return s
}

// Register creates a password account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = sanitizer.NormalizeEmail(in.Email)
	in.Name = sanitizer.NormalizeName(in.Name)
	if err := validator.Apply(
		validator.Required("email", in.Email),
		validator.ValidEmail("email", in.Email),
		validator.MaxLen("name", in.Name, 120),
		validator.Required("password", in.Password),
		validator.MaxBytes("password", in.Password, maxPasswordBytes),
		validator.ValidURL("img", in.Img),
	); err != nil {
		return nil, err
	}
	if in.Name == "" {
		in.Name, _, _ = strings.Cut(in.Email, "@")
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, user.ErrEmailTaken
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := &user.User{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Email:         in.Email,
		PasswordHash:  string(hash),
		Img:           in.Img,
		Projects:      []string{},
		Teams:         []string{},
		Notifications: []user.Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", logger.UserID(u.ID), logger.Event("user.registered"))
	s.index(ctx, u)

	return s.session(ctx, u)
}

// Authenticate checks a password against the stored hash.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.Required("email", email),
		validator.ValidEmail("email", email),
	); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.HasPassword() {
		return nil, ErrFederatedOnly
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(ctx, u)
}

// GoogleAuthURL starts a federated sign in and stores its state.
func (s *Service) GoogleAuthURL(ctx context.Context) (string, error) {
	if s.google == nil {
		return "", ErrFederatedDisabled
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	if err := s.states.Save(ctx, state, s.googleTTL); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}
	return s.google.AuthURL(state), nil
}

// FederatedAuthenticate finishes a Google sign in. Accounts are matched by
// verified email and created on first sign in without a password.
func (s *Service) FederatedAuthenticate(ctx context.Context, code, state string) (*Session, error) {
	if s.google == nil {
		return nil, ErrFederatedDisabled
	}
	if err := validator.Apply(
		validator.Required("code", code),
		validator.Required("state", state),
	); err != nil {
		return nil, err
	}

	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("consume state: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	profile, err := s.google.ResolveProfile(ctx, code)
	if err != nil {
		return nil, err
	}
	if !profile.EmailVerified {
		return nil, ErrUnverifiedEmail
	}
	email := sanitizer.NormalizeEmail(profile.Email)
	if email == "" {
		return nil, ErrUnverifiedEmail
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.session(ctx, u)
	case !errors.Is(err, user.ErrNotFound):
		return nil, err
	}

	name := sanitizer.NormalizeName(profile.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	now := time.Now().UTC()
	u = &user.User{
		ID:            uuid.NewString(),
		Name:          name,
		Email:         email,
		GoogleSignIn:  true,
		Img:           profile.Picture,
		Projects:      []string{},
		Teams:         []string{},
		Notifications: []user.Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered with google", logger.UserID(u.ID), logger.Event("user.registered"))
	s.index(ctx, u)

	return s.session(ctx, u)
}

// IssueToken signs a session token for userID.
func (s *Service) IssueToken(userID string) (string, time.Time, error) {
	tok, claims, err := s.tokens.Issue(userID)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, claims.ExpiresAt.Time, nil
}

// Verify parses the token and rejects revoked ones. It satisfies
// jwt.Verifier.
func (s *Service) Verify(ctx context.Context, raw string) (jwt.Claims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return jwt.Claims{}, errors.Join(ErrUnauthorized, err)
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return jwt.Claims{}, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return jwt.Claims{}, errors.Join(ErrUnauthorized, ErrTokenRevoked)
	}
	return claims, nil
}

// Refresh issues a new token for the same subject and revokes the old one.
func (s *Service) Refresh(ctx context.Context, raw string) (*Session, error) {
	claims, err := s.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	tok, exp, err := s.IssueToken(claims.UserID())
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp}, nil
}

// Logout revokes the token.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.Verify(ctx, raw)
	if err != nil {
		return err
	}
	return s.revoke(ctx, claims)
}

// FindByEmail returns the account registered with email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.Required("email", email),
		validator.ValidEmail("email", email),
	); err != nil {
		return nil, err
	}
	return s.users.GetByEmail(ctx, email)
}

// IssueResetTicket signs a single use ticket authorizing a password change
// for email.
func (s *Service) IssueResetTicket(email string) (string, error) {
	return token.GenerateToken(ResetTicket{
		ID:      uuid.NewString(),
		Email:   sanitizer.NormalizeEmail(email),
		Subject: SubjectPasswordReset,
		Exp:     time.Now().Add(s.cfg.ResetTicketTTL).Unix(),
	}, s.cfg.TicketSecret)
}

// ResetPassword replaces the password hash when the ticket is valid, unused
// and issued for the same email. The google sign in flag is left as is.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) error {
	in.Email = sanitizer.NormalizeEmail(in.Email)
	if err := validator.Apply(
		validator.Required("email", in.Email),
		validator.ValidEmail("email", in.Email),
		validator.Required("password", in.Password),
		validator.MaxBytes("password", in.Password, maxPasswordBytes),
		validator.Required("ticket", in.Ticket),
	); err != nil {
		return err
	}

	ticket, err := token.ParseToken[ResetTicket](in.Ticket, s.cfg.TicketSecret)
	if err != nil {
		return errors.Join(ErrInvalidTicket, err)
	}
	if ticket.Subject != SubjectPasswordReset || ticket.Email != in.Email || ticket.ID == "" {
		return ErrInvalidTicket
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	fresh, err := s.tickets.Consume(ctx, ticket.ID, time.Until(ticket.ExpiresAt()))
	if err != nil {
		return fmt.Errorf("consume reset ticket: %w", err)
	}
	if !fresh {
		return errors.Join(ErrInvalidTicket, ErrTicketUsed)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, string(hash)); err != nil {
		if rerr := s.tickets.Release(ctx, ticket.ID); rerr != nil {
			s.logger.ErrorContext(ctx, "failed to release reset ticket", logger.UserID(u.ID), logger.Error(rerr))
		}
		return err
	}
	s.logger.InfoContext(ctx, "password reset", logger.UserID(u.ID), logger.Event("user.password_reset"))
	return nil
}

func (s *Service) session(ctx context.Context, u *user.User) (*Session, error) {
	tok, exp, err := s.IssueToken(u.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue session token", logger.UserID(u.ID), logger.Error(err))
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

func (s *Service) revoke(ctx context.Context, claims jwt.Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = max(time.Until(claims.ExpiresAt.Time), time.Second)
	}
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) index(ctx context.Context, u *user.User) {
	if s.indexer != nil {
		s.indexer.Index(ctx, u)
	}
}
