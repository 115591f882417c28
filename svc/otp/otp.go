// Package otp issues and verifies one-time numeric codes sent by email.
//
// At most one code is outstanding per address: generating a new code
// replaces the previous one. A code is consumed by the first matching
// verification and discarded after too many failed attempts.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/dmitrymomot/taskflow/pkg/async"
	"github.com/dmitrymomot/taskflow/pkg/email"
	"github.com/dmitrymomot/taskflow/pkg/email/templates"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/ratelimiter"
	"github.com/dmitrymomot/taskflow/pkg/sanitizer"
	"github.com/dmitrymomot/taskflow/pkg/validator"
)

// CodeLength is the number of digits of a code.
const CodeLength = 6

var (
	ErrInvalidCode     = errors.New("invalid or expired code")
	ErrTooManyRequests = errors.New("too many code requests, try again later")
)

// Store errors. Both surface as ErrInvalidCode.
var (
	ErrCodeNotFound = errors.New("code not found")
	ErrCodeMismatch = errors.New("code mismatch")
)

// Purpose is why a code was issued.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// Delivery reports what happened to the email within the wait window.
type Delivery string

const (
	DeliverySent    Delivery = "sent"
	DeliveryFailed  Delivery = "failed"
	DeliveryPending Delivery = "pending"
)

type Config struct {
	TTL          time.Duration `env:"OTP_TTL" envDefault:"10m"`
	MaxAttempts  int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	DeliveryWait time.Duration `env:"OTP_DELIVERY_WAIT" envDefault:"3s"`
	SendTimeout  time.Duration `env:"OTP_SEND_TIMEOUT" envDefault:"30s"`
	ExposeCode   bool          `env:"OTP_EXPOSE_CODE" envDefault:"false"`
	AppName      string        `env:"APP_NAME" envDefault:"Taskflow"`
}

// Record is what the store keeps per address. The code itself is never
// stored.
type Record struct {
	CodeHash string
	Purpose  Purpose
	IssuedAt time.Time
}

// Store keeps one record per address. Verify compares and deletes
// atomically, counting failed attempts and dropping the record once
// maxAttempts is reached.
type Store interface {
	Put(ctx context.Context, address string, rec Record, ttl time.Duration) error
	Verify(ctx context.Context, address, codeHash string, maxAttempts int) (Purpose, error)
}

// Limiter throttles code generation per address.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimiter.Result, error)
}

// TicketIssuer signs password reset tickets.
type TicketIssuer interface {
	IssueResetTicket(email string) (string, error)
}

type GenerateResult struct {
	Delivery Delivery `json:"delivery"`
	Code     string   `json:"code,omitempty"`
}

type VerifyResult struct {
	Purpose     Purpose `json:"purpose"`
	ResetTicket string  `json:"reset_ticket,omitempty"`
}

type Service struct {
	cfg     Config
	store   Store
	sender  email.EmailSender
	tickets TicketIssuer
	limiter Limiter
	logger  *slog.Logger
}

type Option func(*Service)

func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(cfg Config, store Store, sender email.EmailSender, tickets TicketIssuer, opts ...Option) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.DeliveryWait <= 0 {
		cfg.DeliveryWait = 3 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	s := &Service{
		cfg:     cfg,
		store:   store,
		sender:  sender,
		tickets: tickets,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("otp"))
	return s
}

// GenerateCode replaces the code of address and emails it. The email is
// sent in the background and awaited for at most DeliveryWait.
func (s *Service) GenerateCode(ctx context.Context, address, name string, purpose Purpose) (*GenerateResult, error) {
	address = sanitizer.NormalizeEmail(address)
	name = sanitizer.NormalizeName(name)
	if purpose == "" {
		purpose = PurposeVerify
	}
	if err := validator.Apply(
		validator.Required("email", address),
		validator.ValidEmail("email", address),
		validator.MaxLen("name", name, 120),
		validator.InList("reason", purpose, []Purpose{PurposeVerify, PurposeReset}),
	); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		res, err := s.limiter.Allow(ctx, address)
		if err != nil {
			s.logger.WarnContext(ctx, "otp rate limiter unavailable", logger.Error(err))
		} else if !res.Allowed() {
			return nil, ErrTooManyRequests
		}
	}

	code, err := generateCode(CodeLength)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, address, Record{
		CodeHash: hashCode(code),
		Purpose:  purpose,
		IssuedAt: time.Now().UTC(),
	}, s.cfg.TTL); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}

	result := &GenerateResult{Delivery: s.deliver(ctx, address, name, code, purpose)}
	if s.cfg.ExposeCode {
		result.Code = code
	}
	return result, nil
}

// VerifyCode consumes the code of address. A reset code yields a reset
// ticket.
func (s *Service) VerifyCode(ctx context.Context, address, code string) (*VerifyResult, error) {
	address = sanitizer.NormalizeEmail(address)
	if err := validator.Apply(
		validator.Required("email", address),
		validator.ValidEmail("email", address),
	); err != nil {
		return nil, err
	}
	if err := validator.Apply(validator.Digits("code", code, CodeLength)); err != nil {
		return nil, ErrInvalidCode
	}

	purpose, err := s.store.Verify(ctx, address, hashCode(code), s.cfg.MaxAttempts)
	switch {
	case errors.Is(err, ErrCodeNotFound), errors.Is(err, ErrCodeMismatch):
		return nil, errors.Join(ErrInvalidCode, err)
	case err != nil:
		return nil, fmt.Errorf("verify code: %w", err)
	}

	res := &VerifyResult{Purpose: purpose}
	if purpose == PurposeReset {
		ticket, err := s.tickets.IssueResetTicket(address)
		if err != nil {
			return nil, fmt.Errorf("issue reset ticket: %w", err)
		}
		res.ResetTicket = ticket
	}
	return res, nil
}

type delivery struct {
	to, name, code string
	purpose        Purpose
}

func (s *Service) deliver(ctx context.Context, address, name, code string, purpose Purpose) Delivery {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SendTimeout)
	future := async.Async(sendCtx, delivery{to: address, name: name, code: code, purpose: purpose},
		func(ctx context.Context, d delivery) (struct{}, error) {
			defer cancel()
			return struct{}{}, s.send(ctx, d)
		})

	_, err := future.AwaitWithTimeout(s.cfg.DeliveryWait)
	switch {
	case errors.Is(err, async.ErrTimeout):
		s.logger.WarnContext(ctx, "otp email still sending", logger.Email(address))
		return DeliveryPending
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to send otp email", logger.Email(address), logger.Error(err))
		return DeliveryFailed
	}
	return DeliverySent
}

func (s *Service) send(ctx context.Context, d delivery) error {
	reason := templates.ReasonVerify
	subject := "Verify your email"
	if d.purpose == PurposeReset {
		reason = templates.ReasonReset
		subject = "Reset your password"
	}

	body, err := templates.Render(ctx, templates.OTPCode(templates.OTPData{
		AppName:    s.cfg.AppName,
		Name:       d.name,
		Code:       d.code,
		Reason:     reason,
		TTLMinutes: int(s.cfg.TTL.Minutes()),
	}))
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}

	return s.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   d.to,
		Subject:  fmt.Sprintf("%s: %s", s.cfg.AppName, subject),
		BodyHTML: body,
		Tag:      "otp-" + string(d.purpose),
	})
}

func generateCode(n int) (string, error) {
	buf := make([]byte, n)
	ten := big.NewInt(10)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
