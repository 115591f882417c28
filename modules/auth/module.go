// Package auth mounts the account endpoints: password and Google sign in,
// one-time codes, password reset and session refresh.
package auth

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/taskflow/handler"
	"github.com/dmitrymomot/taskflow/modules/httperr"
	"github.com/dmitrymomot/taskflow/pkg/binder"
	"github.com/dmitrymomot/taskflow/pkg/clientip"
	"github.com/dmitrymomot/taskflow/pkg/ratelimiter"
	"github.com/dmitrymomot/taskflow/svc/auth"
	"github.com/dmitrymomot/taskflow/svc/otp"
	"github.com/dmitrymomot/taskflow/svc/user"
)

// Accounts is the part of the credential service the endpoints use.
type Accounts interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Authenticate(ctx context.Context, email, password string) (*auth.Session, error)
	GoogleAuthURL(ctx context.Context) (string, error)
	FederatedAuthenticate(ctx context.Context, code, state string) (*auth.Session, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	ResetPassword(ctx context.Context, in auth.ResetInput) error
	Refresh(ctx context.Context, raw string) (*auth.Session, error)
	Logout(ctx context.Context, raw string) error
}

// Codes issues and verifies one-time codes.
type Codes interface {
	GenerateCode(ctx context.Context, address, name string, purpose otp.Purpose) (*otp.GenerateResult, error)
	VerifyCode(ctx context.Context, address, code string) (*otp.VerifyResult, error)
}

type Module struct {
	accounts     Accounts
	codes        Codes
	requireAuth  func(http.Handler) http.Handler
	otpLimiter   *ratelimiter.Bucket
	errorHandler handler.ErrorHandler[handler.Context]
}

type Option func(*Module)

func WithErrorHandler(h handler.ErrorHandler[handler.Context]) Option {
	return func(m *Module) { m.errorHandler = h }
}

// WithOTPLimiter throttles code generation per client IP.
func WithOTPLimiter(b *ratelimiter.Bucket) Option {
	return func(m *Module) { m.otpLimiter = b }
}

// New builds the module. requireAuth guards the session endpoints.
func New(accounts Accounts, codes Codes, requireAuth func(http.Handler) http.Handler, opts ...Option) *Module {
	m := &Module{
		accounts:     accounts,
		codes:        codes,
		requireAuth:  requireAuth,
		errorHandler: handler.NewErrorHandler(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/signup", wrap(m, m.signup, binder.JSON()))
	r.Post("/signin", wrap(m, m.signin, binder.JSON()))
	r.Get("/google/url", wrap(m, m.googleURL))
	r.Post("/google", wrap(m, m.google, binder.JSON()))
	r.Get("/findbyemail", wrap(m, m.findByEmail, binder.Query()))
	r.Put("/forgetpassword", wrap(m, m.resetPassword, binder.JSON()))
	r.Get("/verifyotp", wrap(m, m.verifyOTP, binder.Query()))

	r.Group(func(r chi.Router) {
		if m.otpLimiter != nil {
			r.Use(ratelimiter.Middleware(m.otpLimiter, clientip.GetIP, httperr.TooManyRequests))
		}
		r.Get("/generateotp", wrap(m, m.generateOTP, binder.Query()))
	})

	r.Group(func(r chi.Router) {
		r.Use(m.requireAuth)
		r.Post("/refresh", wrap(m, m.refresh))
		r.Post("/logout", wrap(m, m.logout))
	})

	return r
}

func wrap[R any](m *Module, h handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](m.errorHandler),
	)
}
