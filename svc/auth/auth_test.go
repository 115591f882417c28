package auth_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/validator"
	"github.com/dmitrymomot/taskflow/storage/memstore"
	"github.com/dmitrymomot/taskflow/svc/auth"
	"github.com/dmitrymomot/taskflow/svc/user"
)

const testSecret = "test-secret"

type fakeGoogle struct {
	profile auth.GoogleProfile
	err     error
}

func (f *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeGoogle) ResolveProfile(context.Context, string) (auth.GoogleProfile, error) {
	return f.profile, f.err
}

type recordingIndexer struct{ ids []string }

func (r *recordingIndexer) Index(_ context.Context, u *user.User) { r.ids = append(r.ids, u.ID) }

type fixture struct {
	svc     *auth.Service
	users   *memstore.Users
	google  *fakeGoogle
	indexer *recordingIndexer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tokens, err := jwt.New(jwt.Config{Secret: testSecret, TTL: time.Hour, Issuer: "taskflow"})
	require.NoError(t, err)

	users := memstore.NewUsers()
	keys := memstore.NewKeys()
	google := &fakeGoogle{}
	indexer := &recordingIndexer{}
	svc := auth.NewService(
		auth.Config{BcryptCost: bcrypt.MinCost, ResetTicketTTL: time.Minute, TicketSecret: testSecret},
		users, tokens, keys, keys.Tickets(),
		auth.WithGoogle(google, keys, time.Minute),
		auth.WithIndexer(indexer),
	)
	return fixture{svc: svc, users: users, google: google, indexer: indexer}
}

func register(t *testing.T, f fixture, email, password string) *auth.Session {
	t.Helper()
	s, err := f.svc.Register(context.Background(), auth.RegisterInput{Name: "Alice", Email: email, Password: password})
	require.NoError(t, err)
	return s
}

func TestRegisterAndAuthenticate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s := register(t, f, " Alice@Example.com ", "pw1")
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "alice@example.com", s.User.Email)
	assert.NotEqual(t, "pw1", s.User.PasswordHash)
	assert.Equal(t, []string{s.User.ID}, f.indexer.ids)

	got, err := f.svc.Authenticate(ctx, "alice@example.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, got.User.ID)

	_, err = f.svc.Authenticate(ctx, "alice@example.com", "pw2")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "nobody@example.com", "pw1")
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, err = f.svc.Register(ctx, auth.RegisterInput{Email: "ALICE@example.com", Password: "other"})
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name  string
		in    auth.RegisterInput
		field string
	}{
		{"missing email", auth.RegisterInput{Password: "pw"}, "email"},
		{"bad email", auth.RegisterInput{Email: "nope", Password: "pw"}, "email"},
		{"missing password", auth.RegisterInput{Email: "a@example.com"}, "password"},
		{"password over 72 bytes", auth.RegisterInput{Email: "a@example.com", Password: strings.Repeat("é", 40)}, "password"},
		{"bad image", auth.RegisterInput{Email: "a@example.com", Password: "pw", Img: "not a url"}, "img"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := f.svc.Register(context.Background(), tt.in)
			ve, ok := validator.Extract(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.True(t, ve.Has(tt.field))
		})
	}
}

func TestRegisterDefaultsNameToEmailLocalPart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s, err := f.svc.Register(context.Background(), auth.RegisterInput{Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bob", s.User.Name)
}

func TestAuthenticateFederatedOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Create(ctx, &user.User{ID: "g1", Email: "g@example.com", GoogleSignIn: true}))

	_, err := f.svc.Authenticate(ctx, "g@example.com", "anything")
	assert.ErrorIs(t, err, auth.ErrFederatedOnly)
}

func TestTokensRevocation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := register(t, f, "a@example.com", "pw1")

	claims, err := f.svc.Verify(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, claims.UserID())

	refreshed, err := f.svc.Refresh(ctx, s.Token)
	require.NoError(t, err)
	assert.NotEqual(t, s.Token, refreshed.Token)

	_, err = f.svc.Verify(ctx, s.Token)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	require.NoError(t, f.svc.Logout(ctx, refreshed.Token))
	_, err = f.svc.Verify(ctx, refreshed.Token)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	_, err = f.svc.Verify(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestResetPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "a@example.com", "pw1")

	ticket, err := f.svc.IssueResetTicket("A@example.com")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, auth.ResetInput{Email: "b@example.com", Password: "pw2", Ticket: ticket})
	assert.ErrorIs(t, err, auth.ErrInvalidTicket, "ticket is bound to its email")

	err = f.svc.ResetPassword(ctx, auth.ResetInput{Email: "a@example.com", Password: "pw2", Ticket: ticket + "x"})
	assert.ErrorIs(t, err, auth.ErrInvalidTicket)

	require.NoError(t, f.svc.ResetPassword(ctx, auth.ResetInput{Email: "a@example.com", Password: "pw2", Ticket: ticket}))

	_, err = f.svc.Authenticate(ctx, "a@example.com", "pw1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "a@example.com", "pw2")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, auth.ResetInput{Email: "a@example.com", Password: "pw3", Ticket: ticket})
	assert.ErrorIs(t, err, auth.ErrTicketUsed)
}

func TestResetPasswordMultibyteTooLong(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "a@example.com", "pw1")

	ticket, err := f.svc.IssueResetTicket("a@example.com")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, auth.ResetInput{Email: "a@example.com", Password: strings.Repeat("é", 40), Ticket: ticket})
	ve, ok := validator.Extract(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.True(t, ve.Has("password"))

	require.NoError(t, f.svc.ResetPassword(ctx, auth.ResetInput{Email: "a@example.com", Password: "pw2", Ticket: ticket}),
		"rejected input leaves the ticket usable")
}

// flakyUsers fails the first password update.
type flakyUsers struct {
	*memstore.Users
	failed bool
}

func (u *flakyUsers) UpdatePassword(ctx context.Context, id, hash string) error {
	if !u.failed {
		u.failed = true
		return errors.New("connection reset")
	}
	return u.Users.UpdatePassword(ctx, id, hash)
}

func TestResetPasswordStoreFailureKeepsTicket(t *testing.T) {
	t.Parallel()
	tokens, err := jwt.New(jwt.Config{Secret: testSecret, TTL: time.Hour, Issuer: "taskflow"})
	require.NoError(t, err)
	users := &flakyUsers{Users: memstore.NewUsers()}
	keys := memstore.NewKeys()
	svc := auth.NewService(auth.Config{BcryptCost: bcrypt.MinCost, TicketSecret: testSecret}, users, tokens, keys, keys.Tickets())
	ctx := context.Background()

	_, err = svc.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "pw1"})
	require.NoError(t, err)
	ticket, err := svc.IssueResetTicket("a@example.com")
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, auth.ResetInput{Email: "a@example.com", Password: "pw2", Ticket: ticket})
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidTicket)

	require.NoError(t, svc.ResetPassword(ctx, auth.ResetInput{Email: "a@example.com", Password: "pw2", Ticket: ticket}))
	_, err = svc.Authenticate(ctx, "a@example.com", "pw2")
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, auth.ResetInput{Email: "a@example.com", Password: "pw3", Ticket: ticket})
	assert.ErrorIs(t, err, auth.ErrTicketUsed)
}

func TestResetPasswordEnablesFederatedAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Create(ctx, &user.User{ID: "g1", Email: "g@example.com", GoogleSignIn: true}))

	ticket, err := f.svc.IssueResetTicket("g@example.com")
	require.NoError(t, err)
	require.NoError(t, f.svc.ResetPassword(ctx, auth.ResetInput{Email: "g@example.com", Password: "pw", Ticket: ticket}))

	s, err := f.svc.Authenticate(ctx, "g@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, s.User.GoogleSignIn)
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestGoogleSignIn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.google.profile = auth.GoogleProfile{Email: "G@Example.com", EmailVerified: true, Name: "Gina", Picture: "https://img.example.com/g.png"}

	authURL, err := f.svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	state := stateFrom(t, authURL)
	require.NotEmpty(t, state)

	_, err = f.svc.FederatedAuthenticate(ctx, "code", "forged")
	assert.ErrorIs(t, err, auth.ErrInvalidState)

	s, err := f.svc.FederatedAuthenticate(ctx, "code", state)
	require.NoError(t, err)
	assert.Equal(t, "g@example.com", s.User.Email)
	assert.True(t, s.User.GoogleSignIn)
	assert.False(t, s.User.HasPassword())

	_, err = f.svc.FederatedAuthenticate(ctx, "code", state)
	assert.ErrorIs(t, err, auth.ErrInvalidState, "state is single use")

	authURL, err = f.svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	again, err := f.svc.FederatedAuthenticate(ctx, "code", stateFrom(t, authURL))
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, again.User.ID)
}

func TestGoogleSignInUnverifiedEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.google.profile = auth.GoogleProfile{Email: "g@example.com"}

	authURL, err := f.svc.GoogleAuthURL(ctx)
	require.NoError(t, err)
	_, err = f.svc.FederatedAuthenticate(ctx, "code", stateFrom(t, authURL))
	assert.ErrorIs(t, err, auth.ErrUnverifiedEmail)
}

func TestGoogleDisabled(t *testing.T) {
	t.Parallel()
	tokens, err := jwt.New(jwt.Config{Secret: testSecret})
	require.NoError(t, err)
	keys := memstore.NewKeys()
	svc := auth.NewService(auth.Config{TicketSecret: testSecret}, memstore.NewUsers(), tokens, keys, keys.Tickets())

	_, err = svc.GoogleAuthURL(context.Background())
	assert.ErrorIs(t, err, auth.ErrFederatedDisabled)
	_, err = svc.FederatedAuthenticate(context.Background(), "c", "s")
	assert.ErrorIs(t, err, auth.ErrFederatedDisabled)
}

func TestFindByEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := register(t, f, "a@example.com", "pw1")

	u, err := f.svc.FindByEmail(context.Background(), "A@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, u.ID)

	_, err = f.svc.FindByEmail(context.Background(), "bad")
	_, ok := validator.Extract(err)
	assert.True(t, ok)
}
