package invite_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/pkg/email"
	"github.com/dmitrymomot/taskflow/storage/memstore"
	"github.com/dmitrymomot/taskflow/svc/invite"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, p email.SendEmailParams) error {
	return m.Called(ctx, p).Error(0)
}

func newService(sender email.EmailSender) *invite.Service {
	return invite.NewService(invite.Config{
		Secret:  "invite-secret",
		TTL:     time.Hour,
		BaseURL: "https://app.example.com",
		AppName: "Taskflow",
	}, memstore.NewKeys().Invites(), sender, nil)
}

func TestIssueVerify(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	claims := invite.Claims{Kind: invite.KindProject, TargetID: "p1", UserID: "u2", Access: "editor", Role: "Developer"}

	code, err := svc.Issue(claims)
	require.NoError(t, err)

	got, err := svc.Verify(code, claims)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.TargetID)
	assert.True(t, got.ExpiresAt().After(time.Now()))
	assert.NotEmpty(t, got.ID)

	t.Run("tampered params", func(t *testing.T) {
		t.Parallel()
		other := claims
		other.Access = "owner"
		_, err := svc.Verify(code, other)
		assert.ErrorIs(t, err, invite.ErrMismatch)
	})

	t.Run("wrong kind", func(t *testing.T) {
		t.Parallel()
		other := claims
		other.Kind = invite.KindTeam
		_, err := svc.Verify(code, other)
		assert.ErrorIs(t, err, invite.ErrMismatch)
	})

	t.Run("garbage code", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Verify("not-a-code", claims)
		assert.ErrorIs(t, err, invite.ErrInvalidInvite)
	})

	t.Run("other secret", func(t *testing.T) {
		t.Parallel()
		foreign := invite.NewService(invite.Config{Secret: "other", TTL: time.Hour}, memstore.NewKeys().Invites(), nil, nil)
		_, err := foreign.Verify(code, claims)
		assert.ErrorIs(t, err, invite.ErrInvalidInvite)
	})
}

func TestRedeem(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	ctx := context.Background()
	claims := invite.Claims{Kind: invite.KindTeam, TargetID: "t1", UserID: "u2", Access: "viewer"}

	first, err := svc.Issue(claims)
	require.NoError(t, err)
	second, err := svc.Issue(claims)
	require.NoError(t, err)

	c1, err := svc.Verify(first, claims)
	require.NoError(t, err)
	c2, err := svc.Verify(second, claims)
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)

	require.NoError(t, svc.Redeem(ctx, c1))
	err = svc.Redeem(ctx, c1)
	assert.ErrorIs(t, err, invite.ErrInvalidInvite)
	assert.ErrorIs(t, err, invite.ErrInviteUsed)

	assert.NoError(t, svc.Redeem(ctx, c2), "codes are redeemed independently")
}

func TestLink(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	link := svc.Link("abc.def", invite.Claims{Kind: invite.KindTeam, TargetID: "t1", UserID: "u1", Access: "viewer", Role: "QA"})

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/team/invite/abc.def", u.Path)
	assert.Equal(t, "t1", u.Query().Get("teamid"))
	assert.Equal(t, "u1", u.Query().Get("userid"))
	assert.Equal(t, "viewer", u.Query().Get("access"))
	assert.Equal(t, "QA", u.Query().Get("role"))
}

func TestSend(t *testing.T) {
	t.Parallel()

	sender := &mockSender{}
	sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
		return p.SendTo == "bob@example.com" &&
			p.Tag == "invite-project" &&
			strings.Contains(p.Subject, "Apollo") &&
			strings.Contains(p.BodyHTML, "data:image/png;base64,") &&
			strings.Contains(p.BodyHTML, "Alice") &&
			strings.Contains(p.BodyHTML, "expires in 1 hour.")
	})).Return(nil).Once()

	svc := newService(sender)
	claims := invite.Claims{Kind: invite.KindProject, TargetID: "p1", UserID: "u2", Access: "editor", Role: "Dev"}
	code, err := svc.Issue(claims)
	require.NoError(t, err)

	err = svc.Send(context.Background(), invite.Message{
		To:          "bob@example.com",
		InviterName: "Alice",
		TargetName:  "Apollo",
		Code:        code,
		Claims:      claims,
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}
