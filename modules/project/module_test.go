package project_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/modules/httperr"
	projectmodule "github.com/dmitrymomot/taskflow/modules/project"
	"github.com/dmitrymomot/taskflow/pkg/email"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/rbac"
	"github.com/dmitrymomot/taskflow/storage/memstore"
	"github.com/dmitrymomot/taskflow/svc/invite"
	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/user"
)

type nopSender struct{}

func (nopSender) SendEmail(context.Context, email.SendEmailParams) error { return nil }

// userVerifier treats the bearer token as the user id.
type userVerifier struct{}

func (userVerifier) Verify(_ context.Context, raw string) (jwt.Claims, error) {
	var c jwt.Claims
	c.Subject = raw
	return c, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

type fixture struct {
	h     http.Handler
	users *memstore.Users
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	authz, err := rbac.NewAuthorizer(ctx, rbac.DefaultSource())
	require.NoError(t, err)

	users := memstore.NewUsers()
	for _, u := range []*user.User{
		{ID: "alice", Name: "Alice", Email: "alice@example.com"},
		{ID: "bob", Name: "Bob", Email: "bob@example.com"},
		{ID: "carol", Name: "Carol", Email: "carol@example.com"},
	} {
		require.NoError(t, users.Create(ctx, u))
	}

	invites := invite.NewService(invite.Config{Secret: "s", TTL: time.Hour, BaseURL: "https://app.example.com"}, memstore.NewKeys().Invites(), nopSender{}, nil)
	svc := project.NewService(memstore.NewProjects(), users, user.NewService(users), invites, authz, nil)
	h := projectmodule.New(svc, jwt.Middleware(userVerifier{}, httperr.Unauthorized)).Handle()
	return fixture{h: h, users: users}
}

func (f fixture) do(t *testing.T, as, method, target string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+as)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (f fixture) create(t *testing.T) *project.Project {
	t.Helper()
	code, env := f.do(t, "alice", http.MethodPost, "/", project.CreateInput{Title: "Apollo", Tags: []string{"space"}})
	require.Equal(t, http.StatusCreated, code)
	return decode[*project.Project](t, env.Data)
}

// inviteTarget returns the accept URL carried by the invitee's last
// notification, relative to the module router.
func (f fixture) inviteTarget(t *testing.T, userID string) string {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, u.Notifications)

	link, err := url.Parse(u.Notifications[len(u.Notifications)-1].Link)
	require.NoError(t, err)
	return "/invite/" + path.Base(link.Path) + "?" + link.RawQuery
}

func (f fixture) join(t *testing.T, projectID, userEmail, userID, access string) {
	t.Helper()
	code, _ := f.do(t, "alice", http.MethodPost, "/invite/"+projectID, projectmodule.InviteRequest{
		Members: []project.InviteInput{{Email: userEmail, Access: access, Role: "Engineer"}},
	})
	require.Equal(t, http.StatusOK, code)
	code, _ = f.do(t, userID, http.MethodGet, f.inviteTarget(t, userID), nil)
	require.Equal(t, http.StatusOK, code)
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	p := f.create(t)
	assert.Equal(t, "alice", p.OwnerID)

	code, env := f.do(t, "alice", http.MethodGet, "/"+p.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Apollo", decode[*project.Project](t, env.Data).Title)

	code, env = f.do(t, "bob", http.MethodGet, "/"+p.ID, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_member", env.Error.Code)

	code, _ = f.do(t, "alice", http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = f.do(t, "alice", http.MethodPost, "/", project.CreateInput{})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Error.Details, "title")
}

func TestRequiresSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	code, env := f.do(t, "", http.MethodPost, "/", project.CreateInput{Title: "Apollo"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", env.Error.Code)
}

func TestUpdateAndDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.create(t)
	f.join(t, p.ID, "bob@example.com", "bob", "editor")

	title := "Artemis"
	code, env := f.do(t, "bob", http.MethodPatch, "/"+p.ID, project.UpdateInput{Title: &title})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Artemis", decode[*project.Project](t, env.Data).Title)

	code, env = f.do(t, "bob", http.MethodDelete, "/"+p.ID, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", env.Error.Code)

	code, _ = f.do(t, "alice", http.MethodDelete, "/"+p.ID, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, "alice", http.MethodGet, "/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestInviteAndAccept(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.create(t)

	code, env := f.do(t, "alice", http.MethodPost, "/invite/"+p.ID, projectmodule.InviteRequest{
		Members: []project.InviteInput{{ID: "bob", Access: "admin", Role: "Lead"}},
	})
	require.Equal(t, http.StatusOK, code)
	res := decode[projectmodule.InviteResponse](t, env.Data)
	require.Len(t, res.Invited, 1)
	assert.Equal(t, "bob", res.Invited[0].ID)

	target := f.inviteTarget(t, "bob")

	code, env = f.do(t, "carol", http.MethodGet, target, nil)
	assert.Equal(t, http.StatusForbidden, code)

	tampered, err := url.Parse(target)
	require.NoError(t, err)
	q := tampered.Query()
	q.Set("access", "owner")
	tampered.RawQuery = q.Encode()
	code, env = f.do(t, "bob", http.MethodGet, tampered.String(), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invite_mismatch", env.Error.Code)

	code, env = f.do(t, "bob", http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, code)
	accepted := decode[projectmodule.AcceptResponse](t, env.Data)
	m, ok := accepted.Project.Member("bob")
	require.True(t, ok)
	assert.Equal(t, "admin", m.Access)

	code, env = f.do(t, "bob", http.MethodGet, target, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(t, "alice", http.MethodPatch, "/member/remove/"+p.ID, projectmodule.RemoveMembersRequest{Members: []string{"bob"}})
	require.Equal(t, http.StatusOK, code)
	code, env = f.do(t, "bob", http.MethodGet, target, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_invite", env.Error.Code)
	code, _ = f.do(t, "bob", http.MethodGet, "/"+p.ID, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = f.do(t, "bob", http.MethodGet, "/invite/garbage?projectid="+p.ID+"&userid=bob", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_invite", env.Error.Code)
}

func TestInviteValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.create(t)

	code, env := f.do(t, "alice", http.MethodPost, "/invite/"+p.ID, projectmodule.InviteRequest{
		Members: []project.InviteInput{{Email: "nobody@example.com"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Error.Details, "members[0]")

	code, _ = f.do(t, "alice", http.MethodPost, "/invite/"+p.ID, map[string]any{"members": []any{}, "extra": true})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMembers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.create(t)
	f.join(t, p.ID, "bob@example.com", "bob", "viewer")

	code, env := f.do(t, "alice", http.MethodPatch, "/member/"+p.ID, projectmodule.MembersRequest{
		Members: []project.Member{{UserID: "bob", Access: "editor", Role: "Designer"}},
	})
	require.Equal(t, http.StatusOK, code)
	m, _ := decode[*project.Project](t, env.Data).Member("bob")
	assert.Equal(t, "editor", m.Access)
	assert.Equal(t, "Designer", m.Role)

	code, env = f.do(t, "alice", http.MethodPatch, "/member/remove/"+p.ID, projectmodule.RemoveMembersRequest{Members: []string{"alice"}})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "owner_immutable", env.Error.Code)

	code, env = f.do(t, "alice", http.MethodPatch, "/member/remove/"+p.ID, projectmodule.RemoveMembersRequest{Members: []string{"bob"}})
	require.Equal(t, http.StatusOK, code)
	_, ok := decode[*project.Project](t, env.Data).Member("bob")
	assert.False(t, ok)
}

func TestWorks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.create(t)

	code, env := f.do(t, "alice", http.MethodPost, "/works/"+p.ID, project.WorkInput{
		Title: "Launch",
		Tasks: []project.TaskInput{{Title: "Fuel", Members: []string{"alice"}}},
	})
	require.Equal(t, http.StatusCreated, code)
	w := decode[*project.Work](t, env.Data)
	require.Len(t, w.Tasks, 1)
	assert.Equal(t, "todo", w.Tasks[0].Status)

	code, env = f.do(t, "alice", http.MethodPost, "/works/"+p.ID, project.WorkInput{
		Title: "Orbit",
		Tasks: []project.TaskInput{{Title: "Burn", Members: []string{"carol"}}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Error.Details, "tasks[0].members")

	code, env = f.do(t, "alice", http.MethodGet, "/works/"+p.ID, nil)
	require.Equal(t, http.StatusOK, code)
	works := decode[[]project.Work](t, env.Data)
	require.Len(t, works, 1)
	assert.Equal(t, "Launch", works[0].Title)
}
