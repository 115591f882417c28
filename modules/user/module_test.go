package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/modules/httperr"
	usermodule "github.com/dmitrymomot/taskflow/modules/user"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/validator"
	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/team"
	"github.com/dmitrymomot/taskflow/svc/user"
)

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Me(ctx context.Context, id string) (*user.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockUsers) Search(ctx context.Context, query string) ([]user.Profile, error) {
	args := m.Called(ctx, query)
	p, _ := args.Get(0).([]user.Profile)
	return p, args.Error(1)
}

func (m *mockUsers) Notifications(ctx context.Context, id string) ([]user.Notification, error) {
	args := m.Called(ctx, id)
	n, _ := args.Get(0).([]user.Notification)
	return n, args.Error(1)
}

func (m *mockUsers) UploadAvatar(ctx context.Context, id string, fh *multipart.FileHeader) (*user.User, error) {
	args := m.Called(ctx, id, fh)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

type mockProjects struct{ mock.Mock }

func (m *mockProjects) ListForUser(ctx context.Context, userID string) ([]project.Project, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).([]project.Project)
	return p, args.Error(1)
}

func (m *mockProjects) WorksForUser(ctx context.Context, userID string) ([]project.Work, error) {
	args := m.Called(ctx, userID)
	w, _ := args.Get(0).([]project.Work)
	return w, args.Error(1)
}

func (m *mockProjects) TasksForUser(ctx context.Context, userID string) ([]project.AssignedTask, error) {
	args := m.Called(ctx, userID)
	tasks, _ := args.Get(0).([]project.AssignedTask)
	return tasks, args.Error(1)
}

type mockTeams struct{ mock.Mock }

func (m *mockTeams) ListForUser(ctx context.Context, userID string) ([]team.Team, error) {
	args := m.Called(ctx, userID)
	t, _ := args.Get(0).([]team.Team)
	return t, args.Error(1)
}

// staticVerifier accepts the token "good" as user u1.
type staticVerifier struct{}

func (staticVerifier) Verify(_ context.Context, raw string) (jwt.Claims, error) {
	if raw != "good" {
		return jwt.Claims{}, jwt.ErrInvalidToken
	}
	var c jwt.Claims
	c.Subject = "u1"
	return c, nil
}

type fixture struct {
	users    *mockUsers
	projects *mockProjects
	teams    *mockTeams
	h        http.Handler
}

func newFixture() fixture {
	f := fixture{users: &mockUsers{}, projects: &mockProjects{}, teams: &mockTeams{}}
	f.h = usermodule.New(f.users, f.projects, f.teams, jwt.Middleware(staticVerifier{}, httperr.Unauthorized)).Handle()
	return f
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer good")
	return req
}

func TestRequiresSession(t *testing.T) {
	t.Parallel()
	f := newFixture()

	rec := serve(f.h, httptest.NewRequest(http.MethodGet, "/find", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/find", nil)
	req.Header.Set("Authorization", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, serve(f.h, req).Code)
}

func TestViews(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.users.On("Me", mock.Anything, "u1").Return(&user.User{ID: "u1", Email: "a@x.com"}, nil)
	f.users.On("Notifications", mock.Anything, "u1").Return([]user.Notification{{ID: "n1"}}, nil)
	f.projects.On("ListForUser", mock.Anything, "u1").Return([]project.Project{{ID: "p1"}}, nil)
	f.projects.On("WorksForUser", mock.Anything, "u1").Return([]project.Work{{ID: "w1"}}, nil)
	f.projects.On("TasksForUser", mock.Anything, "u1").Return([]project.AssignedTask{{WorkID: "w1"}}, nil)
	f.teams.On("ListForUser", mock.Anything, "u1").Return([]team.Team{{ID: "t1"}}, nil)

	tests := []struct {
		path string
		want string
	}{
		{"/find", `"id":"u1"`},
		{"/notifications", `"id":"n1"`},
		{"/projects", `"id":"p1"`},
		{"/teams", `"id":"t1"`},
		{"/works", `"id":"w1"`},
		{"/tasks", `"work_id":"w1"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(f.h, get(tt.path))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
	f.users.AssertExpectations(t)
	f.projects.AssertExpectations(t)
	f.teams.AssertExpectations(t)
}

func TestFindMissingUser(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.users.On("Me", mock.Anything, "u1").Return(nil, user.ErrNotFound)

	rec := serve(f.h, get("/find"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "user not found")
}

func TestSearch(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.users.On("Search", mock.Anything, "ali").Return([]user.Profile{{ID: "u2", Name: "Alice"}}, nil)

	rec := serve(f.h, get("/search/ali"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []user.Profile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []user.Profile{{ID: "u2", Name: "Alice"}}, body.Data)
}

func TestSearchStoreFailure(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.users.On("Search", mock.Anything, "ali").Return(nil, errors.New("connection refused"))

	rec := serve(f.h, get("/search/ali"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func avatarRequest(t *testing.T, field string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	w, err := mw.CreateFormFile(field, "me.png")
	require.NoError(t, err)
	_, err = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer good")
	return req
}

func TestUploadAvatar(t *testing.T) {
	t.Parallel()

	t.Run("stored", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.users.On("UploadAvatar", mock.Anything, "u1", mock.MatchedBy(func(fh *multipart.FileHeader) bool {
			return fh != nil && fh.Filename == "me.png"
		})).Return(&user.User{ID: "u1", Img: "/uploads/avatars/u1.png"}, nil)

		rec := serve(f.h, avatarRequest(t, "avatar"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "/uploads/avatars/u1.png")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.users.On("UploadAvatar", mock.Anything, "u1", (*multipart.FileHeader)(nil)).
			Return(nil, validator.ValidationErrors{{Field: "avatar", Message: "file is required"}})

		rec := serve(f.h, avatarRequest(t, "picture"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "file is required")
	})

	t.Run("not an image", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.users.On("UploadAvatar", mock.Anything, "u1", mock.Anything).Return(nil, user.ErrInvalidImage)

		rec := serve(f.h, avatarRequest(t, "avatar"))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("no storage", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.users.On("UploadAvatar", mock.Anything, "u1", mock.Anything).Return(nil, user.ErrNoStorage)

		rec := serve(f.h, avatarRequest(t, "avatar"))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
