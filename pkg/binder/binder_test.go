package binder_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/pkg/binder"
)

func TestJSON(t *testing.T) {
	t.Parallel()

	type signupRequest struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","name":"A","password":"pw1"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		var got signupRequest
		require.NoError(t, binder.JSON()(req, &got))
		assert.Equal(t, "a@x.com", got.Email)
		assert.Equal(t, "A", got.Name)
		assert.Equal(t, "pw1", got.Password)
	})

	t.Run("empty body is skipped", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", nil)

		var got signupRequest
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrBinderNotApplicable)
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"}`))
		req.Header.Set("Content-Type", "text/plain")

		var got signupRequest
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrUnsupportedMediaType)
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"admin":true}`))
		req.Header.Set("Content-Type", "application/json")

		var got signupRequest
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrFailedToParseJSON)
	})

	t.Run("trailing data", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"}{}`))
		req.Header.Set("Content-Type", "application/json")

		var got signupRequest
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrFailedToParseJSON)
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()

	type verifyRequest struct {
		Email string   `query:"email"`
		Code  string   `query:"code"`
		Tags  []string `query:"tag"`
		Page  int      `query:"page"`
		Body  string   `json:"body"`
	}

	t.Run("binds tagged fields", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/?email=a@x.com&code=012345&tag=go,web&tag=api&page=2", nil)

		var got verifyRequest
		require.NoError(t, binder.Query()(req, &got))
		assert.Equal(t, "a@x.com", got.Email)
		assert.Equal(t, "012345", got.Code)
		assert.Equal(t, []string{"go", "web", "api"}, got.Tags)
		assert.Equal(t, 2, got.Page)
		assert.Empty(t, got.Body)
	})

	t.Run("no query", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		var got verifyRequest
		assert.ErrorIs(t, binder.Query()(req, &got), binder.ErrBinderNotApplicable)
	})

	t.Run("invalid int", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/?page=two", nil)

		var got verifyRequest
		assert.ErrorIs(t, binder.Query()(req, &got), binder.ErrInvalidQuery)
	})
}

func TestPath(t *testing.T) {
	t.Parallel()

	type projectRequest struct {
		ID    string `path:"id"`
		Title string `json:"title"`
	}

	params := map[string]string{"id": "p-1"}
	extractor := func(_ *http.Request, name string) string { return params[name] }

	req := httptest.NewRequest(http.MethodGet, "/project/p-1", nil)
	var got projectRequest
	require.NoError(t, binder.Path(extractor)(req, &got))
	assert.Equal(t, "p-1", got.ID)

	assert.ErrorIs(t, binder.Path(nil)(req, &got), binder.ErrInvalidPath)
}

func TestFile(t *testing.T) {
	t.Parallel()

	type avatarRequest struct {
		Caption string                `form:"caption"`
		Avatar  *multipart.FileHeader `file:"avatar"`
	}

	t.Run("multipart upload", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("caption", "me"))
		fw, err := mw.CreateFormFile("avatar", "../../etc/me.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("png-bytes"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/users/avatar", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		var got avatarRequest
		require.NoError(t, binder.File()(req, &got))
		assert.Equal(t, "me", got.Caption)
		require.NotNil(t, got.Avatar)
		assert.Equal(t, "me.png", got.Avatar.Filename)
		assert.Equal(t, int64(len("png-bytes")), got.Avatar.Size)
	})

	t.Run("not multipart", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPut, "/users/avatar", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")

		var got avatarRequest
		assert.ErrorIs(t, binder.File()(req, &got), binder.ErrBinderNotApplicable)
	})
}
