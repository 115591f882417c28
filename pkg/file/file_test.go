package file_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/pkg/file"
)

// 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("avatar", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	_, fh, err := req.FormFile("avatar")
	require.NoError(t, err)
	return fh
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	t.Run("sanitize filename", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "passwd", file.SanitizeFilename("../../etc/passwd"))
		assert.Equal(t, "file.txt", file.SanitizeFilename(`C:\Windows\file.txt`))
		assert.Equal(t, "unnamed", file.SanitizeFilename(".."))
	})

	t.Run("avatar key", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "avatars/u1.png", file.AvatarKey("u1", "Me.PNG"))
		assert.Equal(t, "avatars/u1", file.AvatarKey("u1", "noext"))
	})

	t.Run("mime validation", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, file.ValidateMIMEType(fileHeader(t, "a.png", pngBytes), file.ImageTypes...))
		err := file.ValidateMIMEType(fileHeader(t, "a.png", []byte("plain text")), file.ImageTypes...)
		assert.ErrorIs(t, err, file.ErrMIMETypeNotAllowed)
	})

	t.Run("size validation", func(t *testing.T) {
		t.Parallel()
		fh := fileHeader(t, "a.png", pngBytes)
		assert.NoError(t, file.ValidateSize(fh, 1<<10))
		assert.ErrorIs(t, file.ValidateSize(fh, 10), file.ErrFileTooLarge)
		assert.ErrorIs(t, file.ValidateSize(nil, 10), file.ErrNilFileHeader)
	})
}

func TestLocalStorage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := file.NewLocalStorage(dir, "/uploads")
	require.NoError(t, err)
	ctx := context.Background()

	f, err := st.Save(ctx, fileHeader(t, "me.png", pngBytes), "avatars/u1.png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/u1.png", f.URL)
	assert.Equal(t, "image/png", f.MIMEType)
	assert.Equal(t, int64(len(pngBytes)), f.Size)

	data, err := os.ReadFile(filepath.Join(dir, "avatars", "u1.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	_, err = st.Save(ctx, fileHeader(t, "x.png", pngBytes), "../escape.png")
	assert.ErrorIs(t, err, file.ErrInvalidPath)

	require.NoError(t, st.Delete(ctx, "avatars/u1.png"))
	assert.ErrorIs(t, st.Delete(ctx, "avatars/u1.png"), file.ErrFileNotFound)
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	if out := args.Get(0); out != nil {
		return out.(*s3.DeleteObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestS3Storage(t *testing.T) {
	t.Parallel()

	cfg := file.Config{Bucket: "avatars-bucket", Region: "eu-west-1"}

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		_, err := file.NewS3Storage(context.Background(), file.Config{Region: "x"}, file.WithS3Client(&mockS3{}))
		assert.ErrorIs(t, err, file.ErrInvalidConfig)
	})

	t.Run("save", func(t *testing.T) {
		t.Parallel()
		client := &mockS3{}
		client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			return *in.Bucket == "avatars-bucket" && *in.Key == "avatars/u1.png" && *in.ContentType == "image/png"
		})).Return(&s3.PutObjectOutput{}, nil).Once()

		st, err := file.NewS3Storage(context.Background(), cfg, file.WithS3Client(client))
		require.NoError(t, err)

		f, err := st.Save(context.Background(), fileHeader(t, "me.png", pngBytes), "/avatars/u1.png")
		require.NoError(t, err)
		assert.Equal(t, "https://avatars-bucket.s3.eu-west-1.amazonaws.com/avatars/u1.png", f.URL)
		client.AssertExpectations(t)
	})

	t.Run("custom endpoint url", func(t *testing.T) {
		t.Parallel()
		st, err := file.NewS3Storage(context.Background(), file.Config{
			Bucket: "b", Region: "r", Endpoint: "http://minio:9000/",
		}, file.WithS3Client(&mockS3{}))
		require.NoError(t, err)
		assert.Equal(t, "http://minio:9000/b/k.png", st.URL("k.png"))
	})

	t.Run("classifies api errors", func(t *testing.T) {
		t.Parallel()
		client := &mockS3{}
		client.On("PutObject", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}).Once()
		client.On("DeleteObject", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "SlowDown"}).Once()

		st, err := file.NewS3Storage(context.Background(), cfg, file.WithS3Client(client))
		require.NoError(t, err)

		_, err = st.Save(context.Background(), fileHeader(t, "me.png", pngBytes), "avatars/u1.png")
		assert.ErrorIs(t, err, file.ErrAccessDenied)

		err = st.Delete(context.Background(), "avatars/u1.png")
		assert.ErrorIs(t, err, file.ErrServiceUnavailable)
	})

	t.Run("context canceled", func(t *testing.T) {
		t.Parallel()
		client := &mockS3{}
		client.On("DeleteObject", mock.Anything, mock.Anything).Return(nil, errors.Join(errors.New("send"), context.Canceled)).Once()

		st, err := file.NewS3Storage(context.Background(), cfg, file.WithS3Client(client))
		require.NoError(t, err)
		assert.ErrorIs(t, st.Delete(context.Background(), "k"), file.ErrOperationCanceled)
	})
}
