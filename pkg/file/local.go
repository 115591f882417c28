package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps files under baseDir. Keys never escape it.
type LocalStorage struct {
	baseDir string
	baseURL string
}

// NewLocalStorage creates baseDir when missing.
func NewLocalStorage(baseDir, baseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, ErrInvalidConfig
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStorage{baseDir: abs, baseURL: baseURL}, nil
}

func (s *LocalStorage) Save(ctx context.Context, fh *multipart.FileHeader, key string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fh == nil {
		return nil, ErrNilFileHeader
	}
	abs, key, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(abs)
		return nil, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}

	mimeType, err := DetectMIMEType(fh)
	if err != nil {
		mimeType = "application/octet-stream"
	}

	return &File{
		Filename: SanitizeFilename(fh.Filename),
		Key:      key,
		Size:     n,
		MIMEType: mimeType,
		URL:      s.URL(key),
	}, nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	abs, _, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, key)
		}
		return fmt.Errorf("%w: %v", ErrFailedToDeleteFile, err)
	}
	return nil
}

func (s *LocalStorage) URL(key string) string {
	return s.baseURL + strings.TrimPrefix(filepath.ToSlash(key), "/")
}

func (s *LocalStorage) resolve(key string) (string, string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	abs := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(abs, s.baseDir+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return abs, key, nil
}
