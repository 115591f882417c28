package file

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// File describes a stored object.
type File struct {
	Filename string
	Key      string
	Size     int64
	MIMEType string
	URL      string
}

// Storage saves and removes files by key.
type Storage interface {
	Save(ctx context.Context, fh *multipart.FileHeader, key string) (*File, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// ImageTypes are accepted for avatars.
var ImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// DetectMIMEType sniffs the first 512 bytes of the upload.
func DetectMIMEType(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrNilFileHeader
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("%w: %v", ErrFailedToReadFile, err)
	}
	return http.DetectContentType(buf[:n]), nil
}

// ValidateSize rejects uploads larger than maxBytes.
func ValidateSize(fh *multipart.FileHeader, maxBytes int64) error {
	if fh == nil {
		return ErrNilFileHeader
	}
	if fh.Size > maxBytes {
		return fmt.Errorf("file size %d bytes exceeds %d bytes limit: %w", fh.Size, maxBytes, ErrFileTooLarge)
	}
	return nil
}

// ValidateMIMEType checks the sniffed type against allowed.
func ValidateMIMEType(fh *multipart.FileHeader, allowed ...string) error {
	mimeType, err := DetectMIMEType(fh)
	if err != nil {
		return err
	}
	if len(allowed) == 0 || slices.Contains(allowed, mimeType) {
		return nil
	}
	return fmt.Errorf("MIME type %s not in allowed types %v: %w", mimeType, allowed, ErrMIMETypeNotAllowed)
}

// SanitizeFilename strips directories and NUL bytes.
//
//	file.SanitizeFilename("../../etc/passwd") // "passwd"
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\x00", "")
	if name == "." || name == ".." || name == "" || name == "/" {
		return "unnamed"
	}
	return name
}

// AvatarKey builds the object key of a user avatar. The extension follows
// the uploaded file name.
func AvatarKey(userID, filename string) string {
	ext := strings.ToLower(filepath.Ext(SanitizeFilename(filename)))
	return path.Join("avatars", userID+ext)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return key, nil
}

// New returns S3 storage when a bucket is configured and local storage
// otherwise.
func New(ctx context.Context, cfg Config, opts ...S3Option) (Storage, error) {
	if cfg.Enabled() {
		return NewS3Storage(ctx, cfg, opts...)
	}
	return NewLocalStorage(cfg.LocalDir, cfg.LocalBaseURL)
}
