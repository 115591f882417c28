// Package file stores uploaded files, currently user avatars.
//
// S3Storage targets Amazon S3 and S3 compatible services such as MinIO.
// LocalStorage writes to disk and is used when no bucket is configured.
// Both implement Storage and return the public URL of the saved object.
package file
