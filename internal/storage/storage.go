package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path"
	"strconv"
	"strings"
	"time"

	"qa-portal/internal/config"
)

// ErrNotFound is returned by Open for a key that does not exist.
var ErrNotFound = errors.New("file not found")

// FileStorage abstracts file persistence for uploaded evidence.
type FileStorage interface {
	// Save persists content under key and returns its public URL.
	Save(ctx context.Context, key string, r io.Reader, contentType string) (url string, err error)
	// Open returns a reader for the stored file.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the file. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the URL under which key is served.
	PublicURL(key string) string
}

// Open selects a driver from config.
func Open(ctx context.Context, cfg config.StorageConfig) (FileStorage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.LocalPath, cfg.PublicBaseURL), nil
	case "memory":
		return NewMemoryStorage(cfg.PublicBaseURL), nil
	case "s3":
		return NewS3Storage(ctx, S3Options{
			Bucket:        cfg.S3.Bucket,
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			PathStyle:     cfg.S3.PathStyle,
			Prefix:        cfg.S3.Prefix,
			PublicBaseURL: cfg.PublicBaseURL,
		})
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// CleanKey normalizes a storage key and rejects keys escaping the root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// SafeFileName builds a collision-resistant object name:
// <prefix>-<unixMillis>-<6 random base36 chars>.<ext>.
// The extension comes from original, lowercased and reduced to [a-z0-9];
// "bin" when nothing usable remains.
func SafeFileName(prefix, original string, now time.Time) string {
	var rnd [6]byte
	for i := range rnd {
		rnd[i] = base36[rand.IntN(len(base36))]
	}
	return prefix + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + string(rnd[:]) + "." + SafeExt(original)
}

// SafeExt returns the sanitized extension of name, or "bin".
func SafeExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return "bin"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name[i+1:]) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "bin"
	}
	return b.String()
}
