package storage

import (
	"context"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-portal/internal/config"
)

func TestSafeFileName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	re := regexp.MustCompile(`^pdf-1700000000123-[0-9a-z]{6}\.pdf$`)

	name := SafeFileName("pdf", "รายงาน ประจำปี.PDF", now)
	assert.Regexp(t, re, name)

	other := SafeFileName("pdf", "รายงาน ประจำปี.PDF", now)
	assert.NotEqual(t, name, other, "random suffix should differ")
}

func TestSafeExt(t *testing.T) {
	cases := map[string]string{
		"photo.JPG":      "jpg",
		"archive.tar.gz": "gz",
		"noext":          "bin",
		"trailing.":      "bin",
		"weird.p-n_g!":   "png",
		"ภาพ.ภาพ":        "bin",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeExt(in), in)
	}
}

func TestCleanKey(t *testing.T) {
	ok := []string{"a.pdf", "docs/a.pdf"}
	for _, k := range ok {
		got, err := CleanKey(k)
		require.NoError(t, err, k)
		assert.Equal(t, k, got)
	}
	bad := []string{"", "../a.pdf", "a/../../b", "a//b", `a\b`, "."}
	for _, k := range bad {
		_, err := CleanKey(k)
		assert.Error(t, err, k)
	}
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir(), "/files")

	url, err := s.Save(ctx, "img-0-1-abcdef.jpg", strings.NewReader("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/files/img-0-1-abcdef.jpg", url)

	rc, err := s.Open(ctx, "img-0-1-abcdef.jpg")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "jpeg", string(body))

	require.NoError(t, s.Delete(ctx, "img-0-1-abcdef.jpg"))
	require.NoError(t, s.Delete(ctx, "img-0-1-abcdef.jpg"), "deleting twice is fine")

	_, err = s.Open(ctx, "img-0-1-abcdef.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Save(ctx, "../escape.txt", strings.NewReader("x"), "")
	assert.Error(t, err)
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage("")

	url, err := m.Save(ctx, "a.pdf", strings.NewReader("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "/files/a.pdf", url)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "application/pdf", m.ContentType("a.pdf"))

	require.NoError(t, m.Delete(ctx, "a.pdf"))
	_, err = m.Open(ctx, "a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_SelectsDriver(t *testing.T) {
	ctx := context.Background()

	fs, err := Open(ctx, config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, fs)

	fs, err = Open(ctx, config.StorageConfig{Driver: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, fs)

	_, err = Open(ctx, config.StorageConfig{Driver: "s3"})
	assert.Error(t, err, "bucket is required")

	_, err = Open(ctx, config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
