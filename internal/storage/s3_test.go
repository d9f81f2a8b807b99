package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is a tiny path-style S3 subset (PUT, GET, DELETE) served in memory.
type fakeS3 struct {
	mu    sync.Mutex
	state map[string][]byte
	types map[string]string
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// /<bucket>/<key>
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	empty := io.NopCloser(bytes.NewReader(nil))

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.state[key] = body
		f.types[key] = req.Header.Get("Content-Type")
		return &http.Response{StatusCode: http.StatusOK, Body: empty, Header: http.Header{"ETag": {`"etag"`}}}, nil
	case http.MethodGet:
		body, ok := f.state[key]
		if !ok {
			msg := `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`
			return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(msg)),
				Header: http.Header{"Content-Type": {"application/xml"}}}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"Content-Type":   {f.types[key]},
		}}, nil
	case http.MethodDelete:
		delete(f.state, key)
		return &http.Response{StatusCode: http.StatusNoContent, Body: empty, Header: http.Header{}}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Body: empty, Header: http.Header{}}, nil
}

// decodeChunked unwraps a single-chunk aws-chunked payload.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	head := strings.SplitN(parts[0], ";", 2)[0]
	size, err := strconv.ParseInt(head, 16, 64)
	if err != nil || int64(len(parts[1])) != size {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeS3Storage(t *testing.T, prefix string) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{state: map[string][]byte{}, types: map[string]string{}}
	s, err := NewS3Storage(context.Background(), S3Options{
		Bucket:      "qa-evidence",
		Region:      "us-east-1",
		Endpoint:    "https://mock.s3.local",
		PathStyle:   true,
		Prefix:      prefix,
		HTTPClient:  &http.Client{Transport: fake},
		Credentials: credentials.NewStaticCredentialsProvider("AKIA", "SECRET", ""),
	})
	require.NoError(t, err)
	return s, fake
}

func TestS3Storage_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, fake := newFakeS3Storage(t, "uploads")

	url, err := s.Save(ctx, "pdf-1-abcdef.pdf", strings.NewReader("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://mock.s3.local/qa-evidence/uploads/pdf-1-abcdef.pdf", url)
	assert.Equal(t, "%PDF-1.4", string(fake.state["uploads/pdf-1-abcdef.pdf"]))
	assert.Equal(t, "application/pdf", fake.types["uploads/pdf-1-abcdef.pdf"])

	rc, err := s.Open(ctx, "pdf-1-abcdef.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, s.Delete(ctx, "pdf-1-abcdef.pdf"))
	assert.Empty(t, fake.state)

	_, err = s.Open(ctx, "pdf-1-abcdef.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Storage_PublicURL(t *testing.T) {
	s, err := NewS3Storage(context.Background(), S3Options{
		Bucket:      "qa-evidence",
		Region:      "ap-southeast-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIA", "SECRET", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://qa-evidence.s3.ap-southeast-1.amazonaws.com/a.jpg", s.PublicURL("a.jpg"))

	s, err = NewS3Storage(context.Background(), S3Options{
		Bucket:        "qa-evidence",
		PublicBaseURL: "https://cdn.example.org/",
		Credentials:   credentials.NewStaticCredentialsProvider("AKIA", "SECRET", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/a.jpg", s.PublicURL("a.jpg"))
}
