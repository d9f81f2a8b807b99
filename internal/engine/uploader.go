package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"qa-portal/internal/instrument"
	"qa-portal/internal/storage"
)

// Uploader checks and stores uploaded evidence files.
type Uploader struct {
	fs      storage.FileStorage
	policy  *UploadPolicy
	metrics *instrument.Metrics
	now     func() time.Time
}

func NewUploader(fs storage.FileStorage, policy *UploadPolicy, m *instrument.Metrics) *Uploader {
	return &Uploader{fs: fs, policy: policy, metrics: m, now: time.Now}
}

// pendingFile is an uploaded file read into memory and checked, not yet stored.
type pendingFile struct {
	name        string
	contentType string
	data        []byte
}

// Inspect reads and sniffs one multipart file and runs the upload policy.
// Violations come back as details; err is only for unreadable input.
func (u *Uploader) Inspect(field, docType string, fh *multipart.FileHeader) (*pendingFile, []ErrorDetail, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open uploaded file %s: %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, nil, fmt.Errorf("read uploaded file %s: %w", fh.Filename, err)
	}

	contentType := strings.TrimSpace(strings.SplitN(mimetype.Detect(data).String(), ";", 2)[0])
	facts := UploadFacts{
		DocType:     docType,
		Filename:    fh.Filename,
		Ext:         storage.SafeExt(fh.Filename),
		ContentType: contentType,
		Size:        int64(len(data)),
	}
	if details := u.policy.Check(field, facts); len(details) > 0 {
		return nil, details, nil
	}
	return &pendingFile{name: fh.Filename, contentType: contentType, data: data}, nil, nil
}

// InspectAll inspects files in order, collecting every violation.
func (u *Uploader) InspectAll(field, docType string, files []*multipart.FileHeader) ([]*pendingFile, []ErrorDetail, error) {
	var (
		out     []*pendingFile
		details []ErrorDetail
	)
	for i, fh := range files {
		name := field
		if len(files) > 1 {
			name = fmt.Sprintf("%s[%d]", field, i)
		}
		p, d, err := u.Inspect(name, docType, fh)
		if err != nil {
			return nil, nil, err
		}
		details = append(details, d...)
		out = append(out, p)
	}
	if len(details) > 0 {
		return nil, details, nil
	}
	return out, nil, nil
}

// Store saves one checked file under a generated name and returns its public URL.
func (u *Uploader) Store(ctx context.Context, prefix, docType string, f *pendingFile) (string, error) {
	key := storage.SafeFileName(prefix, f.name, u.now())
	url, err := u.fs.Save(ctx, key, bytes.NewReader(f.data), f.contentType)
	if err != nil {
		u.metrics.ObserveUpload(docType, "error")
		return "", fmt.Errorf("upload %s: %w", f.name, err)
	}
	u.metrics.ObserveUpload(docType, "success")
	return url, nil
}

// StoreAll saves files one at a time. A failure stops the sequence; files
// already stored stay in storage.
func (u *Uploader) StoreAll(ctx context.Context, prefix, docType string, files []*pendingFile) ([]string, error) {
	urls := make([]string, 0, len(files))
	for i, f := range files {
		url, err := u.Store(ctx, fmt.Sprintf("%s-%d", prefix, i), docType, f)
		if err != nil {
			return urls, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
