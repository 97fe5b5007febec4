package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Downloader resolves a file URL to its bytes. s3:// URLs and path-style
// URLs on the configured endpoint are read from the object store; any other
// http(s) URL (e.g. a presigned link) is fetched directly.
type Downloader struct {
	objects  ObjectStore
	endpoint string
	http     *http.Client
	maxSize  int64
}

// NewDownloader creates a Downloader. objects may be nil when no object
// store is configured.
func NewDownloader(objects ObjectStore, endpoint string, maxSize int64) *Downloader {
	return &Downloader{
		objects:  objects,
		endpoint: strings.ToLower(strings.TrimSpace(endpoint)),
		http:     &http.Client{Timeout: 2 * time.Minute},
		maxSize:  maxSize,
	}
}

// Download returns the content at rawURL.
func (d *Downloader) Download(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid file url: %w", err)
	}

	if ref, ok := d.objectRef(u); ok {
		if d.objects == nil {
			return nil, fmt.Errorf("object storage is not configured for %s", rawURL)
		}
		rc, err := d.objects.DownloadFile(ctx, ref.Bucket, ref.Key)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()
		return d.readAll(rc)
	}

	switch u.Scheme {
	case "http", "https":
		return d.fetch(ctx, u)
	default:
		return nil, fmt.Errorf("unsupported file url scheme %q", u.Scheme)
	}
}

// objectRef maps s3://bucket/key and endpoint/bucket/key to an object.
func (d *Downloader) objectRef(u *url.URL) (ObjectRef, bool) {
	switch {
	case u.Scheme == "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return ObjectRef{}, false
		}
		return ObjectRef{Bucket: u.Host, Key: key}, true
	case d.endpoint != "" && strings.EqualFold(u.Host, d.endpoint) && u.RawQuery == "":
		bucket, key, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if !ok || bucket == "" || key == "" {
			return ObjectRef{}, false
		}
		return ObjectRef{Bucket: bucket, Key: key}, true
	}
	return ObjectRef{}, false
}

func (d *Downloader) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", u.Redacted(), resp.StatusCode)
	}
	if err := ValidateContentType(resp.Header.Get("Content-Type")); err != nil {
		return nil, err
	}
	return d.readAll(resp.Body)
}

// readAll reads r, failing once it exceeds the size limit.
func (d *Downloader) readAll(r io.Reader) ([]byte, error) {
	if d.maxSize > 0 {
		r = io.LimitReader(r, d.maxSize+1)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	if err := ValidateFileSize(int64(buf.Len()), d.maxSize); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
