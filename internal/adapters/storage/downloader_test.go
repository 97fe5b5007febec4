package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjects map[ObjectRef][]byte

func (m memObjects) DownloadFile(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	b, ok := m[ObjectRef{Bucket: bucket, Key: key}]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestDownloadReadsObjectStoreURLs(t *testing.T) {
	objects := memObjects{
		{Bucket: "intake", Key: "file-1/contract.pdf"}: []byte("%PDF"),
	}
	d := NewDownloader(objects, "minio.internal:9000", 1024)

	for _, raw := range []string{
		"s3://intake/file-1/contract.pdf",
		"http://minio.internal:9000/intake/file-1/contract.pdf",
	} {
		got, err := d.Download(context.Background(), raw)
		require.NoError(t, err, raw)
		assert.Equal(t, []byte("%PDF"), got)
	}
}

func TestDownloadWithoutObjectStoreFails(t *testing.T) {
	d := NewDownloader(nil, "", 0)
	_, err := d.Download(context.Background(), "s3://intake/file-1/contract.pdf")
	assert.ErrorContains(t, err, "not configured")
}

func TestDownloadFetchesHTTPLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7"))
		case "/big.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
		case "/script.js":
			w.Header().Set("Content-Type", "application/javascript")
			_, _ = w.Write([]byte("alert(1)"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	d := NewDownloader(nil, "", 32)
	ctx := context.Background()

	got, err := d.Download(ctx, srv.URL+"/ok.pdf?sig=abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), got)

	_, err = d.Download(ctx, srv.URL+"/big.pdf")
	assert.ErrorContains(t, err, "exceeds maximum")

	_, err = d.Download(ctx, srv.URL+"/script.js")
	assert.ErrorContains(t, err, "not allowed")

	_, err = d.Download(ctx, srv.URL+"/missing.pdf")
	assert.ErrorContains(t, err, "status 404")
}

func TestDownloadRejectsUnknownScheme(t *testing.T) {
	d := NewDownloader(memObjects{}, "", 0)
	_, err := d.Download(context.Background(), "ftp://host/file.pdf")
	assert.ErrorContains(t, err, "unsupported")
}

func TestValidateContentType(t *testing.T) {
	assert.NoError(t, ValidateContentType("application/pdf; charset=binary"))
	assert.NoError(t, ValidateContentType(""))
	assert.Error(t, ValidateContentType("application/x-msdownload"))
}
