package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type minioConfig struct {
	endpoint string
	maxSize  int64
}

func (c minioConfig) GetMinIOEndpoint() string   { return c.endpoint }
func (c minioConfig) GetMinIOAccessKey() string  { return "access" }
func (c minioConfig) GetMinIOSecretKey() string  { return "secret" }
func (c minioConfig) GetMinIOUseSSL() bool       { return false }
func (c minioConfig) GetMinIOMaxFileSize() int64 { return c.maxSize }
func (c minioConfig) IsMinIOEnabled() bool       { return c.endpoint != "" }

func TestNewMinIOService(t *testing.T) {
	svc, err := NewMinIOService(minioConfig{endpoint: "minio.internal:9000", maxSize: 5 << 20})
	require.NoError(t, err)
	assert.Equal(t, int64(5<<20), svc.GetMaxFileSize())

	_, err = NewMinIOService(minioConfig{})
	assert.Error(t, err)
}
