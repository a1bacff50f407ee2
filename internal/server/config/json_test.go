package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_grpc":    "www.example:9000",
		"database_dsn":          "postgres://json",
		"jwks_url":              "https://clerk.example/.well-known/jwks.json",
		"jwks_refresh_interval": "30m",
		"s3_bucket":             "bucket",
		"s3_public_domain":      "https://files.example",
		"multipart_threshold":   10485760,
		"upload_timeout":        60000000000,
		"default_credits":       3,
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "https://clerk.example/.well-known/jwks.json", cfg.JWKSURL)
		assert.Equal(t, 30*time.Minute, cfg.JWKSRefreshInterval)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "https://files.example", cfg.S3PublicDomain)
		assert.Equal(t, int64(10485760), cfg.MultipartThreshold)
		assert.Equal(t, time.Minute, cfg.UploadTimeout)
		assert.Equal(t, int64(3), cfg.DefaultCredits)

		assert.Equal(t, ":8080", cfg.EndpointAddrHTTP, "fields absent from the file keep defaults")
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		cfg := &Config{EndpointAddrGRPC: "defaults:1234"}
		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))
		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-c", bad}))
	})

	t.Run("missing file → error", func(t *testing.T) {
		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-c", filepath.Join(t.TempDir(), "nope.json")}))
	})
}
