package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/skybox/internal/logging"
)

// jwksServer publishes a key set that tests can swap or break.
type jwksServer struct {
	*httptest.Server
	mu     sync.Mutex
	body   json.RawMessage
	status int
	hits   atomic.Int64
}

func newJWKSServer(t *testing.T, body json.RawMessage) *jwksServer {
	t.Helper()
	s := &jwksServer{body: body, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) serve(status int, body json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	if body != nil {
		s.body = body
	}
}

func startVerifier(t *testing.T, url string, refresh time.Duration) *JWKSVerifier {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	v, err := NewJWKSVerifier(ctx, JWKSConfig{
		URL:             url,
		RefreshInterval: refresh,
		ClientTimeout:   time.Second,
	}, logging.Nop())
	require.NoError(t, err)
	return v
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
}

func TestNewJWKSVerifier_KeepsKeysWhenRefreshFails(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newJWKSServer(t, buildJWKSetJSON(t, &key.PublicKey, testKeyID))

	v := startVerifier(t, srv.URL, 20*time.Millisecond)
	tok := signRS256(t, key, testKeyID, validClaims("u"))

	sub, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u", sub)

	srv.serve(http.StatusInternalServerError, nil)
	failedFrom := srv.hits.Load()
	require.Eventually(t, func() bool { return srv.hits.Load() >= failedFrom+3 }, 2*time.Second, 10*time.Millisecond)

	sub, err = v.Verify(context.Background(), tok)
	require.NoError(t, err, "keys from the last good refresh stay in use")
	assert.Equal(t, "u", sub)
}

func TestNewJWKSVerifier_UnknownKidTriggersRefresh(t *testing.T) {
	oldKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	newKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newJWKSServer(t, buildJWKSetJSON(t, &oldKey.PublicKey, testKeyID))

	// no periodic refresh: only an unknown kid can fetch the rotated set
	v := startVerifier(t, srv.URL, 0)

	_, err = v.Verify(context.Background(), signRS256(t, oldKey, testKeyID, validClaims("u")))
	require.NoError(t, err)

	srv.serve(http.StatusOK, buildJWKSetJSON(t, &newKey.PublicKey, "rotated"))
	before := srv.hits.Load()

	sub, err := v.Verify(context.Background(), signRS256(t, newKey, "rotated", validClaims("u2")))
	require.NoError(t, err)
	assert.Equal(t, "u2", sub)
	assert.Greater(t, srv.hits.Load(), before)
}
