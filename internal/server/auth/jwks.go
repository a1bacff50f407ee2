package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/skybox/internal/logging"
)

// JWKSConfig configures the identity provider key set.
type JWKSConfig struct {
	URL             string
	Issuer          string
	RefreshInterval time.Duration
	Leeway          time.Duration
	ClientTimeout   time.Duration
}

// JWKSVerifier validates RS256 tokens against a remotely published key set.
// Keys are refreshed in the background; an unknown kid triggers a
// rate-limited refresh. When a refresh fails the previous keys stay in use.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	issuer string
	leeway time.Duration
	logger logging.Logger
}

// NewJWKSVerifier starts the background key set refresh for cfg.URL.
func NewJWKSVerifier(ctx context.Context, cfg JWKSConfig, logger logging.Logger) (*JWKSVerifier, error) {
	logger = logger.With("module", "auth")

	storage, err := jwkset.NewStorageFromHTTP(cfg.URL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: cfg.ClientTimeout},
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			logger.Error(ctx, "jwks refresh failed", "url", cfg.URL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks storage: %w", err)
	}

	client, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{cfg.URL: storage},
		RateLimitWaitMax:  time.Minute,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(5*time.Minute), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("jwks client: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: client})
	if err != nil {
		return nil, fmt.Errorf("keyfunc: %w", err)
	}

	return NewJWKSVerifierWithKeyfunc(k, cfg.Issuer, cfg.Leeway, logger), nil
}

// NewJWKSVerifierWithKeyfunc builds a verifier around an existing keyfunc.
func NewJWKSVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer string, leeway time.Duration, logger logging.Logger) *JWKSVerifier {
	return &JWKSVerifier{jwks: kf, issuer: issuer, leeway: leeway, logger: logger}
}

func (v *JWKSVerifier) Verify(ctx context.Context, tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.KeyfuncCtx(ctx), opts...)
	if err != nil {
		v.logger.Debug(ctx, "token rejected", "error", err)
		return "", classify(err)
	}
	return subjectOf(token, claims)
}
