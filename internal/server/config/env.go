package config

import (
	"fmt"
	"strconv"
	"time"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// parseEnv overlays SKYBOX_* environment variables. It is meant for secrets
// and deployment-specific endpoints that should not appear on the command line.
func parseEnv(config *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"SKYBOX_DATABASE_DSN":        &config.DatabaseDSN,
		"SKYBOX_SECRET_KEY":          &config.SecretKey,
		"SKYBOX_JWKS_URL":            &config.JWKSURL,
		"SKYBOX_JWT_ISSUER":          &config.JWTIssuer,
		"SKYBOX_S3_ACCESS_KEY":       &config.S3AccessKey,
		"SKYBOX_S3_SECRET_KEY":       &config.S3SecretKey,
		"SKYBOX_S3_BUCKET":           &config.S3Bucket,
		"SKYBOX_S3_BASE_ENDPOINT":    &config.S3BaseEndpoint,
		"SKYBOX_S3_PUBLIC_DOMAIN":    &config.S3PublicDomain,
		"SKYBOX_RAZORPAY_KEY_ID":     &config.RazorpayKeyID,
		"SKYBOX_RAZORPAY_KEY_SECRET": &config.RazorpayKeySecret,
		"SKYBOX_LOG_LEVEL":           &config.LogLevel,
		"SKYBOX_LOG_FORMAT":          &config.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("SKYBOX_UPLOAD_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SKYBOX_UPLOAD_TIMEOUT: %w", err)
		}
		config.UploadTimeout = d
	}

	if v, ok := lookup("SKYBOX_DEFAULT_CREDITS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SKYBOX_DEFAULT_CREDITS: %w", err)
		}
		config.DefaultCredits = n
	}

	return nil
}
