package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/skybox/internal/flagx"
	"github.com/dmitrijs2005/skybox/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Pointer fields distinguish
// "absent" from zero so a partial file only overrides what it names;
// durations accept "5m" as well as integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC *string `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP *string `json:"endpoint_addr_http"`
	DatabaseDSN      *string `json:"database_dsn"`
	LogLevel         *string `json:"log_level"`
	LogFormat        *string `json:"log_format"`

	SecretKey           *string         `json:"secret_key"`
	JWKSURL             *string         `json:"jwks_url"`
	JWTIssuer           *string         `json:"jwt_issuer"`
	JWKSRefreshInterval *timex.Duration `json:"jwks_refresh_interval"`
	JWKSClientTimeout   *timex.Duration `json:"jwks_client_timeout"`
	JWTLeeway           *timex.Duration `json:"jwt_leeway"`

	S3AccessKey    *string `json:"s3_access_key"`
	S3SecretKey    *string `json:"s3_secret_key"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	S3PublicDomain *string `json:"s3_public_domain"`

	MultipartThreshold *int64          `json:"multipart_threshold"`
	MultipartPartSize  *int64          `json:"multipart_part_size"`
	UploadTimeout      *timex.Duration `json:"upload_timeout"`
	StoreTimeout       *timex.Duration `json:"store_timeout"`
	PresignTTL         *timex.Duration `json:"presign_ttl"`
	MaxMessageSize     *int            `json:"max_message_size"`

	RazorpayKeyID     *string         `json:"razorpay_key_id"`
	RazorpayKeySecret *string         `json:"razorpay_key_secret"`
	Currency          *string         `json:"currency"`
	GatewayTimeout    *timex.Duration `json:"gateway_timeout"`

	DefaultCredits  *int64          `json:"default_credits"`
	PublicCacheSize *int            `json:"public_cache_size"`
	PublicCacheTTL  *timex.Duration `json:"public_cache_ttl"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads configuration values from the JSON file named by the
// -c or -config flag. Without the flag nothing is loaded.
func parseJson(config *Config, args []string) error {

	jsonConfigFile := flagx.ConfigFile(args)
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config %s: %w", jsonConfigFile, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setValue(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setValue(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setValue(&config.DatabaseDSN, c.DatabaseDSN)
	setValue(&config.LogLevel, c.LogLevel)
	setValue(&config.LogFormat, c.LogFormat)

	setValue(&config.SecretKey, c.SecretKey)
	setValue(&config.JWKSURL, c.JWKSURL)
	setValue(&config.JWTIssuer, c.JWTIssuer)
	setDuration(&config.JWKSRefreshInterval, c.JWKSRefreshInterval)
	setDuration(&config.JWKSClientTimeout, c.JWKSClientTimeout)
	setDuration(&config.JWTLeeway, c.JWTLeeway)

	setValue(&config.S3AccessKey, c.S3AccessKey)
	setValue(&config.S3SecretKey, c.S3SecretKey)
	setValue(&config.S3Bucket, c.S3Bucket)
	setValue(&config.S3Region, c.S3Region)
	setValue(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setValue(&config.S3PublicDomain, c.S3PublicDomain)

	setValue(&config.MultipartThreshold, c.MultipartThreshold)
	setValue(&config.MultipartPartSize, c.MultipartPartSize)
	setDuration(&config.UploadTimeout, c.UploadTimeout)
	setDuration(&config.StoreTimeout, c.StoreTimeout)
	setDuration(&config.PresignTTL, c.PresignTTL)
	setValue(&config.MaxMessageSize, c.MaxMessageSize)

	setValue(&config.RazorpayKeyID, c.RazorpayKeyID)
	setValue(&config.RazorpayKeySecret, c.RazorpayKeySecret)
	setValue(&config.Currency, c.Currency)
	setDuration(&config.GatewayTimeout, c.GatewayTimeout)

	setValue(&config.DefaultCredits, c.DefaultCredits)
	setValue(&config.PublicCacheSize, c.PublicCacheSize)
	setDuration(&config.PublicCacheTTL, c.PublicCacheTTL)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
