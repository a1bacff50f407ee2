package common

// AuthorizationHeaderName is the gRPC metadata key / HTTP header carrying
// the bearer token on inbound requests.
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the token in the authorization value.
const BearerPrefix = "Bearer "

const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
)
