package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// SigningMethod defines supported JWT signing algorithms.
type SigningMethod string

const (
	HS256 SigningMethod = "HS256"
	HS384 SigningMethod = "HS384"
	HS512 SigningMethod = "HS512"
)

const minSecretLength = 16

// Config configures the JWT token service.
type Config struct {
	// Secret is the HMAC signing key.
	Secret string `mapstructure:"secret"`

	// Method is the signing algorithm (default: HS256).
	Method SigningMethod `mapstructure:"method"`

	// Issuer is the "iss" claim; when set, parsed tokens must carry it.
	Issuer string `mapstructure:"issuer"`

	// Audience is the "aud" claim; when set, parsed tokens must carry it.
	Audience string `mapstructure:"audience"`

	// AccessTokenTTL is the lifetime of generated tokens (default: 1h).
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = HS256
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = time.Hour
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	switch c.Method {
	case HS256, HS384, HS512:
	default:
		return errors.New("unsupported signing method: " + string(c.Method))
	}
	if len(c.Secret) < minSecretLength {
		return errors.New("secret must be at least 16 bytes")
	}
	if c.AccessTokenTTL < 0 {
		return errors.New("access_token_ttl must not be negative")
	}
	return nil
}

func (c *Config) signingMethod() gojwt.SigningMethod {
	switch c.Method {
	case HS384:
		return gojwt.SigningMethodHS384
	case HS512:
		return gojwt.SigningMethodHS512
	default:
		return gojwt.SigningMethodHS256
	}
}
