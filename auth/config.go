package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kbukum/eventfeed/auth/jwt"
)

// Config holds authentication configuration.
type Config struct {
	// AllowAnonymous accepts requests without credentials. Invalid
	// credentials are still rejected.
	AllowAnonymous bool `mapstructure:"allow_anonymous"`

	// Cookie and QueryParam name the fallbacks checked after the
	// Authorization header.
	Cookie     string `mapstructure:"cookie"`
	QueryParam string `mapstructure:"query_param"`

	// JWT enables bearer token validation (nil if not used).
	JWT *jwt.Config `mapstructure:"jwt"`

	// APIKeyHashes are bcrypt hashes of accepted API keys.
	APIKeyHashes []string `mapstructure:"api_key_hashes"`
}

// ApplyDefaults sets credential lookup names.
func (c *Config) ApplyDefaults() {
	if c.Cookie == "" {
		c.Cookie = "access_token"
	}
	if c.QueryParam == "" {
		c.QueryParam = "access_token"
	}
	if c.JWT != nil {
		c.JWT.ApplyDefaults()
	}
}

// Validate checks that some credential can be accepted.
func (c *Config) Validate() error {
	if c.JWT != nil {
		if err := c.JWT.Validate(); err != nil {
			return fmt.Errorf("auth.jwt: %w", err)
		}
	}
	for i, h := range c.APIKeyHashes {
		if !strings.HasPrefix(h, "$2") {
			return fmt.Errorf("auth.api_key_hashes[%d]: not a bcrypt hash", i)
		}
	}
	if !c.AllowAnonymous && c.JWT == nil && len(c.APIKeyHashes) == 0 {
		return errors.New("auth: no validators configured and anonymous access disabled")
	}
	return nil
}

// Describe returns a one-liner for the startup log.
func (c *Config) Describe() string {
	var parts []string
	if c.JWT != nil {
		parts = append(parts, fmt.Sprintf("JWT(%s)", c.JWT.Method))
	}
	if n := len(c.APIKeyHashes); n > 0 {
		parts = append(parts, fmt.Sprintf("api-keys=%d", n))
	}
	if c.AllowAnonymous {
		parts = append(parts, "anonymous")
	}
	return strings.Join(parts, " ")
}
