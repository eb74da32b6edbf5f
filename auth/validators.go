package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/kbukum/eventfeed/auth/jwt"
)

const (
	MethodJWT       = "jwt"
	MethodAPIKey    = "api-key"
	MethodAnonymous = "anonymous"
)

// maxAPIKeyLength is the bcrypt input limit.
const maxAPIKeyLength = 72

// JWTValidator accepts tokens signed by svc.
func JWTValidator(svc *jwt.Service) TokenValidator {
	return TokenValidatorFunc(func(token string) (Principal, error) {
		claims, err := svc.Parse(token)
		if err != nil {
			return Principal{}, err
		}
		return Principal{Subject: claims.Subject, Method: MethodJWT}, nil
	})
}

// APIKeyValidator accepts keys matching one of a set of bcrypt hashes.
type APIKeyValidator struct {
	hashes [][]byte
}

// NewAPIKeyValidator creates a validator for the given bcrypt hashes.
func NewAPIKeyValidator(hashes []string) *APIKeyValidator {
	v := &APIKeyValidator{hashes: make([][]byte, 0, len(hashes))}
	for _, h := range hashes {
		v.hashes = append(v.hashes, []byte(h))
	}
	return v
}

// ValidateToken implements TokenValidator.
func (v *APIKeyValidator) ValidateToken(token string) (Principal, error) {
	if len(token) > maxAPIKeyLength {
		return Principal{}, errors.New("auth: api key too long")
	}
	for i, h := range v.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			return Principal{Subject: fmt.Sprintf("api-key-%d", i), Method: MethodAPIKey}, nil
		}
	}
	return Principal{}, errors.New("auth: unknown api key")
}

// HashAPIKey returns the bcrypt hash of key for use in APIKeyHashes.
func HashAPIKey(key string, cost int) (string, error) {
	if key == "" {
		return "", errors.New("auth: api key is empty")
	}
	if len(key) > maxAPIKeyLength {
		return "", fmt.Errorf("auth: api key longer than %d bytes", maxAPIKeyLength)
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash api key: %w", err)
	}
	return string(h), nil
}
