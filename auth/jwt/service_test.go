package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = testSecret
	}
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_RoundTrip(t *testing.T) {
	svc := newTestService(t, Config{Issuer: "eventfeed", Audience: "readers"})

	token, err := svc.Generate("reader-1")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "reader-1" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Scope != "events" {
		t.Errorf("scope = %q", claims.Scope)
	}
}

func TestService_Expired(t *testing.T) {
	svc := newTestService(t, Config{})
	token, err := svc.GenerateWithTTL("reader-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = svc.Parse(token)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
}

func TestService_RejectsOtherKey(t *testing.T) {
	a := newTestService(t, Config{})
	b := newTestService(t, Config{Secret: strings.Repeat("z", 32)})

	token, _ := a.Generate("reader-1")
	if _, err := b.Parse(token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestService_RejectsOtherMethod(t *testing.T) {
	svc := newTestService(t, Config{Method: HS256})
	claims := &Claims{RegisteredClaims: gojwt.RegisteredClaims{
		Subject:   "x",
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Parse(token); err == nil {
		t.Fatal("expected method mismatch error")
	}
}

func TestService_RejectsWrongIssuer(t *testing.T) {
	a := newTestService(t, Config{Issuer: "a"})
	b := newTestService(t, Config{Issuer: "b"})
	token, _ := a.Generate("reader-1")
	if _, err := b.Parse(token); err == nil {
		t.Fatal("expected issuer error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Secret: testSecret, Method: HS384}, false},
		{"short secret", Config{Secret: "short"}, true},
		{"rsa unsupported", Config{Secret: testSecret, Method: "RS256"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_GenerateRequiresSubject(t *testing.T) {
	svc := newTestService(t, Config{})
	if _, err := svc.Generate(""); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
