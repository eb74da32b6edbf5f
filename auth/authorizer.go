package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/eventfeed/auth/jwt"
	apperrors "github.com/kbukum/eventfeed/errors"
	"github.com/kbukum/eventfeed/logger"
	"github.com/kbukum/eventfeed/sse"
)

// RequestAuthorizer checks request credentials against a list of validators.
type RequestAuthorizer struct {
	cookie         string
	queryParam     string
	allowAnonymous bool
	validators     []TokenValidator
	log            *logger.Logger
}

var _ sse.Authorizer = (*RequestAuthorizer)(nil)

// NewRequestAuthorizer builds an authorizer from cfg. jwtSvc may be nil when
// cfg.JWT is nil.
func NewRequestAuthorizer(cfg Config, jwtSvc *jwt.Service, log *logger.Logger) (*RequestAuthorizer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &RequestAuthorizer{
		cookie:         cfg.Cookie,
		queryParam:     cfg.QueryParam,
		allowAnonymous: cfg.AllowAnonymous,
		log:            log.WithComponent("auth"),
	}
	if cfg.JWT != nil {
		if jwtSvc == nil {
			svc, err := jwt.NewService(*cfg.JWT)
			if err != nil {
				return nil, err
			}
			jwtSvc = svc
		}
		a.validators = append(a.validators, JWTValidator(jwtSvc))
	}
	if len(cfg.APIKeyHashes) > 0 {
		a.validators = append(a.validators, NewAPIKeyValidator(cfg.APIKeyHashes))
	}
	return a, nil
}

// NewStaticAuthorizer builds an authorizer over explicit validators.
func NewStaticAuthorizer(allowAnonymous bool, log *logger.Logger, validators ...TokenValidator) *RequestAuthorizer {
	return &RequestAuthorizer{
		cookie:         "access_token",
		queryParam:     "access_token",
		allowAnonymous: allowAnonymous,
		validators:     validators,
		log:            log.WithComponent("auth"),
	}
}

// Authenticate returns the principal for r.
func (a *RequestAuthorizer) Authenticate(r *http.Request) (Principal, error) {
	token, ok := a.extract(r)
	if !ok {
		if a.allowAnonymous {
			return Principal{Subject: "anonymous", Method: MethodAnonymous}, nil
		}
		return Principal{}, ErrNoCredentials
	}
	var errs []error
	for _, v := range a.validators {
		p, err := v.ValidateToken(token)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Principal{}, errors.New("auth: no validators configured")
	}
	return Principal{}, errors.Join(errs...)
}

// IsAccessTokenValid implements sse.Authorizer.
func (a *RequestAuthorizer) IsAccessTokenValid(r *http.Request) bool {
	if _, err := a.Authenticate(r); err != nil {
		a.log.Debug("Request rejected", logger.Fields(
			logger.FieldRemoteAddr, r.RemoteAddr,
			logger.FieldReason, err.Error(),
		))
		return false
	}
	return true
}

// Middleware rejects unauthenticated requests with a 403 error body and
// stores the principal on the request context otherwise.
func (a *RequestAuthorizer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.Authenticate(c.Request)
		if err != nil {
			appErr := apperrors.Forbidden(apperrors.NotAuthenticatedMessage)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func (a *RequestAuthorizer) extract(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") && token != "" {
			return strings.TrimSpace(token), true
		}
		// A malformed header is a credential, and not a valid one.
		return h, true
	}
	if a.cookie != "" {
		if c, err := r.Cookie(a.cookie); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	if a.queryParam != "" {
		if v := r.URL.Query().Get(a.queryParam); v != "" {
			return v, true
		}
	}
	return "", false
}
