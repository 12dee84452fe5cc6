// Package security provides input sanitization and CSRF protection for the
// wizard's HTTP surface.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CSRF errors.
var (
	ErrInvalidToken     = errors.New("invalid CSRF token")
	ErrMissingToken     = errors.New("missing CSRF token")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// CSRFConfig configures CSRF protection.
type CSRFConfig struct {
	// Secret signs tokens. A random secret is generated when empty.
	Secret []byte

	// MaxAge is how long tokens are valid (default 24h).
	MaxAge time.Duration

	// SessionCookie names the cookie that binds tokens to a session.
	SessionCookie string

	// HeaderName for the token header (default "X-CSRF-Token").
	HeaderName string

	// FormField name for the token (default "_csrf").
	FormField string
}

// CSRFProtection issues and checks session-bound tokens for form posts.
type CSRFProtection struct {
	secret        []byte
	maxAge        time.Duration
	sessionCookie string
	headerName    string
	formField     string
	now           func() time.Time
}

// NewCSRFProtection creates a new CSRF protection instance.
func NewCSRFProtection(config CSRFConfig) (*CSRFProtection, error) {
	if len(config.Secret) == 0 {
		config.Secret = make([]byte, 32)
		if _, err := rand.Read(config.Secret); err != nil {
			return nil, fmt.Errorf("generate csrf secret: %w", err)
		}
	}
	if config.MaxAge == 0 {
		config.MaxAge = 24 * time.Hour
	}
	if config.SessionCookie == "" {
		config.SessionCookie = "session"
	}
	if config.HeaderName == "" {
		config.HeaderName = "X-CSRF-Token"
	}
	if config.FormField == "" {
		config.FormField = "_csrf"
	}

	return &CSRFProtection{
		secret:        config.Secret,
		maxAge:        config.MaxAge,
		sessionCookie: config.SessionCookie,
		headerName:    config.HeaderName,
		formField:     config.FormField,
		now:           time.Now,
	}, nil
}

// FormField returns the form field carrying the token.
func (c *CSRFProtection) FormField() string {
	return c.formField
}

// Token creates a token bound to sessionID.
func (c *CSRFProtection) Token(sessionID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// payload: nonce|issued-at|session
	payload := strings.Join([]string{
		base64.RawURLEncoding.EncodeToString(nonce),
		strconv.FormatInt(c.now().Unix(), 10),
		sessionID,
	}, "|")

	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." +
		base64.RawURLEncoding.EncodeToString(c.sign([]byte(payload))), nil
}

// Validate checks a token against a session ID.
func (c *CSRFProtection) Validate(token, sessionID string) error {
	if token == "" {
		return ErrMissingToken
	}

	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidToken
	}
	signature, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare(signature, c.sign(payload)) != 1 {
		return ErrInvalidSignature
	}

	parts := strings.SplitN(string(payload), "|", 3)
	if len(parts) != 3 {
		return ErrInvalidToken
	}
	issued, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	if c.now().Sub(time.Unix(issued, 0)) > c.maxAge {
		return ErrTokenExpired
	}
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(sessionID)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

func (c *CSRFProtection) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(data)
	return mac.Sum(nil)
}

// Middleware rejects unsafe requests without a valid token for the
// request's session cookie.
func (c *CSRFProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			var sessionID string
			if cookie, err := r.Cookie(c.sessionCookie); err == nil {
				sessionID = cookie.Value
			}
			if sessionID == "" {
				http.Error(w, "Forbidden - Missing Session", http.StatusForbidden)
				return
			}
			if err := c.Validate(c.tokenFrom(r), sessionID); err != nil {
				http.Error(w, "Forbidden - Invalid CSRF Token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (c *CSRFProtection) tokenFrom(r *http.Request) string {
	if token := r.Header.Get(c.headerName); token != "" {
		return token
	}
	return r.PostFormValue(c.formField)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
