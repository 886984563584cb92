package auth

import (
	"crypto/subtle"
	"strings"

	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
	"github.com/labstack/echo/v4"
)

// Header names accepted for credentials.
const (
	HeaderGatewayKey = "X-Gateway-Key"
	HeaderAdminToken = "X-Admin-Token"
)

const credentialKey = "ragbrain.credential"

// KeyFromRequest returns the gateway key from X-Gateway-Key, falling back
// to an Authorization Bearer token.
func KeyFromRequest(c echo.Context) string {
	if key := strings.TrimSpace(c.Request().Header.Get(HeaderGatewayKey)); key != "" {
		return key
	}
	return bearer(c)
}

func bearer(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}

// KeyMiddleware extracts the gateway key and stores it for Credential.
// When required is true a request without a key fails with 401.
func KeyMiddleware(required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := KeyFromRequest(c)
			if key == "" && required {
				return v1.Auth(v1.ErrMissingKey.Error())
			}
			c.Set(credentialKey, key)
			return next(c)
		}
	}
}

// Credential returns the gateway key stored by KeyMiddleware.
func Credential(c echo.Context) string {
	key, _ := c.Get(credentialKey).(string)
	return key
}

// AdminMiddleware requires X-Admin-Token (or a Bearer token) equal to
// token. An unconfigured token rejects every request with 500.
func AdminMiddleware(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return v1.Internal("Admin token is not configured", nil)
			}
			got := strings.TrimSpace(c.Request().Header.Get(HeaderAdminToken))
			if got == "" {
				got = bearer(c)
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return v1.Auth(v1.ErrInvalidAdminToken.Error())
			}
			return next(c)
		}
	}
}
