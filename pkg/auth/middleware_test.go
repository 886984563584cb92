package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(headers map[string]string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/brain", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestKeyFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"gateway key header", map[string]string{HeaderGatewayKey: "k1"}, "k1"},
		{"bearer fallback", map[string]string{"Authorization": "Bearer k2"}, "k2"},
		{"header wins over bearer", map[string]string{HeaderGatewayKey: "k1", "Authorization": "Bearer k2"}, "k1"},
		{"basic auth ignored", map[string]string{"Authorization": "Basic abc"}, ""},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyFromRequest(newContext(tt.headers)))
		})
	}
}

func TestKeyMiddleware(t *testing.T) {
	var seen string
	handler := func(c echo.Context) error {
		seen = Credential(c)
		return c.NoContent(http.StatusOK)
	}

	t.Run("required and present", func(t *testing.T) {
		c := newContext(map[string]string{HeaderGatewayKey: "k1"})
		require.NoError(t, KeyMiddleware(true)(handler)(c))
		assert.Equal(t, "k1", seen)
	})

	t.Run("required and missing", func(t *testing.T) {
		err := KeyMiddleware(true)(handler)(newContext(nil))
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, v1.StatusOf(err))
		assert.Equal(t, "Missing gateway key", v1.MessageOf(err))
	})

	t.Run("optional and missing", func(t *testing.T) {
		seen = "stale"
		require.NoError(t, KeyMiddleware(false)(handler)(newContext(nil)))
		assert.Equal(t, "", seen)
	})
}

func TestAdminMiddleware(t *testing.T) {
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	c := newContext(map[string]string{HeaderAdminToken: "admin-1"})
	require.NoError(t, AdminMiddleware("admin-1")(handler)(c))

	c = newContext(map[string]string{"Authorization": "Bearer admin-1"})
	require.NoError(t, AdminMiddleware("admin-1")(handler)(c))

	err := AdminMiddleware("admin-1")(handler)(newContext(map[string]string{HeaderAdminToken: "nope"}))
	assert.Equal(t, http.StatusUnauthorized, v1.StatusOf(err))
	assert.Equal(t, "Unauthorized: missing/invalid admin token", v1.MessageOf(err))

	err = AdminMiddleware("")(handler)(newContext(map[string]string{HeaderAdminToken: "x"}))
	assert.Equal(t, http.StatusInternalServerError, v1.StatusOf(err))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "", Fingerprint(""))
	fp := Fingerprint("secret-key")
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, Fingerprint("secret-key"))
	assert.NotEqual(t, fp, Fingerprint("other-key"))
	assert.NotContains(t, fp, "secret")
}
