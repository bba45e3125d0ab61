package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHTTPRequest(t *testing.T) {
	newRequest := func(userAgent, acceptLanguage string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if userAgent != "" {
			r.Header.Set("User-Agent", userAgent)
		}
		if acceptLanguage != "" {
			r.Header.Set("Accept-Language", acceptLanguage)
		}

		return r
	}

	t.Run("same headers give same fingerprint", func(t *testing.T) {
		a, err := FromHTTPRequest(newRequest("agent-1", "en"))
		require.NoError(t, err)
		b, err := FromHTTPRequest(newRequest("agent-1", "en"))
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("different user agent changes fingerprint", func(t *testing.T) {
		a, err := FromHTTPRequest(newRequest("agent-1", "en"))
		require.NoError(t, err)
		b, err := FromHTTPRequest(newRequest("agent-2", "en"))
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("header values cannot shift between fields", func(t *testing.T) {
		a, err := FromHTTPRequest(newRequest("agent", ""))
		require.NoError(t, err)
		b, err := FromHTTPRequest(newRequest("", "agent"))
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("nil request fails", func(t *testing.T) {
		_, err := FromHTTPRequest(nil)
		assert.Error(t, err)
	})
}
