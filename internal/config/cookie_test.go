package config

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCookieTemplate_ToCookie(t *testing.T) {
	tests := []struct {
		name     string
		template CookieTemplate
		value    string
		want     *http.Cookie
	}{
		{
			name: "session cookie",
			template: CookieTemplate{
				Name:     "truid-session",
				MaxAge:   3600,
				Path:     "/",
				Secure:   true,
				HTTPOnly: true,
				SameSite: CookieSameSiteLax,
			},
			value: "session-123",
			want: &http.Cookie{
				Name:     "truid-session",
				Value:    "session-123",
				MaxAge:   3600,
				Path:     "/",
				Secure:   true,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			},
		},
		{
			name: "csrf cookie readable from javascript",
			template: CookieTemplate{
				Name:     "truid-csrf",
				Path:     "/",
				Secure:   true,
				SameSite: CookieSameSiteStrict,
			},
			value: "token-abc",
			want: &http.Cookie{
				Name:     "truid-csrf",
				Value:    "token-abc",
				Path:     "/",
				Secure:   true,
				SameSite: http.SameSiteStrictMode,
			},
		},
		{
			name: "same-site none",
			template: CookieTemplate{
				Name:     "c",
				SameSite: CookieSameSiteNone,
			},
			value: "v",
			want: &http.Cookie{
				Name:     "c",
				Value:    "v",
				SameSite: http.SameSiteNoneMode,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.template.ToCookie(tt.value))
		})
	}
}
