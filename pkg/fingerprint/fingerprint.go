// Package fingerprint derives a stable fingerprint from request
// headers. The fingerprint is stored when an authorization flow starts
// and compared on the callback, binding the callback to the browser
// that initiated the flow.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
)

var headerKeys = []string{"User-Agent", "Accept-Language"}

// FromHTTPRequest hashes a fixed set of request headers. Headers that
// are absent contribute an empty string, so two requests missing the
// same headers still match.
func FromHTTPRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", errors.New("http request is nil")
	}

	h := sha256.New()
	for _, key := range headerKeys {
		h.Write([]byte(r.Header.Get(key)))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
