// Package redirectpath validates post-auth redirect targets taken from
// query parameters. Only decoded internal routes from a fixed allow-list
// are accepted; anything pointing at an external host is rejected.
package redirectpath

import (
	"net/url"
	"strings"
)

// Validate decodes a raw redirect parameter and returns the safe internal
// path, or ok=false when the value must not be used as a redirect target.
//
// Rules, in order: decode failure rejects; absolute http/https URLs reject;
// an exact allow-listed route (path portion before any "?") accepts; an
// allow-listed route prefix with an appended suffix accepts; everything
// else rejects. Callers fall back to a default landing route on rejection.
func Validate(raw string, allowed []string) (string, bool) {
	if raw == "" {
		return "", false
	}

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "", false
	}

	if strings.HasPrefix(decoded, "http://") || strings.HasPrefix(decoded, "https://") {
		return "", false
	}

	path := decoded
	if i := strings.Index(decoded, "?"); i >= 0 {
		path = decoded[:i]
	}

	for _, route := range allowed {
		if path == route {
			return decoded, true
		}
	}
	for _, route := range allowed {
		if strings.HasPrefix(decoded, route) {
			return decoded, true
		}
	}
	return "", false
}
