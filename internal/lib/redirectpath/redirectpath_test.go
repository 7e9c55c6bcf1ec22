package redirectpath

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

var allowed = []string{"/find-hospitals", "/cost-calculator", "/second-opinion", "/get-started"}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{
			name:   "exact allow-listed route",
			raw:    "/find-hospitals",
			want:   "/find-hospitals",
			wantOK: true,
		},
		{
			name:   "encoded route with query string",
			raw:    url.QueryEscape("/find-hospitals?city=mumbai&page=2"),
			want:   "/find-hospitals?city=mumbai&page=2",
			wantOK: true,
		},
		{
			name:   "allow-listed prefix with suffix",
			raw:    url.QueryEscape("/cost-calculator/breast-cancer"),
			want:   "/cost-calculator/breast-cancer",
			wantOK: true,
		},
		{
			name:   "external http url rejected",
			raw:    "http://evil.example.com/find-hospitals",
			wantOK: false,
		},
		{
			name:   "external https url rejected",
			raw:    "https://evil.example.com",
			wantOK: false,
		},
		{
			name:   "encoded external url rejected",
			raw:    url.QueryEscape("https://evil.example.com/%2Ffind-hospitals"),
			wantOK: false,
		},
		{
			name:   "unknown internal route rejected",
			raw:    "/admin",
			wantOK: false,
		},
		{
			name:   "empty value rejected",
			raw:    "",
			wantOK: false,
		},
		{
			name:   "bad percent encoding rejected",
			raw:    "%zz",
			wantOK: false,
		},
		{
			name:   "query string on exact route unencoded",
			raw:    "/get-started?returnUrl=%2Fcost-calculator",
			want:   "/get-started?returnUrl=/cost-calculator",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Validate(tt.raw, allowed)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

// Any value with an absolute scheme must be rejected regardless of what
// follows, including allow-listed paths embedded in the URL.
func TestValidate_NeverAcceptsAbsoluteURLs(t *testing.T) {
	for _, route := range allowed {
		for _, scheme := range []string{"http://", "https://"} {
			raw := scheme + "attacker.example" + route
			_, ok := Validate(raw, allowed)
			assert.False(t, ok, "accepted %q", raw)

			_, ok = Validate(url.QueryEscape(raw), allowed)
			assert.False(t, ok, "accepted encoded %q", raw)
		}
	}
}

// Every allow-listed prefix with an arbitrary suffix must round-trip
// through encoding and come back decoded.
func TestValidate_PrefixSuffixRoundTrip(t *testing.T) {
	suffixes := []string{"", "?x=1", "?a=b&c=d", "/sub/page", "?redirect=%2Fhome"}
	for _, route := range allowed {
		for _, suffix := range suffixes {
			full := route + suffix
			got, ok := Validate(url.QueryEscape(full), allowed)
			assert.True(t, ok, "rejected %q", full)
			decoded, err := url.QueryUnescape(url.QueryEscape(full))
			assert.NoError(t, err)
			assert.Equal(t, decoded, got)
		}
	}
}
