package http

import (
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct connection", "203.0.113.7:1234", "", "", "203.0.113.7"},
		{"untrusted peer cannot forward", "203.0.113.7:1234", "1.2.3.4", "", "203.0.113.7"},
		{"trusted proxy with XFF", "10.0.0.1:1234", "1.2.3.4", "", "1.2.3.4"},
		{"trusted proxy with XFF chain", "127.0.0.1:1234", "1.2.3.4, 10.0.0.1", "", "1.2.3.4"},
		{"trusted proxy with X-Real-IP", "192.168.1.1:1234", "", "1.2.3.4", "1.2.3.4"},
		{"garbage XFF falls back to peer", "10.0.0.1:1234", "not-an-ip", "", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiterResetsAfterAMinute(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < writesPerMinute; i++ {
		if !rl.allow("1.2.3.4", nil) {
			t.Fatalf("request %d blocked below the limit", i+1)
		}
	}
	if rl.allow("1.2.3.4", nil) {
		t.Error("request above the limit allowed")
	}

	// Another client is tracked independently.
	if !rl.allow("5.6.7.8", nil) {
		t.Error("independent client blocked")
	}
}
