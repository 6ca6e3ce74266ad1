package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkghttp "github.com/BradenHooton/warden/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP(t *testing.T) {
	trusted := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8", "::1/128", "not-a-cidr"}}

	tests := []struct {
		name   string
		remote string
		xff    string
		realIP string
		config *pkghttp.IPConfig
		want   string
	}{
		{"direct client ignores spoofed headers", "203.0.113.10:54321", "1.2.3.4", "192.168.1.1", trusted, "203.0.113.10"},
		{"trusted proxy uses forwarded for", "10.0.0.5:54321", "203.0.113.42, 10.0.0.5", "", trusted, "203.0.113.42"},
		{"forwarded for skips garbage", "10.0.0.5:1", "garbage, 203.0.113.7", "", trusted, "203.0.113.7"},
		{"trusted proxy falls back to real ip", "10.0.0.5:1", "", "203.0.113.8", trusted, "203.0.113.8"},
		{"ipv6 trusted proxy", "[::1]:8080", "2001:db8::1", "", trusted, "2001:db8::1"},
		{"no config", "203.0.113.10:1", "1.2.3.4", "", nil, "203.0.113.10"},
		{"empty config", "127.0.0.1:1", "1.2.3.4", "", &pkghttp.IPConfig{}, "127.0.0.1"},
		{"remote addr without port", "203.0.113.9", "", "", nil, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(req, tt.config))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Login string `json:"login"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"login":"alice"}`, false},
		{"unknown field", `{"login":"alice","admin":true}`, true},
		{"trailing object", `{"login":"a"}{"login":"b"}`, true},
		{"malformed", `{"login":`, true},
		{"too large", `{"login":"` + strings.Repeat("x", pkghttp.MaxBodyBytes) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.payload))
			w := httptest.NewRecorder()

			var dst body
			err := pkghttp.DecodeJSON(w, req, &dst)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "alice", dst.Login)
		})
	}
}
