package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHeadersApplied(t *testing.T) {
	mw := NewHeadersMiddleware(DefaultHeadersConfig())
	handler := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	got := rec.Header()
	if got.Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got.Get("X-Content-Type-Options"))
	}
	if got.Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", got.Get("X-Frame-Options"))
	}
	if got.Get("Content-Security-Policy") == "" {
		t.Error("expected a Content-Security-Policy header")
	}
	if got.Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be set on plain HTTP")
	}
}

func TestClientIP(t *testing.T) {
	resolver := NewIPResolver()

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct connection", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"trusted proxy with xff", "127.0.0.1:5000", "203.0.113.7, 10.0.0.1", "", "203.0.113.7"},
		{"trusted proxy with x-real-ip", "10.0.0.2:5000", "", "203.0.113.9", "203.0.113.9"},
		{"untrusted peer ignores xff", "203.0.113.7:5000", "1.2.3.4", "", "203.0.113.7"},
		{"invalid forwarded value", "127.0.0.1:5000", "not-an-ip", "", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := resolver.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	resolver := NewIPResolver()
	if err := resolver.AddTrustedProxy("100.64.0.0/10"); err != nil {
		t.Fatalf("AddTrustedProxy: %v", err)
	}
	if err := resolver.AddTrustedProxy("bogus"); err == nil {
		t.Error("expected an error for invalid CIDR")
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "100.64.0.5:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.1")
	if got := resolver.ClientIP(r); got != "203.0.113.1" {
		t.Errorf("ClientIP = %q, want forwarded value", got)
	}
}
