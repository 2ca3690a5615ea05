package logx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "203.0.113.57:51234", want: "203.0.113.0"},
		{in: "198.51.100.7", want: "198.51.100.0"},
		{in: "[2001:db8:85a3:8d3:1319:8a2e:370:7348]:443", want: "2001:db8:85a3:8d3::"},
		{in: "::ffff:192.0.2.10", want: "192.0.2.0"},
		{in: "127.0.0.1:8080", want: "127.0.0.1"},
		{in: "[::1]:8080", want: "::1"},
		{in: "not-an-ip", want: "unknown_ip"},
		{in: "", want: "unknown_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, anonymizeIP(tt.in))
		})
	}
}

func TestRequestLoggerStoresScopedLogger(t *testing.T) {
	var scoped bool
	h := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = FromRequest(r) != Logger()
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.True(t, scoped)
	require.Equal(t, http.StatusTeapot, w.Code)
}

func TestFromRequestFallsBackToGlobal(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Same(t, Logger(), FromRequest(r))
}
