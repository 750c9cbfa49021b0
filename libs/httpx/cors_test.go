package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithCORS_SubdomainWildcard(t *testing.T) {
	h := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"*.linkbook.example"},
		AllowedMethods: []string{"GET", "POST"},
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	req.Header.Set("Origin", "https://alice.linkbook.example:8443")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, "https://alice.linkbook.example:8443", rw.Header().Get("Access-Control-Allow-Origin"))

	bad := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	bad.Header.Set("Origin", "https://linkbook.example.evil.test")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, bad)
	assert.Empty(t, rw.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/public/book", nil)
	preflight.Header.Set("Origin", "https://bob.linkbook.example")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, preflight)
	assert.Equal(t, http.StatusNoContent, rw.Code)
	assert.Equal(t, "GET, POST", rw.Header().Get("Access-Control-Allow-Methods"))
}
