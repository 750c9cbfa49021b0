package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHS256RoundTrip(t *testing.T) {
	now := time.Now()
	claims := Claims{Sub: "user-1", ProviderID: "prov-1", Iat: now.Unix(), Exp: now.Add(time.Hour).Unix()}

	token, err := SignHS256(claims, "test-secret")
	require.NoError(t, err)

	parsed, err := ParseAndVerifyHS256(token, "test-secret", now)
	require.NoError(t, err)
	assert.Equal(t, claims, *parsed)

	_, err = ParseAndVerifyHS256(token, "wrong-secret", now)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAndVerifyHS256(token, "test-secret", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsMissingProvider(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "user-1"}, "s")
	require.NoError(t, err)
	_, err = ParseAndVerifyHS256(token, "s", time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireBearer(t *testing.T) {
	secret := "test-secret"
	token, err := SignHS256(Claims{Sub: "u", ProviderID: "prov-7", Exp: time.Now().Add(time.Hour).Unix()}, secret)
	require.NoError(t, err)

	var seen string
	h := RequireBearer(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if ok {
			seen = c.ProviderID
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/provider/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "prov-7", seen)

	bad := httptest.NewRequest(http.MethodGet, "/api/v1/provider/bookings", nil)
	bad.Header.Set("Authorization", "Bearer nope")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, bad)
	assert.Equal(t, http.StatusUnauthorized, rw.Code)

	missing := httptest.NewRequest(http.MethodGet, "/api/v1/provider/bookings", nil)
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, missing)
	assert.Equal(t, http.StatusUnauthorized, rw.Code)
}
