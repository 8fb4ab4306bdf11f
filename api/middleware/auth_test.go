package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lokabekas/lokabekas-backend/api/middleware"
	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/security"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "unit-test-secret",
		Issuer:            "lokabekas-test",
		ExpirationMinutes: 15,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
}

func TestAuthSetsActorContext(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token, err := security.MintToken(cfg, time.Now(), userID, enums.RoleSeller)
	require.NoError(t, err)

	var gotUser uuid.UUID
	var gotRole enums.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = middleware.UserIDFromContext(r.Context())
		gotRole = middleware.RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware.Auth(cfg, testLogger())(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, userID, gotUser)
	require.Equal(t, enums.RoleSeller, gotRole)
}

func TestAuthRejectsMissingAndMalformedTokens(t *testing.T) {
	cfg := testJWTConfig()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	handler := middleware.Auth(cfg, testLogger())(next)

	cases := map[string]string{
		"no header":     "",
		"empty bearer":  "Bearer ",
		"garbage token": "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthRejectsTokenFromOtherIssuer(t *testing.T) {
	cfg := testJWTConfig()
	foreign := cfg
	foreign.Issuer = "someone-else"
	token, err := security.MintToken(foreign, time.Now(), uuid.New(), enums.RoleBuyer)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware.Auth(cfg, testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	cfg := testJWTConfig()
	token, err := security.MintToken(cfg, time.Now(), uuid.New(), enums.RoleBuyer)
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	authed := middleware.Auth(cfg, testLogger())

	sellerOnly := authed(middleware.RequireRole(testLogger(), enums.RoleSeller)(next))
	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	sellerOnly.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	buyerOrSeller := authed(middleware.RequireRole(testLogger(), enums.RoleBuyer, enums.RoleSeller)(next))
	req = httptest.NewRequest(http.MethodGet, "/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	buyerOrSeller.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
