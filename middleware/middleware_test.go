package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/ephembbs/config"
	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

type fakeAuth struct {
	actors map[uint]services.Actor
	banned map[uint]*services.BannedError
}

func (f fakeAuth) Authenticate(_ context.Context, id uint) (services.Actor, error) {
	if be, ok := f.banned[id]; ok {
		return services.Actor{}, be
	}
	a, ok := f.actors[id]
	if !ok {
		return services.Actor{}, services.ErrUnauthorized
	}
	return a, nil
}

func setup(t *testing.T) fakeAuth {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "mw-secret", RateLimitPerMinute: 2})
	return fakeAuth{
		actors: map[uint]services.Actor{
			1: {UserID: 1, Username: "alice", Role: "user"},
			2: {UserID: 2, Username: "mod", Role: "moderator"},
		},
		banned: map[uint]*services.BannedError{
			3: {Reason: "spam", BannedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), BannedBy: 2},
		},
	}
}

func bearer(t *testing.T, id uint, name, role string) string {
	t.Helper()
	tok, err := utils.GenerateToken(id, name, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthRequired(t *testing.T) {
	auth := setup(t)
	r := gin.New()
	r.GET("/me", AuthRequired(auth), func(c *gin.Context) {
		utils.Success(c, gin.H{"id": c.GetUint(ContextUserIDKey), "role": c.GetString(ContextRoleKey)})
	})

	cases := []struct {
		name   string
		header string
		status int
		code   float64
	}{
		{"missing", "", http.StatusUnauthorized, 40101},
		{"format", "Token abc", http.StatusUnauthorized, 40102},
		{"garbage", "Bearer abc", http.StatusUnauthorized, 40105},
		{"unknown user", bearer(t, 99, "ghost", "user"), http.StatusUnauthorized, 40105},
		{"banned", bearer(t, 3, "eve", "user"), http.StatusForbidden, 40301},
		{"ok", bearer(t, 1, "alice", "admin"), http.StatusOK, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decode(t, w)["code"])
		})
	}
}

func TestAuthRequiredUsesStoredRoleAndBanDetails(t *testing.T) {
	auth := setup(t)
	r := gin.New()
	r.GET("/me", AuthRequired(auth), func(c *gin.Context) {
		utils.Success(c, gin.H{"role": c.GetString(ContextRoleKey)})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearer(t, 1, "alice", "admin"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "user", data["role"])

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearer(t, 3, "eve", "user"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	data = decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "spam", data["reason"])
	assert.Equal(t, float64(2), data["banned_by"])
}

func TestRequireRole(t *testing.T) {
	auth := setup(t)
	r := gin.New()
	r.GET("/mod", AuthRequired(auth), RequireRole("moderator", "admin"), func(c *gin.Context) { utils.Success(c, nil) })

	for id, want := range map[uint]int{1: http.StatusForbidden, 2: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/mod", nil)
		req.Header.Set("Authorization", bearer(t, id, "x", "admin"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "user %d", id)
	}
}

func TestOptionalAuth(t *testing.T) {
	auth := setup(t)
	r := gin.New()
	r.GET("/feed", OptionalAuth(auth), func(c *gin.Context) {
		utils.Success(c, gin.H{"id": c.GetUint(ContextUserIDKey)})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feed", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["data"].(map[string]any)["id"])

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", bearer(t, 2, "mod", "moderator"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, float64(2), decode(t, w)["data"].(map[string]any)["id"])
}

func TestRateLimitPerScope(t *testing.T) {
	setup(t)
	r := gin.New()
	r.GET("/a", RateLimitMiddleware("test-a"), func(c *gin.Context) { utils.Success(c, nil) })
	r.GET("/b", RateLimitMiddleware("test-b"), func(c *gin.Context) { utils.Success(c, nil) })

	hit := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}
	// burst is max(2/2, 1) = 1
	assert.Equal(t, http.StatusOK, hit("/a"))
	assert.Equal(t, http.StatusTooManyRequests, hit("/a"))
	assert.Equal(t, http.StatusOK, hit("/b"))
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(utils.RequestIDKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())
}
