package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merit_system/internal/domain"
	"merit_system/internal/engine"
	"merit_system/internal/store/memory"
	"merit_system/internal/utils"
)

const secret = "test-secret"

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	eng := engine.New(memory.New(), engine.WithLogger(log))
	require.NoError(t, eng.SaveMembership(context.Background(), domain.Membership{UserID: "lead", CommunityID: "c1", Role: domain.RoleLead}))
	return eng
}

func bearer(t *testing.T, userID, globalRole string) string {
	t.Helper()
	tok, err := utils.GenerateJWT(userID, globalRole, secret)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWTAuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID"), "global_role": c.GetString("globalRole")})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", func() string {
			tok, _ := utils.GenerateJWT("u1", "", "other")
			return "Bearer " + tok
		}(), http.StatusUnauthorized},
		{"valid", bearer(t, "u1", "superadmin"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":"u1","global_role":"superadmin"}`, w.Body.String())
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eng := newEngine(t)
	r := gin.New()
	r.GET("/communities/:communityID/admin", JWTAuthMiddleware(secret), RequirePermission(eng, domain.ActionManageRules), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("role"))
	})
	r.GET("/communities/:communityID/view", JWTAuthMiddleware(secret), RequirePermission(eng, domain.ActionView), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("role"))
	})

	tests := []struct {
		name   string
		path   string
		header string
		status int
		role   string
	}{
		{"lead cannot manage rules", "/communities/c1/admin", bearer(t, "lead", ""), http.StatusForbidden, ""},
		{"superadmin claim", "/communities/c1/admin", bearer(t, "root", "superadmin"), http.StatusOK, "superadmin"},
		{"member role resolved", "/communities/c1/view", bearer(t, "lead", ""), http.StatusOK, "lead"},
		{"non member is viewer", "/communities/c1/view", bearer(t, "stranger", ""), http.StatusOK, "viewer"},
		{"lead elsewhere is viewer", "/communities/c2/admin", bearer(t, "lead", ""), http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.role, w.Body.String())
			}
		})
	}
}

func TestRequirePermissionWithoutUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/communities/:communityID/admin", RequirePermission(newEngine(t), domain.ActionManageRules), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/communities/c1/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("requestID")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	minted := w.Header().Get(RequestIDHeader)
	assert.Len(t, minted, 36)
	assert.Equal(t, minted, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())
}
