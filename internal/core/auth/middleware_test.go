package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestApp(jwtService *JWTService, permissions ...string) *fiber.App {
	app := fiber.New()
	app.Get("/protected", AuthMiddleware(jwtService), RequirePermission(permissions...), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"tenant": TenantID(c), "user": UserID(c)})
	})
	return app
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(testSecret, "crm")
	token, expiresIn, err := svc.GenerateAccessToken(TokenClaims{
		UserID:      "user-1",
		TenantID:    "t1",
		Permissions: []string{PermWorkflowsRead},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(900), expiresIn)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "t1", claims.TenantID)
	assert.True(t, claims.HasPermission(PermWorkflowsRead))
	assert.False(t, claims.HasPermission(PermWorkflowsDelete))
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(testSecret, "crm")

	other, _, err := NewJWTService("other-secret", "crm").GenerateAccessToken(TokenClaims{UserID: "u", TenantID: "t1"})
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(other)
	assert.Error(t, err, "wrong signature")

	wrongIssuer, _, err := NewJWTService(testSecret, "elsewhere").GenerateAccessToken(TokenClaims{UserID: "u", TenantID: "t1"})
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(wrongIssuer)
	assert.Error(t, err, "wrong issuer")

	noTenant, _, err := svc.GenerateAccessToken(TokenClaims{UserID: "u"})
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(noTenant)
	assert.Error(t, err, "missing tenant")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		UserID:   "u",
		TenantID: "t1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "crm",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredString, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(expiredString)
	assert.Error(t, err, "expired")
}

func TestMiddleware(t *testing.T) {
	svc := NewJWTService(testSecret, "crm")
	app := newTestApp(svc, PermWorkflowsRead)

	reader, _, err := svc.GenerateAccessToken(TokenClaims{UserID: "u1", TenantID: "t1", Permissions: []string{PermWorkflowsRead}})
	require.NoError(t, err)
	writer, _, err := svc.GenerateAccessToken(TokenClaims{UserID: "u2", TenantID: "t1", Permissions: []string{PermWorkflowsCreate}})
	require.NoError(t, err)
	admin, _, err := svc.GenerateAccessToken(TokenClaims{UserID: "u3", TenantID: "t1", Role: RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"not bearer", "Token " + reader, fiber.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", fiber.StatusUnauthorized},
		{"missing permission", "Bearer " + writer, fiber.StatusForbidden},
		{"has permission", "Bearer " + reader, fiber.StatusOK},
		{"admin role", "Bearer " + admin, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
