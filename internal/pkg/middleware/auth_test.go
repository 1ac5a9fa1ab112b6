package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/identity"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/usercontext"
)

type stubVerifier map[string]error

func (s stubVerifier) Verify(_ context.Context, token string) (*identity.Identity, error) {
	if err, ok := s[token]; ok && err != nil {
		return nil, err
	}
	if _, ok := s[token]; !ok {
		return nil, identity.ErrInvalidToken
	}
	return &identity.Identity{UserID: "user-" + token}, nil
}

func newAuthApp() *fiber.App {
	app := fiber.New()
	v := stubVerifier{"good": nil, "down": identity.ErrUnavailable}
	app.Get("/me", RequireBearer(v), func(c *fiber.Ctx) error {
		return c.SendString(usercontext.GetUserID(c))
	})
	return app
}

func TestRequireBearer(t *testing.T) {
	app := newAuthApp()

	tests := []struct {
		header string
		status int
		code   string
	}{
		{"", fiber.StatusUnauthorized, "unauthenticated"},
		{"Basic abc", fiber.StatusUnauthorized, "unauthenticated"},
		{"Bearer bad", fiber.StatusUnauthorized, "unauthenticated"},
		{"Bearer down", fiber.StatusBadGateway, "identity_unavailable"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/me", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode, tt.header)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, tt.code, body["error"])
	}

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "user-good", string(b))
}

func TestRequestTimeoutSetsDeadline(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequestTimeout(time.Second), func(c *fiber.Ctx) error {
		deadline, ok := c.UserContext().Deadline()
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		if time.Until(deadline) > time.Second {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
