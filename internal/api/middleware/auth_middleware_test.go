package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/pkg/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newApp() *fiber.App {
	cfg := config.Config{SecretKey: testSecret, CookieName: "session"}
	app := fiber.New()
	app.Use(NewAuthMiddleware(cfg).AuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := newApp()

	session, err := utils.GenerateToken(testSecret, "user-7", "", time.Hour)
	require.NoError(t, err)
	state, err := utils.GenerateToken(testSecret, "user-7", "facebook", time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateToken(testSecret, "user-7", "", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		cookie string
		bearer string
		status int
	}{
		{name: "missing", status: fiber.StatusUnauthorized},
		{name: "cookie", cookie: session, status: fiber.StatusOK},
		{name: "bearer", bearer: session, status: fiber.StatusOK},
		{name: "state token is not a session", bearer: state, status: fiber.StatusUnauthorized},
		{name: "expired cookie", cookie: expired, status: fiber.StatusUnauthorized},
		{name: "garbage", bearer: "abc", status: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tt.cookie})
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
