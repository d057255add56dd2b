package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/socialdash/internal/service"
)

// TokenRefreshJob renews credentials shortly before they expire so publishes rarely
// have to renew inline.
type TokenRefreshJob struct {
	tokens service.TokenService
	window time.Duration
}

func NewTokenRefreshJob(tokens service.TokenService, window time.Duration) *TokenRefreshJob {
	return &TokenRefreshJob{
		tokens: tokens,
		window: window,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	renewed, err := c.tokens.RefreshExpiring(ctx, c.window)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	slog.Info("token sweep finished", "renewed", renewed, "window", c.window)
}
