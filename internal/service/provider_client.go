package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/transfer"
)

const maxProviderBody = 1 << 20

// providerClient sends adapter requests and folds every response into a PublishError kind.
type providerClient struct {
	provider models.Provider
	http     *http.Client
	tokens   CredentialInvalidator
}

func (c *providerClient) do(ctx context.Context, account *models.SocialAccount, req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		slog.Info(err.Error())
		return &PublishError{Kind: KindProviderUnavailable, Provider: c.provider, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return &PublishError{Kind: KindProviderUnavailable, Provider: c.provider, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &PublishError{Kind: KindProviderUnavailable, Provider: c.provider, StatusCode: resp.StatusCode,
				Message: "unreadable provider response: " + err.Error()}
		}
		return nil
	}

	message, code := providerMessage(body)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	pe := &PublishError{Provider: c.provider, StatusCode: resp.StatusCode, Message: message}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || code == transfer.GraphCodeInvalidToken:
		pe.Kind = KindProviderRejected
		if err := c.tokens.MarkExpired(ctx, account.ID, message); err != nil {
			slog.Warn("could not expire rejected credential", "account_id", account.ID, "error", err)
		}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		pe.Kind = KindProviderUnavailable
	default:
		pe.Kind = KindProviderRejected
	}

	slog.Info("provider rejected request",
		"provider", c.provider,
		"account_id", account.ID,
		"status", resp.StatusCode,
		"message", message,
	)
	return pe
}

// providerMessage pulls a human readable message out of the known error shapes.
func providerMessage(body []byte) (string, int) {
	var graph transfer.GraphErrorResponse
	if err := json.Unmarshal(body, &graph); err == nil && graph.Error.Message != "" {
		return graph.Error.Message, graph.Error.Code
	}

	var pin transfer.PinterestError
	if err := json.Unmarshal(body, &pin); err == nil && pin.Message != "" {
		return pin.Message, 0
	}

	raw := strings.TrimSpace(string(body))
	if len(raw) > 300 {
		raw = raw[:300]
	}
	return raw, 0
}

// asPublishError makes sure callers always see a classified error.
func asPublishError(err error, provider models.Provider) *PublishError {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe
	}
	return &PublishError{Kind: KindProviderUnavailable, Provider: provider, Message: err.Error()}
}
