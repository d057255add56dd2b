package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/telemetry"
	"github.com/maheshrc27/socialdash/internal/transfer"
)

// RelayService hands a post to the external workflow webhook that holds its own provider
// connections.
type RelayService interface {
	Enabled(platform models.Provider) bool
	Publish(ctx context.Context, req transfer.RelayRequest) (string, error)
}

type relayService struct {
	url       string
	authToken string
	platforms map[models.Provider]bool
	client    *http.Client
}

func NewRelayService(cfg config.Config) RelayService {
	platforms := make(map[models.Provider]bool, len(cfg.Relay.Platforms))
	for _, p := range cfg.Relay.Platforms {
		if provider, ok := models.ParseProvider(p); ok {
			platforms[provider] = true
		}
	}

	return &relayService{
		url:       cfg.Relay.URL,
		authToken: cfg.Relay.AuthToken,
		platforms: platforms,
		client:    &http.Client{Timeout: cfg.Relay.Timeout},
	}
}

func (s *relayService) Enabled(platform models.Provider) bool {
	return s.url != "" && s.platforms[platform]
}

// Publish posts the payload to the webhook. Any 2xx is success; the body is only read for
// an optional id and may be empty or not JSON at all.
func (s *relayService) Publish(ctx context.Context, payload transfer.RelayRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		telemetry.RelayRequests.WithLabelValues("error").Inc()
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.RelayRequests.WithLabelValues("rejected").Inc()
		message, _ := providerMessage(respBody)
		if message == "" {
			return "", fmt.Errorf("relay returned status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("relay returned status %d: %s", resp.StatusCode, message)
	}

	telemetry.RelayRequests.WithLabelValues("success").Inc()

	var result transfer.RelayResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", nil
	}
	if result.PostID != "" {
		return result.PostID, nil
	}
	return result.ID, nil
}
