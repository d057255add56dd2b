package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/transfer"
)

const pinTitleLimit = 100

type pinterestPublisher struct {
	apiURL  string
	boardID string
	client  providerClient
}

func NewPinterestPublisher(cfg config.Config, httpClient *http.Client, tokens CredentialInvalidator) Publisher {
	return &pinterestPublisher{
		apiURL:  cfg.Pinterest.APIURL,
		boardID: cfg.Pinterest.BoardID,
		client:  providerClient{provider: models.ProviderPinterest, http: httpClient, tokens: tokens},
	}
}

func (p *pinterestPublisher) Publish(ctx context.Context, account *models.SocialAccount, content models.Content) (*ProviderPost, error) {
	if len(content.Media) == 0 {
		return nil, newPublishError(KindValidation, models.ProviderPinterest, "pinterest pins require at least one image")
	}
	if p.boardID == "" {
		return nil, newPublishError(KindValidation, models.ProviderPinterest, "no pinterest board configured")
	}

	title := content.Title
	if title == "" {
		title = content.Text
	}

	pin := transfer.PinterestPin{
		BoardID:     p.boardID,
		Title:       truncateRunes(title, pinTitleLimit),
		Description: content.Text,
		Link:        content.Link,
		MediaSource: transfer.PinterestMediaSource{SourceType: "image_url", URL: content.Media[0]},
	}

	body, err := json.Marshal(pin)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, p.apiURL+"/pins", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)

	var result transfer.PinterestPinResponse
	if err := p.client.do(ctx, account, req, &result); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, newPublishError(KindProviderUnavailable, models.ProviderPinterest, "no pin id returned from Pinterest")
	}

	return &ProviderPost{ID: result.ID, URL: "https://www.pinterest.com/pin/" + result.ID + "/"}, nil
}
