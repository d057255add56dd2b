package service

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/transfer"
)

type instagramPublisher struct {
	graphURL string
	client   providerClient
}

func NewInstagramPublisher(cfg config.Config, httpClient *http.Client, tokens CredentialInvalidator) Publisher {
	return &instagramPublisher{
		graphURL: cfg.Facebook.GraphURL,
		client:   providerClient{provider: models.ProviderInstagram, http: httpClient, tokens: tokens},
	}
}

// Publish creates a media container for the first image and then publishes it.
func (p *instagramPublisher) Publish(ctx context.Context, account *models.SocialAccount, content models.Content) (*ProviderPost, error) {
	if len(content.Media) == 0 {
		return nil, newPublishError(KindValidation, models.ProviderInstagram, "instagram posts require at least one image")
	}

	containerID, err := p.createContainer(ctx, account, content.Media[0], content.Text)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", account.AccessToken)

	var result transfer.GraphID
	if err := p.post(ctx, account, "/media_publish", form, &result); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, newPublishError(KindProviderUnavailable, models.ProviderInstagram, "no media id returned from Instagram")
	}

	return &ProviderPost{ID: result.ID}, nil
}

func (p *instagramPublisher) createContainer(ctx context.Context, account *models.SocialAccount, imageURL, caption string) (string, error) {
	form := url.Values{}
	form.Set("image_url", imageURL)
	form.Set("caption", caption)
	form.Set("access_token", account.AccessToken)

	var result transfer.GraphID
	if err := p.post(ctx, account, "/media", form, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", newPublishError(KindProviderUnavailable, models.ProviderInstagram, "no container id returned from Instagram")
	}
	return result.ID, nil
}

func (p *instagramPublisher) post(ctx context.Context, account *models.SocialAccount, path string, form url.Values, out interface{}) error {
	endpoint := p.graphURL + "/" + account.ProviderAccountID + path
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.client.do(ctx, account, req, out)
}
