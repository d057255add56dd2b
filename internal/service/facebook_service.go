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

type facebookPublisher struct {
	graphURL string
	client   providerClient
}

func NewFacebookPublisher(cfg config.Config, httpClient *http.Client, tokens CredentialInvalidator) Publisher {
	return &facebookPublisher{
		graphURL: cfg.Facebook.GraphURL,
		client:   providerClient{provider: models.ProviderFacebook, http: httpClient, tokens: tokens},
	}
}

// Publish posts to the page feed for page accounts and to /me otherwise. Only the first
// media item is used; it goes to /photos with the text as caption.
func (p *facebookPublisher) Publish(ctx context.Context, account *models.SocialAccount, content models.Content) (*ProviderPost, error) {
	node := "me"
	if account.AccountType == models.AccountTypePage {
		node = account.ProviderAccountID
	}

	form := url.Values{}
	form.Set("access_token", account.AccessToken)

	var endpoint string
	if len(content.Media) > 0 {
		endpoint = p.graphURL + "/" + node + "/photos"
		form.Set("url", content.Media[0])
		form.Set("caption", content.Text)
	} else {
		endpoint = p.graphURL + "/" + node + "/feed"
		form.Set("message", content.Text)
		if content.Link != "" {
			form.Set("link", content.Link)
		}
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result transfer.GraphID
	if err := p.client.do(ctx, account, req, &result); err != nil {
		return nil, err
	}

	postID := result.PostID
	if postID == "" {
		postID = result.ID
	}
	if postID == "" {
		return nil, newPublishError(KindProviderUnavailable, models.ProviderFacebook, "no post id returned from Facebook")
	}

	return &ProviderPost{ID: postID, URL: "https://www.facebook.com/" + postID}, nil
}
