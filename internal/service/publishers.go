package service

import (
	"net/http"

	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
)

// NewPublishers builds the dispatch table for every supported provider.
func NewPublishers(cfg config.Config, httpClient *http.Client, tokens CredentialInvalidator) map[models.Provider]Publisher {
	return map[models.Provider]Publisher{
		models.ProviderFacebook:  NewFacebookPublisher(cfg, httpClient, tokens),
		models.ProviderInstagram: NewInstagramPublisher(cfg, httpClient, tokens),
		models.ProviderPinterest: NewPinterestPublisher(cfg, httpClient, tokens),
		models.ProviderGoogle:    NewGooglePublisher(),
	}
}
