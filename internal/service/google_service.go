package service

import (
	"context"

	"github.com/maheshrc27/socialdash/internal/models"
)

// googlePublisher exists so Google accounts dispatch to a typed, permanent failure
// instead of an unsupported provider.
type googlePublisher struct{}

func NewGooglePublisher() Publisher {
	return googlePublisher{}
}

func (googlePublisher) Publish(context.Context, *models.SocialAccount, models.Content) (*ProviderPost, error) {
	return nil, newPublishError(KindNotImplemented, models.ProviderGoogle, "publishing to google is not implemented")
}
