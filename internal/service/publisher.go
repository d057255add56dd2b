package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/socialdash/internal/models"
)

type ErrorKind string

const (
	KindCredentialUnavailable ErrorKind = "credential_unavailable"
	KindProviderRejected      ErrorKind = "provider_rejected"
	KindProviderUnavailable   ErrorKind = "provider_unavailable"
	KindValidation            ErrorKind = "validation"
	KindNotImplemented        ErrorKind = "not_implemented"
	KindUnsupported           ErrorKind = "unsupported"
)

// PublishError is the normalized form of every provider failure.
type PublishError struct {
	Kind       ErrorKind
	Provider   models.Provider
	StatusCode int
	Message    string
}

func (e *PublishError) Error() string {
	return e.Message
}

// Retryable reports whether a later attempt might succeed without user action.
func (e *PublishError) Retryable() bool {
	return e.Kind == KindProviderUnavailable
}

func newPublishError(kind ErrorKind, provider models.Provider, format string, args ...interface{}) *PublishError {
	return &PublishError{Kind: kind, Provider: provider, Message: fmt.Sprintf(format, args...)}
}

type ProviderPost struct {
	ID  string
	URL string
}

// Publisher publishes content to one provider on behalf of an account whose
// credential has already been validated.
type Publisher interface {
	Publish(ctx context.Context, account *models.SocialAccount, content models.Content) (*ProviderPost, error)
}

// CredentialInvalidator is what adapters need from the token lifecycle when a provider
// rejects a credential.
type CredentialInvalidator interface {
	MarkExpired(ctx context.Context, accountID, message string) error
}
