package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/telemetry"
)

type PublishService interface {
	PublishToAccounts(ctx context.Context, accountIDs []string, content models.Content) models.PublishResult
	PublishToAccount(ctx context.Context, accountID string, content models.Content) models.PublishOutcome
}

// Limiter gates provider calls. It is satisfied by ratelimit.TokenBucket.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, float64, error)
}

type publishService struct {
	tokens      TokenService
	publishers  map[models.Provider]Publisher
	limiter     Limiter
	media       MediaResolver
	concurrency int
}

// NewPublishService wires the dispatcher. limiter and media may be nil.
func NewPublishService(
	tokens TokenService,
	publishers map[models.Provider]Publisher,
	limiter Limiter,
	media MediaResolver,
	concurrency int) PublishService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &publishService{
		tokens:      tokens,
		publishers:  publishers,
		limiter:     limiter,
		media:       media,
		concurrency: concurrency,
	}
}

// PublishToAccounts publishes to every account independently. The result has one outcome
// per id, in input order, and succeeds when at least one outcome does.
func (s *publishService) PublishToAccounts(ctx context.Context, accountIDs []string, content models.Content) models.PublishResult {
	outcomes := make([]models.PublishOutcome, len(accountIDs))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.concurrency)

	for i, id := range accountIDs {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			outcomes[i] = s.PublishToAccount(ctx, id, content)
		}(i, id)
	}
	wg.Wait()

	result := models.PublishResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Success {
			result.Success = true
			break
		}
	}
	return result
}

func (s *publishService) PublishToAccount(ctx context.Context, accountID string, content models.Content) models.PublishOutcome {
	outcome := models.PublishOutcome{AccountID: accountID}

	account, err := s.tokens.GetValidAccount(ctx, accountID)
	if err != nil {
		slog.Info("account unavailable for publishing", "account_id", accountID, "error", err)
		var ue *UnavailableError
		if errors.As(err, &ue) {
			outcome.Provider = ue.Provider
		}
		return failed(outcome, &PublishError{Kind: KindCredentialUnavailable, Message: ErrAccountUnavailable.Error()})
	}
	outcome.Provider = account.Provider

	publisher, ok := s.publishers[account.Provider]
	if !ok {
		return failed(outcome, newPublishError(KindUnsupported, account.Provider, "provider not supported: %s", account.Provider))
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(ctx, string(account.Provider))
		if err != nil {
			slog.Warn("rate limiter unavailable, continuing", "provider", account.Provider, "error", err)
		} else if !allowed {
			telemetry.RateLimitRejects.Inc()
			return failed(outcome, newPublishError(KindProviderUnavailable, account.Provider, "rate limit exceeded for %s", account.Provider))
		}
	}

	if s.media != nil && len(content.Media) > 0 {
		resolved, err := s.media.ResolveMedia(ctx, content.Media)
		if err != nil {
			return failed(outcome, newPublishError(KindValidation, account.Provider, "media unavailable: %v", err))
		}
		content.Media = resolved
	}

	post, err := publisher.Publish(ctx, account, content)
	if err != nil {
		return failed(outcome, asPublishError(err, account.Provider))
	}

	telemetry.PublishAttempts.WithLabelValues(string(account.Provider), "success").Inc()
	outcome.Success = true
	outcome.PostID = post.ID
	outcome.PostURL = post.URL
	return outcome
}

func failed(outcome models.PublishOutcome, pe *PublishError) models.PublishOutcome {
	if outcome.Provider != "" {
		telemetry.PublishAttempts.WithLabelValues(string(outcome.Provider), string(pe.Kind)).Inc()
	}
	outcome.Success = false
	outcome.Error = pe.Message
	outcome.ErrorKind = string(pe.Kind)
	return outcome
}
