package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/repository"
	"github.com/maheshrc27/socialdash/internal/telemetry"
	"github.com/maheshrc27/socialdash/internal/transfer"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// ExpiryMargin is how far ahead of the recorded expiry a token is already treated as expired.
	ExpiryMargin = 15 * time.Minute
	// graphTokenLifetime is the lifetime Facebook grants long-lived tokens.
	graphTokenLifetime = 60 * 24 * time.Hour
	sweepConcurrency   = 10
)

var ErrAccountUnavailable = errors.New("account invalid or token expired, requires reauthentication")

// UnavailableError is returned for an account that was found but cannot be used.
type UnavailableError struct {
	Provider models.Provider
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%v: %v", ErrAccountUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrAccountUnavailable, e.Err}
}

type TokenService interface {
	GetValidAccount(ctx context.Context, accountID string) (*models.SocialAccount, error)
	MarkExpired(ctx context.Context, accountID, message string) error
	MarkError(ctx context.Context, accountID, message string) error
	RefreshExpiring(ctx context.Context, window time.Duration) (int, error)
}

type tokenService struct {
	cfg        config.Config
	sa         repository.SocialAccountRepository
	httpClient *http.Client
	renewals   singleflight.Group
}

func NewTokenService(cfg config.Config, sa repository.SocialAccountRepository, httpClient *http.Client) TokenService {
	return &tokenService{
		cfg:        cfg,
		sa:         sa,
		httpClient: httpClient,
	}
}

// GetValidAccount returns an active account whose token is usable for at least ExpiryMargin,
// renewing it once if needed. Every failure wraps ErrAccountUnavailable.
func (s *tokenService) GetValidAccount(ctx context.Context, accountID string) (*models.SocialAccount, error) {
	sa, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if sa.ExpiresWithin(time.Now(), ExpiryMargin) {
		sa, err = s.renewShared(ctx, sa)
		if err != nil {
			return nil, err
		}
	}

	if err := s.sa.TouchLastUsed(ctx, sa.ID, time.Now()); err != nil {
		slog.Warn("could not record account use", "account_id", sa.ID, "error", err)
	}
	return sa, nil
}

func (s *tokenService) load(ctx context.Context, accountID string) (*models.SocialAccount, error) {
	sa, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrUndecryptable) {
			if merr := s.MarkError(ctx, accountID, "stored credential cannot be decrypted"); merr != nil {
				slog.Warn("could not mark account errored", "account_id", accountID, "error", merr)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrAccountUnavailable, err)
	}

	if !sa.IsActive() {
		return nil, &UnavailableError{Provider: sa.Provider, Err: fmt.Errorf("account is %s", sa.Status)}
	}
	return sa, nil
}

// renewShared collapses concurrent renewals of the same account into one provider call.
func (s *tokenService) renewShared(ctx context.Context, sa *models.SocialAccount) (*models.SocialAccount, error) {
	v, err, _ := s.renewals.Do(sa.ID, func() (interface{}, error) {
		return s.renew(ctx, sa)
	})
	if err != nil {
		return nil, err
	}
	renewed := *v.(*models.SocialAccount)
	return &renewed, nil
}

func (s *tokenService) renew(ctx context.Context, sa *models.SocialAccount) (*models.SocialAccount, error) {
	renewed, err := s.exchange(ctx, sa)
	if err != nil {
		telemetry.TokenRenewals.WithLabelValues(string(sa.Provider), "failure").Inc()
		slog.Info("token renewal failed", "account_id", sa.ID, "provider", sa.Provider, "error", err)

		// A token that is still usable outlives transient failures of an early renewal.
		if !sa.ExpiresWithin(time.Now(), ExpiryMargin) && !isAuthRejection(err) {
			slog.Warn("early token renewal failed, keeping current token", "account_id", sa.ID, "error", err)
			return nil, err
		}

		if merr := s.MarkExpired(ctx, sa.ID, "token renewal failed: "+err.Error()); merr != nil {
			slog.Warn("could not mark account expired", "account_id", sa.ID, "error", merr)
		}
		return nil, &UnavailableError{Provider: sa.Provider, Err: err}
	}

	err = s.sa.UpdateCredentials(ctx, renewed, sa.UpdatedAt)
	if errors.Is(err, repository.ErrConflict) {
		// Someone else wrote the row first; their state wins if it is usable.
		current, gerr := s.sa.GetByID(ctx, sa.ID)
		if gerr == nil && current.IsActive() && !current.ExpiresWithin(time.Now(), ExpiryMargin) {
			return current, nil
		}
		return nil, &UnavailableError{Provider: sa.Provider, Err: errors.New("credential changed during renewal")}
	}
	if err != nil {
		return nil, &UnavailableError{Provider: sa.Provider, Err: err}
	}

	telemetry.TokenRenewals.WithLabelValues(string(sa.Provider), "success").Inc()
	slog.Info("token renewed", "account_id", sa.ID, "provider", sa.Provider)
	return renewed, nil
}

// exchange asks the provider for a fresh credential and returns the updated copy of sa.
func (s *tokenService) exchange(ctx context.Context, sa *models.SocialAccount) (*models.SocialAccount, error) {
	renewed := *sa

	switch sa.Provider {
	case models.ProviderFacebook, models.ProviderInstagram:
		token, err := s.exchangeGraphToken(ctx, sa)
		if err != nil {
			return nil, err
		}
		expiresAt := time.Now().Add(graphTokenLifetime)
		renewed.AccessToken = token
		renewed.LongLivedToken = token
		renewed.ExpiresAt = &expiresAt

	case models.ProviderGoogle, models.ProviderPinterest:
		if sa.RefreshToken == "" {
			return nil, errors.New("no refresh token stored")
		}
		token, err := s.refreshOAuthToken(ctx, sa)
		if err != nil {
			return nil, err
		}
		renewed.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			renewed.RefreshToken = token.RefreshToken
		}
		renewed.ExpiresAt = nil
		if !token.Expiry.IsZero() {
			expiry := token.Expiry
			renewed.ExpiresAt = &expiry
		}

	default:
		return nil, fmt.Errorf("provider not supported: %s", sa.Provider)
	}

	return &renewed, nil
}

func (s *tokenService) exchangeGraphToken(ctx context.Context, sa *models.SocialAccount) (string, error) {
	current := sa.LongLivedToken
	if current == "" {
		current = sa.AccessToken
	}

	token, err := exchangeGraphToken(ctx, s.httpClient, s.cfg, current)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// exchangeGraphToken trades a short or long-lived Graph token for a fresh long-lived one.
func exchangeGraphToken(ctx context.Context, httpClient *http.Client, cfg config.Config, current string) (*transfer.GraphToken, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", cfg.Facebook.AppID)
	params.Set("client_secret", cfg.Facebook.AppSecret)
	params.Set("fb_exchange_token", current)

	var token transfer.GraphToken
	if err := getJSON(ctx, httpClient, cfg.Facebook.GraphURL+"/oauth/access_token?"+params.Encode(), "", &token); err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("token exchange returned no access token")
	}
	return &token, nil
}

type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// isAuthRejection reports whether a renewal error means the provider refused the
// credential itself, as opposed to a network fault, throttling or a 5xx.
func isAuthRejection(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return clientError(se.StatusCode)
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "invalid_grant" || re.ErrorCode == "invalid_client" {
			return true
		}
		return re.Response != nil && clientError(re.Response.StatusCode)
	}
	return false
}

func clientError(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// getJSON performs an authenticated GET and decodes a 200 response into out.
func getJSON(ctx context.Context, httpClient *http.Client, endpoint, bearer string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		message, _ := providerMessage(body)
		return &statusError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *tokenService) refreshOAuthToken(ctx context.Context, sa *models.SocialAccount) (*oauth2.Token, error) {
	conf := oauthConfig(s.cfg, sa.Provider)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	// An empty access token forces the source to use the refresh grant.
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: sa.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New("refresh returned no access token")
	}
	return token, nil
}

func (s *tokenService) MarkExpired(ctx context.Context, accountID, message string) error {
	err := s.sa.UpdateStatus(ctx, accountID, models.AccountStatusExpired, message,
		models.AccountStatusActive, models.AccountStatusExpired)
	if err != nil {
		return err
	}
	telemetry.CredentialsExpired.WithLabelValues(string(models.AccountStatusExpired)).Inc()
	slog.Info("account marked expired", "account_id", accountID, "reason", message)
	return nil
}

func (s *tokenService) MarkError(ctx context.Context, accountID, message string) error {
	err := s.sa.UpdateStatus(ctx, accountID, models.AccountStatusError, message,
		models.AccountStatusActive, models.AccountStatusExpired, models.AccountStatusError)
	if err != nil {
		return err
	}
	telemetry.CredentialsExpired.WithLabelValues(string(models.AccountStatusError)).Inc()
	slog.Info("account marked errored", "account_id", accountID, "reason", message)
	return nil
}

// RefreshExpiring renews every active account whose token expires within window and
// returns how many renewals succeeded.
func (s *tokenService) RefreshExpiring(ctx context.Context, window time.Duration) (int, error) {
	accounts, err := s.sa.ListExpiring(ctx, time.Now().Add(window))
	if err != nil {
		return 0, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		renewed   int
		semaphore = make(chan struct{}, sweepConcurrency)
	)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(accountID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			sa, err := s.load(ctx, accountID)
			if err != nil {
				return
			}
			if _, err := s.renewShared(ctx, sa); err != nil {
				return
			}
			mu.Lock()
			renewed++
			mu.Unlock()
		}(acc.ID)
	}

	wg.Wait()
	return renewed, nil
}
