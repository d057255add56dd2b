package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/repository/repofake"
	"golang.org/x/oauth2"
)

func expiresIn(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func graphConfig(url string) config.Config {
	return config.Config{Facebook: config.Facebook{AppID: "app", AppSecret: "secret", GraphURL: url}}
}

func TestGetValidAccountRenewsFacebookToken(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/oauth/access_token", r.URL.Path)
		assert.Equal(t, "fb_exchange_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "T1", r.URL.Query().Get("fb_exchange_token"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "T2", "token_type": "bearer"})
	}))
	defer server.Close()

	repo := repofake.NewFakeSocialAccountRepo(&models.SocialAccount{
		ID:             "acc-1",
		Provider:       models.ProviderFacebook,
		AccessToken:    "T1",
		LongLivedToken: "T1",
		ExpiresAt:      expiresIn(-time.Hour),
		Status:         models.AccountStatusActive,
	})
	tokens := NewTokenService(graphConfig(server.URL), repo, server.Client())

	account, err := tokens.GetValidAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "T2", account.AccessToken)
	require.NotNil(t, account.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(60*24*time.Hour), *account.ExpiresAt, time.Minute)

	stored := repo.Get("acc-1")
	assert.Equal(t, "T2", stored.AccessToken)
	assert.Equal(t, "T2", stored.LongLivedToken)
	assert.Equal(t, models.AccountStatusActive, stored.Status)
	assert.NotNil(t, stored.LastUsedAt)
	assert.Equal(t, 1, repo.CredentialUpdates)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetValidAccountRenewalFailureExpiresAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{"message": "Error validating access token", "code": 190},
		})
	}))
	defer server.Close()

	repo := repofake.NewFakeSocialAccountRepo(&models.SocialAccount{
		ID:          "acc-1",
		Provider:    models.ProviderInstagram,
		AccessToken: "T1",
		ExpiresAt:   expiresIn(-time.Hour),
		Status:      models.AccountStatusActive,
	})
	tokens := NewTokenService(graphConfig(server.URL), repo, server.Client())

	_, err := tokens.GetValidAccount(context.Background(), "acc-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccountUnavailable))

	stored := repo.Get("acc-1")
	assert.Equal(t, models.AccountStatusExpired, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "Error validating access token")
	assert.Equal(t, "T1", stored.AccessToken)

	// expired accounts are not retried
	_, err = tokens.GetValidAccount(context.Background(), "acc-1")
	assert.True(t, errors.Is(err, ErrAccountUnavailable))
}

func TestGetValidAccountNeverExpiringSkipsProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected provider call to %s", r.URL.Path)
	}))
	defer server.Close()

	epoch := time.Unix(0, 0)
	repo := repofake.NewFakeSocialAccountRepo(
		&models.SocialAccount{ID: "page", Provider: models.ProviderFacebook, AccessToken: "P", Status: models.AccountStatusActive},
		&models.SocialAccount{ID: "epoch", Provider: models.ProviderFacebook, AccessToken: "E", ExpiresAt: &epoch, Status: models.AccountStatusActive},
		&models.SocialAccount{ID: "fresh", Provider: models.ProviderPinterest, AccessToken: "F", ExpiresAt: expiresIn(time.Hour), Status: models.AccountStatusActive},
	)
	tokens := NewTokenService(graphConfig(server.URL), repo, server.Client())

	for _, id := range []string{"page", "epoch", "fresh"} {
		account, err := tokens.GetValidAccount(context.Background(), id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, account.AccessToken)
		assert.NotNil(t, repo.Get(id).LastUsedAt)
	}
	assert.Zero(t, repo.CredentialUpdates)
}

func TestGetValidAccountRotatesPinterestRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "pin-client", user)
		assert.Equal(t, "pin-secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "R1", r.PostForm.Get("refresh_token"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "A2", "refresh_token": "R2", "token_type": "bearer", "expires_in": 3600,
		})
	}))
	defer server.Close()

	cfg := config.Config{Pinterest: config.Pinterest{ClientID: "pin-client", ClientSecret: "pin-secret", TokenURL: server.URL}}
	repo := repofake.NewFakeSocialAccountRepo(&models.SocialAccount{
		ID:           "pin",
		Provider:     models.ProviderPinterest,
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    expiresIn(time.Minute),
		Status:       models.AccountStatusActive,
	})
	tokens := NewTokenService(cfg, repo, server.Client())

	account, err := tokens.GetValidAccount(context.Background(), "pin")
	require.NoError(t, err)
	assert.Equal(t, "A2", account.AccessToken)

	stored := repo.Get("pin")
	assert.Equal(t, "R2", stored.RefreshToken)
	require.NotNil(t, stored.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *stored.ExpiresAt, time.Minute)
}

func TestGetValidAccountWithoutRefreshToken(t *testing.T) {
	repo := repofake.NewFakeSocialAccountRepo(&models.SocialAccount{
		ID:          "g",
		Provider:    models.ProviderGoogle,
		AccessToken: "A1",
		ExpiresAt:   expiresIn(-time.Minute),
		Status:      models.AccountStatusActive,
	})
	tokens := NewTokenService(config.Config{}, repo, http.DefaultClient)

	_, err := tokens.GetValidAccount(context.Background(), "g")
	assert.True(t, errors.Is(err, ErrAccountUnavailable))
	assert.Equal(t, models.AccountStatusExpired, repo.Get("g").Status)
}

func TestGetValidAccountUnavailableStates(t *testing.T) {
	repo := repofake.NewFakeSocialAccountRepo(
		&models.SocialAccount{ID: "revoked", Provider: models.ProviderFacebook, AccessToken: "x", Status: models.AccountStatusRevoked},
		&models.SocialAccount{ID: "broken", Provider: models.ProviderFacebook, AccessToken: "x", Status: models.AccountStatusActive},
	)
	repo.Corrupt("broken")
	tokens := NewTokenService(config.Config{}, repo, http.DefaultClient)

	for _, id := range []string{"revoked", "broken", "missing"} {
		_, err := tokens.GetValidAccount(context.Background(), id)
		assert.True(t, errors.Is(err, ErrAccountUnavailable), id)
	}
	assert.Equal(t, models.AccountStatusError, repo.Get("broken").Status)
	assert.Equal(t, models.AccountStatusRevoked, repo.Get("revoked").Status)

	_, err := tokens.GetValidAccount(context.Background(), "revoked")
	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, models.ProviderFacebook, ue.Provider)
	assert.EqualError(t, err, "account invalid or token expired, requires reauthentication: account is revoked")
}

func TestRenewalConflictUsesConcurrentWrite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "T2"})
	}))
	defer server.Close()

	repo := repofake.NewFakeSocialAccountRepo(&models.SocialAccount{
		ID:          "acc-1",
		Provider:    models.ProviderFacebook,
		AccessToken: "T1",
		ExpiresAt:   expiresIn(time.Minute),
		Status:      models.AccountStatusActive,
	})
	repo.BeforeUpdateCredentials = func(id string) {
		current := repo.Get(id)
		current.AccessToken = "T3"
		current.ExpiresAt = expiresIn(30 * 24 * time.Hour)
		current.UpdatedAt = current.UpdatedAt.Add(time.Second)
		repo.Put(current)
	}
	tokens := NewTokenService(graphConfig(server.URL), repo, server.Client())

	account, err := tokens.GetValidAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "T3", account.AccessToken)
	assert.Zero(t, repo.CredentialUpdates)
}

func TestConcurrentRenewalsWriteOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "T2"})
	}))
	defer server.Close()

	repo := repofake.NewFakeSocialAccountRepo(&models.SocialAccount{
		ID:          "acc-1",
		Provider:    models.ProviderFacebook,
		AccessToken: "T1",
		ExpiresAt:   expiresIn(time.Minute),
		Status:      models.AccountStatusActive,
	})
	tokens := NewTokenService(graphConfig(server.URL), repo, server.Client())

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := tokens.GetValidAccount(context.Background(), "acc-1")
			if assert.NoError(t, err) {
				results[i] = account.AccessToken
			}
		}(i)
	}
	wg.Wait()

	for _, token := range results {
		assert.Equal(t, "T2", token)
	}
	assert.Equal(t, 1, repo.CredentialUpdates)
}

func TestRefreshExpiring(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "renewed-" + r.URL.Query().Get("fb_exchange_token")})
	}))
	defer server.Close()

	repo := repofake.NewFakeSocialAccountRepo(
		&models.SocialAccount{ID: "soon", Provider: models.ProviderFacebook, AccessToken: "a", ExpiresAt: expiresIn(10 * time.Minute), Status: models.AccountStatusActive},
		&models.SocialAccount{ID: "later", Provider: models.ProviderFacebook, AccessToken: "b", ExpiresAt: expiresIn(2 * time.Hour), Status: models.AccountStatusActive},
		&models.SocialAccount{ID: "never", Provider: models.ProviderFacebook, AccessToken: "c", Status: models.AccountStatusActive},
		&models.SocialAccount{ID: "gone", Provider: models.ProviderFacebook, AccessToken: "d", ExpiresAt: expiresIn(time.Minute), Status: models.AccountStatusExpired},
	)
	tokens := NewTokenService(graphConfig(server.URL), repo, server.Client())

	renewed, err := tokens.RefreshExpiring(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)
	assert.Equal(t, "renewed-a", repo.Get("soon").AccessToken)
	assert.Equal(t, "b", repo.Get("later").AccessToken)
	assert.Equal(t, models.AccountStatusExpired, repo.Get("gone").Status)
}

func TestRefreshExpiringKeepsValidTokenOnTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	repo := repofake.NewFakeSocialAccountRepo(&models.SocialAccount{
		ID:          "acc-1",
		Provider:    models.ProviderFacebook,
		AccessToken: "T1",
		ExpiresAt:   expiresIn(25 * time.Minute),
		Status:      models.AccountStatusActive,
	})
	tokens := NewTokenService(graphConfig(server.URL), repo, server.Client())

	renewed, err := tokens.RefreshExpiring(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, renewed)

	stored := repo.Get("acc-1")
	assert.Equal(t, models.AccountStatusActive, stored.Status)
	assert.Empty(t, stored.ErrorMessage)

	account, err := tokens.GetValidAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "T1", account.AccessToken)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRefreshExpiringExpiresRejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{"message": "Error validating access token", "type": "OAuthException", "code": 190},
		})
	}))
	defer server.Close()

	repo := repofake.NewFakeSocialAccountRepo(&models.SocialAccount{
		ID:          "acc-1",
		Provider:    models.ProviderFacebook,
		AccessToken: "T1",
		ExpiresAt:   expiresIn(25 * time.Minute),
		Status:      models.AccountStatusActive,
	})
	tokens := NewTokenService(graphConfig(server.URL), repo, server.Client())

	_, err := tokens.RefreshExpiring(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusExpired, repo.Get("acc-1").Status)
}

func TestIsAuthRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad request", &statusError{StatusCode: http.StatusBadRequest}, true},
		{"wrapped unauthorized", fmt.Errorf("token exchange: %w", &statusError{StatusCode: http.StatusUnauthorized}), true},
		{"throttled", &statusError{StatusCode: http.StatusTooManyRequests}, false},
		{"server error", &statusError{StatusCode: http.StatusBadGateway}, false},
		{"invalid grant", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, true},
		{"oauth 503", &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAuthRejection(tt.err))
		})
	}
}

func TestMarkExpiredLeavesRevokedAlone(t *testing.T) {
	repo := repofake.NewFakeSocialAccountRepo(
		&models.SocialAccount{ID: "r", Status: models.AccountStatusRevoked},
		&models.SocialAccount{ID: "a", Status: models.AccountStatusActive},
	)
	tokens := NewTokenService(config.Config{}, repo, http.DefaultClient)

	require.NoError(t, tokens.MarkExpired(context.Background(), "r", "401"))
	require.NoError(t, tokens.MarkExpired(context.Background(), "a", "401"))
	assert.Equal(t, models.AccountStatusRevoked, repo.Get("r").Status)
	assert.Equal(t, models.AccountStatusExpired, repo.Get("a").Status)
	assert.Equal(t, "401", repo.Get("a").ErrorMessage)
}
