package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/repository/repofake"
)

type stubAdapter struct {
	mu       sync.Mutex
	err      error
	contents []models.Content
}

func (s *stubAdapter) Publish(_ context.Context, account *models.SocialAccount, content models.Content) (*ProviderPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents = append(s.contents, content)
	if s.err != nil {
		return nil, s.err
	}
	return &ProviderPost{ID: "post-" + account.ID, URL: "https://social/" + account.ID}, nil
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (l stubLimiter) Allow(context.Context, string) (bool, float64, error) {
	return l.allowed, 0, l.err
}

type prefixResolver struct{}

func (prefixResolver) ResolveMedia(_ context.Context, refs []string) ([]string, error) {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = "https://signed/" + r
	}
	return out, nil
}

func newDispatcher(t *testing.T, publishers map[models.Provider]Publisher, limiter Limiter, media MediaResolver, accounts ...*models.SocialAccount) PublishService {
	t.Helper()
	repo := repofake.NewFakeSocialAccountRepo(accounts...)
	tokens := NewTokenService(config.Config{}, repo, http.DefaultClient)
	return NewPublishService(tokens, publishers, limiter, media, 3)
}

func TestPublishToAccountsRevokedAccount(t *testing.T) {
	fb := &stubAdapter{}
	svc := newDispatcher(t, map[models.Provider]Publisher{models.ProviderFacebook: fb}, nil, nil,
		&models.SocialAccount{ID: "a1", Provider: models.ProviderFacebook, AccessToken: "T", Status: models.AccountStatusActive},
		&models.SocialAccount{ID: "a2", Provider: models.ProviderFacebook, AccessToken: "T", Status: models.AccountStatusRevoked},
	)

	result := svc.PublishToAccounts(context.Background(), []string{"a1", "a2"}, models.Content{Text: "hello"})
	assert.True(t, result.Success)
	require.Len(t, result.Outcomes, 2)

	assert.Equal(t, "a1", result.Outcomes[0].AccountID)
	assert.True(t, result.Outcomes[0].Success)
	assert.Equal(t, "post-a1", result.Outcomes[0].PostID)
	assert.Equal(t, models.ProviderFacebook, result.Outcomes[0].Provider)

	assert.Equal(t, "a2", result.Outcomes[1].AccountID)
	assert.False(t, result.Outcomes[1].Success)
	assert.Equal(t, "account invalid or token expired, requires reauthentication", result.Outcomes[1].Error)
	assert.Equal(t, string(KindCredentialUnavailable), result.Outcomes[1].ErrorKind)
	assert.Equal(t, models.ProviderFacebook, result.Outcomes[1].Provider)
}

func TestPublishToAccountsAllFail(t *testing.T) {
	fb := &stubAdapter{err: newPublishError(KindProviderRejected, models.ProviderFacebook, "duplicate status")}
	svc := newDispatcher(t, map[models.Provider]Publisher{models.ProviderFacebook: fb}, nil, nil,
		&models.SocialAccount{ID: "a1", Provider: models.ProviderFacebook, AccessToken: "T", Status: models.AccountStatusActive},
	)

	result := svc.PublishToAccounts(context.Background(), []string{"a1", "missing"}, models.Content{Text: "x"})
	assert.False(t, result.Success)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "duplicate status", result.Outcomes[0].Error)
	assert.Equal(t, string(KindProviderRejected), result.Outcomes[0].ErrorKind)
	assert.Empty(t, result.Outcomes[1].Provider)

	empty := svc.PublishToAccounts(context.Background(), nil, models.Content{Text: "x"})
	assert.False(t, empty.Success)
	assert.Empty(t, empty.Outcomes)
}

func TestPublishToAccountUnsupportedProvider(t *testing.T) {
	svc := newDispatcher(t, map[models.Provider]Publisher{}, nil, nil,
		&models.SocialAccount{ID: "p1", Provider: models.ProviderPinterest, AccessToken: "T", Status: models.AccountStatusActive},
	)

	outcome := svc.PublishToAccount(context.Background(), "p1", models.Content{Text: "x"})
	assert.False(t, outcome.Success)
	assert.Equal(t, "provider not supported: pinterest", outcome.Error)
	assert.Equal(t, string(KindUnsupported), outcome.ErrorKind)
}

func TestPublishToAccountRateLimited(t *testing.T) {
	fb := &stubAdapter{}
	account := &models.SocialAccount{ID: "a1", Provider: models.ProviderFacebook, AccessToken: "T", Status: models.AccountStatusActive}

	svc := newDispatcher(t, map[models.Provider]Publisher{models.ProviderFacebook: fb}, stubLimiter{allowed: false}, nil, account)
	outcome := svc.PublishToAccount(context.Background(), "a1", models.Content{Text: "x"})
	assert.False(t, outcome.Success)
	assert.Equal(t, string(KindProviderUnavailable), outcome.ErrorKind)
	assert.Empty(t, fb.contents)

	// a broken limiter does not block publishing
	svc = newDispatcher(t, map[models.Provider]Publisher{models.ProviderFacebook: fb}, stubLimiter{err: errors.New("redis down")}, nil, account)
	outcome = svc.PublishToAccount(context.Background(), "a1", models.Content{Text: "x"})
	assert.True(t, outcome.Success)
}

func TestPublishToAccountResolvesMedia(t *testing.T) {
	fb := &stubAdapter{}
	svc := newDispatcher(t, map[models.Provider]Publisher{models.ProviderFacebook: fb}, stubLimiter{allowed: true}, prefixResolver{},
		&models.SocialAccount{ID: "a1", Provider: models.ProviderFacebook, AccessToken: "T", Status: models.AccountStatusActive},
	)

	outcome := svc.PublishToAccount(context.Background(), "a1", models.Content{Text: "x", Media: []string{"media:k.png"}})
	require.True(t, outcome.Success)
	require.Len(t, fb.contents, 1)
	assert.Equal(t, []string{"https://signed/media:k.png"}, fb.contents[0].Media)
}

func TestPublishToAccountsKeepsOrder(t *testing.T) {
	fb := &stubAdapter{}
	var accounts []*models.SocialAccount
	var ids []string
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		accounts = append(accounts, &models.SocialAccount{ID: id, Provider: models.ProviderFacebook, AccessToken: "T", Status: models.AccountStatusActive})
		ids = append(ids, id)
	}
	svc := newDispatcher(t, map[models.Provider]Publisher{models.ProviderFacebook: fb}, nil, nil, accounts...)

	result := svc.PublishToAccounts(context.Background(), ids, models.Content{Text: "x"})
	require.Len(t, result.Outcomes, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, result.Outcomes[i].AccountID)
		assert.Equal(t, "post-"+id, result.Outcomes[i].PostID)
	}
}
