package repofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/repository"
)

var _ repository.SocialAccountRepository = (*FakeSocialAccountRepo)(nil)

// FakeSocialAccountRepo keeps accounts in memory. Every read returns a copy so callers
// cannot mutate stored state behind the repository's back.
type FakeSocialAccountRepo struct {
	accounts      map[string]*models.SocialAccount
	undecryptable map[string]bool
	lock          sync.RWMutex

	// BeforeUpdateCredentials runs before the compare-and-set check, outside the lock.
	BeforeUpdateCredentials func(id string)
	CredentialUpdates       int
}

func NewFakeSocialAccountRepo(accounts ...*models.SocialAccount) *FakeSocialAccountRepo {
	r := &FakeSocialAccountRepo{
		accounts:      make(map[string]*models.SocialAccount),
		undecryptable: make(map[string]bool),
	}
	for _, sa := range accounts {
		r.Put(sa)
	}
	return r
}

// Put stores an account as is, assigning an id and timestamps when missing.
func (r *FakeSocialAccountRepo) Put(sa *models.SocialAccount) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if sa.ID == "" {
		sa.ID = uuid.New().String()
	}
	if sa.UpdatedAt.IsZero() {
		sa.UpdatedAt = time.Now()
	}
	if sa.CreatedAt.IsZero() {
		sa.CreatedAt = sa.UpdatedAt
	}
	r.accounts[sa.ID] = copyAccount(sa)
}

// Corrupt makes later reads of the account fail as if its tokens could not be decrypted.
func (r *FakeSocialAccountRepo) Corrupt(id string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.undecryptable[id] = true
}

// Get returns the stored account without going through the interface.
func (r *FakeSocialAccountRepo) Get(id string) *models.SocialAccount {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if sa, ok := r.accounts[id]; ok {
		return copyAccount(sa)
	}
	return nil
}

func (r *FakeSocialAccountRepo) Upsert(_ context.Context, sa *models.SocialAccount) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, existing := range r.accounts {
		if existing.UserID == sa.UserID && existing.Provider == sa.Provider && existing.ProviderAccountID == sa.ProviderAccountID {
			refresh := existing.RefreshToken
			stored := copyAccount(sa)
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
			if stored.RefreshToken == "" {
				stored.RefreshToken = refresh
			}
			stored.Status = models.AccountStatusActive
			stored.ErrorMessage = ""
			stored.UpdatedAt = nextStamp(existing.UpdatedAt)
			r.accounts[existing.ID] = stored
			return existing.ID, nil
		}
	}

	stored := copyAccount(sa)
	stored.ID = uuid.New().String()
	stored.Status = models.AccountStatusActive
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.accounts[stored.ID] = stored
	return stored.ID, nil
}

func (r *FakeSocialAccountRepo) GetByID(_ context.Context, id string) (*models.SocialAccount, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	sa, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.undecryptable[id] {
		out := copyAccount(sa)
		out.AccessToken, out.RefreshToken, out.LongLivedToken = "", "", ""
		return out, repository.ErrUndecryptable
	}
	return copyAccount(sa), nil
}

func (r *FakeSocialAccountRepo) ListByUserID(_ context.Context, userID string) ([]*models.SocialAccount, error) {
	return r.filter(func(sa *models.SocialAccount) bool { return sa.UserID == userID }), nil
}

func (r *FakeSocialAccountRepo) ListExpiring(_ context.Context, before time.Time) ([]*models.SocialAccount, error) {
	return r.filter(func(sa *models.SocialAccount) bool {
		return sa.IsActive() && !sa.NeverExpires() && !sa.ExpiresAt.After(before)
	}), nil
}

func (r *FakeSocialAccountRepo) filter(keep func(*models.SocialAccount) bool) []*models.SocialAccount {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var out []*models.SocialAccount
	for _, sa := range r.accounts {
		if keep(sa) {
			out = append(out, copyAccount(sa))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *FakeSocialAccountRepo) CheckByUserID(_ context.Context, accountID, userID string) (bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	sa, ok := r.accounts[accountID]
	return ok && sa.UserID == userID, nil
}

func (r *FakeSocialAccountRepo) UpdateCredentials(_ context.Context, sa *models.SocialAccount, lastUpdatedAt time.Time) error {
	if r.BeforeUpdateCredentials != nil {
		r.BeforeUpdateCredentials(sa.ID)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	stored, ok := r.accounts[sa.ID]
	if !ok || !stored.UpdatedAt.Equal(lastUpdatedAt) || stored.Status == models.AccountStatusRevoked {
		return repository.ErrConflict
	}

	stored.AccessToken = sa.AccessToken
	stored.RefreshToken = sa.RefreshToken
	stored.LongLivedToken = sa.LongLivedToken
	stored.ExpiresAt = copyTime(sa.ExpiresAt)
	stored.Status = models.AccountStatusActive
	stored.ErrorMessage = ""
	stored.UpdatedAt = nextStamp(stored.UpdatedAt)
	r.CredentialUpdates++

	sa.Status = stored.Status
	sa.ErrorMessage = ""
	sa.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *FakeSocialAccountRepo) UpdateStatus(_ context.Context, id string, status models.AccountStatus, message string, from ...models.AccountStatus) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored, ok := r.accounts[id]
	if !ok {
		return nil
	}
	if len(from) > 0 {
		allowed := false
		for _, s := range from {
			if stored.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil
		}
	}
	stored.Status = status
	stored.ErrorMessage = message
	stored.UpdatedAt = nextStamp(stored.UpdatedAt)
	return nil
}

func (r *FakeSocialAccountRepo) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if stored, ok := r.accounts[id]; ok {
		stored.LastUsedAt = &at
	}
	return nil
}

func (r *FakeSocialAccountRepo) Remove(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

// nextStamp guarantees a strictly newer timestamp even on coarse clocks.
func nextStamp(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func copyAccount(sa *models.SocialAccount) *models.SocialAccount {
	out := *sa
	out.ExpiresAt = copyTime(sa.ExpiresAt)
	out.LastUsedAt = copyTime(sa.LastUsedAt)
	out.Scopes = append([]string(nil), sa.Scopes...)
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
