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

var _ repository.ScheduledPostRepository = (*FakeScheduledPostRepo)(nil)

type FakeScheduledPostRepo struct {
	posts map[string]*models.ScheduledPost
	lock  sync.RWMutex
}

func NewFakeScheduledPostRepo(posts ...*models.ScheduledPost) *FakeScheduledPostRepo {
	r := &FakeScheduledPostRepo{posts: make(map[string]*models.ScheduledPost)}
	for _, p := range posts {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.Status == "" {
			p.Status = models.PostStatusScheduled
		}
		r.posts[p.ID] = copyPost(p)
	}
	return r
}

func (r *FakeScheduledPostRepo) Get(id string) *models.ScheduledPost {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if p, ok := r.posts[id]; ok {
		return copyPost(p)
	}
	return nil
}

func (r *FakeScheduledPostRepo) Create(_ context.Context, post *models.ScheduledPost) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	post.ID = uuid.New().String()
	post.Status = models.PostStatusScheduled
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	r.posts[post.ID] = copyPost(post)
	return post.ID, nil
}

func (r *FakeScheduledPostRepo) GetByID(_ context.Context, id string) (*models.ScheduledPost, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPost(p), nil
}

func (r *FakeScheduledPostRepo) ListByUserID(_ context.Context, userID string) ([]*models.ScheduledPost, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var out []*models.ScheduledPost
	for _, p := range r.posts {
		if p.UserID == userID {
			out = append(out, copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.After(out[j].ScheduledFor) })
	return out, nil
}

func (r *FakeScheduledPostRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var out []*models.ScheduledPost
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && !p.ScheduledFor.After(now) {
			out = append(out, copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FakeScheduledPostRepo) Claim(_ context.Context, id string, at time.Time) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	p.Status = models.PostStatusPublishing
	p.ClaimedAt = &at
	p.UpdatedAt = at
	return true, nil
}

func (r *FakeScheduledPostRepo) Start(_ context.Context, id string, at time.Time) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusPublishing || p.StartedAt != nil {
		return false, nil
	}
	p.StartedAt = &at
	p.UpdatedAt = at
	return true, nil
}

func (r *FakeScheduledPostRepo) Release(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if p, ok := r.posts[id]; ok && p.Status == models.PostStatusPublishing && p.StartedAt == nil {
		p.Status = models.PostStatusScheduled
		p.ClaimedAt = nil
	}
	return nil
}

func (r *FakeScheduledPostRepo) ReleaseUnstarted(_ context.Context, claimedBefore time.Time) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var n int64
	for _, p := range r.posts {
		if p.Status == models.PostStatusPublishing && p.StartedAt == nil &&
			p.ClaimedAt != nil && p.ClaimedAt.Before(claimedBefore) {
			p.Status = models.PostStatusScheduled
			p.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (r *FakeScheduledPostRepo) Complete(_ context.Context, id string, c models.PostCompletion) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusPublishing {
		return repository.ErrConflict
	}
	at := c.At
	p.Status = c.Status
	p.ProviderPostID = c.ProviderPostID
	p.Method = c.Method
	p.Error = c.Error
	p.Results = append([]models.PostTargetResult(nil), c.Results...)
	if c.Status == models.PostStatusPublished {
		p.PublishedAt = &at
	} else {
		p.FailedAt = &at
	}
	p.UpdatedAt = at
	return nil
}

func (r *FakeScheduledPostRepo) FailStale(_ context.Context, startedBefore, at time.Time, message string) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var n int64
	for _, p := range r.posts {
		if p.Status == models.PostStatusPublishing && p.StartedAt != nil && p.StartedAt.Before(startedBefore) {
			failedAt := at
			p.Status = models.PostStatusFailed
			p.Error = message
			p.FailedAt = &failedAt
			p.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r *FakeScheduledPostRepo) Remove(_ context.Context, id, userID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	p, ok := r.posts[id]
	if !ok || p.UserID != userID || p.Status != models.PostStatusScheduled {
		return repository.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func copyPost(p *models.ScheduledPost) *models.ScheduledPost {
	out := *p
	out.Media = append([]string(nil), p.Media...)
	out.Targets = append([]models.PostTarget(nil), p.Targets...)
	out.Results = append([]models.PostTargetResult(nil), p.Results...)
	out.ClaimedAt = copyTime(p.ClaimedAt)
	out.StartedAt = copyTime(p.StartedAt)
	out.PublishedAt = copyTime(p.PublishedAt)
	out.FailedAt = copyTime(p.FailedAt)
	return &out
}
