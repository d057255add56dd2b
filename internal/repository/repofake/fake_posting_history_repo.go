package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/repository"
)

var _ repository.PostingHistoryRepository = (*FakePostingHistoryRepo)(nil)

type FakePostingHistoryRepo struct {
	rows []*models.PostingHistory
	lock sync.RWMutex
}

func NewFakePostingHistoryRepo() *FakePostingHistoryRepo {
	return &FakePostingHistoryRepo{}
}

func (r *FakePostingHistoryRepo) Create(_ context.Context, ph *models.PostingHistory) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	row := *ph
	row.ID = uuid.New().String()
	row.CreatedAt = time.Now()
	r.rows = append(r.rows, &row)
	return row.ID, nil
}

func (r *FakePostingHistoryRepo) ListByPostID(_ context.Context, postID string) ([]*models.PostingHistory, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var out []*models.PostingHistory
	for _, row := range r.rows {
		if row.PostID == postID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}
