package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postColumns = []string{"id", "user_id", "content", "media", "link", "title", "targets", "scheduled_for",
	"status", "claimed_at", "started_at", "published_at", "failed_at", "provider_post_id", "method", "error", "results",
	"created_at", "updated_at"}

func newPostRepo(t *testing.T) (repository.ScheduledPostRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewScheduledPostRepository(db), mock
}

func TestListDueScansTargets(t *testing.T) {
	repo, mock := newPostRepo(t)
	now := time.Now()
	due := now.Add(-time.Minute)

	mock.ExpectQuery("FROM scheduled_posts\\s+WHERE status = 'scheduled' AND scheduled_for <= \\$1").
		WithArgs(now, 10).
		WillReturnRows(sqlmock.NewRows(postColumns).AddRow(
			"post-1", "user-1", "hello", "{https://cdn.example.com/a.jpg}", nil, nil,
			[]byte(`[{"platform":"facebook","account_id":"acc-1"},{"platform":"pinterest","account_id":"acc-2"}]`),
			due, "scheduled", nil, nil, nil, nil, nil, nil, nil, nil, due, due,
		))

	posts, err := repo.ListDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	post := posts[0]
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, post.Media)
	assert.Equal(t, []models.PostTarget{
		{Platform: models.ProviderFacebook, AccountID: "acc-1"},
		{Platform: models.ProviderPinterest, AccountID: "acc-2"},
	}, post.Targets)
	assert.Nil(t, post.ClaimedAt)
	assert.Empty(t, post.Results)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"won", 1, true},
		{"lost", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newPostRepo(t)
			at := time.Now()

			mock.ExpectExec("UPDATE scheduled_posts\\s+SET status = 'publishing'").
				WithArgs("post-1", at).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.Claim(context.Background(), "post-1", at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestClaimDriverError(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectExec("UPDATE scheduled_posts").WillReturnError(errors.New("connection reset"))

	ok, err := repo.Claim(context.Background(), "post-1", time.Now())
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestCompleteRequiresPublishing(t *testing.T) {
	repo, mock := newPostRepo(t)
	at := time.Now()

	mock.ExpectExec("UPDATE scheduled_posts").
		WithArgs("post-1", models.PostStatusPublished, "fb_1", models.MethodRelay, "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(context.Background(), "post-1", models.PostCompletion{
		Status:         models.PostStatusPublished,
		ProviderPostID: "fb_1",
		Method:         models.MethodRelay,
		At:             at,
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStart(t *testing.T) {
	repo, mock := newPostRepo(t)
	at := time.Now()

	mock.ExpectExec("SET started_at = \\$2, updated_at = \\$2\\s+WHERE id = \\$1 AND status = 'publishing' AND started_at IS NULL").
		WithArgs("post-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET started_at").
		WithArgs("post-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Start(context.Background(), "post-1", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Start(context.Background(), "post-1", at)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseUnstarted(t *testing.T) {
	repo, mock := newPostRepo(t)
	cutoff := time.Now().Add(-time.Hour)

	mock.ExpectExec("SET status = 'scheduled', claimed_at = NULL.*WHERE status = 'publishing' AND started_at IS NULL AND claimed_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ReleaseUnstarted(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailStale(t *testing.T) {
	repo, mock := newPostRepo(t)
	cutoff := time.Now().Add(-10 * time.Minute)
	at := time.Now()

	mock.ExpectExec("UPDATE scheduled_posts\\s+SET status = 'failed'.*started_at < \\$1").
		WithArgs(cutoff, at, "execution interrupted").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.FailStale(context.Background(), cutoff, at, "execution interrupted")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestRemoveOnlyScheduled(t *testing.T) {
	repo, mock := newPostRepo(t)

	mock.ExpectExec("DELETE FROM scheduled_posts WHERE id = \\$1 AND user_id = \\$2 AND status = 'scheduled'").
		WithArgs("post-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Remove(context.Background(), "post-1", "user-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
