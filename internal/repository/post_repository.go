package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/socialdash/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type ScheduledPostRepository interface {
	Create(ctx context.Context, post *models.ScheduledPost) (string, error)
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.ScheduledPost, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	Claim(ctx context.Context, id string, at time.Time) (bool, error)
	Start(ctx context.Context, id string, at time.Time) (bool, error)
	Release(ctx context.Context, id string) error
	ReleaseUnstarted(ctx context.Context, claimedBefore time.Time) (int64, error)
	Complete(ctx context.Context, id string, c models.PostCompletion) error
	FailStale(ctx context.Context, startedBefore, at time.Time, message string) (int64, error)
	Remove(ctx context.Context, id, userID string) error
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const scheduledPostColumns = `id, user_id, content, media, link, title, targets, scheduled_for, status,
	claimed_at, started_at, published_at, failed_at, provider_post_id, method, error, results, created_at, updated_at`

func (r *scheduledPostRepository) Create(ctx context.Context, post *models.ScheduledPost) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	targets, err := json.Marshal(post.Targets)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO scheduled_posts (id, user_id, content, media, link, title, targets, scheduled_for, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'scheduled')
		RETURNING created_at
	`

	err = r.db.QueryRowContext(ctx, query, id, post.UserID, post.Content, pq.Array(post.Media),
		post.Link, post.Title, targets, post.ScheduledFor).Scan(&post.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	post.ID = id
	post.Status = models.PostStatusScheduled
	post.UpdatedAt = post.CreatedAt
	return id, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE id = $1`
	post, err := scanScheduledPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *scheduledPostRepository) ListByUserID(ctx context.Context, userID string) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_for DESC`
	return r.list(ctx, query, userID)
}

// ListDue returns scheduled posts whose time has come, oldest first.
func (r *scheduledPostRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts
		WHERE status = 'scheduled' AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2`
	return r.list(ctx, query, now, limit)
}

func (r *scheduledPostRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanScheduledPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// Claim moves a post from scheduled to publishing. It reports false when another
// executor got there first or the post is no longer scheduled.
func (r *scheduledPostRepository) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = 'publishing', claimed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'scheduled'
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// Start records that execution of a claimed post has begun. It reports false when the
// post is not publishing or was already started.
func (r *scheduledPostRepository) Start(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET started_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'publishing' AND started_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *scheduledPostRepository) Release(ctx context.Context, id string) error {
	query := `
		UPDATE scheduled_posts
		SET status = 'scheduled', claimed_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'publishing' AND started_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Complete writes the terminal state of a claimed post. It returns ErrConflict when the
// post is not in publishing anymore.
func (r *scheduledPostRepository) Complete(ctx context.Context, id string, c models.PostCompletion) error {
	results, err := json.Marshal(c.Results)
	if err != nil {
		return err
	}

	var publishedAt, failedAt *time.Time
	if c.Status == models.PostStatusPublished {
		publishedAt = &c.At
	} else {
		failedAt = &c.At
	}

	query := `
		UPDATE scheduled_posts
		SET
			status = $2,
			provider_post_id = $3,
			method = $4,
			error = $5,
			results = $6,
			published_at = $7,
			failed_at = $8,
			updated_at = $9
		WHERE id = $1 AND status = 'publishing'
	`
	result, err := r.db.ExecContext(ctx, query, id, c.Status, c.ProviderPostID, c.Method, c.Error,
		results, publishedAt, failedAt, c.At)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return ErrConflict
	}
	return nil
}

// ReleaseUnstarted returns claims that never began executing, such as tasks lost from
// the queue, to scheduled.
func (r *scheduledPostRepository) ReleaseUnstarted(ctx context.Context, claimedBefore time.Time) (int64, error) {
	query := `
		UPDATE scheduled_posts
		SET status = 'scheduled', claimed_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE status = 'publishing' AND started_at IS NULL AND claimed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, claimedBefore)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

// FailStale marks posts whose execution started before startedBefore and never
// completed as failed. Claims still waiting to start are left alone.
func (r *scheduledPostRepository) FailStale(ctx context.Context, startedBefore, at time.Time, message string) (int64, error) {
	query := `
		UPDATE scheduled_posts
		SET status = 'failed', error = $3, failed_at = $2, updated_at = $2
		WHERE status = 'publishing' AND started_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, startedBefore, at, message)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

// Remove deletes a post that has not started executing.
func (r *scheduledPostRepository) Remove(ctx context.Context, id, userID string) error {
	query := `DELETE FROM scheduled_posts WHERE id = $1 AND user_id = $2 AND status = 'scheduled'`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanScheduledPost(row rowScanner) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	var link, title, providerPostID, method, errMsg sql.NullString
	var claimedAt, startedAt, publishedAt, failedAt sql.NullTime
	var targets, results []byte

	err := row.Scan(&post.ID, &post.UserID, &post.Content, pq.Array(&post.Media), &link, &title,
		&targets, &post.ScheduledFor, &post.Status, &claimedAt, &startedAt, &publishedAt, &failedAt,
		&providerPostID, &method, &errMsg, &results, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.Link = link.String
	post.Title = title.String
	post.ProviderPostID = providerPostID.String
	post.Method = models.PublishMethod(method.String)
	post.Error = errMsg.String
	if claimedAt.Valid {
		post.ClaimedAt = &claimedAt.Time
	}
	if startedAt.Valid {
		post.StartedAt = &startedAt.Time
	}
	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	if failedAt.Valid {
		post.FailedAt = &failedAt.Time
	}

	if len(targets) > 0 {
		if err := json.Unmarshal(targets, &post.Targets); err != nil {
			return nil, err
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &post.Results); err != nil {
			return nil, err
		}
	}

	return &post, nil
}
