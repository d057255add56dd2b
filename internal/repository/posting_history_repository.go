package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/socialdash/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (string, error)
	ListByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	query := `
		INSERT INTO posting_history (id, user_id, post_id, account_id, platform, method, success, provider_post_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query, id, ph.UserID, ph.PostID, ph.AccountID, ph.Platform,
		ph.Method, ph.Success, ph.ProviderPostID, ph.ErrorMessage)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return id, nil
}

func (r *postingHistoryRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	query := `SELECT id, user_id, post_id, account_id, platform, method, success, provider_post_id, error_message, created_at
		FROM posting_history WHERE post_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		var method, providerPostID, errorMessage sql.NullString
		err := rows.Scan(&ph.ID, &ph.UserID, &ph.PostID, &ph.AccountID, &ph.Platform, &method,
			&ph.Success, &providerPostID, &errorMessage, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ph.Method = models.PublishMethod(method.String)
		ph.ProviderPostID = providerPostID.String
		ph.ErrorMessage = errorMessage.String
		phs = append(phs, &ph)
	}
	return phs, rows.Err()
}
