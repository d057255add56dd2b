package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type SocialAccountRepository interface {
	Upsert(ctx context.Context, sa *models.SocialAccount) (string, error)
	GetByID(ctx context.Context, id string) (*models.SocialAccount, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.SocialAccount, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID string) (bool, error)
	UpdateCredentials(ctx context.Context, sa *models.SocialAccount, lastUpdatedAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.AccountStatus, message string, from ...models.AccountStatus) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	Remove(ctx context.Context, id string) error
}

type socialAccountRepository struct {
	db  *sql.DB
	key []byte
}

func NewSocialAccountRepository(db *sql.DB, secretKey string) SocialAccountRepository {
	return &socialAccountRepository{db: db, key: []byte(secretKey)}
}

const socialAccountColumns = `id, user_id, provider, provider_account_id, account_name, account_type,
	profile_picture_url, access_token, refresh_token, long_lived_token, expires_at, scopes,
	status, error_message, last_used_at, created_at, updated_at`

func (r *socialAccountRepository) Upsert(ctx context.Context, sa *models.SocialAccount) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	accessToken, err := r.seal(sa.AccessToken)
	if err != nil {
		return "", err
	}
	refreshToken, err := r.seal(sa.RefreshToken)
	if err != nil {
		return "", err
	}
	longLivedToken, err := r.seal(sa.LongLivedToken)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO social_accounts(
			id,
			user_id,
			provider,
			provider_account_id,
			account_name,
			account_type,
			profile_picture_url,
			access_token,
			refresh_token,
			long_lived_token,
			expires_at,
			scopes,
			status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'active')
		ON CONFLICT (user_id, provider, provider_account_id) DO UPDATE SET
			account_name = EXCLUDED.account_name,
			account_type = EXCLUDED.account_type,
			profile_picture_url = EXCLUDED.profile_picture_url,
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), social_accounts.refresh_token),
			long_lived_token = EXCLUDED.long_lived_token,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			status = 'active',
			error_message = '',
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var storedID string
	err = r.db.QueryRowContext(ctx, query,
		id,
		sa.UserID,
		sa.Provider,
		sa.ProviderAccountID,
		sa.AccountName,
		sa.AccountType,
		sa.ProfilePicture,
		accessToken,
		refreshToken,
		longLivedToken,
		sa.ExpiresAt,
		pq.Array(sa.Scopes),
	).Scan(&storedID)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return storedID, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id string) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	sa, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		slog.Info(err.Error())
		if errors.Is(err, ErrUndecryptable) {
			return sa, err
		}
		return nil, err
	}

	return sa, nil
}

func (r *socialAccountRepository) ListByUserID(ctx context.Context, userID string) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE user_id = $1 ORDER BY created_at`
	return r.list(ctx, query, userID)
}

// ListExpiring returns active accounts whose expiry is set and falls at or before the given time.
func (r *socialAccountRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE status = 'active'
		AND expires_at IS NOT NULL
		AND expires_at > to_timestamp(0)
		AND expires_at <= $1`
	return r.list(ctx, query, before)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := r.scan(rows)
		if err != nil {
			slog.Info(err.Error())
			if !errors.Is(err, ErrUndecryptable) {
				return nil, err
			}
		}
		accounts = append(accounts, sa)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

func (r *socialAccountRepository) CheckByUserID(ctx context.Context, accountID, userID string) (bool, error) {
	query := "SELECT 1 FROM social_accounts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// UpdateCredentials stores renewed tokens and reactivates the account, but only if the
// row has not been touched since lastUpdatedAt. On success sa.UpdatedAt is refreshed.
func (r *socialAccountRepository) UpdateCredentials(ctx context.Context, sa *models.SocialAccount, lastUpdatedAt time.Time) error {
	accessToken, err := r.seal(sa.AccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := r.seal(sa.RefreshToken)
	if err != nil {
		return err
	}
	longLivedToken, err := r.seal(sa.LongLivedToken)
	if err != nil {
		return err
	}

	query := `
		UPDATE social_accounts
		SET
			access_token = $3,
			refresh_token = $4,
			long_lived_token = $5,
			expires_at = $6,
			status = 'active',
			error_message = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND updated_at = $2 AND status <> 'revoked'
		RETURNING updated_at
	`

	var updatedAt time.Time
	err = r.db.QueryRowContext(ctx, query, sa.ID, lastUpdatedAt, accessToken, refreshToken, longLivedToken, sa.ExpiresAt).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		slog.Info(err.Error())
		return err
	}

	sa.Status = models.AccountStatusActive
	sa.ErrorMessage = ""
	sa.UpdatedAt = updatedAt
	return nil
}

// UpdateStatus sets status and error message. When from is non-empty the update only
// applies to rows currently in one of those statuses; a row outside them is left alone.
func (r *socialAccountRepository) UpdateStatus(ctx context.Context, id string, status models.AccountStatus, message string, from ...models.AccountStatus) error {
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}

	query := `
		UPDATE social_accounts
		SET status = $2, error_message = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND (cardinality($4::text[]) = 0 OR status = ANY($4::text[]))
	`
	_, err := r.db.ExecContext(ctx, query, id, status, message, pq.Array(allowed))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE social_accounts SET last_used_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM social_accounts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *socialAccountRepository) scan(row rowScanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	var expiresAt, lastUsedAt sql.NullTime
	var refreshToken, longLivedToken, errorMessage, profilePicture sql.NullString

	err := row.Scan(&sa.ID, &sa.UserID, &sa.Provider, &sa.ProviderAccountID, &sa.AccountName,
		&sa.AccountType, &profilePicture, &sa.AccessToken, &refreshToken, &longLivedToken,
		&expiresAt, pq.Array(&sa.Scopes), &sa.Status, &errorMessage, &lastUsedAt,
		&sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sa.ProfilePicture = profilePicture.String
	sa.RefreshToken = refreshToken.String
	sa.LongLivedToken = longLivedToken.String
	sa.ErrorMessage = errorMessage.String
	if expiresAt.Valid {
		sa.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		sa.LastUsedAt = &lastUsedAt.Time
	}

	// Metadata is still returned when a token fails to decrypt so listings keep the row.
	for _, field := range []*string{&sa.AccessToken, &sa.RefreshToken, &sa.LongLivedToken} {
		if *field, err = r.open(*field); err != nil {
			sa.AccessToken, sa.RefreshToken, sa.LongLivedToken = "", "", ""
			return &sa, fmt.Errorf("account %s: %w", sa.ID, err)
		}
	}

	return &sa, nil
}

func (r *socialAccountRepository) seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	return utils.Encrypt([]byte(plain), r.key)
}

func (r *socialAccountRepository) open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	plain, err := utils.Decrypt(sealed, r.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	return plain, nil
}
