package models

import "time"

type PostingHistory struct {
	ID             string        `db:"id" json:"id"`
	UserID         string        `db:"user_id" json:"user_id"`
	PostID         string        `db:"post_id" json:"post_id"`
	AccountID      string        `db:"account_id" json:"account_id"`
	Platform       Provider      `db:"platform" json:"platform"`
	Method         PublishMethod `db:"method" json:"method"`
	Success        bool          `db:"success" json:"success"`
	ProviderPostID string        `db:"provider_post_id" json:"provider_post_id"`
	ErrorMessage   string        `db:"error_message" json:"error_message"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}
