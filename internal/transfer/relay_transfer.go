package transfer

import "time"

type RelayRequest struct {
	Content   string    `json:"content"`
	Platform  string    `json:"platform"`
	Media     []string  `json:"media"`
	Timestamp time.Time `json:"timestamp"`
	AccountID string    `json:"account_id"`
	PostID    string    `json:"post_id"`
}

type RelayResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}
