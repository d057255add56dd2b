package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform,omitempty"`
	jwt.RegisteredClaims
}

type PublishRequest struct {
	AccountIDs []string `json:"account_ids"`
	Text       string   `json:"text"`
	Media      []string `json:"media"`
	Link       string   `json:"link"`
	Title      string   `json:"title"`
}

type CreatePostRequest struct {
	Text         string   `json:"text"`
	Media        []string `json:"media"`
	Link         string   `json:"link"`
	Title        string   `json:"title"`
	AccountIDs   []string `json:"account_ids"`
	ScheduledFor string   `json:"scheduled_for"`
}
