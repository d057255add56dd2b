package models

import "time"

type PostStatus string

const (
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
)

type PublishMethod string

const (
	MethodRelay  PublishMethod = "relay"
	MethodDirect PublishMethod = "direct"
)

// MediaRefPrefix marks a media reference stored in object storage rather than a public URL.
const MediaRefPrefix = "media:"

type PostTarget struct {
	Platform  Provider `json:"platform"`
	AccountID string   `json:"account_id"`
}

type PostTargetResult struct {
	Platform       Provider      `json:"platform"`
	AccountID      string        `json:"account_id"`
	Success        bool          `json:"success"`
	Method         PublishMethod `json:"method,omitempty"`
	ProviderPostID string        `json:"provider_post_id,omitempty"`
	Error          string        `json:"error,omitempty"`
}

type ScheduledPost struct {
	ID             string             `db:"id" json:"id"`
	UserID         string             `db:"user_id" json:"user_id"`
	Content        string             `db:"content" json:"content"`
	Media          []string           `db:"media" json:"media"`
	Link           string             `db:"link" json:"link,omitempty"`
	Title          string             `db:"title" json:"title,omitempty"`
	Targets        []PostTarget       `db:"targets" json:"targets"`
	ScheduledFor   time.Time          `db:"scheduled_for" json:"scheduled_for"`
	Status         PostStatus         `db:"status" json:"status"`
	ClaimedAt      *time.Time         `db:"claimed_at" json:"claimed_at,omitempty"`
	StartedAt      *time.Time         `db:"started_at" json:"started_at,omitempty"`
	PublishedAt    *time.Time         `db:"published_at" json:"published_at,omitempty"`
	FailedAt       *time.Time         `db:"failed_at" json:"failed_at,omitempty"`
	ProviderPostID string             `db:"provider_post_id" json:"provider_post_id,omitempty"`
	Method         PublishMethod      `db:"method" json:"method,omitempty"`
	Error          string             `db:"error" json:"error,omitempty"`
	Results        []PostTargetResult `db:"results" json:"results,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// PostCompletion is the terminal state written when execution of a claimed post ends.
type PostCompletion struct {
	Status         PostStatus
	ProviderPostID string
	Method         PublishMethod
	Error          string
	Results        []PostTargetResult
	At             time.Time
}
