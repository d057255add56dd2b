package models

import (
	"time"
)

type Provider string

const (
	ProviderFacebook  Provider = "facebook"
	ProviderInstagram Provider = "instagram"
	ProviderGoogle    Provider = "google"
	ProviderPinterest Provider = "pinterest"
)

func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(s); p {
	case ProviderFacebook, ProviderInstagram, ProviderGoogle, ProviderPinterest:
		return p, true
	}
	return "", false
}

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusExpired AccountStatus = "expired"
	AccountStatusError   AccountStatus = "error"
	AccountStatusRevoked AccountStatus = "revoked"
)

const (
	AccountTypeUser = "user"
	AccountTypePage = "page"
)

type SocialAccount struct {
	ID                string        `db:"id" json:"id"`
	UserID            string        `db:"user_id" json:"user_id"`
	Provider          Provider      `db:"provider" json:"provider"`
	ProviderAccountID string        `db:"provider_account_id" json:"provider_account_id"`
	AccountName       string        `db:"account_name" json:"account_name"`
	AccountType       string        `db:"account_type" json:"account_type"`
	ProfilePicture    string        `db:"profile_picture_url" json:"profile_picture"`
	AccessToken       string        `db:"access_token" json:"-"`
	RefreshToken      string        `db:"refresh_token" json:"-"`
	LongLivedToken    string        `db:"long_lived_token" json:"-"`
	ExpiresAt         *time.Time    `db:"expires_at" json:"expires_at"`
	Scopes            []string      `db:"scopes" json:"scopes"`
	Status            AccountStatus `db:"status" json:"status"`
	ErrorMessage      string        `db:"error_message" json:"error_message,omitempty"`
	LastUsedAt        *time.Time    `db:"last_used_at" json:"last_used_at"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// NeverExpires reports whether the credential carries no usable expiry.
// A nil timestamp and the Unix epoch both mean the token does not expire.
func (sa *SocialAccount) NeverExpires() bool {
	return sa.ExpiresAt == nil || sa.ExpiresAt.IsZero() || sa.ExpiresAt.Unix() == 0
}

// ExpiresWithin reports whether the token expires at or before now+margin.
func (sa *SocialAccount) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if sa.NeverExpires() {
		return false
	}
	return !sa.ExpiresAt.After(now.Add(margin))
}

func (sa *SocialAccount) IsActive() bool {
	return sa.Status == AccountStatusActive
}
