package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}
	epoch := time.Unix(0, 0)

	tests := []struct {
		name    string
		expires *time.Time
		want    bool
	}{
		{"nil never expires", nil, false},
		{"zero value never expires", &time.Time{}, false},
		{"epoch never expires", &epoch, false},
		{"far future", at(2 * time.Hour), false},
		{"inside margin", at(10 * time.Minute), true},
		{"exactly at margin", at(15 * time.Minute), true},
		{"just past margin", at(15*time.Minute + time.Second), false},
		{"already past", at(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sa := &SocialAccount{ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, sa.ExpiresWithin(now, 15*time.Minute))
		})
	}
}

func TestParseProvider(t *testing.T) {
	p, ok := ParseProvider("pinterest")
	assert.True(t, ok)
	assert.Equal(t, ProviderPinterest, p)

	_, ok = ParseProvider("tiktok")
	assert.False(t, ok)
}
