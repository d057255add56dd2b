package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PresignTTL time.Duration
}

type Facebook struct {
	AppID                string
	AppSecret            string
	RedirectURI          string
	InstagramRedirectURI string
	GraphURL             string
}

type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenURL     string
}

type Pinterest struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIURL       string
	TokenURL     string
	BoardID      string
}

type Relay struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
	Platforms []string
}

type Executor struct {
	Mode         string // inline or asynq
	Schedule     string
	BatchSize    int
	Concurrency  int
	StaleAfter   time.Duration
	ClaimTimeout time.Duration
}

type TokenSweep struct {
	Schedule string
	Window   time.Duration
}

type RateLimit struct {
	Capacity int
	Refill   float64
}

type Config struct {
	Env             string
	Port            string
	Facebook        Facebook
	Google          Google
	Pinterest       Pinterest
	Relay           Relay
	Executor        Executor
	TokenSweep      TokenSweep
	RateLimit       RateLimit
	ProviderTimeout time.Duration
	PostgresURI     string
	RedisURI        string
	FrontendURL     string
	R2              R2
	SecretKey       string
	CookieName      string
}

func LoadConfig() *Config {
	return &Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnv("PORT", "3000"),
		Facebook: Facebook{
			AppID:                getEnv("FACEBOOK_APP_ID", ""),
			AppSecret:            getEnv("FACEBOOK_APP_SECRET", ""),
			RedirectURI:          getEnv("FACEBOOK_REDIRECT_URI", ""),
			InstagramRedirectURI: getEnv("INSTAGRAM_REDIRECT_URI", ""),
			GraphURL:             getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com/v19.0"),
		},
		Google: Google{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
			TokenURL:     getEnv("GOOGLE_TOKEN_URL", ""),
		},
		Pinterest: Pinterest{
			ClientID:     getEnv("PINTEREST_CLIENT_ID", ""),
			ClientSecret: getEnv("PINTEREST_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("PINTEREST_REDIRECT_URI", ""),
			APIURL:       getEnv("PINTEREST_API_URL", "https://api.pinterest.com/v5"),
			TokenURL:     getEnv("PINTEREST_TOKEN_URL", "https://api.pinterest.com/v5/oauth/token"),
			BoardID:      getEnv("PINTEREST_BOARD_ID", ""),
		},
		Relay: Relay{
			URL:       getEnv("RELAY_URL", ""),
			AuthToken: getEnv("RELAY_AUTH_TOKEN", ""),
			Timeout:   getEnvDuration("RELAY_TIMEOUT", 15*time.Second),
			Platforms: getEnvList("RELAY_PLATFORMS", []string{"facebook", "instagram"}),
		},
		Executor: Executor{
			Mode:         getEnv("EXECUTOR_MODE", "inline"),
			Schedule:     getEnv("EXECUTOR_SCHEDULE", "@every 30s"),
			BatchSize:    getEnvInt("EXECUTOR_BATCH_SIZE", 50),
			Concurrency:  getEnvInt("EXECUTOR_CONCURRENCY", 5),
			StaleAfter:   getEnvDuration("EXECUTOR_STALE_AFTER", 10*time.Minute),
			ClaimTimeout: getEnvDuration("EXECUTOR_CLAIM_TIMEOUT", time.Hour),
		},
		TokenSweep: TokenSweep{
			Schedule: getEnv("TOKEN_SWEEP_SCHEDULE", "@every 10m"),
			Window:   getEnvDuration("TOKEN_SWEEP_WINDOW", 30*time.Minute),
		},
		RateLimit: RateLimit{
			Capacity: getEnvInt("RATE_LIMIT_CAPACITY", 30),
			Refill:   getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 0.5),
		},
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),
		PostgresURI:     getEnv("POSTGRES_URI", ""),
		RedisURI:        getEnv("REDIS_URI", ""),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PresignTTL: getEnvDuration("R2_PRESIGN_TTL", time.Hour),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "socialdash_session"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
