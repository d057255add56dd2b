package service

import (
	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

var (
	facebookScopes  = []string{"public_profile", "pages_show_list", "pages_manage_posts", "pages_read_engagement"}
	instagramScopes = []string{"instagram_basic", "instagram_content_publish", "pages_show_list", "business_management"}
	googleScopes    = []string{"openid", "https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"}
	pinterestScopes = []string{"boards:read", "pins:read", "pins:write", "user_accounts:read"}
)

// oauthConfig returns the OAuth2 client configuration used both for linking an account
// and for refreshing its token. Facebook and Instagram share the Facebook app.
func oauthConfig(cfg config.Config, provider models.Provider) *oauth2.Config {
	switch provider {
	case models.ProviderFacebook, models.ProviderInstagram:
		scopes, redirect := facebookScopes, cfg.Facebook.RedirectURI
		if provider == models.ProviderInstagram {
			scopes, redirect = instagramScopes, cfg.Facebook.InstagramRedirectURI
		}
		return &oauth2.Config{
			ClientID:     cfg.Facebook.AppID,
			ClientSecret: cfg.Facebook.AppSecret,
			RedirectURL:  redirect,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   facebook.Endpoint.AuthURL,
				TokenURL:  cfg.Facebook.GraphURL + "/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
	case models.ProviderGoogle:
		endpoint := google.Endpoint
		if cfg.Google.TokenURL != "" {
			endpoint.TokenURL = cfg.Google.TokenURL
		}
		return &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
			Scopes:       googleScopes,
			Endpoint:     endpoint,
		}
	case models.ProviderPinterest:
		return &oauth2.Config{
			ClientID:     cfg.Pinterest.ClientID,
			ClientSecret: cfg.Pinterest.ClientSecret,
			RedirectURL:  cfg.Pinterest.RedirectURI,
			Scopes:       pinterestScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://www.pinterest.com/oauth/",
				TokenURL:  cfg.Pinterest.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
	}
	return nil
}
