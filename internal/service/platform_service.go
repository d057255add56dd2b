package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/repository"
	"github.com/maheshrc27/socialdash/internal/transfer"
	"golang.org/x/oauth2"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const googleRevokeURL = "https://oauth2.googleapis.com/revoke"

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrAccountNotOwned = errors.New("social account doesn't exist")
)

// PlatformService links provider accounts through OAuth and manages their lifecycle
// from the user's side.
type PlatformService interface {
	GetAuthURL(ctx context.Context, platform, state string) (string, error)
	Callback(ctx context.Context, platform, code, userID string) ([]string, error)
	List(ctx context.Context, userID string) ([]*models.SocialAccount, error)
	Delete(ctx context.Context, userID, accountID string) error
	Revoke(ctx context.Context, userID, accountID string) error
}

type platformService struct {
	cfg        config.Config
	sa         repository.SocialAccountRepository
	httpClient *http.Client
}

func NewPlatformService(cfg config.Config, sa repository.SocialAccountRepository, httpClient *http.Client) PlatformService {
	return &platformService{
		cfg:        cfg,
		sa:         sa,
		httpClient: httpClient,
	}
}

func (s *platformService) GetAuthURL(ctx context.Context, platform, state string) (string, error) {
	provider, ok := models.ParseProvider(platform)
	if !ok {
		return "", ErrUnknownPlatform
	}

	conf := oauthConfig(s.cfg, provider)
	if provider == models.ProviderGoogle {
		return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
	}
	return conf.AuthCodeURL(state), nil
}

// Callback completes the OAuth flow and upserts every account the grant gives access to.
func (s *platformService) Callback(ctx context.Context, platform, code, userID string) ([]string, error) {
	if code == "" {
		return nil, errors.New("code is empty")
	}
	if userID == "" {
		return nil, errors.New("user not found")
	}

	provider, ok := models.ParseProvider(platform)
	if !ok {
		return nil, ErrUnknownPlatform
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	conf := oauthConfig(s.cfg, provider)

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	var accounts []*models.SocialAccount
	switch provider {
	case models.ProviderFacebook, models.ProviderInstagram:
		accounts, err = s.graphAccounts(ctx, provider, token)
	case models.ProviderGoogle:
		accounts, err = s.googleAccounts(ctx, conf, token)
	case models.ProviderPinterest:
		accounts, err = s.pinterestAccounts(ctx, token)
	}
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no %s accounts available for this login", provider)
	}

	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		acc.UserID = userID
		acc.Provider = provider
		id, err := s.sa.Upsert(ctx, acc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	slog.Info("linked social accounts", "user_id", userID, "provider", provider, "count", len(ids))
	return ids, nil
}

// graphAccounts returns the Facebook profile plus its pages, or for Instagram the business
// accounts attached to those pages. Page tokens derived from a long-lived user token do not expire.
func (s *platformService) graphAccounts(ctx context.Context, provider models.Provider, token *oauth2.Token) ([]*models.SocialAccount, error) {
	longLived, err := exchangeGraphToken(ctx, s.httpClient, s.cfg, token.AccessToken)
	if err != nil {
		return nil, err
	}
	userExpiry := time.Now().Add(graphTokenLifetime)
	if longLived.ExpiresIn > 0 {
		userExpiry = GetExpiresAt(int(longLived.ExpiresIn))
	}
	scopes := grantedScopes(token)
	graph := s.cfg.Facebook.GraphURL

	params := url.Values{}
	params.Set("access_token", longLived.AccessToken)
	params.Set("fields", "id,name,access_token,instagram_business_account{id,username,profile_picture_url}")

	var pages transfer.GraphPages
	if err := getJSON(ctx, s.httpClient, graph+"/me/accounts?"+params.Encode(), "", &pages); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	var accounts []*models.SocialAccount

	if provider == models.ProviderInstagram {
		for _, page := range pages.Data {
			ig := page.InstagramBusinessAccount
			if ig == nil {
				continue
			}
			accounts = append(accounts, &models.SocialAccount{
				ProviderAccountID: ig.ID,
				AccountName:       ig.Username,
				AccountType:       models.AccountTypeUser,
				ProfilePicture:    ig.ProfilePictureURL,
				AccessToken:       page.AccessToken,
				LongLivedToken:    page.AccessToken,
				Scopes:            scopes,
			})
		}
		return accounts, nil
	}

	params = url.Values{}
	params.Set("access_token", longLived.AccessToken)
	params.Set("fields", "id,name,picture")

	var me transfer.GraphUser
	if err := getJSON(ctx, s.httpClient, graph+"/me?"+params.Encode(), "", &me); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	accounts = append(accounts, &models.SocialAccount{
		ProviderAccountID: me.ID,
		AccountName:       me.Name,
		AccountType:       models.AccountTypeUser,
		ProfilePicture:    me.Picture.Data.URL,
		AccessToken:       longLived.AccessToken,
		LongLivedToken:    longLived.AccessToken,
		ExpiresAt:         &userExpiry,
		Scopes:            scopes,
	})

	for _, page := range pages.Data {
		accounts = append(accounts, &models.SocialAccount{
			ProviderAccountID: page.ID,
			AccountName:       page.Name,
			AccountType:       models.AccountTypePage,
			AccessToken:       page.AccessToken,
			LongLivedToken:    page.AccessToken,
			Scopes:            scopes,
		})
	}
	return accounts, nil
}

func (s *platformService) googleAccounts(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) ([]*models.SocialAccount, error) {
	svc, err := googleoauth.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, err
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("fetch google profile: %w", err)
	}

	name := info.Name
	if name == "" {
		name = info.Email
	}

	return []*models.SocialAccount{{
		ProviderAccountID: info.Id,
		AccountName:       name,
		AccountType:       models.AccountTypeUser,
		ProfilePicture:    info.Picture,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         tokenExpiry(token),
		Scopes:            grantedScopes(token),
	}}, nil
}

func (s *platformService) pinterestAccounts(ctx context.Context, token *oauth2.Token) ([]*models.SocialAccount, error) {
	var user transfer.PinterestUserAccount
	if err := getJSON(ctx, s.httpClient, s.cfg.Pinterest.APIURL+"/user_account", token.AccessToken, &user); err != nil {
		return nil, fmt.Errorf("fetch pinterest profile: %w", err)
	}

	accountID := user.ID
	if accountID == "" {
		accountID = user.Username
	}
	name := user.BusinessName
	if name == "" {
		name = user.Username
	}

	return []*models.SocialAccount{{
		ProviderAccountID: accountID,
		AccountName:       name,
		AccountType:       models.AccountTypeUser,
		ProfilePicture:    user.ProfileImage,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         tokenExpiry(token),
		Scopes:            grantedScopes(token),
	}}, nil
}

func (s *platformService) List(ctx context.Context, userID string) ([]*models.SocialAccount, error) {
	if userID == "" {
		return nil, errors.New("user id is not valid")
	}

	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts: %w", err)
	}
	return accounts, nil
}

// Delete disconnects an account. Google grants are revoked at the provider first, best effort.
func (s *platformService) Delete(ctx context.Context, userID, accountID string) error {
	if err := s.checkOwner(ctx, userID, accountID); err != nil {
		return err
	}

	account, err := s.sa.GetByID(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrUndecryptable) {
		return err
	}

	if account != nil && account.Provider == models.ProviderGoogle && account.AccessToken != "" {
		if err := s.revokeGoogleAccess(ctx, account.AccessToken); err != nil {
			slog.Warn("could not revoke google grant", "account_id", accountID, "error", err)
		}
	}

	return s.sa.Remove(ctx, accountID)
}

// Revoke keeps the account row but takes it out of use permanently.
func (s *platformService) Revoke(ctx context.Context, userID, accountID string) error {
	if err := s.checkOwner(ctx, userID, accountID); err != nil {
		return err
	}
	return s.sa.UpdateStatus(ctx, accountID, models.AccountStatusRevoked, "revoked by user")
}

func (s *platformService) checkOwner(ctx context.Context, userID, accountID string) error {
	if userID == "" || accountID == "" {
		return errors.New("user id and account id are required")
	}

	owned, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return ErrAccountNotOwned
	}
	return nil
}

func (s *platformService) revokeGoogleAccess(ctx context.Context, accessToken string) error {
	form := url.Values{}
	form.Set("token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleRevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token, status code: %d", resp.StatusCode)
	}
	return nil
}
