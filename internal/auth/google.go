package auth

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Simplici0/pricecalc/internal/store"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// HostedDomain restricts logins to one Google Workspace domain when set.
	HostedDomain string

	// Endpoint overrides, empty means Google's own.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

type GoogleProvider struct {
	oauth        *oauth2.Config
	hostedDomain string
	userInfoURL  string
}

func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: endpoint,
		},
		hostedDomain: strings.ToLower(cfg.HostedDomain),
		userInfoURL:  cmp.Or(cfg.UserInfoURL, googleUserInfoURL),
	}
}

func (p *GoogleProvider) Name() string {
	return store.ProviderGoogle
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")}
	if p.hostedDomain != "" {
		opts = append(opts, oauth2.SetAuthURLParam("hd", p.hostedDomain))
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	HostedDomain  string `json:"hd"`
}

// Exchange trades an authorization code for the Google account behind it.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange google code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build google userinfo request: %w", err)
	}
	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var u googleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode google userinfo: %w", err)
	}

	if u.Email == "" || !u.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}
	if p.hostedDomain != "" && !p.allowed(u) {
		return nil, ErrDomainNotAllowed
	}

	name := u.Name
	if name == "" {
		name = u.Email
	}
	return &Identity{
		Provider:    store.ProviderGoogle,
		Username:    strings.ToLower(u.Email),
		Email:       u.Email,
		DisplayName: name,
	}, nil
}

func (p *GoogleProvider) allowed(u googleUser) bool {
	if strings.EqualFold(u.HostedDomain, p.hostedDomain) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(u.Email), "@"+p.hostedDomain)
}
