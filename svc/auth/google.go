package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig enables federated sign in when ClientID is set.
type GoogleConfig struct {
	ClientID     string        `env:"GOOGLE_OAUTH_CLIENT_ID"`
	ClientSecret string        `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	RedirectURL  string        `env:"GOOGLE_OAUTH_REDIRECT_URL"`
	Scopes       []string      `env:"GOOGLE_OAUTH_SCOPES" envSeparator:"," envDefault:"openid,https://www.googleapis.com/auth/userinfo.email,https://www.googleapis.com/auth/userinfo.profile"`
	StateTTL     time.Duration `env:"GOOGLE_OAUTH_STATE_TTL" envDefault:"10m"`
}

func (c GoogleConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

// GoogleProfile is the identity asserted by Google.
type GoogleProfile struct {
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleProvider runs the authorization code flow.
type GoogleProvider interface {
	AuthURL(state string) string
	ResolveProfile(ctx context.Context, code string) (GoogleProfile, error)
}

type googleAdapter struct {
	conf        *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogleProvider builds a GoogleProvider on golang.org/x/oauth2.
func NewGoogleProvider(cfg GoogleConfig) GoogleProvider {
	return &googleAdapter{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *googleAdapter) AuthURL(state string) string {
	return a.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (a *googleAdapter) ResolveProfile(ctx context.Context, code string) (GoogleProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return GoogleProfile{}, errors.Join(ErrInvalidOAuthCode, err)
	}

	resp, err := a.conf.Client(ctx, tok).Get(a.userInfoURL)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("fetch google profile: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return GoogleProfile{}, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var u struct {
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return GoogleProfile{}, fmt.Errorf("decode google profile: %w", err)
	}
	return GoogleProfile{
		Email:         u.Email,
		EmailVerified: u.VerifiedEmail,
		Name:          u.Name,
		Picture:       u.Picture,
	}, nil
}
