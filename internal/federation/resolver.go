package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/dzakira/authcore/internal/domain/entity"
	"github.com/dzakira/authcore/internal/domain/repository"
)

// ErrProvider covers every failure attributable to the identity provider
// leg of the flow: rejected state, failed code exchange, unreachable or
// malformed userinfo. Store faults are returned as-is, not wrapped here.
var ErrProvider = errors.New("identity provider error")

// ProviderConfig describes one OAuth2 authorization-code provider.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// Profile is the verified identity returned by the provider's userinfo
// endpoint.
type Profile struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// DisplayName joins the profile names the way the login screen shows them.
func (p Profile) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(p.GivenName) + " " + strings.TrimSpace(p.FamilyName))
}

// Resolver runs the authorization-code grant end to end and binds the
// resulting identity to a local user record, provisioning one on first
// sight.
type Resolver struct {
	provider ProviderConfig
	oauth    *oauth2.Config
	repo     repository.UserRepository
	states   StateStore
	client   *http.Client
	timeout  time.Duration
	logger   *logrus.Logger
}

func NewResolver(provider ProviderConfig, repo repository.UserRepository, states StateStore, timeout time.Duration, logger *logrus.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		provider: provider,
		oauth: &oauth2.Config{
			ClientID:     provider.ClientID,
			ClientSecret: provider.ClientSecret,
			RedirectURL:  provider.RedirectURL,
			Scopes:       provider.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  provider.AuthURL,
				TokenURL: provider.TokenURL,
			},
		},
		repo:    repo,
		states:  states,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// AuthURL issues a fresh state nonce and builds the provider authorization
// URL embedding client id, redirect URI, scopes, and that state.
func (r *Resolver) AuthURL(ctx context.Context) (string, error) {
	state, err := r.states.Issue(ctx)
	if err != nil {
		return "", err
	}
	url := r.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return url, nil
}

// ExchangeCode trades the authorization code for an access token, with the
// outbound call bounded by the resolver timeout.
func (r *Resolver) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	token, err := r.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", ErrProvider, err)
	}
	return token, nil
}

// FetchProfile retrieves the verified identity profile for the token.
func (r *Resolver) FetchProfile(ctx context.Context, token *oauth2.Token) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.provider.UserInfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	res, err := r.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: userinfo request failed: %v", ErrProvider, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: userinfo returned %s", ErrProvider, res.Status)
	}

	var p Profile
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("%w: userinfo malformed: %v", ErrProvider, err)
	}
	if p.Email == "" {
		return Profile{}, fmt.Errorf("%w: userinfo has no email", ErrProvider)
	}
	return p, nil
}

// Resolve validates the callback state, runs exchange and profile fetch,
// and returns the local record bound to the provider identity. A first
// login provisions a record tagged with the provider and carrying no
// password or biometric; repeat logins reuse the existing record for the
// same email, never duplicating it.
func (r *Resolver) Resolve(ctx context.Context, state, code string) (*entity.UserRecord, Profile, error) {
	ok, err := r.states.Consume(ctx, state)
	if err != nil {
		return nil, Profile{}, err
	}
	if !ok {
		return nil, Profile{}, fmt.Errorf("%w: unknown or replayed state", ErrProvider)
	}

	token, err := r.ExchangeCode(ctx, code)
	if err != nil {
		return nil, Profile{}, err
	}
	profile, err := r.FetchProfile(ctx, token)
	if err != nil {
		return nil, Profile{}, err
	}

	u, err := r.repo.GetByEmail(ctx, profile.Email)
	if err == nil {
		return u, profile, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, Profile{}, err
	}

	u = &entity.UserRecord{
		Username:     profile.Email,
		Email:        profile.Email,
		AuthProvider: r.provider.Name,
	}
	if err := r.repo.Create(ctx, u); err != nil {
		// Two first-logins racing on the same email: the loser reuses the
		// row the winner just created.
		if errors.Is(err, repository.ErrDuplicate) {
			existing, getErr := r.repo.GetByEmail(ctx, profile.Email)
			if getErr != nil {
				return nil, Profile{}, getErr
			}
			return existing, profile, nil
		}
		return nil, Profile{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"provider": r.provider.Name,
		"username": u.Username,
	}).Info("provisioned federated user")
	return u, profile, nil
}
