package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/util"
)

const (
	maxErrorBody    = 4 << 10
	maxResponseBody = 1 << 20
)

// OAuthClient talks to the provider's authorize and token endpoints
// with confidential client credentials.
type OAuthClient struct {
	clientID     string
	clientSecret string
	authURL      string
	tokenURL     string
	redirectURI  string
	scopes       string
	httpClient   *http.Client
	log          *zap.SugaredLogger
}

func NewOAuthClient(cfg *util.SpotifyConfig, log *zap.SugaredLogger) *OAuthClient {
	return &OAuthClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		authURL:      cfg.AuthURL,
		tokenURL:     cfg.TokenURL,
		redirectURI:  cfg.RedirectURI,
		scopes:       cfg.Scopes,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		log:          log,
	}
}

// AuthorizeURL builds the redirect that starts the authorization code flow.
func (c *OAuthClient) AuthorizeURL(state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)
	params.Set("scope", c.scopes)
	params.Set("state", state)

	return c.authURL + "?" + params.Encode()
}

func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (*models.TokenGrant, error) {
	grant, err := c.postToken(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	})
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if grant.RefreshToken == "" {
		return nil, fmt.Errorf("exchange code: %w: missing refresh_token", ErrInvalidTokenResponse)
	}
	return grant, nil
}

// RefreshToken exchanges a refresh token for a new access token.
// The returned grant carries an empty RefreshToken when the provider did not rotate it.
func (c *OAuthClient) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenGrant, error) {
	grant, err := c.postToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return grant, nil
}

func (c *OAuthClient) postToken(ctx context.Context, form url.Values) (*models.TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		var oauthErr oauthErrorResponse
		reason := http.StatusText(resp.StatusCode)
		if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
			reason = oauthErr.Error
			if oauthErr.ErrorDescription != "" {
				reason += ": " + oauthErr.ErrorDescription
			}
		}

		c.log.Warnw("token endpoint returned non-2xx status", "status", resp.StatusCode, "reason", reason)

		if isTemporaryStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: HTTP %d: %s", ErrTemporaryFailure, resp.StatusCode, reason)
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrTokenRejected, resp.StatusCode, reason)
	}

	var grant models.TokenGrant
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&grant); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTokenResponse, err)
	}
	if grant.AccessToken == "" || grant.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: missing access_token or expires_in", ErrInvalidTokenResponse)
	}

	return &grant, nil
}
