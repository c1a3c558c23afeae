package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// assertionLifetime is the validity window of the signed client assertion.
// Epic rejects assertions that expire more than five minutes out.
const assertionLifetime = 4 * time.Minute

// EpicAuthClient exchanges a signed JWT assertion for a bearer token via
// the SMART Backend Services client-credentials grant. Tokens are not
// cached: callers fetch one token per batch run and reuse it read-only.
type EpicAuthClient struct {
	clientID       string
	keyID          string
	privateKeyPath string
	tokenURL       string
	httpClient     *http.Client
	now            func() time.Time
}

// NewEpicAuthClient creates a new Epic backend-services auth client
func NewEpicAuthClient(config domain.EpicConfig) *EpicAuthClient {
	return &EpicAuthClient{
		clientID:       config.ClientID,
		keyID:          config.KeyID,
		privateKeyPath: config.PrivateKeyPath,
		tokenURL:       config.TokenURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		now: time.Now,
	}
}

// tokenResponse represents the JSON body of a successful token exchange
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// FetchToken builds the signed assertion and exchanges it for a bearer
// token. A missing key file fails before any network call; a non-200
// from the token endpoint surfaces the server's response text.
func (c *EpicAuthClient) FetchToken(ctx context.Context) (string, error) {
	assertion, err := c.buildAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_assertion_type": {clientAssertionType},
		"client_assertion":      {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get token: %s", strings.TrimSpace(string(body)))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access_token")
	}

	return token.AccessToken, nil
}

// buildAssertion signs a short-lived JWT with the locally held private key.
// Issuer and subject are both the registered client ID, audience is the
// token endpoint, and every call gets a fresh jti.
func (c *EpicAuthClient) buildAssertion() (string, error) {
	keyPEM, err := os.ReadFile(c.privateKeyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("private key file %q not found: %w", c.privateKeyPath, err)
		}
		return "", fmt.Errorf("failed to read private key: %w", err)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS384, jwt.MapClaims{
		"iss": c.clientID,
		"sub": c.clientID,
		"aud": c.tokenURL,
		"jti": uuid.New().String(),
		"exp": now.Add(assertionLifetime).Unix(),
	})
	token.Header["kid"] = c.keyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}
