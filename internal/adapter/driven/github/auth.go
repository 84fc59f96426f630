package github

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtLifetime matches GitHub's 10-minute ceiling with a one-minute safety
// margin: iat is backdated 60s to tolerate clock skew, exp is 9 minutes out.
const (
	jwtClockSkew = 60 * time.Second
	jwtLifetime  = 9 * time.Minute
)

// generateAppJWT mints a GitHub App JWT (RS256) per spec.md §6.
func generateAppJWT(appID string, privateKeyPEM []byte) (string, time.Time, error) {
	key, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parsing GitHub App private key: %w", err)
	}

	now := time.Now()
	iat := now.Add(-jwtClockSkew)
	exp := now.Add(jwtLifetime)

	claims := jwt.MapClaims{
		"iat": iat.Unix(),
		"exp": exp.Unix(),
		"iss": appID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing GitHub App JWT: %w", err)
	}
	return signed, exp, nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found in private key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key (PKCS1 and PKCS8 both failed): %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

// installationAccessToken returns a cached or freshly-exchanged installation
// access token, minting/refreshing the underlying App JWT as needed.
func (c *Client) installationAccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.installationToken != "" && time.Now().Before(c.installationExpiry) {
		return c.installationToken, nil
	}

	if c.jwtToken == "" || time.Now().After(c.jwtExpiry) {
		jwtToken, exp, err := generateAppJWT(c.appID, c.privateKey)
		if err != nil {
			return "", err
		}
		c.jwtToken = jwtToken
		c.jwtExpiry = exp
	}

	installationID, err := c.resolveInstallationID(ctx)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", c.restBase, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("building installation token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchanging installation token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("installation token exchange failed (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding installation token response: %w", err)
	}
	if parsed.Token == "" {
		return "", errors.New("installation token exchange returned an empty token")
	}

	c.installationToken = parsed.Token
	c.installationExpiry = parsed.ExpiresAt.Add(-1 * time.Minute)
	return c.installationToken, nil
}

// resolveInstallationID returns the installation ID to exchange against,
// either a statically configured one, or one auto-selected by matching
// OSSMK_GH_INSTALLATION_OWNER against the account logins in the app's
// installation list.
func (c *Client) resolveInstallationID(ctx context.Context) (string, error) {
	if c.staticInstallID != "" {
		return c.staticInstallID, nil
	}
	if c.installationOwner == "" && c.installationRepo == "" {
		return "", errors.New("GitHub App auth requires GITHUB_APP_INSTALLATION_ID or OSSMK_GH_INSTALLATION_OWNER/_REPO")
	}

	installations, err := c.listAppInstallations(ctx)
	if err != nil {
		return "", err
	}

	// OSSMK_GH_INSTALLATION_REPO only satisfies the configured check above; it
	// is not used for selection. GitHub's installations list is keyed by
	// account, not repo, so matching by owner login is the only selection
	// this performs (a sole installation is taken when nothing matches).
	for _, inst := range installations {
		if c.installationOwner != "" && inst.Account.Login == c.installationOwner {
			return fmt.Sprintf("%d", inst.ID), nil
		}
	}
	if len(installations) == 1 {
		return fmt.Sprintf("%d", installations[0].ID), nil
	}

	return "", fmt.Errorf("no GitHub App installation matched owner %q among %d installations", c.installationOwner, len(installations))
}

type appInstallation struct {
	ID                  int64  `json:"id"`
	RepositorySelection string `json:"repository_selection"`
	Account             struct {
		Login string `json:"login"`
	} `json:"account"`
}

func (c *Client) listAppInstallations(ctx context.Context) ([]appInstallation, error) {
	url := c.restBase + "/app/installations"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building installations request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing app installations: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing app installations failed (status %d)", resp.StatusCode)
	}

	var installations []appInstallation
	if err := json.NewDecoder(resp.Body).Decode(&installations); err != nil {
		return nil, fmt.Errorf("decoding app installations: %w", err)
	}
	return installations, nil
}
