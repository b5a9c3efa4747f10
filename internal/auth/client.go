package auth

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"futurebot/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const (
	requestTimeout = 15 * time.Second

	// RenewWithin is how close to expiry a token becomes due for renewal.
	RenewWithin = 240_000 * time.Millisecond
)

// Token is an access token and the user it belongs to.
type Token struct {
	AccessToken    string    `json:"accessToken"`
	ExpirationTime time.Time `json:"expirationTime"`
	UserID         int64     `json:"userId"`
}

// Stale reports whether the token is already expired at now.
func (t Token) Stale(now time.Time) bool {
	return t.AccessToken == "" || !now.Before(t.ExpirationTime)
}

// RenewalDue reports whether less than RenewWithin remains at now.
func (t Token) RenewalDue(now time.Time) bool {
	return t.ExpirationTime.Sub(now) < RenewWithin
}

// Config holds the login and the location of the token cache.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	AppID      string
	AppVersion string
	CID        string
	Secret     string
	DeviceID   string
	CachePath  string
}

// Client talks to the credential service.
type Client struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

func NewClient(cfg Config, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{cfg: cfg, client: client, now: time.Now}
}

type tokenRequest struct {
	Name       string `json:"name"`
	Password   string `json:"password"`
	AppID      string `json:"appId"`
	AppVersion string `json:"appVersion"`
	CID        string `json:"cid"`
	Sec        string `json:"sec"`
	DeviceID   string `json:"deviceId"`
}

type tokenResponse struct {
	Token
	ErrorText string `json:"errorText"`
}

// Acquire returns the cached token when it is still valid, otherwise requests
// a new one. A stale cache file is removed.
func (c *Client) Acquire(ctx context.Context) (Token, error) {
	if tok, err := c.loadCache(); err == nil {
		if !tok.Stale(c.now()) {
			return tok, nil
		}
		_ = os.Remove(c.cfg.CachePath)
	}
	return c.Request(ctx)
}

// Request asks for a new token with the configured login.
func (c *Client) Request(ctx context.Context) (Token, error) {
	body, err := sonic.ConfigFastest.Marshal(tokenRequest{
		Name:       c.cfg.Username,
		Password:   c.cfg.Password,
		AppID:      c.cfg.AppID,
		AppVersion: c.cfg.AppVersion,
		CID:        c.cfg.CID,
		Sec:        c.cfg.Secret,
		DeviceID:   c.cfg.DeviceID,
	})
	if err != nil {
		return Token{}, err
	}
	tok, err := c.do(ctx, http.MethodPost, "/v1/auth/accesstokenrequest", "", body)
	if err != nil {
		return Token{}, fmt.Errorf("request access token: %w", err)
	}
	return tok, nil
}

// Renew exchanges a valid token for one with a later expiry.
func (c *Client) Renew(ctx context.Context, current Token) (Token, error) {
	tok, err := c.do(ctx, http.MethodGet, "/v1/auth/renewaccesstoken", current.AccessToken, nil)
	if err != nil {
		return Token{}, fmt.Errorf("renew access token: %w", err)
	}
	if tok.UserID == 0 {
		tok.UserID = current.UserID
	}
	return tok, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body []byte) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	r, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return Token{}, err
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(r)
	if err != nil {
		return Token{}, err
	}
	defer resp.Body.Close()

	var data tokenResponse
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Token{}, errors.Wrap(err, "decode token response").With("status", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || data.ErrorText != "" {
		return Token{}, fmt.Errorf("%w: status %d %s", exception.ErrCredentialRejected, resp.StatusCode, data.ErrorText)
	}
	if data.AccessToken == "" {
		return Token{}, exception.ErrCredentialEmpty
	}
	if err := c.storeCache(data.Token); err != nil {
		return Token{}, errors.Wrap(err, "write token cache").With("path", c.cfg.CachePath)
	}
	return data.Token, nil
}

func (c *Client) loadCache() (Token, error) {
	var tok Token
	if c.cfg.CachePath == "" {
		return tok, os.ErrNotExist
	}
	data, err := os.ReadFile(c.cfg.CachePath)
	if err != nil {
		return tok, err
	}
	err = sonic.Unmarshal(data, &tok)
	return tok, err
}

func (c *Client) storeCache(tok Token) error {
	if c.cfg.CachePath == "" {
		return nil
	}
	data, err := sonic.ConfigFastest.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(c.cfg.CachePath, data, 0o600)
}
