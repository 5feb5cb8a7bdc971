// Package passwork is a client for the Passwork password manager API.
//
// A client is created for a host, given an access token (and optionally a
// refresh token) with SetTokens and, for vaults using client-side encryption,
// a master key with SetMasterKey:
//
//	client, err := passwork.NewClient("https://passwork.example.com")
//	if err != nil {
//	    return err
//	}
//	if err := client.SetTokens(accessToken, refreshToken); err != nil {
//	    return err
//	}
//	id, err := client.CreateVault(ctx, "Go Vault", "")
//
// Expired access tokens are refreshed once per request when a refresh token is
// known; the new pair is handed to the configured TokenStore.
package passwork

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	apiPrefix        = "/api/v1"
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "passwork-go"
	maxErrorBody     = 64 << 10
)

// Client talks to one Passwork host.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	store      TokenStore

	tokens *tokenSource

	mu        sync.RWMutex
	masterKey string

	vaultTypesMu sync.Mutex
	vaultTypes   []VaultType
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient         *http.Client
	timeout            time.Duration
	userAgent          string
	store              TokenStore
	insecureSkipVerify bool
}

// WithHTTPClient sets the base HTTP client. Its transport is wrapped to add
// authentication; the client itself is not modified.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithTimeout sets the per-request timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) { o.userAgent = ua }
}

// WithTokenStore persists refreshed tokens.
func WithTokenStore(store TokenStore) Option {
	return func(o *clientOptions) { o.store = store }
}

// WithInsecureSkipVerify disables TLS certificate verification, for
// self-hosted instances with self-signed certificates.
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *clientOptions) { o.insecureSkipVerify = skip }
}

// NewClient returns a client for host, e.g. "https://passwork.example.com".
func NewClient(host string, opts ...Option) (*Client, error) {
	baseURL, err := parseHost(host)
	if err != nil {
		return nil, err
	}

	o := clientOptions{timeout: defaultTimeout, userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(&o)
	}

	base := http.DefaultTransport
	if o.httpClient != nil && o.httpClient.Transport != nil {
		base = o.httpClient.Transport
	}
	if o.insecureSkipVerify {
		t, ok := base.(*http.Transport)
		if !ok {
			return nil, errors.New("insecure TLS requires an *http.Transport")
		}
		t = t.Clone()
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{} // #nosec G402 -- opt-in below
		}
		t.TLSClientConfig.InsecureSkipVerify = true // #nosec G402 -- explicitly requested
		base = t
	}

	ts := &tokenSource{}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base},
		Timeout:   o.timeout,
	}
	if o.httpClient != nil {
		httpClient.CheckRedirect = o.httpClient.CheckRedirect
		httpClient.Jar = o.httpClient.Jar
		if o.httpClient.Timeout > 0 && o.timeout == defaultTimeout {
			httpClient.Timeout = o.httpClient.Timeout
		}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		userAgent:  o.userAgent,
		store:      o.store,
		tokens:     ts,
	}, nil
}

func parseHost(host string) (*url.URL, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("passwork host is required")
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid passwork host %q", host)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid passwork host %q: scheme must be http or https", host)
	}
	if u.Host == "" {
		return nil, errors.Errorf("invalid passwork host %q: missing host name", host)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery, u.Fragment = "", ""
	return u, nil
}

// Host returns the normalized base URL.
func (c *Client) Host() string {
	return c.baseURL.String()
}

// SetTokens sets the access token and the optional refresh token.
func (c *Client) SetTokens(accessToken, refreshToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return errors.Wrap(ErrNoTokens, "cannot set empty access token")
	}
	c.tokens.set(Tokens{AccessToken: accessToken, RefreshToken: strings.TrimSpace(refreshToken)})
	return nil
}

// Tokens returns the current token pair, which changes after a refresh.
func (c *Client) Tokens() Tokens {
	return c.tokens.get()
}

// SetMasterKey enables client-side encryption with masterKey.
func (c *Client) SetMasterKey(masterKey string) error {
	if masterKey == "" {
		return errors.New("master key cannot be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.masterKey = masterKey
	return nil
}

func (c *Client) getMasterKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.masterKey
}

// do performs an API call. in is JSON encoded as the request body when not nil;
// the response body is decoded into out when out is not nil. A 401 caused by an
// expired access token triggers one refresh and one replay.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.tokens.get().AccessToken == "" {
		return ErrNoTokens
	}

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
	}

	status, respBody, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && c.canRefresh(respBody) {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		if status, respBody, err = c.send(ctx, method, path, body); err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		return decodeError(status, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s %s response", method, path)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+apiPrefix+path, reader)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("Failed to close response body")
		}
	}()

	var src io.Reader = resp.Body
	if resp.StatusCode > 299 {
		src = io.LimitReader(resp.Body, maxErrorBody)
	}
	respBody, err := io.ReadAll(src)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "failed to read %s %s response", method, path)
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Passwork API call")
	return resp.StatusCode, respBody, nil
}

func (c *Client) canRefresh(body []byte) bool {
	if c.tokens.get().RefreshToken == "" {
		return false
	}
	apiErr := decodeError(http.StatusUnauthorized, body)
	return apiErr.Code == "" || apiErr.Code == CodeAccessTokenExpired
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refresh exchanges the refresh token for a new pair and stores it.
func (c *Client) refresh(ctx context.Context) error {
	current := c.tokens.get()
	payload, err := json.Marshal(refreshRequest{RefreshToken: current.RefreshToken})
	if err != nil {
		return errors.Wrap(err, "failed to encode refresh request")
	}

	status, body, err := c.send(ctx, http.MethodPost, "/sessions/refresh", payload)
	if err != nil {
		return errors.Wrap(err, "failed to refresh access token")
	}
	if status < 200 || status > 299 {
		return errors.Wrap(decodeError(status, body), "failed to refresh access token")
	}

	var next Tokens
	if err := json.Unmarshal(body, &next); err != nil {
		return errors.Wrap(err, "failed to decode refresh response")
	}
	if next.AccessToken == "" {
		return errors.New("refresh response carries no access token")
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	c.tokens.set(next)
	log.Info().Time("expires_at", next.AccessTokenExpiresAt).Msg("Refreshed Passwork access token")

	if c.store != nil {
		if err := c.store.Save(ctx, next); err != nil {
			// the new pair is usable in memory; only persistence failed
			log.Error().Err(err).Msg("Failed to persist refreshed tokens")
		}
	}
	return nil
}
