// Package graph is a hand-rolled Microsoft Graph mail client: OAuth2
// client-credentials token source, paginated message listing with the
// bounce-notice post-filter, batched mutations and sending. Only the narrow
// surface the pipeline needs is implemented.
package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ignite/chartermatch/internal/livelog"
	"github.com/ignite/chartermatch/internal/pkg/httpretry"
)

// DefaultBaseURL is the production Graph endpoint.
const DefaultBaseURL = "https://graph.microsoft.com"

// defaultFolders are the mailbox folders scanned when none are configured.
// Brokers circulate through junk folders often enough that skipping junk
// loses real positions.
var defaultFolders = []string{"inbox", "junkemail"}

// Config holds one mailbox's app registration and read options.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// UserID selects /users/{id}; empty selects /me (delegated tokens).
	UserID string

	// BaseURL overrides the Graph endpoint, for tests and local stubs.
	BaseURL string
	// TokenURL overrides the token endpoint; derived from TenantID when
	// empty.
	TokenURL string

	Folders    []string
	BatchSize  int
	UnseenOnly bool
	OrderDesc  bool
	Timeout    time.Duration
}

// Client talks to one mailbox.
type Client struct {
	base       string
	userID     string
	folders    []string
	batchSize  int
	unseenOnly bool
	orderDesc  bool
	http       httpretry.HTTPDoer
	log        *livelog.Log
}

// NewClient builds a client with a refreshing client-credentials token
// source behind a retrying transport.
func NewClient(cfg Config, log *livelog.Log) (*Client, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("graph: tenant id, client id and client secret are required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	folders := cfg.Folders
	if len(folders) == 0 {
		folders = defaultFolders
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	// The token source reuses this client for refreshes.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient,
		&http.Client{Timeout: timeout})

	return &Client{
		base:       base,
		userID:     cfg.UserID,
		folders:    folders,
		batchSize:  batchSize,
		unseenOnly: cfg.UnseenOnly,
		orderDesc:  cfg.OrderDesc,
		http:       httpretry.NewRetryClient(cc.Client(tokenCtx), 3),
		log:        log,
	}, nil
}

// userPath returns the /v1.0 mailbox root: /users/{id} or /me.
func (c *Client) userPath() string {
	if c.userID != "" {
		return "/users/" + url.PathEscape(c.userID)
	}
	return "/me"
}

func (c *Client) userURL() string {
	return c.base + "/v1.0" + c.userPath()
}

// Probe performs one authenticated call so boot fails fast on a bad app
// registration.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL()+"?$select=id", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph probe failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph probe failed: %s - %s", resp.Status, string(body))
	}
	return nil
}
