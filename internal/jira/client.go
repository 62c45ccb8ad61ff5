package jira

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kiracore/leadcycle/internal/ticket"
)

const (
	DefaultTimeout   = 60 * time.Second
	DefaultRetryWait = 500 * time.Millisecond
	searchPath       = "/rest/api/2/search"
	maxErrorBody     = 512
)

// ClientConfig holds connection settings for the Jira REST API
type ClientConfig struct {
	BaseURL  string
	Username string
	Token    string

	// Timeout bounds each HTTP request. Zero uses DefaultTimeout.
	Timeout time.Duration
	// Retries is how many times a failed request is repeated. Zero disables retries.
	Retries int
	// RetryWait is the first backoff interval. Zero uses DefaultRetryWait.
	RetryWait time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// SearchRequest is one call to the search endpoint
type SearchRequest struct {
	JQL        string
	StartAt    int
	MaxResults int
	Fields     []string
	Expand     []string
}

// SearchPage is one decoded page of search results
type SearchPage struct {
	Total      int
	StartAt    int
	MaxResults int
	Tickets    []ticket.Ticket
}

// Client talks to the Jira search API
type Client struct {
	baseURL   string
	username  string
	token     string
	timeout   time.Duration
	retries   int
	retryWait time.Duration
	http      *http.Client
	log       *slog.Logger
}

// NewClient creates a new Jira client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid jira base URL %q", cfg.BaseURL)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must not be negative, got %d", cfg.Retries)
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		username:  cfg.Username,
		token:     cfg.Token,
		timeout:   cfg.Timeout,
		retries:   cfg.Retries,
		retryWait: cfg.RetryWait,
		http:      cfg.HTTPClient,
		log:       cfg.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retryWait <= 0 {
		c.retryWait = DefaultRetryWait
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

// Search runs one search request, retrying transient failures
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	endpoint := c.searchURL(req)

	var page *SearchPage
	attempt := 0
	op := func() error {
		attempt++
		p, err := c.do(ctx, endpoint)
		if err != nil {
			return err
		}
		page = p
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryWait
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.retries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.log.Warn("jira request failed, retrying",
			"start_at", req.StartAt,
			"attempt", attempt,
			"wait", wait,
			"error", err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) searchURL(req SearchRequest) string {
	q := url.Values{}
	q.Set("jql", req.JQL)
	q.Set("startAt", strconv.Itoa(req.StartAt))
	q.Set("maxResults", strconv.Itoa(req.MaxResults))
	if len(req.Fields) > 0 {
		q.Set("fields", strings.Join(req.Fields, ","))
	}
	if len(req.Expand) > 0 {
		q.Set("expand", strings.Join(req.Expand, ","))
	}
	return c.baseURL + searchPath + "?" + q.Encode()
}

// do performs a single HTTP round trip. Errors that repeating cannot fix are
// marked permanent.
func (c *Client) do(ctx context.Context, endpoint string) (*SearchPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.SetBasicAuth(c.username, c.token)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug("jira response",
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Code: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
		if serr.Retryable() {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}

	page, err := decodePage(body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return page, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
