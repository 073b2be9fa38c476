package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/shellsync/internal/record"
)

// Defaults applied by NewClient to zero Config fields.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryInterval  = 500 * time.Millisecond
)

// Config configures a relay client.
type Config struct {
	// BaseURL is the relay root, e.g. https://relay.example.com.
	BaseURL string

	// Token authenticates the user.
	Token string

	// ConnectTimeout bounds TCP connection setup.
	ConnectTimeout time.Duration

	// Timeout bounds each request including reading the body.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// transport errors and 5xx responses. Negative disables retries.
	MaxRetries int

	// RetryInterval is the initial backoff between attempts.
	RetryInterval time.Duration

	Logger *slog.Logger
}

// Client talks to a relay over HTTP.
type Client struct {
	base       *url.URL
	token      string
	http       *http.Client
	maxRetries int
	interval   time.Duration
	logger     *slog.Logger
}

// HTTPError is a non-2xx relay response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the relay.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusUnauthorized
}

// NewClient creates a relay client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("relay url %q: scheme must be http or https", cfg.BaseURL)
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext

	return &Client{
		base:       base,
		token:      cfg.Token,
		http:       &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries: cfg.MaxRetries,
		interval:   cfg.RetryInterval,
		logger:     cfg.Logger,
	}, nil
}

// Status fetches the tip of every chain the relay holds for this user.
func (c *Client) Status(ctx context.Context) (record.Status, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Hosts == nil {
		resp.Hosts = record.NewStatus()
	}
	return resp.Hosts, nil
}

// Push uploads records and returns one result per record.
func (c *Client) Push(ctx context.Context, records []record.Record) ([]PushResult, error) {
	var resp PushResponse
	if err := c.do(ctx, http.MethodPost, "/records", nil, PushRequest{Records: records}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Pull downloads up to limit records of (host, tag) starting at start.
func (c *Client) Pull(ctx context.Context, host record.HostID, tag record.Tag, start record.Idx, limit int) ([]record.Record, error) {
	q := url.Values{}
	q.Set("host", string(host))
	q.Set("tag", string(tag))
	q.Set("start_idx", strconv.FormatInt(start, 10))
	q.Set("limit", strconv.Itoa(limit))

	var resp RecordsResponse
	if err := c.do(ctx, http.MethodGet, "/records", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// do sends one request with bounded exponential backoff. 4xx responses are
// not retried.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := c.once(ctx, method, u.String(), payload, out)
		if err == nil {
			return nil
		}
		var he *HTTPError
		if errors.As(err, &he) && he.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.Debug("relay request failed",
			"method", method,
			"path", path,
			"attempt", attempt,
			"error", err,
		)
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", AuthScheme+" "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
