package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pefman/break-the-wall/internal/models"
)

// DefaultBaseURL is the public counter backend the widget was built against.
const DefaultBaseURL = "https://muur-backend.onrender.com"

var (
	// ErrRemote wraps every failure talking to the counter service.
	ErrRemote = errors.New("counter service")
	// ErrMalformed marks a response body that is not the expected JSON shape.
	ErrMalformed = errors.New("malformed response")
)

// Config holds API configuration
type Config struct {
	BaseURL string
	// Timeout of zero leaves the transport default in charge.
	Timeout time.Duration
}

type Client struct {
	config Config
	http   *http.Client
}

func NewClient(baseURL string) *Client {
	return NewClientWithConfig(Config{BaseURL: baseURL})
}

func NewClientWithConfig(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) BaseURL() string { return c.config.BaseURL }

func (c *Client) do(ctx context.Context, method, path string) (*models.ClicksResponse, error) {
	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build %s %s: %v", ErrRemote, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRemote, method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s %s: api status %d", ErrRemote, method, path, resp.StatusCode)
	}
	var out models.ClicksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w: %v", ErrRemote, method, path, ErrMalformed, err)
	}
	return &out, nil
}

// GetCount reads the shared count. A body without a clicks field reads as
// zero, the same as a fresh counter.
func (c *Client) GetCount(ctx context.Context) (int, error) {
	res, err := c.do(ctx, http.MethodGet, "/clicks")
	if err != nil {
		return 0, err
	}
	if res.Clicks == nil {
		return 0, nil
	}
	return *res.Clicks, nil
}

// Increment asks the service to add one punch and returns the new count.
// It is not idempotent and is never retried here.
func (c *Client) Increment(ctx context.Context) (int, error) {
	res, err := c.do(ctx, http.MethodPost, "/click")
	if err != nil {
		return 0, err
	}
	if res.Clicks == nil {
		return 0, fmt.Errorf("%w: POST /click: %w: missing clicks", ErrRemote, ErrMalformed)
	}
	return *res.Clicks, nil
}
