package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// WebhookPublisher dispatches posts over HTTP to a platform connector
// service. Each supported platform runs behind its own endpoint; the
// connector owns the OAuth dance and talks to the actual network API.
//
// Transport-level retries (connection refused, 5xx) happen inside a single
// Publish call with exponential backoff. Anything still failing after that
// is reported to the caller as one failed dispatch attempt.
type WebhookPublisher struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	backoff    Backoff
}

// WebhookOption configures a WebhookPublisher.
type WebhookOption func(*WebhookPublisher)

// WithHTTPClient replaces the default HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(p *WebhookPublisher) {
		if client != nil {
			p.client = client
		}
	}
}

// WithTransportRetries sets how many times a failed HTTP call is retried
// within a single Publish before giving up.
func WithTransportRetries(n int) WebhookOption {
	return func(p *WebhookPublisher) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithBackoff replaces the retry backoff schedule.
func WithBackoff(b Backoff) WebhookOption {
	return func(p *WebhookPublisher) {
		p.backoff = b
	}
}

// NewWebhookPublisher creates a publisher that posts to the given connector endpoint.
func NewWebhookPublisher(endpoint string, opts ...WebhookOption) (*WebhookPublisher, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	p := &WebhookPublisher{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxRetries: 2,
		backoff: Backoff{
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
			Multiplier:      2,
			JitterFactor:    0.2,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

type webhookPublishRequest struct {
	AccountID   string   `json:"account_id"`
	Handle      string   `json:"handle"`
	AccessToken string   `json:"access_token"`
	Text        string   `json:"text"`
	Hashtags    []string `json:"hashtags,omitempty"`
	MediaURLs   []string `json:"media_urls,omitempty"`
}

type webhookPublishResponse struct {
	PostID string `json:"post_id"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

type webhookProfileResponse struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Handle        string `json:"handle"`
	FollowerCount int    `json:"follower_count"`
	Error         string `json:"error,omitempty"`
}

// Publish implements Publisher.
func (p *WebhookPublisher) Publish(ctx context.Context, account Account, post Post) (*Result, error) {
	body := webhookPublishRequest{
		AccountID:   account.ID.String(),
		Handle:      account.Handle,
		AccessToken: account.AccessToken,
		Text:        post.Text,
		Hashtags:    post.Hashtags,
		MediaURLs:   post.MediaURLs,
	}

	var resp webhookPublishResponse
	if err := p.post(ctx, p.endpoint+"/publish", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrPublishRejected, resp.Error)
	}
	if resp.PostID == "" {
		return nil, fmt.Errorf("%w: connector returned no post id", ErrPublishRejected)
	}

	return &Result{
		PlatformPostID: resp.PostID,
		URL:            resp.URL,
	}, nil
}

// Profile implements Publisher.
func (p *WebhookPublisher) Profile(ctx context.Context, account Account) (*Profile, error) {
	body := webhookPublishRequest{
		AccountID:   account.ID.String(),
		Handle:      account.Handle,
		AccessToken: account.AccessToken,
	}

	var resp webhookProfileResponse
	if err := p.post(ctx, p.endpoint+"/profile", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrPublishRejected, resp.Error)
	}

	return &Profile{
		ID:            resp.ID,
		DisplayName:   resp.DisplayName,
		Handle:        resp.Handle,
		FollowerCount: resp.FollowerCount,
	}, nil
}

// post delivers a JSON request with transport retries. Non-2xx responses
// other than 5xx are terminal; retrying a 4xx would only repeat the failure.
func (p *WebhookPublisher) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal publish request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff.NextInterval(attempt)):
			}
		}

		retryable, err := p.attempt(ctx, url, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", p.maxRetries+1, lastErr)
}

func (p *WebhookPublisher) attempt(ctx context.Context, url string, payload []byte, out any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return true, err
	}

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("connector returned %d: %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("connector returned %d: %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode connector response: %w", err)
	}
	return false, nil
}

// Backoff implements exponential backoff with jitter.
// Jitter prevents thundering herd when multiple dispatchers retry simultaneously.
type Backoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NextInterval calculates the delay before the given retry attempt.
// Formula: min(InitialInterval * (Multiplier ^ (attempt-1)) * (1 ± JitterFactor), MaxInterval)
func (b Backoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := b.InitialInterval
	if initial == 0 {
		initial = time.Second
	}
	maxInterval := b.MaxInterval
	if maxInterval == 0 {
		maxInterval = 30 * time.Second
	}
	multiplier := b.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))

	if b.JitterFactor > 0 {
		randomJitter := (rand.Float64()*2 - 1) * b.JitterFactor
		interval = interval * (1 + randomJitter)
	}

	if interval > float64(maxInterval) {
		interval = float64(maxInterval)
	}

	return time.Duration(interval)
}
