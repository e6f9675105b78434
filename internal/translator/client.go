// Package translator talks to the AI translation service over an
// OpenAI-compatible chat completion API.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned when no endpoint or API key is set.
	ErrNotConfigured = errors.New("translator: not configured")
	errNoTranslation = errors.New("translator: response carried no translation")
)

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// backoff spaces out attempts at a revision call. A chapter retranslation is
// user-facing, so the schedule stays short.
type backoff struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
}

func (b backoff) delay(attempt int, hint time.Duration) time.Duration {
	d := hint
	if d <= 0 {
		d = b.base << (attempt - 1)
	}
	if d > b.ceiling {
		return b.ceiling
	}
	return d
}

type Client struct {
	cfg     Config
	http    *http.Client
	backoff backoff
	sleep   func(context.Context, time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetry sets how many times a revision is attempted and the first pause
// between attempts. Pauses double and never exceed ten seconds.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.backoff.attempts = attempts
		}
		c.backoff.base = base
	}
}

// WithSleeper replaces the pause between attempts.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleep = func(ctx context.Context, d time.Duration) error {
			sleeper(d)
			return ctx.Err()
		}
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	timeout := 90 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Model:   strings.TrimSpace(cfg.Model),
		},
		http:    &http.Client{Timeout: timeout},
		backoff: backoff{attempts: 3, base: time.Second, ceiling: 10 * time.Second},
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

// Retranslate asks the model for a replacement translation of the whole
// chapter and returns it.
func (c *Client) Retranslate(ctx context.Context, req Request) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(req.OriginalText) == "" {
		return "", errors.New("translator: original text required")
	}
	if strings.TrimSpace(req.Feedback) == "" {
		return "", errors.New("translator: feedback required")
	}

	body, err := json.Marshal(revisionCall{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Temperature:    0.3,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("translator: encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.backoff.attempts; attempt++ {
		translation, err := c.revise(ctx, body)
		if err == nil {
			return translation, nil
		}
		lastErr = err
		hint, retry := retryable(err)
		if !retry || attempt == c.backoff.attempts || ctx.Err() != nil {
			break
		}
		if err := c.sleep(ctx, c.backoff.delay(attempt, hint)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("translator: retranslate: %w", lastErr)
}

type revisionCall struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type revisionReply struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError is a non-2xx answer from the endpoint.
type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

// retryable reports whether another attempt may succeed, with the server's
// requested pause when it sent one.
func retryable(err error) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.retryAfter, se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	// Transport failures and empty replies are worth another try.
	return 0, true
}

// revise performs one round trip and pulls the translation out of the reply.
func (c *Client) revise(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		seconds, _ := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
		return "", &statusError{
			code:       resp.StatusCode,
			body:       strings.TrimSpace(string(raw)),
			retryAfter: time.Duration(seconds) * time.Second,
		}
	}

	var reply revisionReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if reply.Error != nil {
		return "", &statusError{code: http.StatusBadGateway, body: reply.Error.Message}
	}
	for _, choice := range reply.Choices {
		if translation := extractTranslation(choice.Message.Content); translation != "" {
			return translation, nil
		}
	}
	return "", errNoTranslation
}

// extractTranslation reads {"translation": ...} out of model output that may
// be wrapped in a code fence or surrounded by prose.
func extractTranslation(content string) string {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	var payload struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Translation)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
