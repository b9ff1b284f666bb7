// Package vision wraps the remote vision-capable classifier. Resolvers hand
// it a prompt (plus optionally one image) and parse the free-text reply
// themselves.
package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agewise-backend/monitoring"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

var (
	// ErrClassifierUnavailable is returned once every retry has failed.
	// Callers treat it as "skip to the next strategy", never as fatal.
	ErrClassifierUnavailable = errors.New("vision classifier unavailable")

	ErrEmptyResponse = errors.New("vision classifier returned empty content")
)

const (
	maxRetries     = 3
	initialBackoff = time.Second

	// maxImageBytes caps a fetched listing photo; anything larger is not a
	// certificate or floor plan worth sending.
	maxImageBytes = 8 << 20
)

// Client calls the Gemini API for text and image classification.
type Client struct {
	genai      *genai.Client
	modelName  string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLimiter sets the outbound rate limiter shared with other providers.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMetrics attaches failure counters.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient initializes the Gemini client.
func NewClient(ctx context.Context, apiKey, modelName string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set; vision strategies will be skipped")
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	c := &Client{
		genai:      gc,
		modelName:  modelName,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		timeout:    10 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying API connection.
func (c *Client) Close() error {
	return c.genai.Close()
}

// Classify sends a text-only prompt and returns the raw reply.
func (c *Client) Classify(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, genai.Text(prompt))
}

// ClassifyImage fetches one image and sends it inline with the prompt.
func (c *Client) ClassifyImage(ctx context.Context, prompt, imageURL string) (string, error) {
	format, data, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncExternalFailure("vision")
		}
		return "", fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	return c.generate(ctx, genai.Text(prompt), genai.ImageData(format, data))
}

// generate calls the model with retry and exponential backoff.
func (c *Client) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
		}
	}

	model := c.genai.GenerativeModel(c.modelName)

	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrClassifierUnavailable, ctx.Err())
			}
			backoff *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := model.GenerateContent(callCtx, parts...)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		text := responseText(resp)
		if text == "" {
			lastErr = ErrEmptyResponse
			continue
		}
		return text, nil
	}

	if c.metrics != nil {
		c.metrics.IncExternalFailure("vision")
	}
	c.logger.Warn("vision classification failed",
		zap.String("model", c.modelName),
		zap.Error(lastErr),
	)
	return "", fmt.Errorf("%w: %v", ErrClassifierUnavailable, lastErr)
}

// fetchImage downloads an image and reports its genai format tag.
func (c *Client) fetchImage(ctx context.Context, imageURL string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read image body: %w", err)
	}

	return imageFormat(resp.Header.Get("Content-Type"), imageURL), data, nil
}

func imageFormat(contentType, url string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "webp"):
		return "webp"
	case strings.Contains(ct, "gif"):
		return "gif"
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "jpeg"
	}

	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "png"
	case strings.HasSuffix(lower, ".webp"):
		return "webp"
	case strings.HasSuffix(lower, ".gif"):
		return "gif"
	default:
		return "jpeg"
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}
