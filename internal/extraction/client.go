package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/octobees/cardscan/internal/entity"
)

const defaultTimeout = 30 * time.Second

// Image is a captured card photo.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURI encodes the image as an inline base64 data URI.
func (img Image) DataURI() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func (img Image) normalized() (Image, error) {
	if len(img.Data) == 0 {
		return img, ErrUnsupportedImage
	}
	mime := strings.TrimSpace(img.MIMEType)
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(img.Data)
		if idx := strings.IndexByte(mime, ';'); idx >= 0 {
			mime = mime[:idx]
		}
	}
	if !strings.HasPrefix(mime, "image/") {
		return img, ErrUnsupportedImage
	}
	img.MIMEType = mime
	return img, nil
}

// Provider sends one image plus instruction prompt to a vision-language model
// and returns the model's free-form text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, img Image, prompt string) (string, error)
}

// Observer receives one call per extraction attempt.
type Observer interface {
	ObserveExtraction(provider, outcome string, elapsed time.Duration)
}

// Extraction is a successfully parsed provider response.
type Extraction struct {
	Record  entity.ExtractedRecord
	RawText string
}

// Extractor is implemented by Client; consumers depend on this.
type Extractor interface {
	Extract(ctx context.Context, img Image) (*Extraction, error)
}

// Client formats the image, calls the provider and classifies failures.
type Client struct {
	provider Provider
	prompt   string
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker
	observer Observer
	log      zerolog.Logger
}

// ClientOption configures optional Client behaviour.
type ClientOption func(*Client)

// WithPrompt overrides DefaultPrompt.
func WithPrompt(prompt string) ClientOption {
	return func(c *Client) {
		if strings.TrimSpace(prompt) != "" {
			c.prompt = prompt
		}
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithObserver reports outcomes to metrics.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// WithBreakerSettings replaces the default circuit breaker configuration.
func WithBreakerSettings(settings gobreaker.Settings) ClientOption {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// NewClient wraps a provider.
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		prompt:   DefaultPrompt,
		timeout:  defaultTimeout,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(DefaultBreakerSettings(provider.Name(), c.log))
	}
	return c
}

// DefaultBreakerSettings trips after five consecutive provider failures.
func DefaultBreakerSettings(name string, log zerolog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "extraction-" + name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
}

// Extract runs one extraction. Errors are *ProviderUnavailableError,
// *MalformedExtractionError, ErrUnsupportedImage, or the caller's context error.
func (c *Client) Extract(ctx context.Context, img Image) (*Extraction, error) {
	img, err := img.normalized()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	name := c.provider.Name()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.provider.Complete(callCtx, img, c.prompt)
	})
	if err != nil {
		if ctx.Err() != nil {
			c.observe(name, "canceled", start)
			return nil, ctx.Err()
		}
		c.observe(name, "unavailable", start)
		c.log.Warn().Err(err).Str("provider", name).Msg("extraction provider call failed")
		return nil, &ProviderUnavailableError{Provider: name, Err: err}
	}

	text, _ := out.(string)
	parsed := ParseRecord(text)
	if !parsed.OK {
		c.observe(name, "malformed", start)
		c.log.Warn().Str("provider", name).Str("reason", parsed.Reason).Msg("extraction response is not a json object")
		return nil, &MalformedExtractionError{Reason: parsed.Reason, Raw: text}
	}

	c.observe(name, "ok", start)
	return &Extraction{Record: parsed.Record, RawText: text}, nil
}

func (c *Client) observe(provider, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveExtraction(provider, outcome, time.Since(start))
	}
}

var _ Extractor = (*Client)(nil)
