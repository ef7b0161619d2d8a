// Package extractor calls a hosted text model to turn a serialized wager
// history into structured pattern sections.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/pkg/logger"
	"github.com/okian/tipster/pkg/metrics"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	collaborator     = "extractor"
	anthropicVersion = "2023-06-01"
)

// Sentinel errors.
var (
	ErrRequest  = errors.New("extractor request failed")
	ErrResponse = errors.New("extractor response unusable")
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client implements profile.Extractor against a messages-style HTTP API.
type Client struct {
	http      *resty.Client
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	model     string
	maxTokens int
	log       logger.Logger
}

// New creates a Client. Requests are paced by a token bucket and guarded
// by a circuit breaker that opens after consecutive failures.
func New(opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger
	if log == nil {
		log = logger.Get().Named("extractor")
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.baseURL, "/")).
		SetTimeout(cfg.timeout).
		SetRetryCount(cfg.retries).
		SetRetryWaitTime(cfg.retryWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("anthropic-version", anthropicVersion).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	if cfg.apiKey != "" {
		httpClient.SetHeader("x-api-key", cfg.apiKey)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        collaborator,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state changed",
				logger.String("circuit", name),
				logger.String("from_state", from.String()),
				logger.String("to_state", to.String()),
			)
		},
	})

	return &Client{
		http:      httpClient,
		breaker:   breaker,
		limiter:   rate.NewLimiter(rate.Limit(cfg.ratePerSec), cfg.burst),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
		log:       log,
	}
}

// Extract sends input to the model and decodes its answer.
func (c *Client) Extract(ctx context.Context, input string) (model.Extraction, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCollaboratorLatency(collaborator, float64(time.Since(start).Milliseconds()))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordCollaboratorError(collaborator, "rate_wait")
		return model.Extraction{}, fmt.Errorf("%w: rate limiter: %w", ErrRequest, err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, input)
	})
	if err != nil {
		kind := "request"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			kind = "circuit_open"
		}
		metrics.RecordCollaboratorError(collaborator, kind)
		if !errors.Is(err, ErrRequest) {
			err = fmt.Errorf("%w: %w", ErrRequest, err)
		}
		return model.Extraction{}, err
	}

	text, _ := out.(string)
	ext, err := Decode(text)
	if err != nil {
		metrics.RecordCollaboratorError(collaborator, "decode")
		return model.Extraction{}, err
	}
	return ext, nil
}

func (c *Client) send(ctx context.Context, input string) (string, error) {
	var (
		result  messagesResponse
		failure apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(messagesRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System:    systemPrompt,
			Messages:  []message{{Role: "user", Content: userPrompt(input)}},
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/messages")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRequest, err)
	}
	if resp.IsError() {
		msg := failure.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrRequest, resp.StatusCode(), msg)
	}

	var b strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// Decode reads the model's answer. A JSON object that fills at least one
// field is preferred; anything else goes through ParseSections.
func Decode(text string) (model.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return model.Extraction{}, fmt.Errorf("%w: empty answer", ErrResponse)
	}
	if raw, ok := jsonObject(text); ok {
		var ext model.Extraction
		if err := json.Unmarshal([]byte(raw), &ext); err == nil && !isEmpty(ext) {
			return ext, nil
		}
	}
	return ParseSections(text), nil
}

func isEmpty(ext model.Extraction) bool {
	return len(ext.Patterns) == 0 &&
		len(ext.PreferredVenues) == 0 &&
		len(ext.PreferredCategories) == 0 &&
		ext.RiskTier == "" &&
		len(ext.SuccessFactors) == 0 &&
		len(ext.RecommendedStrategies) == 0
}

// jsonObject returns the outermost {...} span of text, fenced or not.
func jsonObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
