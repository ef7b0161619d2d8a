package extractor

import (
	"time"

	"github.com/okian/tipster/pkg/logger"
)

type config struct {
	baseURL         string
	apiKey          string
	model           string
	maxTokens       int
	timeout         time.Duration
	retries         int
	retryWait       time.Duration
	ratePerSec      float64
	burst           int
	breakerFailures uint32
	breakerCooldown time.Duration
	logger          logger.Logger
}

func defaultConfig() config {
	return config{
		baseURL:         "https://api.anthropic.com/v1",
		model:           "claude-sonnet-4-20250514",
		maxTokens:       1024,
		timeout:         60 * time.Second,
		retries:         2,
		retryWait:       500 * time.Millisecond,
		ratePerSec:      1,
		burst:           1,
		breakerFailures: 3,
		breakerCooldown: 30 * time.Second,
	}
}

// Option configures a Client.
type Option func(*config)

// WithBaseURL sets the API root, e.g. https://api.anthropic.com/v1.
func WithBaseURL(u string) Option {
	return func(c *config) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sets the x-api-key header.
func WithAPIKey(k string) Option {
	return func(c *config) { c.apiKey = k }
}

// WithModel sets the model name.
func WithModel(m string) Option {
	return func(c *config) {
		if m != "" {
			c.model = m
		}
	}
}

// WithMaxTokens bounds the answer length.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTimeout bounds one HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a failed attempt is retried.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *config) {
		if n >= 0 {
			c.retries = n
		}
		if wait > 0 {
			c.retryWait = wait
		}
	}
}

// WithRate sets sustained requests per second and burst.
func WithRate(perSec float64, burst int) Option {
	return func(c *config) {
		if perSec > 0 {
			c.ratePerSec = perSec
		}
		if burst > 0 {
			c.burst = burst
		}
	}
}

// WithBreaker sets consecutive failures before opening and the open period.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(c *config) {
		if failures > 0 {
			c.breakerFailures = failures
		}
		if cooldown > 0 {
			c.breakerCooldown = cooldown
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}
