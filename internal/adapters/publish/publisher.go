package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tipster/internal/adapters/repository"
	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/internal/domain/types"
	"github.com/okian/tipster/pkg/logger"
	"github.com/okian/tipster/pkg/metrics"
	"golang.org/x/time/rate"
)

// Publishing defaults.
const (
	DefaultMinConfidence = 0.8
	DefaultLimit         = 3
	DefaultPerMinute     = 6
)

// Querier is the read side the publisher draws from.
type Querier interface {
	Query(ctx context.Context, f repository.Filter) ([]model.Recommendation, error)
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMinConfidence sets the publishing gate.
func WithMinConfidence(v float64) Option {
	return func(p *Publisher) { p.minConfidence = v }
}

// WithLimit sets how many recommendations one run publishes.
func WithLimit(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithPerMinute paces messages. Values <= 0 disable pacing.
func WithPerMinute(n int) Option {
	return func(p *Publisher) {
		if n <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// Publisher posts the strongest recommendations to a sink.
type Publisher struct {
	source        Querier
	sink          Sink
	minConfidence float64
	limit         int
	limiter       *rate.Limiter
	log           logger.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(source Querier, sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		source:        source,
		sink:          sink,
		minConfidence: DefaultMinConfidence,
		limit:         DefaultLimit,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/DefaultPerMinute), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("publisher")
	}
	return p
}

// Publish sends up to limit recommendations at or above the confidence
// gate. A failed send is logged and the rest still go out; the joined
// errors are returned with the count actually sent.
func (p *Publisher) Publish(ctx context.Context) (int, error) {
	minConf := p.minConfidence
	recs, err := p.source.Query(ctx, repository.Filter{MinConfidence: &minConf, Limit: p.limit})
	if err != nil {
		metrics.RecordPublish("query_error")
		return 0, fmt.Errorf("query recommendations: %w", err)
	}

	var errs []error
	sent := 0
	for _, rec := range recs {
		if err := p.limiter.Wait(ctx); err != nil {
			metrics.RecordPublish("cancelled")
			errs = append(errs, err)
			break
		}
		if err := p.sink.Send(ctx, Format(rec)); err != nil {
			metrics.RecordPublish("failed")
			p.log.Error(ctx, "publish failed", logger.String("key", rec.Key.String()), logger.Error(err))
			errs = append(errs, err)
			continue
		}
		metrics.RecordPublish("sent")
		sent++
	}

	if s, ok := p.sink.(Summarizer); ok {
		if err := s.Summarize(ctx, types.Rank(recs)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(recs) == 0 {
		metrics.RecordPublish("empty")
	}
	p.log.Info(ctx, "publish run finished", logger.Int("candidates", len(recs)), logger.Int("sent", sent))
	return sent, errors.Join(errs...)
}
