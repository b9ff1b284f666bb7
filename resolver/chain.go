// Package resolver provides the fallback-cascade framework shared by every
// evidence extractor: an ordered list of strategies tried in priority order,
// stopping at the first result that clears the chain's confidence floor.
package resolver

import (
	"context"
	"fmt"

	"agewise-backend/models"
	"agewise-backend/monitoring"

	"go.uber.org/zap"
)

// DefaultConfidenceFloor is the minimum confidence a strategy result must
// carry to terminate the chain.
const DefaultConfidenceFloor = 50

// Strategy is one extraction attempt. Implementations are pure given their
// inputs; they report "nothing found" by returning (nil, nil) and actual
// failure (timeouts, provider errors) by returning an error. Either way the
// chain advances.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, listing *models.PropertyListing) (*models.Evidence, error)
}

// Chain executes strategies in priority order. It is the only place where
// per-strategy failures are caught and converted into "try the next one".
type Chain struct {
	name       string
	floor      int
	strategies []Strategy
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithFloor overrides the confidence floor.
func WithFloor(floor int) ChainOption {
	return func(c *Chain) { c.floor = floor }
}

// WithMetrics attaches strategy counters.
func WithMetrics(m *monitoring.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// NewChain creates a chain over the given strategies.
func NewChain(name string, logger *zap.Logger, strategies []Strategy, opts ...ChainOption) *Chain {
	c := &Chain{
		name:       name,
		floor:      DefaultConfidenceFloor,
		strategies: strategies,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve runs the chain. It always returns evidence: the first strategy
// result meeting the floor, or the terminal not-found evidence at
// confidence 0 once every strategy has been tried.
func (c *Chain) Resolve(ctx context.Context, listing *models.PropertyListing) *models.Evidence {
	for _, strategy := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		if c.metrics != nil {
			c.metrics.IncStrategyAttempt(c.name, strategy.Name())
		}

		ev, err := c.attempt(ctx, strategy, listing)
		if err != nil {
			c.logger.Warn("strategy failed, advancing",
				zap.String("chain", c.name),
				zap.String("strategy", strategy.Name()),
				zap.String("input_excerpt", excerpt(listing)),
				zap.Error(err),
			)
			continue
		}
		if ev == nil {
			continue
		}

		ev.ClampConfidence()
		if ev.Confidence < c.floor {
			c.logger.Debug("strategy below confidence floor",
				zap.String("chain", c.name),
				zap.String("strategy", strategy.Name()),
				zap.Int("confidence", ev.Confidence),
			)
			continue
		}

		if ev.Strategy == "" {
			ev.Strategy = strategy.Name()
		}
		if c.metrics != nil {
			c.metrics.IncStrategyHit(c.name, strategy.Name())
		}
		return ev
	}

	return c.NotFound()
}

// NotFound is the terminal evidence returned when the chain is exhausted.
func (c *Chain) NotFound() *models.Evidence {
	return &models.Evidence{
		Confidence: 0,
		Strategy:   "none",
		Rationale:  fmt.Sprintf("no %s evidence found in any source", c.name),
	}
}

// attempt runs one strategy, converting panics into errors so a misbehaving
// extractor can never abort resolution.
func (c *Chain) attempt(ctx context.Context, s Strategy, listing *models.PropertyListing) (ev *models.Evidence, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev = nil
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Attempt(ctx, listing)
}

// excerpt trims the listing text for log lines.
func excerpt(listing *models.PropertyListing) string {
	const max = 120
	if listing == nil {
		return ""
	}
	if len(listing.Text) <= max {
		return listing.Text
	}
	return listing.Text[:max]
}

// StrategyFunc adapts a plain function to the Strategy interface.
type StrategyFunc struct {
	StrategyName string
	Fn           func(ctx context.Context, listing *models.PropertyListing) (*models.Evidence, error)
}

func (s StrategyFunc) Name() string { return s.StrategyName }

func (s StrategyFunc) Attempt(ctx context.Context, listing *models.PropertyListing) (*models.Evidence, error) {
	return s.Fn(ctx, listing)
}
