package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/oracle"
	"github.com/seantiz/taskroute/internal/platform"
)

// DefaultOracleTimeout bounds a single oracle call.
const DefaultOracleTimeout = 5 * time.Second

// Classifier scores task descriptions. It is safe for concurrent use.
type Classifier struct {
	heuristics []heuristic
	oracle     oracle.Oracle
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithOracle enables the semantic oracle with the given per-call timeout. A
// non-positive timeout selects DefaultOracleTimeout.
func WithOracle(o oracle.Oracle, timeout time.Duration) Option {
	return func(c *Classifier) {
		c.oracle = o
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New creates a classifier from keyword rules. Every complexity factor must
// have exactly one rule.
func New(rules []Rule, logger *slog.Logger, opts ...Option) (*Classifier, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	byFactor := make(map[string]Rule, len(rules))
	for _, r := range rules {
		byFactor[r.Factor] = r
	}
	c := &Classifier{timeout: DefaultOracleTimeout, logger: logger}
	for _, name := range model.FactorNames {
		r, ok := byFactor[name]
		if !ok {
			return nil, fmt.Errorf("no heuristic rule for factor %q", name)
		}
		c.heuristics = append(c.heuristics, compile(r))
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify scores description and recommends platforms from snap. It fails
// only for an empty description; oracle failures degrade to the heuristic.
func (c *Classifier) Classify(ctx context.Context, description string, snap platform.Snapshot) (model.TaskComplexity, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return model.TaskComplexity{}, model.ErrInvalidTaskDescription
	}

	analysis := c.consult(ctx, description)
	tokens := Tokenize(description)

	var factors model.Factors
	for _, h := range c.heuristics {
		if v, ok := analysis.Factors[h.rule.Factor]; ok {
			factors.Set(h.rule.Factor, v)
			continue
		}
		factors.Set(h.rule.Factor, h.score(tokens))
	}

	duration := 0
	if analysis.EstimatedDuration > 0 {
		duration = max(1, int(math.Round(analysis.EstimatedDuration)))
	}

	return model.NewTaskComplexity(factors, duration, Recommend(snap, RecommendCount)), nil
}

// consult asks the oracle, bounded by the classifier timeout. It never fails:
// any problem yields an empty analysis and a logged recoverable event.
func (c *Classifier) consult(ctx context.Context, description string) oracle.Analysis {
	if c.oracle == nil {
		return oracle.Analysis{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		analysis oracle.Analysis
		err      error
	}
	// Buffered so the goroutine can finish after we stop waiting.
	done := make(chan result, 1)
	go func() {
		a, err := c.oracle.Analyze(ctx, description)
		done <- result{a, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		reason := reasonError
		switch {
		case errors.Is(res.err, context.DeadlineExceeded):
			reason = reasonTimeout
		case errors.Is(res.err, oracle.ErrUnparseable):
			reason = reasonUnparseable
		}
		oracleFallbacks.WithLabelValues(reason).Inc()
		c.logger.Warn("oracle unavailable, using keyword heuristic",
			"reason", reason,
			"fallback", "heuristic",
			"error", res.err,
		)
		return oracle.Analysis{}
	}

	if missing := len(model.FactorNames) - len(res.analysis.Factors); missing > 0 {
		oracleFallbacks.WithLabelValues(reasonPartial).Inc()
		c.logger.Info("partial oracle analysis, filling factors from heuristic",
			"missing_factors", missing,
			"fallback", "heuristic",
		)
	}
	return res.analysis
}
