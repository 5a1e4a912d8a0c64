// Package research runs a research pass: generate queries with one agent,
// answer each with another and assemble the aggregate.
package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	domres "github.com/kailas-cloud/deepresearch/internal/domain/research"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
	"github.com/kailas-cloud/deepresearch/internal/logger"
	"github.com/kailas-cloud/deepresearch/internal/metrics"
)

// Config holds orchestration settings.
type Config struct {
	ResearchAgent domain.AgentIdentity
	SearchAgent   domain.AgentIdentity
	// Refine enables follow-up rounds up to the request's iteration budget.
	// When false a run makes exactly one pass and the budget is unused.
	Refine bool
	// DefaultBudget replaces the built-in iteration budget for requests that carry none.
	DefaultBudget int
	// RunTimeout bounds a whole run, all rounds and calls included. Zero disables it.
	RunTimeout time.Duration
	// StreamTimeout bounds each agent call from invocation until its stream is drained. Zero disables it.
	StreamTimeout time.Duration
	// Concurrency is the number of search calls in flight. Values below 2 run them one after another.
	Concurrency int
}

// Service orchestrates research runs.
type Service struct {
	cfg      Config
	research Invoker
	search   Invoker
	logger   *zap.Logger
}

// New creates a research service. research generates queries, search answers them.
func New(cfg Config, research, search Invoker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, research: research, search: search, logger: log}
}

// Run executes one research run. On failure no partial result is returned.
func (s *Service) Run(ctx context.Context, req domres.Request) (domres.Aggregate, error) {
	ctx, log := logger.With(ctx, s.logger, zap.String("run_id", uuid.NewString()))
	start := time.Now()

	log.Info("Research run started",
		zap.String("query", req.Query),
		zap.Int("iteration_budget", s.budget(req)),
		zap.Bool("refine", s.cfg.Refine),
	)

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	details, err := s.run(ctx, req)
	if err != nil {
		err = asTimeout(err)
		metrics.ResearchRunsTotal.WithLabelValues("failed").Inc()
		log.Error("Research run failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domres.Aggregate{}, fmt.Errorf("research: %w", err)
	}

	metrics.ResearchRunsTotal.WithLabelValues("completed").Inc()
	log.Info("Research run completed",
		zap.Int("outcomes", len(details)),
		zap.Duration("duration", time.Since(start)),
	)
	return domres.NewAggregate(req.Query, details), nil
}

func (s *Service) run(ctx context.Context, req domres.Request) ([]domres.Outcome, error) {
	queries, err := s.generate(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	details, err := s.fanOut(ctx, queries)
	if err != nil {
		return nil, err
	}
	if !s.cfg.Refine {
		return details, nil
	}

	seen := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		seen[q.Query] = struct{}{}
	}

	for round := 2; round <= s.budget(req); round++ {
		next, err := s.generate(ctx, refinementInput(req.Query, details))
		if err != nil {
			return nil, err
		}
		fresh := unseen(next, seen)
		logger.FromContext(ctx).Debug("Refinement round",
			zap.Int("round", round),
			zap.Int("generated", len(next)),
			zap.Int("new", len(fresh)),
		)
		if len(fresh) == 0 {
			break
		}
		more, err := s.fanOut(ctx, fresh)
		if err != nil {
			return nil, err
		}
		details = append(details, more...)
	}
	return details, nil
}

func (s *Service) budget(req domres.Request) int {
	if req.MaxIterations <= 0 && s.cfg.DefaultBudget > 0 {
		return s.cfg.DefaultBudget
	}
	return req.Budget()
}

// generate asks the research agent for a query set. An unparseable reply yields no queries.
func (s *Service) generate(ctx context.Context, input string) ([]domres.Query, error) {
	res, err := s.call(ctx, s.research, s.cfg.ResearchAgent, domain.RoleDeepResearch, input)
	if err != nil {
		return nil, fmt.Errorf("generate queries: %w", err)
	}
	queries := domres.ParseQuerySet(res.Content)
	metrics.ResearchQueriesGenerated.Observe(float64(len(queries)))
	logger.FromContext(ctx).Debug("Queries generated", zap.Int("count", len(queries)))
	return queries, nil
}

// call invokes agent and drains its reply within the configured timeout.
func (s *Service) call(
	ctx context.Context, inv Invoker, agent domain.AgentIdentity, role domain.Role, input string,
) (stream.Result, error) {
	if s.cfg.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StreamTimeout)
		defer cancel()
	}

	st, err := inv.Invoke(ctx, agent, role, input)
	if err != nil {
		return stream.Result{}, asTimeout(err)
	}
	res, err := stream.Drain(ctx, st)
	if err != nil {
		return stream.Result{}, err //nolint:wrapcheck // already classified by Drain
	}

	if len(res.Traces) > 0 {
		logger.FromContext(ctx).Debug("Agent traces",
			zap.String("role", string(role)),
			zap.Int("count", len(res.Traces)),
		)
	}
	return res, nil
}

func asTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrStreamTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrStreamTimeout, err)
	}
	return err
}
