package research

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	domres "github.com/kailas-cloud/deepresearch/internal/domain/research"
)

// fanOut asks the search agent each query. Outcomes keep the order of queries.
// The first failure cancels the rest and fails the whole fan-out.
func (s *Service) fanOut(ctx context.Context, queries []domres.Query) ([]domres.Outcome, error) {
	outcomes := make([]domres.Outcome, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Concurrency))

	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // a prior failure already holds the cause
			}
			res, err := s.call(gctx, s.search, s.cfg.SearchAgent, domain.RoleSearchWeb, q.Query)
			if err != nil {
				return fmt.Errorf("search query %d %q: %w", i, q.Query, err)
			}
			outcomes[i] = domres.NewOutcome(q, res.Content)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped per query above
	}
	// The parent context may have ended between launches without any call failing.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fan-out: %w", err)
	}
	return outcomes, nil
}
