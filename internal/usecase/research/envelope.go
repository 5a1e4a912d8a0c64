package research

import (
	"context"

	"go.uber.org/zap"

	domres "github.com/kailas-cloud/deepresearch/internal/domain/research"
	"github.com/kailas-cloud/deepresearch/internal/logger"
)

// Handle answers an invocation envelope. Every failure, including an
// undecodable body, becomes the fixed 500 reply.
func (s *Service) Handle(ctx context.Context, env domres.Envelope) domres.Reply {
	req, err := env.Request()
	if err != nil {
		logger.FromContext(ctx).Warn("Rejected research envelope", zap.Error(err))
		return domres.Failed()
	}

	agg, err := s.Run(ctx, req)
	if err != nil {
		return domres.Failed()
	}
	return domres.Succeeded(agg)
}
