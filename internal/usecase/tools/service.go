// Package tools answers the action-group calls agents make to search the web
// and look up sales data.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/action"
	"github.com/kailas-cloud/deepresearch/internal/domain/tool"
	"github.com/kailas-cloud/deepresearch/internal/logger"
)

// internalServerError is the body of a failed sales lookup.
const internalServerError = "Internal Server Error"

// Config holds handler settings.
type Config struct {
	SalesRequestPage string
	SalesTopN        int
}

// Service dispatches tool calls. A nil provider leaves its tool unconfigured.
type Service struct {
	cfg       Config
	tavily    WebSearcher
	firecrawl PageSearcher
	sales     SalesSource
	logger    *zap.Logger
}

// New creates the tool service.
func New(cfg Config, tavily WebSearcher, firecrawl PageSearcher, sales SalesSource, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, tavily: tavily, firecrawl: firecrawl, sales: sales, logger: log}
}

// Handle routes in to the named tool.
func (s *Service) Handle(ctx context.Context, name tool.Name, in action.Input) (action.Output, error) {
	switch name {
	case tool.Tavily:
		return s.Tavily(ctx, in)
	case tool.Firecrawl:
		return s.Firecrawl(ctx, in)
	case tool.Sales:
		return s.Sales(ctx, in)
	default:
		return action.Output{}, fmt.Errorf("tool %q: %w", name, domain.ErrNotFound)
	}
}

// Tavily searches the web for the "query" property.
func (s *Service) Tavily(ctx context.Context, in action.Input) (action.Output, error) {
	if s.tavily == nil {
		return action.Output{}, fmt.Errorf("tavily: api key is not set: %w", domain.ErrToolNotConfigured)
	}
	query, err := requiredQuery(in)
	if err != nil {
		return action.Output{}, err
	}

	raw, err := s.tavily.Search(ctx, query)
	if err != nil {
		return action.Output{}, fmt.Errorf("tavily search: %w", err)
	}
	return action.OK(in, wrap("tavily_data", raw)), nil
}

// Firecrawl searches and scrapes the web for the "query" property.
func (s *Service) Firecrawl(ctx context.Context, in action.Input) (action.Output, error) {
	if s.firecrawl == nil {
		return action.Output{}, fmt.Errorf("firecrawl: api key is not set: %w", domain.ErrToolNotConfigured)
	}
	query, err := requiredQuery(in)
	if err != nil {
		return action.Output{}, err
	}

	pages, err := s.firecrawl.Search(ctx, query)
	if err != nil {
		return action.Output{}, fmt.Errorf("firecrawl search: %w", err)
	}
	raw, err := json.Marshal(pages)
	if err != nil {
		return action.Output{}, fmt.Errorf("encode pages: %w", err)
	}
	logger.FromContext(ctx).Debug("Firecrawl results", zap.Int("pages", len(pages.Data)))
	return action.OK(in, wrap("firecrawl_data", raw)), nil
}

// Sales looks up shop sales for the "data" object property. Failures are
// answered in the envelope with status 500 rather than returned.
// An unreachable sales API counts as an empty result.
func (s *Service) Sales(ctx context.Context, in action.Input) (action.Output, error) {
	log := logger.FromContext(ctx)
	if s.sales == nil {
		log.Error("Sales tool called without an endpoint", zap.Error(domain.ErrToolNotConfigured))
		return action.Reply(in, http.StatusInternalServerError, internalServerError), nil
	}

	var q tool.SalesQuery
	// The last matching property wins.
	found := false
	for _, p := range in.Properties() {
		if p.Name == "data" && p.Type == "object" && p.Value != "" {
			q = tool.ParseSalesQuery(p.Value, s.cfg.SalesRequestPage)
			found = true
		}
	}
	if !found {
		q = tool.ParseSalesQuery("", s.cfg.SalesRequestPage)
	}

	data, err := s.sales.Trend(ctx, q)
	if err != nil {
		log.Warn("Sales lookup failed, answering with empty data", zap.Error(err))
		data = tool.SalesData{}
	}

	raw, err := json.Marshal(data.Summarize(s.cfg.SalesTopN))
	if err != nil {
		log.Error("Failed to encode sales summary", zap.Error(err))
		return action.Reply(in, http.StatusInternalServerError, internalServerError), nil
	}
	return action.OK(in, wrap("scale_data", raw)), nil
}

// requiredQuery returns the first "query" property. Empty counts as missing.
func requiredQuery(in action.Input) (string, error) {
	p, ok := in.Property("query", "")
	if !ok || p.Value == "" {
		return "", fmt.Errorf("query parameter is required: %w", domain.ErrInvalidToolInput)
	}
	return p.Value, nil
}

func wrap(tag string, payload []byte) string {
	return "<" + tag + ">" + string(payload) + "</" + tag + ">"
}
