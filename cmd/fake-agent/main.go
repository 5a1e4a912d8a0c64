// Command fake-agent serves the agent gateway protocol with canned replies, for
// running deepresearch locally with agents.backend=sse.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	domres "github.com/kailas-cloud/deepresearch/internal/domain/research"
	"github.com/kailas-cloud/deepresearch/internal/domain/stream"
	logpkg "github.com/kailas-cloud/deepresearch/internal/logger"
	"github.com/kailas-cloud/deepresearch/internal/transport/sse"
)

type options struct {
	addr      string
	queries   int
	chunkSize int
	delay     time.Duration
	traces    bool
}

func main() {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "fake-agent",
		Short:         "Serve canned agent replies over SSE",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, err := logpkg.NewLogger("local")
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			return run(ctx, opts, logger)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":7070", "listen address")
	cmd.Flags().IntVar(&opts.queries, "queries", 3, "queries per generated query set")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 5, "bytes per chunk frame")
	cmd.Flags().DurationVar(&opts.delay, "delay", 20*time.Millisecond, "pause between frames")
	cmd.Flags().BoolVar(&opts.traces, "traces", true, "emit a trace frame before the reply")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "fake-agent:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newRouter(opts, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Fake agent gateway listening", zap.String("addr", opts.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err //nolint:wrapcheck // top level
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx) //nolint:wrapcheck // top level
}

func newRouter(opts options, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/agents/{agentID}/aliases/{aliasID}/sessions/{sessionID}/text", func(w http.ResponseWriter, r *http.Request) {
		var req sse.InvokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		sessionID := chi.URLParam(r, "sessionID")
		logger.Info("Invocation",
			zap.String("agent_id", chi.URLParam(r, "agentID")),
			zap.String("session_id", sessionID),
			zap.Int("input_len", len(req.InputText)),
		)

		reply := answer(req.InputText)
		if strings.HasPrefix(sessionID, string(domain.RoleDeepResearch)+"-") {
			reply = querySet(req.InputText, opts.queries)
		}
		replay(r.Context(), sse.NewWriter(w), opts, reply, logger)
	})
	return r
}

// querySet returns a query set derived from input. Refinement inputs carry the
// original query on their first line.
func querySet(input string, n int) string {
	topic, _, _ := strings.Cut(input, "\n")
	angles := []string{"recent price trend", "supply factors", "demand outlook", "regional differences", "policy impact"}

	set := struct {
		Queries []domres.Query `json:"queries"`
	}{}
	for i := range n {
		angle := angles[i%len(angles)]
		set.Queries = append(set.Queries, domres.Query{
			Query:        fmt.Sprintf("%s: %s", topic, angle),
			ResearchGoal: "Understand the " + angle,
		})
	}
	data, _ := json.Marshal(set)
	return "```json\n" + string(data) + "\n```"
}

func answer(query string) string {
	return fmt.Sprintf("Summary of web findings for %q: sources agree the topic is active; figures vary by region.", query)
}

// replay streams reply in fixed-size byte chunks, which may split UTF-8 sequences.
func replay(ctx context.Context, sw *sse.Writer, opts options, reply string, logger *zap.Logger) {
	var events []stream.Event
	if opts.traces {
		events = append(events, stream.Trace{Payload: json.RawMessage(`{"orchestrationTrace":{"rationale":{"text":"fake"}}}`)})
	}
	size := max(1, opts.chunkSize)
	for b := []byte(reply); len(b) > 0; {
		n := min(size, len(b))
		events = append(events, stream.Chunk{Bytes: b[:n]})
		b = b[n:]
	}

	sw.Init()
	for _, ev := range events {
		frame, ok := sse.FrameOf(ev)
		if !ok {
			continue
		}
		if err := sw.WriteFrame(frame); err != nil {
			logger.Warn("Client went away", zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(opts.delay):
		}
	}
}
