package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/config"
	logpkg "github.com/kailas-cloud/deepresearch/internal/logger"
	"github.com/kailas-cloud/deepresearch/internal/version"
)

type runtime struct {
	env string
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:           "deepresearch",
		Short:         "Generate research queries with one agent and answer them with another",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}
	root.SetVersionTemplate("deepresearch " + version.String() + "\n")
	root.CompletionOptions.HiddenDefaultCmd = true
	root.PersistentFlags().StringVar(&rt.env, "env", config.GetEnv(),
		"configuration environment: local, dev, prod or lambda")

	root.AddCommand(newServeCmd(rt))
	root.AddCommand(newLambdaCmd(rt))
	root.AddCommand(newRunCmd(rt))
	root.AddCommand(newVersionCmd())

	return root
}

// boot loads configuration, builds the logger and wires the application.
// The returned context is cancelled on SIGINT or SIGTERM.
func (rt *runtime) boot(cmd *cobra.Command) (context.Context, *app, func(), error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	cfg, err := config.Load(rt.env)
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(rt.env, cfg.Logging.Level)
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting deepresearch",
		zap.String("command", cmd.Name()),
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", rt.env),
		zap.String("agent_backend", cfg.Agents.Backend),
		zap.Bool("cache", cfg.Cache.Enabled),
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		stop()
		return nil, nil, nil, err
	}

	cleanup := func() {
		a.Close()
		_ = logger.Sync()
		stop()
	}
	return ctx, a, cleanup, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
