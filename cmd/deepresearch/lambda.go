package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/domain/tool"
	lambdaTransport "github.com/kailas-cloud/deepresearch/internal/transport/lambda"
)

const functionResearch = "research"

// functionEnv names the function to serve when none is given on the command line.
const functionEnv = "DEEPRESEARCH_FUNCTION"

func newLambdaCmd(rt *runtime) *cobra.Command {
	valid := []string{functionResearch}
	for _, n := range tool.Names {
		valid = append(valid, string(n))
	}

	return &cobra.Command{
		Use:       "lambda [research|tavily|firecrawl|sales]",
		Short:     "Run one function under the AWS Lambda runtime",
		Long:      "Run one function under the AWS Lambda runtime. Without an argument, $" + functionEnv + " selects it (default research).",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: valid,
		RunE: func(cmd *cobra.Command, args []string) error {
			function := functionResearch
			if v := os.Getenv(functionEnv); v != "" {
				function = v
			}
			if len(args) == 1 {
				function = args[0]
			}

			ctx, a, cleanup, err := rt.boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var handler any
			if function == functionResearch {
				handler = lambdaTransport.ResearchHandler(a.research, a.logger)
			} else {
				h, err := lambdaTransport.ToolHandlerFor(tool.Name(function), a.tools, a.logger)
				if err != nil {
					return fmt.Errorf("lambda: %w", err)
				}
				handler = h
			}

			a.logger.Info("Starting Lambda handler", zap.String("function", function))
			return lambdaTransport.Start(ctx, handler) //nolint:wrapcheck // already prefixed
		},
	}
}
