package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	domres "github.com/kailas-cloud/deepresearch/internal/domain/research"
)

func newRunCmd(rt *runtime) *cobra.Command {
	var (
		maxIterations int
		envelope      bool
	)

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Run one research pass and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := rt.boot(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			req := domres.Request{Query: strings.Join(args, " "), MaxIterations: maxIterations}

			var out any
			if envelope {
				body, err := json.Marshal(req)
				if err != nil {
					return fmt.Errorf("encode request: %w", err)
				}
				out = a.research.Handle(ctx, domres.Envelope{Body: body})
			} else {
				agg, err := a.research.Run(ctx, req)
				if err != nil {
					return err //nolint:wrapcheck // prefixed by the service
				}
				out = agg
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(out) //nolint:wrapcheck // stdout
		},
	}
	cmd.Flags().IntVarP(&maxIterations, "max-iterations", "n", 0, "iteration budget (used when refinement is enabled)")
	cmd.Flags().BoolVar(&envelope, "envelope", false, "print the {statusCode, body} reply instead of the bare result")
	return cmd
}
