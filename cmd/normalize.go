package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/laser-ci/internal/store"
)

var (
	normalizeVendor  string
	normalizeSegment string
	normalizeNoLLM   bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Extract, disambiguate and normalize stored documents into spec snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, normalizeNoLLM)
		if err != nil {
			return err
		}
		defer env.Close()

		products, err := env.Store.FindProducts(ctx, store.ProductFilter{
			Vendor:  normalizeVendor,
			Segment: normalizeSegment,
		})
		if err != nil {
			return eris.Wrap(err, "normalize: find products")
		}
		if len(products) == 0 {
			return eris.New("normalize: no products match; run ingest first")
		}

		sum, runErr := env.Runner.Run(ctx, products)
		if sum != nil {
			if err := printJSON(cmd.OutOrStdout(), sum); err != nil {
				return err
			}
		}
		return runErr
	},
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeVendor, "vendor", "", "only normalize products of this vendor")
	normalizeCmd.Flags().StringVar(&normalizeSegment, "segment", "", "only normalize products in this segment")
	normalizeCmd.Flags().BoolVar(&normalizeNoLLM, "no-llm", false, "disable LLM escalation for this run")
	rootCmd.AddCommand(normalizeCmd)
}
