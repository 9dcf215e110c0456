package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/laser-ci/internal/catalog"
)

var (
	ingestCatalogPath string
	ingestVendor      string
	ingestForce       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a product catalog and its documents into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cat, err := catalog.Load(ingestCatalogPath)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "ingest")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := catalog.Ingest(ctx, cat, st, catalog.IngestOptions{
			Vendor: ingestVendor,
			Force:  ingestForce,
		})
		if err != nil {
			return eris.Wrap(err, "ingest")
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCatalogPath, "catalog", "catalog.yaml", "path to the catalog YAML file")
	ingestCmd.Flags().StringVar(&ingestVendor, "vendor", "", "only ingest this vendor (name or alias)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "store documents even when unchanged")
	rootCmd.AddCommand(ingestCmd)
}
