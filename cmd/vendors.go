package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/catalog"
	"github.com/sells-group/laser-ci/internal/store"
)

var (
	cleanCatalogPath string
	cleanDryRun      bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <vendor>",
	Short: "Delete a vendor's products, documents and spec snapshots",
	Long: "Delete every stored product of a vendor together with its raw documents and spec snapshots. " +
		"The vendor may be given by catalog alias. Use --dry-run to see what would be removed.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		vendor, err := resolveVendor(args[0], cleanCatalogPath)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "migrate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		del, err := st.DeleteVendor(ctx, vendor, cleanDryRun)
		if err != nil {
			return eris.Wrap(err, "clean")
		}
		if !cleanDryRun && len(del.Products) > 0 {
			zap.L().Info("vendor deleted",
				zap.String("vendor", del.Vendor),
				zap.Int("products", len(del.Products)),
				zap.Int("documents", del.Documents),
				zap.Int("spec_records", del.SpecRecords),
			)
		}
		formatDeletion(cmd.OutOrStdout(), del)
		return nil
	},
}

var vendorsCmd = &cobra.Command{
	Use:     "vendors",
	Aliases: []string{"list-vendors"},
	Short:   "List stored vendors with product and document counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "migrate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.VendorStats(ctx)
		if err != nil {
			return eris.Wrap(err, "vendors")
		}
		if len(stats) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No vendors found.")
			return nil
		}
		formatVendorStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVar(&cleanCatalogPath, "catalog", "catalog.yaml", "catalog used to resolve vendor aliases; skipped when the file is absent")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "show what would be deleted without deleting")
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(vendorsCmd)
}

// resolveVendor maps a vendor alias to its catalog name. Without a catalog
// file the name is used as given.
func resolveVendor(name, catalogPath string) (string, error) {
	if catalogPath == "" {
		return name, nil
	}
	if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
		return name, nil
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return "", err
	}
	if v, ok := cat.Vendor(name); ok {
		return v.Name, nil
	}
	return name, nil
}

func formatDeletion(out io.Writer, del *store.VendorDeletion) {
	if len(del.Products) == 0 {
		_, _ = fmt.Fprintf(out, "No products stored for vendor %q.\n", del.Vendor)
		return
	}
	verb := "Deleted"
	if del.DryRun {
		verb = "Would delete"
	}
	_, _ = fmt.Fprintf(out, "%s %d products, %d documents and %d spec records of %s:\n",
		verb, len(del.Products), del.Documents, del.SpecRecords, del.Vendor)
	for _, p := range del.Products {
		_, _ = fmt.Fprintf(out, "  - %s\n", p)
	}
	if del.DryRun {
		_, _ = fmt.Fprintln(out, "Dry run: nothing was deleted.")
	}
}

func formatVendorStats(out io.Writer, stats []store.VendorStat) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VENDOR\tPRODUCTS\tHTML DOCS\tPDF DOCS\tSPEC RECORDS")
	_, _ = fmt.Fprintln(w, "------\t--------\t---------\t--------\t------------")
	for _, v := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", v.Vendor, v.Products, v.HTMLDocs, v.PDFDocs, v.SpecRecords)
	}
	_ = w.Flush()
}
