package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/laser-ci/internal/benchmark"
	"github.com/sells-group/laser-ci/internal/report"
)

var (
	benchmarkFormat   string
	benchmarkOut      string
	benchmarkBaseline string
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Export the wavelength and power-class comparison against the baseline vendor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "report")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		products, err := st.ListProducts(ctx)
		if err != nil {
			return eris.Wrap(err, "benchmark: list products")
		}
		records, err := st.ListSpecRecords(ctx, "")
		if err != nil {
			return eris.Wrap(err, "benchmark: list spec records")
		}

		baseline := benchmarkBaseline
		if baseline == "" {
			baseline = cfg.Benchmark.BaselineVendor
		}
		rows := benchmark.Compare(records, products, baseline)

		out, err := openOutput(benchmarkOut)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		return writeComparison(out, rows, benchmarkFormat)
	},
}

func writeComparison(w io.Writer, rows []benchmark.ComparisonRow, format string) error {
	switch format {
	case "json", "":
		if rows == nil {
			rows = []benchmark.ComparisonRow{}
		}
		return printJSON(w, rows)
	case "csv":
		return report.WriteCSV(w, report.ComparisonColumns, report.ComparisonRows(rows))
	case "xlsx":
		return report.WriteXLSX(w, "Comparison", report.ComparisonColumns, report.ComparisonRows(rows))
	default:
		return eris.Errorf("unsupported --format %q (want json, csv or xlsx)", format)
	}
}

func init() {
	benchmarkCmd.Flags().StringVar(&benchmarkFormat, "format", "json", "output format: json, csv or xlsx")
	benchmarkCmd.Flags().StringVar(&benchmarkOut, "out", "", "output file (default stdout)")
	benchmarkCmd.Flags().StringVar(&benchmarkBaseline, "baseline", "", "baseline vendor (default from config)")
	rootCmd.AddCommand(benchmarkCmd)
}
