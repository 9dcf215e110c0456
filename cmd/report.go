package main

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/benchmark"
	"github.com/sells-group/laser-ci/internal/report"
)

var (
	reportDays     int
	reportFormat   string
	reportOut      string
	reportBaseline string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the monthly spec change report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if reportDays > 0 {
			cfg.Benchmark.ReportDays = reportDays
		}
		st, err := openStore(ctx, "report")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		baseline := reportBaseline
		if baseline == "" {
			baseline = cfg.Benchmark.BaselineVendor
		}
		rep, err := benchmark.MonthlyReport(ctx, st, time.Now().UTC(), cfg.Benchmark.ReportDays, baseline)
		if err != nil {
			return eris.Wrap(err, "report")
		}

		out, err := openOutput(reportOut)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		if err := renderReport(out, rep, reportFormat); err != nil {
			return err
		}
		zap.L().Info("report written",
			zap.String("format", reportFormat),
			zap.Int("new_entrants", len(rep.NewEntrants)),
			zap.Int("changes", len(rep.Changes)),
		)
		return nil
	},
}

func renderReport(w io.Writer, rep *benchmark.Report, format string) error {
	md := report.Markdown(rep)
	switch format {
	case "md", "":
		_, err := io.WriteString(w, md)
		return eris.Wrap(err, "write report")
	case "html":
		page, err := report.HTML(report.PageTitle, md)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, page)
		return eris.Wrap(err, "write report")
	case "json":
		return printJSON(w, rep)
	default:
		return eris.Errorf("unsupported --format %q (want md, html or json)", format)
	}
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "lookback window in days (default from config)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "output format: md, html or json")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "output file (default stdout)")
	reportCmd.Flags().StringVar(&reportBaseline, "baseline", "", "baseline vendor (default from config)")
	rootCmd.AddCommand(reportCmd)
}
