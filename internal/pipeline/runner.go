package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/model"
	"github.com/sells-group/laser-ci/internal/monitoring"
)

// RunRecorder persists the lifecycle of a run.
type RunRecorder interface {
	CreateRun(ctx context.Context) (*model.PipelineRun, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts, runErr string) error
}

// ProductSummary is the outcome of one product within a run.
type ProductSummary struct {
	ProductID string          `json:"product_id"`
	Vendor    string          `json:"vendor"`
	Name      string          `json:"name"`
	Counts    model.RunCounts `json:"counts"`
	Error     string          `json:"error,omitempty"`
}

// RunSummary reports a whole run.
type RunSummary struct {
	RunID    string           `json:"run_id,omitempty"`
	Status   model.RunStatus  `json:"status"`
	Counts   model.RunCounts  `json:"counts"`
	Products []ProductSummary `json:"products"`
	Elapsed  time.Duration    `json:"elapsed"`
}

// Runner processes products one at a time.
type Runner struct {
	pipeline *Pipeline
	runs     RunRecorder
	metrics  *monitoring.Metrics
}

// NewRunner creates a Runner. runs may be nil.
func NewRunner(p *Pipeline, runs RunRecorder, metrics *monitoring.Metrics) *Runner {
	return &Runner{pipeline: p, runs: runs, metrics: metrics}
}

// Run processes products sequentially. A failing product is recorded and
// the run continues; cancellation stops the run and marks it failed.
func (r *Runner) Run(ctx context.Context, products []model.Product) (*RunSummary, error) {
	start := time.Now()
	sum := &RunSummary{Status: model.RunStatusComplete}

	if r.runs != nil {
		run, err := r.runs.CreateRun(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		sum.RunID = run.ID
	}
	log := zap.L().With(zap.String("run_id", sum.RunID))
	log.Info("pipeline: run starting", zap.Int("products", len(products)))

	var runErr error
	for _, product := range products {
		if err := ctx.Err(); err != nil {
			runErr = eris.Wrap(err, "pipeline: run cancelled")
			break
		}
		s, err := r.pipeline.RunProduct(ctx, product)
		ps := ProductSummary{
			ProductID: product.ID,
			Vendor:    product.Vendor,
			Name:      product.Name,
			Counts:    s.Counts,
		}
		if err != nil {
			ps.Error = err.Error()
			log.Error("pipeline: product failed", zap.String("product", product.Name), zap.Error(err))
		}
		sum.Counts.Add(s.Counts)
		sum.Products = append(sum.Products, ps)
	}

	errMsg := ""
	if runErr != nil {
		sum.Status = model.RunStatusFailed
		errMsg = runErr.Error()
	}
	sum.Elapsed = time.Since(start)
	r.metrics.ObserveRun(string(sum.Status))

	if r.runs != nil && sum.RunID != "" {
		// The run context may already be cancelled.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := r.runs.FinishRun(finishCtx, sum.RunID, sum.Status, sum.Counts, errMsg); err != nil {
			log.Warn("pipeline: failed to record run result", zap.Error(err))
		}
	}

	log.Info("pipeline: run complete",
		zap.String("status", string(sum.Status)),
		zap.Int("products", sum.Counts.Products),
		zap.Int("models", sum.Counts.Models),
		zap.Int("records", sum.Counts.RecordsPersisted),
		zap.Int("document_failures", sum.Counts.DocumentFailures),
		zap.Int("persist_failures", sum.Counts.PersistFailures),
		zap.Int("escalations", sum.Counts.EscalationsAttempted),
		zap.Int("escalations_failed", sum.Counts.EscalationsFailed),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, runErr
}
