package normalize

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/laser-ci/internal/model"
	"github.com/sells-group/laser-ci/internal/monitoring"
)

// Config tunes the engine.
type Config struct {
	// SufficiencyThreshold is the number of populated canonical fields at or
	// above which a heuristic record is kept without escalation.
	SufficiencyThreshold int
	// MaxWorkers bounds concurrent model normalization per product.
	MaxWorkers int
	// EscalationTimeout bounds a single escalation call.
	EscalationTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SufficiencyThreshold: 10,
		MaxWorkers:           5,
		EscalationTimeout:    60 * time.Second,
	}
}

// Result is the outcome for one model.
type Result struct {
	Model     string
	Record    model.SpecRecord
	Skipped   bool
	Escalated bool
	// EscalationErr is set when escalation was attempted and failed; Record
	// then holds the heuristic result.
	EscalationErr error
	// Err is set when the model could not be processed at all.
	Err error
}

// Stats tallies one NormalizeProduct call.
type Stats struct {
	Processed            int `json:"processed"`
	Skipped              int `json:"skipped"`
	Failed               int `json:"failed"`
	EscalationsAttempted int `json:"escalations_attempted"`
	EscalationsFailed    int `json:"escalations_failed"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Processed += other.Processed
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.EscalationsAttempted += other.EscalationsAttempted
	s.EscalationsFailed += other.EscalationsFailed
}

// Engine normalizes models heuristically and escalates sparse results.
type Engine struct {
	cfg       Config
	escalator Escalator
	provider  string
	metrics   *monitoring.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithEscalator enables escalation through esc, labelled provider in logs
// and metrics.
func WithEscalator(esc Escalator, provider string) Option {
	return func(e *Engine) {
		e.escalator = esc
		e.provider = provider
	}
}

// WithMetrics records engine outcomes to m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine. Zero config values fall back to defaults.
func NewEngine(cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.SufficiencyThreshold <= 0 {
		cfg.SufficiencyThreshold = def.SufficiencyThreshold
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.EscalationTimeout <= 0 {
		cfg.EscalationTimeout = def.EscalationTimeout
	}
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NormalizeModel produces the record for one model. An empty spec map is
// skipped. Escalation errors never fail the model; the heuristic record is
// returned with EscalationErr set.
func (e *Engine) NormalizeModel(ctx context.Context, product model.Product, modelName string, specs model.RawSpecMap) Result {
	res := Result{Model: modelName}
	if len(specs) == 0 {
		res.Skipped = true
		e.metrics.ObserveModel("skipped")
		return res
	}

	res.Record = Heuristic(modelName, specs)
	populated := res.Record.Specs.Populated()
	if e.escalator == nil || populated >= e.cfg.SufficiencyThreshold {
		e.metrics.ObserveModel("heuristic")
		return res
	}

	log := zap.L().With(
		zap.String("product", product.Name),
		zap.String("model", modelName),
		zap.String("provider", e.provider),
	)

	res.Escalated = true
	escCtx, cancel := context.WithTimeout(ctx, e.cfg.EscalationTimeout)
	defer cancel()

	start := time.Now()
	esc, err := e.escalator.Escalate(escCtx, EscalationRequest{
		RawSpecs: specs,
		Context:  EscalationContext(modelName, product.Name),
	})
	if err != nil {
		res.EscalationErr = err
		e.metrics.ObserveEscalation(e.provider, "error", time.Since(start))
		e.metrics.ObserveModel("heuristic")
		log.Warn("normalize: escalation failed, keeping heuristic record",
			zap.Int("populated", populated),
			zap.Error(err),
		)
		return res
	}
	e.metrics.ObserveEscalation(e.provider, "ok", time.Since(start))
	e.metrics.ObserveModel("escalated")

	res.Record = mergeEscalation(res.Record, esc)
	log.Debug("normalize: escalated",
		zap.Int("heuristic_fields", populated),
		zap.Int("merged_fields", res.Record.Specs.Populated()),
	)
	return res
}

// NormalizeProduct normalizes every model group of a product with a bounded
// worker pool. Results are ordered by model name.
func (e *Engine) NormalizeProduct(ctx context.Context, product model.Product, groups map[string]model.RawSpecMap) ([]Result, Stats) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Result, len(names))
	var mu sync.Mutex
	var stats Stats

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.MaxWorkers)
	for i, name := range names {
		g.Go(func() error {
			var res Result
			if err := ctx.Err(); err != nil {
				res = Result{Model: name, Err: err}
			} else {
				res = e.NormalizeModel(ctx, product, name, groups[name])
			}
			results[i] = res

			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.Err != nil:
				stats.Failed++
			case res.Skipped:
				stats.Skipped++
			default:
				stats.Processed++
			}
			if res.Escalated {
				stats.EscalationsAttempted++
				if res.EscalationErr != nil {
					stats.EscalationsFailed++
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, stats
}

// mergeEscalation fills empty heuristic fields from esc. Heuristic values
// are never overwritten, and escalated vendor_fields only add keys the
// heuristic record does not already carry.
func mergeEscalation(rec model.SpecRecord, esc *Escalation) model.SpecRecord {
	if esc == nil {
		return rec
	}
	out := rec
	out.VendorFields = rec.VendorFields.Clone()
	if out.VendorFields == nil {
		out.VendorFields = model.RawSpecMap{}
	}

	for _, key := range model.CanonicalKeys {
		if out.Specs.IsSet(key) || !esc.Specs.IsSet(key) {
			continue
		}
		if dst := out.Specs.Float(key); dst != nil {
			*dst = *esc.Specs.Float(key)
			continue
		}
		if dst := out.Specs.Bool(key); dst != nil {
			*dst = *esc.Specs.Bool(key)
			continue
		}
		switch key {
		case model.KeyPolarization:
			out.Specs.Polarization = esc.Specs.Polarization
		case model.KeyInterfaces:
			out.Specs.Interfaces = append([]string(nil), esc.Specs.Interfaces...)
		case model.KeyDimensionsMM:
			out.Specs.DimensionsMM = esc.Specs.DimensionsMM
		}
	}

	for k, v := range esc.VendorFields {
		if _, exists := out.VendorFields[k]; !exists {
			out.VendorFields[k] = v
		}
	}
	return out
}
