// Package pipeline runs the per-product stages that turn raw documents into
// persisted canonical spec records.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/disambiguate"
	"github.com/sells-group/laser-ci/internal/extract"
	"github.com/sells-group/laser-ci/internal/model"
	"github.com/sells-group/laser-ci/internal/monitoring"
	"github.com/sells-group/laser-ci/internal/normalize"
)

// DocumentSource lists the raw documents fetched for a product.
type DocumentSource interface {
	ListRawDocuments(ctx context.Context, productID string) ([]model.RawDocument, error)
}

// RecordSink appends a canonical spec snapshot.
type RecordSink interface {
	InsertSpecRecord(ctx context.Context, rec model.CanonicalSpecRecord) (*model.CanonicalSpecRecord, error)
}

// State is the value passed from stage to stage. Stages never mutate the
// State they receive; they return a copy with their own fields set.
type State struct {
	Product    model.Product
	SnapshotTS time.Time

	Documents []model.RawDocument
	// Extracted is aligned with Documents; a failed document has a nil map.
	Extracted []model.RawSpecMap
	Merged    model.RawSpecMap
	Groups    map[string]model.RawSpecMap
	Results   []normalize.Result
	Persisted []model.CanonicalSpecRecord

	Counts model.RunCounts
}

// StageFunc is one step of the per-product pipeline.
type StageFunc func(ctx context.Context, s State) (State, error)

// Stage names a StageFunc for logging.
type Stage struct {
	Name string
	Run  StageFunc
}

// Pipeline holds the collaborators the stages need.
type Pipeline struct {
	docs     DocumentSource
	sink     RecordSink
	splitter *disambiguate.Splitter
	engine   *normalize.Engine
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// New creates a Pipeline. A nil splitter uses disambiguate.New.
func New(docs DocumentSource, sink RecordSink, splitter *disambiguate.Splitter, engine *normalize.Engine, metrics *monitoring.Metrics) *Pipeline {
	if splitter == nil {
		splitter = disambiguate.New()
	}
	return &Pipeline{
		docs:     docs,
		sink:     sink,
		splitter: splitter,
		engine:   engine,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Stages returns the ordered stages of a product run.
func (p *Pipeline) Stages() []Stage {
	return []Stage{
		{Name: "load", Run: p.LoadDocuments},
		{Name: "extract", Run: p.ExtractDocuments},
		{Name: "merge", Run: MergeSpecs},
		{Name: "disambiguate", Run: p.Disambiguate},
		{Name: "normalize", Run: p.Normalize},
		{Name: "persist", Run: p.Persist},
	}
}

// RunProduct runs every stage for one product. A stage error stops the
// product; per-document and per-model failures are only counted.
func (p *Pipeline) RunProduct(ctx context.Context, product model.Product) (State, error) {
	s := State{
		Product:    product,
		SnapshotTS: p.now(),
		Counts:     model.RunCounts{Products: 1},
	}
	log := zap.L().With(zap.String("product", product.Name), zap.String("vendor", product.Vendor))

	for _, stage := range p.Stages() {
		start := time.Now()
		next, err := stage.Run(ctx, s)
		if err != nil {
			return s, eris.Wrapf(err, "pipeline: stage %s", stage.Name)
		}
		s = next
		log.Debug("pipeline: stage complete",
			zap.String("stage", stage.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return s, nil
}

// LoadDocuments fetches the product's raw documents.
func (p *Pipeline) LoadDocuments(ctx context.Context, s State) (State, error) {
	docs, err := p.docs.ListRawDocuments(ctx, s.Product.ID)
	if err != nil {
		return s, eris.Wrapf(err, "pipeline: list raw documents for %s", s.Product.ID)
	}
	s.Documents = docs
	s.Counts.Documents = len(docs)
	return s, nil
}

// ExtractDocuments runs the structured extractor over every document.
func (p *Pipeline) ExtractDocuments(_ context.Context, s State) (State, error) {
	out := make([]model.RawSpecMap, len(s.Documents))
	for i, doc := range s.Documents {
		specs, err := extract.Extract(doc)
		if err != nil {
			s.Counts.DocumentFailures++
			p.metrics.ObserveExtractFailure()
			zap.L().Warn("pipeline: extraction failed",
				zap.String("product", s.Product.Name),
				zap.String("document", doc.ID),
				zap.String("content_type", string(doc.ContentType)),
				zap.Error(err),
			)
			continue
		}
		out[i] = specs
	}
	s.Extracted = out
	return s, nil
}

// MergeSpecs folds the extracted maps together, later-fetched documents
// winning on identical keys.
func MergeSpecs(_ context.Context, s State) (State, error) {
	s.Merged = extract.Merge(s.Documents, s.Extracted)
	return s, nil
}

// Disambiguate splits the merged map into per-model groups.
func (p *Pipeline) Disambiguate(_ context.Context, s State) (State, error) {
	s.Groups = p.splitter.Split(s.Merged, s.Product.Name)
	return s, nil
}

// Normalize canonicalizes every model group.
func (p *Pipeline) Normalize(ctx context.Context, s State) (State, error) {
	results, stats := p.engine.NormalizeProduct(ctx, s.Product, s.Groups)
	s.Results = results
	s.Counts.Models = len(results)
	s.Counts.Skipped = stats.Skipped
	s.Counts.Failed = stats.Failed
	s.Counts.EscalationsAttempted = stats.EscalationsAttempted
	s.Counts.EscalationsFailed = stats.EscalationsFailed
	return s, nil
}

// Persist appends one snapshot per normalized model. Every record of a
// product run shares the run's snapshot timestamp.
func (p *Pipeline) Persist(ctx context.Context, s State) (State, error) {
	sourceID := latestDocumentID(s.Documents, s.Extracted)
	persisted := make([]model.CanonicalSpecRecord, 0, len(s.Results))
	for _, res := range s.Results {
		if res.Skipped || res.Err != nil {
			continue
		}
		rec, err := p.sink.InsertSpecRecord(ctx, model.CanonicalSpecRecord{
			ProductID:        s.Product.ID,
			SourceDocumentID: sourceID,
			Model:            res.Record.Model,
			Specs:            res.Record.Specs,
			VendorFields:     res.Record.VendorFields,
			SnapshotTS:       s.SnapshotTS,
		})
		if err != nil {
			s.Counts.PersistFailures++
			zap.L().Warn("pipeline: insert spec record failed",
				zap.String("product", s.Product.Name),
				zap.String("model", res.Model),
				zap.Error(err),
			)
			continue
		}
		p.metrics.ObserveRecordPersisted()
		persisted = append(persisted, *rec)
	}
	s.Persisted = persisted
	s.Counts.RecordsPersisted = len(persisted)
	return s, nil
}

// latestDocumentID returns the most recently fetched document that yielded
// specs.
func latestDocumentID(docs []model.RawDocument, extracted []model.RawSpecMap) string {
	var id string
	var latest time.Time
	for i, doc := range docs {
		if i >= len(extracted) || len(extracted[i]) == 0 {
			continue
		}
		if id == "" || !doc.FetchedAt.Before(latest) {
			id = doc.ID
			latest = doc.FetchedAt
		}
	}
	return id
}
