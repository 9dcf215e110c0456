package catalog

import (
	"context"
	"crypto/sha256"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/model"
)

// Repository is the store capability ingestion needs.
type Repository interface {
	UpsertProduct(ctx context.Context, p model.Product) (*model.Product, error)
	InsertRawDocument(ctx context.Context, doc model.RawDocument) (*model.RawDocument, error)
	ListRawDocuments(ctx context.Context, productID string) ([]model.RawDocument, error)
}

// IngestOptions narrows and tunes an ingest.
type IngestOptions struct {
	// Vendor limits ingestion to one vendor, by name or alias.
	Vendor string
	// Force stores documents even when their content is unchanged.
	Force bool
	// Now stamps FetchedAt. Defaults to time.Now.
	Now func() time.Time
}

// IngestResult counts what an ingest did.
type IngestResult struct {
	Vendors   int `json:"vendors"`
	Products  int `json:"products"`
	Documents int `json:"documents"`
	Unchanged int `json:"unchanged"`
}

// Ingest upserts every catalog product and stores its documents as raw
// documents. A document whose text and specs match the newest stored
// document from the same source is skipped unless opts.Force is set.
func Ingest(ctx context.Context, cat *Catalog, repo Repository, opts IngestOptions) (*IngestResult, error) {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	vendors := cat.Vendors
	if opts.Vendor != "" {
		v, ok := cat.Vendor(opts.Vendor)
		if !ok {
			return nil, eris.Errorf("catalog: unknown vendor %q", opts.Vendor)
		}
		vendors = []Vendor{v}
	}

	res := &IngestResult{}
	for _, v := range vendors {
		res.Vendors++
		for _, p := range v.Products {
			if err := ctx.Err(); err != nil {
				return res, eris.Wrap(err, "catalog: ingest cancelled")
			}
			prod, err := repo.UpsertProduct(ctx, model.Product{Vendor: v.Name, Segment: p.Segment, Name: p.Name})
			if err != nil {
				return res, eris.Wrapf(err, "catalog: upsert %s %s", v.Name, p.Name)
			}
			res.Products++

			existing, err := repo.ListRawDocuments(ctx, prod.ID)
			if err != nil {
				return res, eris.Wrapf(err, "catalog: list documents for %s", p.Name)
			}
			latest := latestBySource(existing)

			for _, d := range p.Documents {
				doc, err := cat.load(d)
				if err != nil {
					return res, err
				}
				doc.ProductID = prod.ID
				doc.FetchedAt = now()

				if prev, ok := latest[doc.SourceURL]; ok && !opts.Force && sameContent(prev, doc) {
					res.Unchanged++
					continue
				}
				if _, err := repo.InsertRawDocument(ctx, doc); err != nil {
					return res, eris.Wrapf(err, "catalog: store document %s", doc.SourceURL)
				}
				res.Documents++
			}
			zap.L().Debug("catalog: ingested product",
				zap.String("vendor", v.Name),
				zap.String("product", p.Name),
				zap.Int("documents", len(p.Documents)),
			)
		}
	}

	zap.L().Info("catalog: ingest complete",
		zap.Int("vendors", res.Vendors),
		zap.Int("products", res.Products),
		zap.Int("documents", res.Documents),
		zap.Int("unchanged", res.Unchanged),
	)
	return res, nil
}

// load reads a document's text. The source URL defaults to the path.
func (c *Catalog) load(d Document) (model.RawDocument, error) {
	doc := model.RawDocument{
		ContentType: d.Type,
		SourceURL:   d.URL,
		RawSpecs:    rawSpecs(d.Specs),
	}
	if d.Path != "" {
		data, err := os.ReadFile(c.resolve(d.Path))
		if err != nil {
			return doc, eris.Wrapf(err, "catalog: read document %s", d.Path)
		}
		doc.Text = string(data)
		if doc.SourceURL == "" {
			doc.SourceURL = d.Path
		}
	}
	return doc, nil
}

func latestBySource(docs []model.RawDocument) map[string]model.RawDocument {
	out := make(map[string]model.RawDocument, len(docs))
	for _, d := range docs {
		if prev, ok := out[d.SourceURL]; !ok || !d.FetchedAt.Before(prev.FetchedAt) {
			out[d.SourceURL] = d
		}
	}
	return out
}

func sameContent(a, b model.RawDocument) bool {
	return a.ContentType == b.ContentType && contentHash(a) == contentHash(b)
}

func contentHash(d model.RawDocument) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(d.Text))
	for _, k := range d.RawSpecs.Keys() {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(d.RawSpecs[k].String()))
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
