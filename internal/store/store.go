// Package store persists products, raw documents, spec snapshots and
// pipeline runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/laser-ci/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	Vendor  string `json:"vendor,omitempty"`
	Segment string `json:"segment,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// VendorStat summarizes what is stored for one vendor.
type VendorStat struct {
	Vendor      string `json:"vendor"`
	Products    int    `json:"products"`
	HTMLDocs    int    `json:"html_docs"`
	PDFDocs     int    `json:"pdf_docs"`
	SpecRecords int    `json:"spec_records"`
}

// VendorDeletion reports the rows DeleteVendor removed, or on a dry run
// would remove. Vendor is the stored spelling when any product matched.
type VendorDeletion struct {
	Vendor      string   `json:"vendor"`
	Products    []string `json:"products"`
	Documents   int      `json:"documents"`
	SpecRecords int      `json:"spec_records"`
	DryRun      bool     `json:"dry_run"`
}

// Store defines the persistence interface for the laser CI pipeline.
type Store interface {
	// Products
	UpsertProduct(ctx context.Context, p model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	FindProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error)

	// Vendors. DeleteVendor matches the vendor name case-insensitively and
	// removes its products with their documents and spec snapshots.
	VendorStats(ctx context.Context) ([]VendorStat, error)
	DeleteVendor(ctx context.Context, vendor string, dryRun bool) (*VendorDeletion, error)

	// Raw documents
	InsertRawDocument(ctx context.Context, doc model.RawDocument) (*model.RawDocument, error)
	ListRawDocuments(ctx context.Context, productID string) ([]model.RawDocument, error)

	// Spec snapshots. An empty productID lists every product.
	InsertSpecRecord(ctx context.Context, rec model.CanonicalSpecRecord) (*model.CanonicalSpecRecord, error)
	ListSpecRecords(ctx context.Context, productID string) ([]model.CanonicalSpecRecord, error)

	// Runs
	CreateRun(ctx context.Context) (*model.PipelineRun, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts, runErr string) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultRunLimit = 100

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
