package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/laser-ci/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_spec_record": `INSERT INTO spec_records (id, product_id, source_document_id, model, specs, vendor_fields, snapshot_ts) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"list_raw_documents": `SELECT id, product_id, content_type, source_url, text, raw_specs, fetched_at FROM raw_documents WHERE product_id = $1 ORDER BY fetched_at, id`,
	"get_product":        `SELECT id, vendor, segment, name, created_at FROM products WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	vendor     TEXT NOT NULL,
	segment    TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (vendor, segment, name)
);

CREATE TABLE IF NOT EXISTS raw_documents (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_id   TEXT NOT NULL REFERENCES products(id),
	content_type TEXT NOT NULL,
	source_url   TEXT NOT NULL DEFAULT '',
	text         TEXT NOT NULL,
	raw_specs    JSONB,
	fetched_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS spec_records (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_id         TEXT NOT NULL REFERENCES products(id),
	source_document_id TEXT NOT NULL DEFAULT '',
	model              TEXT NOT NULL,
	specs              JSONB NOT NULL,
	vendor_fields      JSONB NOT NULL DEFAULT '{}'::jsonb,
	snapshot_ts        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status      TEXT NOT NULL DEFAULT 'running',
	counts      JSONB NOT NULL DEFAULT '{}'::jsonb,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_raw_documents_product ON raw_documents(product_id);
CREATE INDEX IF NOT EXISTS idx_spec_records_product_ts ON spec_records(product_id, snapshot_ts);
CREATE INDEX IF NOT EXISTS idx_spec_records_wavelength ON spec_records(((specs->>'wavelength_nm')::double precision));
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	// The no-op update makes RETURNING yield the existing row on conflict.
	var out model.Product
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (id, vendor, segment, name, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (vendor, segment, name) DO UPDATE SET vendor = EXCLUDED.vendor
		 RETURNING id, vendor, segment, name, created_at`,
		uuid.New().String(), p.Vendor, p.Segment, p.Name, p.CreatedAt,
	).Scan(&out.ID, &out.Vendor, &out.Segment, &out.Name, &out.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert product")
	}
	return &out, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := s.pool.QueryRow(ctx,
		`SELECT id, vendor, segment, name, created_at FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Vendor, &p.Segment, &p.Name, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: product %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", id)
	}
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.FindProducts(ctx, ProductFilter{})
}

func (s *PostgresStore) FindProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	query := `SELECT id, vendor, segment, name, created_at FROM products WHERE true`
	args := []any{}
	argIdx := 1
	if filter.Vendor != "" {
		query += fmt.Sprintf(` AND vendor = $%d`, argIdx)
		args = append(args, filter.Vendor)
		argIdx++
	}
	if filter.Segment != "" {
		query += fmt.Sprintf(` AND segment = $%d`, argIdx)
		args = append(args, filter.Segment)
	}
	query += ` ORDER BY vendor, segment, name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Vendor, &p.Segment, &p.Name, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list products iterate")
}

func (s *PostgresStore) InsertRawDocument(ctx context.Context, doc model.RawDocument) (*model.RawDocument, error) {
	doc.ID = uuid.New().String()
	if doc.FetchedAt.IsZero() {
		doc.FetchedAt = time.Now().UTC()
	}
	var specs []byte
	if doc.RawSpecs != nil {
		b, err := json.Marshal(doc.RawSpecs)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal raw specs")
		}
		specs = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO raw_documents (id, product_id, content_type, source_url, text, raw_specs, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.ProductID, string(doc.ContentType), doc.SourceURL, doc.Text, specs, doc.FetchedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert raw document for product %s", doc.ProductID)
	}
	return &doc, nil
}

func (s *PostgresStore) ListRawDocuments(ctx context.Context, productID string) ([]model.RawDocument, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, content_type, source_url, text, raw_specs, fetched_at
		 FROM raw_documents WHERE product_id = $1 ORDER BY fetched_at, id`,
		productID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list raw documents")
	}
	defer rows.Close()

	var out []model.RawDocument
	for rows.Next() {
		var d model.RawDocument
		var contentType string
		var specs []byte
		if err := rows.Scan(&d.ID, &d.ProductID, &contentType, &d.SourceURL, &d.Text, &specs, &d.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw document")
		}
		d.ContentType = model.ContentType(contentType)
		if len(specs) > 0 {
			if err := json.Unmarshal(specs, &d.RawSpecs); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal raw specs")
			}
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list raw documents iterate")
}

func (s *PostgresStore) InsertSpecRecord(ctx context.Context, rec model.CanonicalSpecRecord) (*model.CanonicalSpecRecord, error) {
	rec.ID = uuid.New().String()
	if rec.SnapshotTS.IsZero() {
		rec.SnapshotTS = time.Now().UTC()
	}
	specs, vendor, err := marshalRecord(rec)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal spec record")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO spec_records (id, product_id, source_document_id, model, specs, vendor_fields, snapshot_ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.ProductID, rec.SourceDocumentID, rec.Model, specs, vendor, rec.SnapshotTS,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert spec record for %s", rec.Model)
	}
	return &rec, nil
}

func (s *PostgresStore) ListSpecRecords(ctx context.Context, productID string) ([]model.CanonicalSpecRecord, error) {
	query := `SELECT id, product_id, source_document_id, model, specs, vendor_fields, snapshot_ts FROM spec_records`
	args := []any{}
	if productID != "" {
		query += ` WHERE product_id = $1`
		args = append(args, productID)
	}
	query += ` ORDER BY snapshot_ts, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list spec records")
	}
	defer rows.Close()

	var out []model.CanonicalSpecRecord
	for rows.Next() {
		var r model.CanonicalSpecRecord
		var specs, vendor []byte
		if err := rows.Scan(&r.ID, &r.ProductID, &r.SourceDocumentID, &r.Model, &specs, &vendor, &r.SnapshotTS); err != nil {
			return nil, eris.Wrap(err, "postgres: scan spec record")
		}
		if err := unmarshalRecord(&r, specs, vendor); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal spec record")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list spec records iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.PipelineRun, error) {
	run := &model.PipelineRun{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, status, started_at) VALUES ($1, $2, $3)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts, runErr string) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run counts")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, counts = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(status), countsJSON, runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, status, counts, error, started_at, finished_at FROM pipeline_runs WHERE true`
	args := []any{}
	argIdx := 1
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND started_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		var status string
		var counts []byte
		if err := rows.Scan(&r.ID, &status, &counts, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if err := json.Unmarshal(counts, &r.Counts); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run counts")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) VendorStats(ctx context.Context) ([]VendorStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.vendor,
			COUNT(DISTINCT p.id),
			COUNT(d.id) FILTER (WHERE d.content_type = $1),
			COUNT(d.id) FILTER (WHERE d.content_type = $2),
			(SELECT COUNT(*) FROM spec_records r JOIN products rp ON rp.id = r.product_id WHERE rp.vendor = p.vendor)
		FROM products p
		LEFT JOIN raw_documents d ON d.product_id = p.id
		GROUP BY p.vendor
		ORDER BY p.vendor`,
		string(model.ContentTypeHTML), string(model.ContentTypePDFText),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: vendor stats")
	}
	defer rows.Close()

	var out []VendorStat
	for rows.Next() {
		var v VendorStat
		if err := rows.Scan(&v.Vendor, &v.Products, &v.HTMLDocs, &v.PDFDocs, &v.SpecRecords); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor stats")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: vendor stats iterate")
}

// pgDeleteVendor removes a vendor in one statement so the foreign keys are
// checked once all three deletes have run.
const pgDeleteVendor = `
WITH doomed AS (SELECT id FROM products WHERE lower(vendor) = lower($1)),
	recs AS (DELETE FROM spec_records WHERE product_id IN (SELECT id FROM doomed)),
	docs AS (DELETE FROM raw_documents WHERE product_id IN (SELECT id FROM doomed))
DELETE FROM products WHERE id IN (SELECT id FROM doomed)`

func (s *PostgresStore) DeleteVendor(ctx context.Context, vendor string, dryRun bool) (*VendorDeletion, error) {
	del := &VendorDeletion{Vendor: vendor, DryRun: dryRun}
	rows, err := s.pool.Query(ctx,
		`SELECT vendor, name FROM products WHERE lower(vendor) = lower($1) ORDER BY segment, name`, vendor,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list products of vendor %s", vendor)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&del.Vendor, &name); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan vendor product")
		}
		del.Products = append(del.Products, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list vendor products iterate")
	}
	if len(del.Products) == 0 {
		return del, nil
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM raw_documents WHERE product_id IN (SELECT id FROM products WHERE lower(vendor) = lower($1))),
			(SELECT COUNT(*) FROM spec_records WHERE product_id IN (SELECT id FROM products WHERE lower(vendor) = lower($1)))`,
		vendor,
	).Scan(&del.Documents, &del.SpecRecords)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count vendor rows")
	}
	if dryRun {
		return del, nil
	}

	if _, err := s.pool.Exec(ctx, pgDeleteVendor, vendor); err != nil {
		return nil, eris.Wrapf(err, "postgres: delete vendor %s", vendor)
	}
	return del, nil
}
