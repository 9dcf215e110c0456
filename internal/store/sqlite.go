package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/laser-ci/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY,
	vendor     TEXT NOT NULL,
	segment    TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (vendor, segment, name)
);

CREATE TABLE IF NOT EXISTS raw_documents (
	id           TEXT PRIMARY KEY,
	product_id   TEXT NOT NULL REFERENCES products(id),
	content_type TEXT NOT NULL,
	source_url   TEXT NOT NULL DEFAULT '',
	text         TEXT NOT NULL,
	raw_specs    TEXT,
	fetched_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS spec_records (
	id                 TEXT PRIMARY KEY,
	product_id         TEXT NOT NULL REFERENCES products(id),
	source_document_id TEXT NOT NULL DEFAULT '',
	model              TEXT NOT NULL,
	specs              TEXT NOT NULL,
	vendor_fields      TEXT NOT NULL,
	snapshot_ts        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	counts      TEXT NOT NULL DEFAULT '{}',
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_raw_documents_product ON raw_documents(product_id);
CREATE INDEX IF NOT EXISTS idx_spec_records_product ON spec_records(product_id, snapshot_ts);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertProduct inserts p unless a product with the same vendor, segment
// and name exists, and returns the stored row either way.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, vendor, segment, name, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (vendor, segment, name) DO NOTHING`,
		uuid.New().String(), p.Vendor, p.Segment, p.Name, p.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert product")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, vendor, segment, name, created_at FROM products WHERE vendor = ? AND segment = ? AND name = ?`,
		p.Vendor, p.Segment, p.Name,
	)
	return scanProduct(row)
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, vendor, segment, name, created_at FROM products WHERE id = ?`, id,
	)
	return scanProduct(row)
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.FindProducts(ctx, ProductFilter{})
}

func (s *SQLiteStore) FindProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	query := `SELECT id, vendor, segment, name, created_at FROM products WHERE 1=1`
	var args []any
	if filter.Vendor != "" {
		query += ` AND vendor = ?`
		args = append(args, filter.Vendor)
	}
	if filter.Segment != "" {
		query += ` AND segment = ?`
		args = append(args, filter.Segment)
	}
	query += ` ORDER BY vendor, segment, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list products iterate")
}

func (s *SQLiteStore) InsertRawDocument(ctx context.Context, doc model.RawDocument) (*model.RawDocument, error) {
	doc.ID = uuid.New().String()
	if doc.FetchedAt.IsZero() {
		doc.FetchedAt = time.Now().UTC()
	}
	specs, err := marshalNullable(doc.RawSpecs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal raw specs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO raw_documents (id, product_id, content_type, source_url, text, raw_specs, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.ProductID, string(doc.ContentType), doc.SourceURL, doc.Text, specs, doc.FetchedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert raw document for product %s", doc.ProductID)
	}
	return &doc, nil
}

func (s *SQLiteStore) ListRawDocuments(ctx context.Context, productID string) ([]model.RawDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, content_type, source_url, text, raw_specs, fetched_at
		 FROM raw_documents WHERE product_id = ? ORDER BY fetched_at, id`,
		productID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list raw documents")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RawDocument
	for rows.Next() {
		var d model.RawDocument
		var specs sql.NullString
		if err := rows.Scan(&d.ID, &d.ProductID, &d.ContentType, &d.SourceURL, &d.Text, &specs, &d.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw document")
		}
		if specs.Valid {
			if err := json.Unmarshal([]byte(specs.String), &d.RawSpecs); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal raw specs")
			}
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list raw documents iterate")
}

func (s *SQLiteStore) InsertSpecRecord(ctx context.Context, rec model.CanonicalSpecRecord) (*model.CanonicalSpecRecord, error) {
	rec.ID = uuid.New().String()
	if rec.SnapshotTS.IsZero() {
		rec.SnapshotTS = time.Now().UTC()
	}
	specs, vendor, err := marshalRecord(rec)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal spec record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO spec_records (id, product_id, source_document_id, model, specs, vendor_fields, snapshot_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProductID, rec.SourceDocumentID, rec.Model, string(specs), string(vendor), rec.SnapshotTS,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert spec record for %s", rec.Model)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListSpecRecords(ctx context.Context, productID string) ([]model.CanonicalSpecRecord, error) {
	query := `SELECT id, product_id, source_document_id, model, specs, vendor_fields, snapshot_ts FROM spec_records`
	var args []any
	if productID != "" {
		query += ` WHERE product_id = ?`
		args = append(args, productID)
	}
	query += ` ORDER BY snapshot_ts, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list spec records")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CanonicalSpecRecord
	for rows.Next() {
		var r model.CanonicalSpecRecord
		var specs, vendor string
		if err := rows.Scan(&r.ID, &r.ProductID, &r.SourceDocumentID, &r.Model, &specs, &vendor, &r.SnapshotTS); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan spec record")
		}
		if err := unmarshalRecord(&r, []byte(specs), []byte(vendor)); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal spec record")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list spec records iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.PipelineRun, error) {
	run := &model.PipelineRun{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts, runErr string) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run counts")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, counts = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), string(countsJSON), runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, status, counts, error, started_at, finished_at FROM pipeline_runs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		var counts string
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Status, &counts, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if err := json.Unmarshal([]byte(counts), &r.Counts); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run counts")
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// VendorStats counts products, documents by type and spec snapshots per
// vendor, ordered by vendor.
func (s *SQLiteStore) VendorStats(ctx context.Context) ([]VendorStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.vendor,
			COUNT(DISTINCT p.id),
			COUNT(CASE WHEN d.content_type = ? THEN 1 END),
			COUNT(CASE WHEN d.content_type = ? THEN 1 END),
			(SELECT COUNT(*) FROM spec_records r JOIN products rp ON rp.id = r.product_id WHERE rp.vendor = p.vendor)
		FROM products p
		LEFT JOIN raw_documents d ON d.product_id = p.id
		GROUP BY p.vendor
		ORDER BY p.vendor`,
		string(model.ContentTypeHTML), string(model.ContentTypePDFText),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: vendor stats")
	}
	defer rows.Close() //nolint:errcheck

	var out []VendorStat
	for rows.Next() {
		var v VendorStat
		if err := rows.Scan(&v.Vendor, &v.Products, &v.HTMLDocs, &v.PDFDocs, &v.SpecRecords); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor stats")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: vendor stats iterate")
}

// DeleteVendor removes a vendor's spec snapshots, documents and products in
// one transaction. A dry run only counts them.
func (s *SQLiteStore) DeleteVendor(ctx context.Context, vendor string, dryRun bool) (*VendorDeletion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin delete vendor")
	}
	defer tx.Rollback() //nolint:errcheck

	del := &VendorDeletion{Vendor: vendor, DryRun: dryRun}
	rows, err := tx.QueryContext(ctx,
		`SELECT vendor, name FROM products WHERE lower(vendor) = lower(?) ORDER BY segment, name`, vendor,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list products of vendor %s", vendor)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&del.Vendor, &name); err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "sqlite: scan vendor product")
		}
		del.Products = append(del.Products, name)
	}
	rows.Close() //nolint:errcheck
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list vendor products iterate")
	}
	if len(del.Products) == 0 {
		return del, nil
	}

	const owned = `product_id IN (SELECT id FROM products WHERE lower(vendor) = lower(?))`
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_documents WHERE `+owned, vendor).Scan(&del.Documents); err != nil {
		return nil, eris.Wrap(err, "sqlite: count vendor documents")
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM spec_records WHERE `+owned, vendor).Scan(&del.SpecRecords); err != nil {
		return nil, eris.Wrap(err, "sqlite: count vendor spec records")
	}
	if dryRun {
		return del, nil
	}

	for _, stmt := range []string{
		`DELETE FROM spec_records WHERE ` + owned,
		`DELETE FROM raw_documents WHERE ` + owned,
		`DELETE FROM products WHERE lower(vendor) = lower(?)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, vendor); err != nil {
			return nil, eris.Wrapf(err, "sqlite: delete vendor %s", vendor)
		}
	}
	return del, eris.Wrap(tx.Commit(), "sqlite: commit delete vendor")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProduct(row scannable) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Vendor, &p.Segment, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "sqlite: product")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan product")
	}
	return &p, nil
}

func marshalNullable(m model.RawSpecMap) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalRecord(rec model.CanonicalSpecRecord) (specs, vendor []byte, err error) {
	specs, err = json.Marshal(rec.Specs)
	if err != nil {
		return nil, nil, err
	}
	vf := rec.VendorFields
	if vf == nil {
		vf = model.RawSpecMap{}
	}
	vendor, err = json.Marshal(vf)
	return specs, vendor, err
}

func unmarshalRecord(rec *model.CanonicalSpecRecord, specs, vendor []byte) error {
	if err := json.Unmarshal(specs, &rec.Specs); err != nil {
		return err
	}
	return json.Unmarshal(vendor, &rec.VendorFields)
}
