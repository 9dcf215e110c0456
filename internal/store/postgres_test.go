package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/laser-ci/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS products`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProduct_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, vendor, segment, name, created_at FROM products WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetProduct(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertProduct(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`ON CONFLICT \(vendor, segment, name\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "Omicron", "diode_instrumentation", "LuxX+", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "vendor", "segment", "name", "created_at"}).
			AddRow("p-1", "Omicron", "diode_instrumentation", "LuxX+", created))

	p, err := s.UpsertProduct(context.Background(), model.Product{Vendor: "Omicron", Segment: "diode_instrumentation", Name: "LuxX+"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindProducts_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM products WHERE true AND vendor = \$1 AND segment = \$2 ORDER BY`).
		WithArgs("Coherent", "diode_instrumentation").
		WillReturnRows(pgxmock.NewRows([]string{"id", "vendor", "segment", "name", "created_at"}).
			AddRow("p-2", "Coherent", "diode_instrumentation", "OBIS LX", time.Now()))

	out, err := s.FindProducts(context.Background(), ProductFilter{Vendor: "Coherent", Segment: "diode_instrumentation"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "OBIS LX", out[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertSpecRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO spec_records`).
		WithArgs(pgxmock.AnyArg(), "p-1", "doc-1", "LuxX 405-60", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := s.InsertSpecRecord(context.Background(), model.CanonicalSpecRecord{
		ProductID:        "p-1",
		SourceDocumentID: "doc-1",
		Model:            "LuxX 405-60",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.SnapshotTS.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSpecRecords_AllProducts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM spec_records ORDER BY snapshot_ts, id`).
		WithArgs().
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "source_document_id", "model", "specs", "vendor_fields", "snapshot_ts"}).
			AddRow("r-1", "p-1", "", "LBX-405", []byte(`{"wavelength_nm":405,"output_power_mw_nominal":100}`), []byte(`{"model":"LBX-405"}`), ts))

	recs, err := s.ListSpecRecords(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 405, *recs[0].Specs.WavelengthNM, 1e-9)
	assert.Nil(t, recs[0].Specs.RMSNoisePct)
	assert.Equal(t, model.Str("LBX-405"), recs[0].VendorFields[model.ModelMarker])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRawDocuments(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM raw_documents WHERE product_id = \$1`).
		WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "content_type", "source_url", "text", "raw_specs", "fetched_at"}).
			AddRow("d-1", "p-1", "html", "https://example.com", "<p/>", []byte(nil), time.Now()).
			AddRow("d-2", "p-1", "pdf_text", "", "Power: 60 mW", []byte(`{"Power":"60 mW"}`), time.Now()))

	docs, err := s.ListRawDocuments(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, model.ContentTypeHTML, docs[0].ContentType)
	assert.Nil(t, docs[0].RawSpecs)
	assert.Equal(t, model.Str("60 mW"), docs[1].RawSpecs["Power"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE pipeline_runs SET status = \$1`).
		WithArgs("complete", pgxmock.AnyArg(), "", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), "missing", model.RunStatusComplete, model.RunCounts{}, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	finished := since.Add(time.Hour)

	mock.ExpectQuery(`FROM pipeline_runs WHERE true AND status = \$1 AND started_at >= \$2 ORDER BY started_at DESC LIMIT \$3`).
		WithArgs("failed", since, 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "counts", "error", "started_at", "finished_at"}).
			AddRow("run-1", "failed", []byte(`{"models":3,"failed":3}`), "db down", since, &finished))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusFailed, Since: since})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Equal(t, 3, runs[0].Counts.Failed)
	require.NotNil(t, runs[0].FinishedAt)
	assert.Equal(t, finished, *runs[0].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_VendorStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM products p\s+LEFT JOIN raw_documents d ON d.product_id = p.id\s+GROUP BY p.vendor`).
		WithArgs("html", "pdf_text").
		WillReturnRows(pgxmock.NewRows([]string{"vendor", "products", "html", "pdf", "records"}).
			AddRow("Coherent", 3, 2, 4, 7).
			AddRow("Omicron", 1, 1, 0, 2))

	stats, err := s.VendorStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []VendorStat{
		{Vendor: "Coherent", Products: 3, HTMLDocs: 2, PDFDocs: 4, SpecRecords: 7},
		{Vendor: "Omicron", Products: 1, HTMLDocs: 1, PDFDocs: 0, SpecRecords: 2},
	}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteVendor(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT vendor, name FROM products WHERE lower\(vendor\) = lower\(\$1\)`).
		WithArgs("hubner").
		WillReturnRows(pgxmock.NewRows([]string{"vendor", "name"}).
			AddRow("Hubner", "Cobolt 06-01").
			AddRow("Hubner", "Cobolt Skyra"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM raw_documents`).
		WithArgs("hubner").
		WillReturnRows(pgxmock.NewRows([]string{"docs", "recs"}).AddRow(5, 3))
	mock.ExpectExec(`(?s)WITH doomed AS .* DELETE FROM products WHERE id IN`).
		WithArgs("hubner").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	del, err := s.DeleteVendor(context.Background(), "hubner", false)
	require.NoError(t, err)
	assert.Equal(t, &VendorDeletion{
		Vendor:      "Hubner",
		Products:    []string{"Cobolt 06-01", "Cobolt Skyra"},
		Documents:   5,
		SpecRecords: 3,
	}, del)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteVendor_DryRunSkipsDelete(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT vendor, name FROM products`).
		WithArgs("Coherent").
		WillReturnRows(pgxmock.NewRows([]string{"vendor", "name"}).AddRow("Coherent", "OBIS LX"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM raw_documents`).
		WithArgs("Coherent").
		WillReturnRows(pgxmock.NewRows([]string{"docs", "recs"}).AddRow(1, 0))

	del, err := s.DeleteVendor(context.Background(), "Coherent", true)
	require.NoError(t, err)
	assert.True(t, del.DryRun)
	assert.Equal(t, 1, del.Documents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteVendor_NoProducts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT vendor, name FROM products`).
		WithArgs("nobody").
		WillReturnRows(pgxmock.NewRows([]string{"vendor", "name"}))

	del, err := s.DeleteVendor(context.Background(), "nobody", false)
	require.NoError(t, err)
	assert.Empty(t, del.Products)
	assert.NoError(t, mock.ExpectationsWereMet())
}
