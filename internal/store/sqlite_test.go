package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/laser-ci/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func fp(v float64) *float64 { return &v }

func seedProduct(t *testing.T, st *SQLiteStore, vendor, name string) *model.Product {
	t.Helper()
	p, err := st.UpsertProduct(context.Background(), model.Product{
		Vendor:  vendor,
		Segment: "diode_instrumentation",
		Name:    name,
	})
	require.NoError(t, err)
	return p
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_UpsertProduct_KeepsIdentity(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := seedProduct(t, st, "Omicron", "LuxX+")
	second, err := st.UpsertProduct(ctx, model.Product{
		Vendor:    "Omicron",
		Segment:   "diode_instrumentation",
		Name:      "LuxX+",
		CreatedAt: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.WithinDuration(t, first.CreatedAt, second.CreatedAt, time.Second)

	got, err := st.GetProduct(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "LuxX+", got.Name)
}

func TestSQLite_GetProduct_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetProduct(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_FindProducts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedProduct(t, st, "Oxxius", "LBX")
	seedProduct(t, st, "Coherent", "OBIS LX")
	seedProduct(t, st, "Coherent", "OBIS LS")

	all, err := st.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "OBIS LS", all[0].Name)
	assert.Equal(t, "Oxxius", all[2].Vendor)

	coh, err := st.FindProducts(ctx, ProductFilter{Vendor: "Coherent"})
	require.NoError(t, err)
	assert.Len(t, coh, 2)
}

func TestSQLite_RawDocuments(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	p := seedProduct(t, st, "Omicron", "LuxX+")

	_, err := st.InsertRawDocument(ctx, model.RawDocument{
		ProductID:   p.ID,
		ContentType: model.ContentTypeHTML,
		SourceURL:   "https://example.com/luxx",
		Text:        "<table></table>",
		FetchedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = st.InsertRawDocument(ctx, model.RawDocument{
		ProductID:   p.ID,
		ContentType: model.ContentTypePDFText,
		Text:        "Wavelength: 405 nm",
		RawSpecs:    model.RawSpecMap{"Wavelength": model.Str("405 nm")},
		FetchedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	docs, err := st.ListRawDocuments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, model.ContentTypeHTML, docs[0].ContentType)
	assert.Nil(t, docs[0].RawSpecs)
	assert.Equal(t, model.Str("405 nm"), docs[1].RawSpecs["Wavelength"])

	none, err := st.ListRawDocuments(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_SpecRecords_AppendOnly(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	a := seedProduct(t, st, "Omicron", "LuxX+")
	b := seedProduct(t, st, "Oxxius", "LBX")

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, power := range []float64{60, 70} {
		_, err := st.InsertSpecRecord(ctx, model.CanonicalSpecRecord{
			ProductID:    a.ID,
			Model:        "LuxX 405-60",
			Specs:        model.SpecFields{WavelengthNM: fp(405), OutputPowerNominal: fp(power), Interfaces: []string{"USB"}},
			VendorFields: model.RawSpecMap{model.ModelMarker: model.Str("LuxX 405-60")},
			SnapshotTS:   t0.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := st.InsertSpecRecord(ctx, model.CanonicalSpecRecord{ProductID: b.ID, Model: "LBX-488"})
	require.NoError(t, err)

	recs, err := st.ListSpecRecords(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.NotEqual(t, recs[0].ID, recs[1].ID)
	assert.InDelta(t, 60, *recs[0].Specs.OutputPowerNominal, 1e-9)
	assert.InDelta(t, 70, *recs[1].Specs.OutputPowerNominal, 1e-9)
	assert.Equal(t, []string{"USB"}, recs[1].Specs.Interfaces)
	assert.Nil(t, recs[1].Specs.M2)
	assert.Equal(t, model.Str("LuxX 405-60"), recs[1].VendorFields[model.ModelMarker])

	all, err := st.ListSpecRecords(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.NotNil(t, all[2].VendorFields)
}

func TestSQLite_Runs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ok, err := st.CreateRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, ok.Status)
	require.NoError(t, st.FinishRun(ctx, ok.ID, model.RunStatusComplete, model.RunCounts{Models: 4, RecordsPersisted: 4}, ""))

	bad, err := st.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, bad.ID, model.RunStatusFailed, model.RunCounts{}, "boom"))

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Error)
	assert.NotNil(t, failed[0].FinishedAt)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, 4, complete[0].Counts.RecordsPersisted)

	future, err := st.ListRuns(ctx, RunFilter{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}

func TestSQLite_FinishRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.FinishRun(context.Background(), "missing", model.RunStatusComplete, model.RunCounts{}, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func seedVendorData(t *testing.T, st *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	luxx := seedProduct(t, st, "Omicron", "LuxX+")
	seedProduct(t, st, "Omicron", "PhoxX+")
	lbx := seedProduct(t, st, "Oxxius", "LBX")

	for _, doc := range []model.RawDocument{
		{ProductID: luxx.ID, ContentType: model.ContentTypeHTML, Text: "<table></table>"},
		{ProductID: luxx.ID, ContentType: model.ContentTypePDFText, Text: "Wavelength: 405 nm"},
		{ProductID: lbx.ID, ContentType: model.ContentTypePDFText, Text: "Wavelength: 488 nm"},
	} {
		_, err := st.InsertRawDocument(ctx, doc)
		require.NoError(t, err)
	}
	for _, rec := range []model.CanonicalSpecRecord{
		{ProductID: luxx.ID, Model: "LuxX 405-60", Specs: model.SpecFields{WavelengthNM: fp(405)}},
		{ProductID: lbx.ID, Model: "LBX-488", Specs: model.SpecFields{WavelengthNM: fp(488)}},
	} {
		_, err := st.InsertSpecRecord(ctx, rec)
		require.NoError(t, err)
	}
}

func TestSQLite_VendorStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedVendorData(t, st)

	stats, err := st.VendorStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []VendorStat{
		{Vendor: "Omicron", Products: 2, HTMLDocs: 1, PDFDocs: 1, SpecRecords: 1},
		{Vendor: "Oxxius", Products: 1, HTMLDocs: 0, PDFDocs: 1, SpecRecords: 1},
	}, stats)
}

func TestSQLite_VendorStats_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	stats, err := st.VendorStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestSQLite_DeleteVendor_DryRunKeepsRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedVendorData(t, st)

	del, err := st.DeleteVendor(ctx, "omicron", true)
	require.NoError(t, err)
	assert.Equal(t, &VendorDeletion{
		Vendor:      "Omicron",
		Products:    []string{"LuxX+", "PhoxX+"},
		Documents:   2,
		SpecRecords: 1,
		DryRun:      true,
	}, del)

	left, err := st.FindProducts(ctx, ProductFilter{Vendor: "Omicron"})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestSQLite_DeleteVendor(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedVendorData(t, st)

	del, err := st.DeleteVendor(ctx, "OMICRON", false)
	require.NoError(t, err)
	assert.Equal(t, "Omicron", del.Vendor)
	assert.Len(t, del.Products, 2)
	assert.Equal(t, 2, del.Documents)
	assert.Equal(t, 1, del.SpecRecords)

	stats, err := st.VendorStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Oxxius", stats[0].Vendor)

	recs, err := st.ListSpecRecords(ctx, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "LBX-488", recs[0].Model)
}

func TestSQLite_DeleteVendor_UnknownVendor(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedVendorData(t, st)

	del, err := st.DeleteVendor(context.Background(), "Omi", false)
	require.NoError(t, err)
	assert.Empty(t, del.Products)
	assert.Zero(t, del.Documents)

	stats, err := st.VendorStats(context.Background())
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}
