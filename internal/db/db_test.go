package db

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/toeirei/annodb/internal/model"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	dsn := "file:test_" + t.Name() + "?mode=memory&cache=shared"
	if err := InitDB("sqlite", dsn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	return dsn
}

// seedImage creates a dataset and one image, returning both ids.
func seedImage(t *testing.T, externalID string) (datasetID, imageID int) {
	t.Helper()
	datasetID, err := EnsureDataset("testset", "1", "test dataset")
	if err != nil {
		t.Fatalf("EnsureDataset failed: %v", err)
	}
	w, h := 640, 480
	imageID, err = AddImage(&model.Image{
		DatasetID:  datasetID,
		ExternalID: externalID,
		Width:      &w,
		Height:     &h,
		FilePath:   externalID + ".jpg",
		Split:      "train",
	})
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	return datasetID, imageID
}

func TestInitDB_Migrations_Applied(t *testing.T) {
	dsn := newTestDB(t)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sql.DB for inspection: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	for _, table := range []string{"datasets", "images", "categories", "annotations", "segmentations"} {
		var name string
		err := sqlDB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s to exist after migrations: %v", table, err)
		}
	}

	var version string
	if err := sqlDB.QueryRow("SELECT version FROM schema_migrations ORDER BY version LIMIT 1").Scan(&version); err != nil {
		t.Fatalf("expected schema_migrations to record applied migrations: %v", err)
	}
	if version != "0001_init" {
		t.Fatalf("unexpected first migration version: %q", version)
	}
}

func TestAddImage_DuplicateBehavior(t *testing.T) {
	_ = newTestDB(t)
	datasetID, _ := seedImage(t, "img-1")

	_, err := AddImage(&model.Image{DatasetID: datasetID, ExternalID: "img-1"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on duplicate AddImage, got: %v", err)
	}

	got, err := GetImageByExternalID(datasetID, "img-1")
	if err != nil {
		t.Fatalf("GetImageByExternalID failed: %v", err)
	}
	if got.Width == nil || *got.Width != 640 {
		t.Fatalf("expected original row to survive duplicate insert, got width %v", got.Width)
	}
}

func TestEnsureDataset_Idempotent(t *testing.T) {
	_ = newTestDB(t)

	first, err := EnsureDataset("COCO", "2017", "desc")
	if err != nil {
		t.Fatalf("EnsureDataset failed: %v", err)
	}
	second, err := EnsureDataset("COCO", "2017", "desc")
	if err != nil {
		t.Fatalf("EnsureDataset (second) failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected same dataset id, got %d and %d", first, second)
	}

	ds, err := GetDatasetByName("COCO")
	if err != nil {
		t.Fatalf("GetDatasetByName failed: %v", err)
	}
	if ds.ID != first || ds.Version != "2017" {
		t.Fatalf("unexpected dataset row: %+v", ds)
	}

	if _, err := GetDatasetByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing dataset, got: %v", err)
	}
}

func TestEnsureCategory_KeyedByDatasetAndName(t *testing.T) {
	_ = newTestDB(t)
	datasetID, _ := seedImage(t, "img-1")

	first, err := EnsureCategory(&model.Category{DatasetID: datasetID, Name: "dog", Supercategory: "animal"})
	if err != nil {
		t.Fatalf("EnsureCategory failed: %v", err)
	}
	second, err := EnsureCategory(&model.Category{DatasetID: datasetID, Name: "dog"})
	if err != nil {
		t.Fatalf("EnsureCategory (second) failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected same category id, got %d and %d", first, second)
	}
}

func TestAddAnnotation_ForeignKeyRejected(t *testing.T) {
	_ = newTestDB(t)
	datasetID, imageID := seedImage(t, "img-1")

	catID, err := EnsureCategory(&model.Category{DatasetID: datasetID, Name: "cat"})
	if err != nil {
		t.Fatalf("EnsureCategory failed: %v", err)
	}

	// Valid insert works.
	if _, err := AddAnnotation(&model.Annotation{
		ImageID: imageID, CategoryID: catID,
		BboxXmin: 1, BboxYmin: 2, BboxWidth: 10, BboxHeight: 20, Area: 200,
	}); err != nil {
		t.Fatalf("AddAnnotation failed: %v", err)
	}

	// Dangling image reference must be rejected by the database.
	_, err = AddAnnotation(&model.Annotation{
		ImageID: imageID + 9999, CategoryID: catID,
		BboxXmin: 1, BboxYmin: 2, BboxWidth: 10, BboxHeight: 20, Area: 200,
	})
	if !errors.Is(err, ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey for dangling image reference, got: %v", err)
	}
}

func TestResetSchema_Rerunnable(t *testing.T) {
	_ = newTestDB(t)
	_, _ = seedImage(t, "img-1")

	if err := ResetSchema(); err != nil {
		t.Fatalf("ResetSchema failed: %v", err)
	}
	// A second reset against the fresh schema must also succeed.
	if err := ResetSchema(); err != nil {
		t.Fatalf("second ResetSchema failed: %v", err)
	}

	datasets, err := GetAllDatasets()
	if err != nil {
		t.Fatalf("GetAllDatasets failed: %v", err)
	}
	if len(datasets) != 0 {
		t.Fatalf("expected empty datasets table after reset, got %d rows", len(datasets))
	}

	// The recreated schema must accept inserts again.
	_, _ = seedImage(t, "img-after-reset")
}

func TestGetDatasetStats(t *testing.T) {
	_ = newTestDB(t)
	datasetID, imageID := seedImage(t, "img-1")

	catID, err := EnsureCategory(&model.Category{DatasetID: datasetID, Name: "dog"})
	if err != nil {
		t.Fatalf("EnsureCategory failed: %v", err)
	}
	annID, err := AddAnnotation(&model.Annotation{
		ImageID: imageID, CategoryID: catID,
		BboxXmin: 0, BboxYmin: 0, BboxWidth: 10, BboxHeight: 10, Area: 100,
	})
	if err != nil {
		t.Fatalf("AddAnnotation failed: %v", err)
	}
	if _, err := AddSegmentation(&model.Segmentation{
		AnnotationID: annID, Format: model.SegmentationPolygon, Data: "[[0,0,10,0,10,10]]",
	}); err != nil {
		t.Fatalf("AddSegmentation failed: %v", err)
	}

	stats, err := GetDatasetStats()
	if err != nil {
		t.Fatalf("GetDatasetStats failed: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected stats for one dataset, got %d", len(stats))
	}
	s := stats[0]
	if s.Images != 1 || s.Categories != 1 || s.Annotations != 1 || s.Segmentations != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestVerifyIntegrity_CleanAndViolation(t *testing.T) {
	_ = newTestDB(t)
	datasetID, imageID := seedImage(t, "img-1")

	catID, err := EnsureCategory(&model.Category{DatasetID: datasetID, Name: "dog"})
	if err != nil {
		t.Fatalf("EnsureCategory failed: %v", err)
	}
	if _, err := AddAnnotation(&model.Annotation{
		ImageID: imageID, CategoryID: catID,
		BboxXmin: 10, BboxYmin: 10, BboxWidth: 100, BboxHeight: 100, Area: 10000,
	}); err != nil {
		t.Fatalf("AddAnnotation failed: %v", err)
	}

	violations, err := VerifyIntegrity()
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected clean database, got violations: %+v", violations)
	}

	// A box extending past the image edge is a geometric violation.
	if _, err := AddAnnotation(&model.Annotation{
		ImageID: imageID, CategoryID: catID,
		BboxXmin: 600, BboxYmin: 400, BboxWidth: 100, BboxHeight: 100, Area: 10000,
	}); err != nil {
		t.Fatalf("AddAnnotation failed: %v", err)
	}

	violations, err = VerifyIntegrity()
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected one violation, got: %+v", violations)
	}
	if violations[0].Check != "bbox outside image bounds" {
		t.Fatalf("unexpected violation check: %q", violations[0].Check)
	}
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	_ = newTestDB(t)
	datasetID, imageID := seedImage(t, "img-1")

	catID, err := EnsureCategory(&model.Category{DatasetID: datasetID, Name: "dog", Supercategory: "animal"})
	if err != nil {
		t.Fatalf("EnsureCategory failed: %v", err)
	}
	crowd := 1
	annID, err := AddAnnotation(&model.Annotation{
		ImageID: imageID, CategoryID: catID,
		BboxXmin: 1.5, BboxYmin: 2.5, BboxWidth: 10, BboxHeight: 20, Area: 200,
		IsCrowd: &crowd, SourceInfo: "truncated=1;pose=Left",
	})
	if err != nil {
		t.Fatalf("AddAnnotation failed: %v", err)
	}
	if _, err := AddSegmentation(&model.Segmentation{
		AnnotationID: annID, Format: model.SegmentationRLE, Data: `{"counts":"abc","size":[480,640]}`,
	}); err != nil {
		t.Fatalf("AddSegmentation failed: %v", err)
	}

	backup, err := ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup failed: %v", err)
	}
	if len(backup.Datasets) != 1 || len(backup.Images) != 1 || len(backup.Annotations) != 1 || len(backup.Segmentations) != 1 {
		t.Fatalf("unexpected backup shape: %+v", backup)
	}

	// Wipe and restore into the same database.
	if err := ResetSchema(); err != nil {
		t.Fatalf("ResetSchema failed: %v", err)
	}
	if err := ImportDataFromBackup(backup); err != nil {
		t.Fatalf("ImportDataFromBackup failed: %v", err)
	}

	restored, err := ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup after restore failed: %v", err)
	}
	if len(restored.Annotations) != 1 {
		t.Fatalf("expected one restored annotation, got %d", len(restored.Annotations))
	}
	ann := restored.Annotations[0]
	if ann.BboxXmin != 1.5 || ann.BboxWidth != 10 || ann.IsCrowd == nil || *ann.IsCrowd != 1 {
		t.Fatalf("restored annotation does not match original: %+v", ann)
	}
	if restored.Segmentations[0].Format != model.SegmentationRLE {
		t.Fatalf("restored segmentation lost its format: %+v", restored.Segmentations[0])
	}
}

func TestMapDBError_Classification(t *testing.T) {
	if got := MapDBError(errors.New("UNIQUE constraint failed: images.dataset_id, images.external_id")); !errors.Is(got, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got: %v", got)
	}
	if got := MapDBError(errors.New("FOREIGN KEY constraint failed")); !errors.Is(got, ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got: %v", got)
	}
	plain := errors.New("disk I/O error")
	if got := MapDBError(plain); got != plain {
		t.Fatalf("expected unknown errors passed through, got: %v", got)
	}
}
