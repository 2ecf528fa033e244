// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/toeirei/annodb/internal/model"
	"github.com/uptrace/bun"
)

// DatasetModel maps the `datasets` table for Bun queries.
type DatasetModel struct {
	bun.BaseModel `bun:"table:datasets"`
	ID            int            `bun:"dataset_id,pk,autoincrement"`
	Name          string         `bun:"name"`
	Version       sql.NullString `bun:"version"`
	Description   sql.NullString `bun:"description"`
}

// ImageModel maps the `images` table.
type ImageModel struct {
	bun.BaseModel `bun:"table:images"`
	ID            int            `bun:"image_id,pk,autoincrement"`
	DatasetID     int            `bun:"dataset_id"`
	ExternalID    string         `bun:"external_id"`
	Width         sql.NullInt64  `bun:"width"`
	Height        sql.NullInt64  `bun:"height"`
	FilePath      sql.NullString `bun:"file_path"`
	Split         sql.NullString `bun:"split"`
}

// CategoryModel maps the `categories` table.
type CategoryModel struct {
	bun.BaseModel `bun:"table:categories"`
	ID            int            `bun:"category_id,pk,autoincrement"`
	DatasetID     int            `bun:"dataset_id"`
	Name          string         `bun:"name"`
	Supercategory sql.NullString `bun:"supercategory"`
	ExternalID    sql.NullString `bun:"external_id"`
}

// AnnotationModel maps the `annotations` table.
type AnnotationModel struct {
	bun.BaseModel `bun:"table:annotations"`
	ID            int             `bun:"annotation_id,pk,autoincrement"`
	ImageID       int             `bun:"image_id"`
	CategoryID    int             `bun:"category_id"`
	BboxXmin      float64         `bun:"bbox_xmin"`
	BboxYmin      float64         `bun:"bbox_ymin"`
	BboxWidth     float64         `bun:"bbox_width"`
	BboxHeight    float64         `bun:"bbox_height"`
	Area          sql.NullFloat64 `bun:"area"`
	IsCrowd       sql.NullInt64   `bun:"is_crowd"`
	Difficulty    sql.NullInt64   `bun:"difficulty"`
	SourceInfo    sql.NullString  `bun:"source_info"`
}

// SegmentationModel maps the `segmentations` table.
type SegmentationModel struct {
	bun.BaseModel `bun:"table:segmentations"`
	ID            int    `bun:"segmentation_id,pk,autoincrement"`
	AnnotationID  int    `bun:"annotation_id"`
	Format        string `bun:"format"`
	Data          string `bun:"data"`
}

// --- Mapping helpers (centralized conversions) ---

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullIntPtr(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtrFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func datasetModelToModel(d DatasetModel) model.Dataset {
	return model.Dataset{
		ID:          d.ID,
		Name:        d.Name,
		Version:     d.Version.String,
		Description: d.Description.String,
	}
}

func imageModelToModel(i ImageModel) model.Image {
	return model.Image{
		ID:         i.ID,
		DatasetID:  i.DatasetID,
		ExternalID: i.ExternalID,
		Width:      intPtrFromNull(i.Width),
		Height:     intPtrFromNull(i.Height),
		FilePath:   i.FilePath.String,
		Split:      i.Split.String,
	}
}

func imageModelFromModel(img *model.Image) *ImageModel {
	return &ImageModel{
		ID:         img.ID,
		DatasetID:  img.DatasetID,
		ExternalID: img.ExternalID,
		Width:      nullIntPtr(img.Width),
		Height:     nullIntPtr(img.Height),
		FilePath:   nullStr(img.FilePath),
		Split:      nullStr(img.Split),
	}
}

func categoryModelToModel(c CategoryModel) model.Category {
	return model.Category{
		ID:            c.ID,
		DatasetID:     c.DatasetID,
		Name:          c.Name,
		Supercategory: c.Supercategory.String,
		ExternalID:    c.ExternalID.String,
	}
}

func annotationModelFromModel(ann *model.Annotation) *AnnotationModel {
	return &AnnotationModel{
		ID:         ann.ID,
		ImageID:    ann.ImageID,
		CategoryID: ann.CategoryID,
		BboxXmin:   ann.BboxXmin,
		BboxYmin:   ann.BboxYmin,
		BboxWidth:  ann.BboxWidth,
		BboxHeight: ann.BboxHeight,
		Area:       sql.NullFloat64{Float64: ann.Area, Valid: true},
		IsCrowd:    nullIntPtr(ann.IsCrowd),
		Difficulty: nullIntPtr(ann.Difficulty),
		SourceInfo: nullStr(ann.SourceInfo),
	}
}

func annotationModelToModel(a AnnotationModel) model.Annotation {
	return model.Annotation{
		ID:         a.ID,
		ImageID:    a.ImageID,
		CategoryID: a.CategoryID,
		BboxXmin:   a.BboxXmin,
		BboxYmin:   a.BboxYmin,
		BboxWidth:  a.BboxWidth,
		BboxHeight: a.BboxHeight,
		Area:       a.Area.Float64,
		IsCrowd:    intPtrFromNull(a.IsCrowd),
		Difficulty: intPtrFromNull(a.Difficulty),
		SourceInfo: a.SourceInfo.String,
	}
}

// --- Dataset helpers ---

// EnsureDatasetBun inserts the dataset if missing and returns its id. A
// concurrent duplicate insert degrades to a re-select.
func EnsureDatasetBun(bdb *bun.DB, name, version, description string) (int, error) {
	ctx := context.Background()

	var existing DatasetModel
	err := bdb.NewSelect().Model(&existing).Where("name = ?", name).Limit(1).Scan(ctx)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	ds := &DatasetModel{
		Name:        name,
		Version:     nullStr(version),
		Description: nullStr(description),
	}
	if _, err := bdb.NewInsert().Model(ds).Exec(ctx); err != nil {
		if errors.Is(MapDBError(err), ErrDuplicate) {
			err = bdb.NewSelect().Model(&existing).Where("name = ?", name).Limit(1).Scan(ctx)
			if err != nil {
				return 0, err
			}
			return existing.ID, nil
		}
		return 0, err
	}
	return ds.ID, nil
}

// GetDatasetByNameBun returns the dataset row with the given name, or
// ErrNotFound when absent.
func GetDatasetByNameBun(bdb *bun.DB, name string) (*model.Dataset, error) {
	ctx := context.Background()

	var dm DatasetModel
	err := bdb.NewSelect().Model(&dm).Where("name = ?", name).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dataset %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	m := datasetModelToModel(dm)
	return &m, nil
}

// GetAllDatasetsBun returns all dataset rows ordered by id.
func GetAllDatasetsBun(bdb *bun.DB) ([]model.Dataset, error) {
	ctx := context.Background()

	var rows []DatasetModel
	if err := bdb.NewSelect().Model(&rows).Order("dataset_id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Dataset, 0, len(rows))
	for _, r := range rows {
		out = append(out, datasetModelToModel(r))
	}
	return out, nil
}

// --- Image helpers ---

// AddImageBun inserts an image row and returns its new id. Duplicate
// (dataset_id, external_id) pairs map to ErrDuplicate.
func AddImageBun(bdb *bun.DB, img *model.Image) (int, error) {
	ctx := context.Background()

	im := imageModelFromModel(img)
	im.ID = 0
	if _, err := bdb.NewInsert().Model(im).Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return im.ID, nil
}

// GetImageByExternalIDBun looks up an image by its dataset-scoped external id.
func GetImageByExternalIDBun(bdb *bun.DB, datasetID int, externalID string) (*model.Image, error) {
	ctx := context.Background()

	var im ImageModel
	err := bdb.NewSelect().Model(&im).
		Where("dataset_id = ?", datasetID).
		Where("external_id = ?", externalID).
		Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("image %q in dataset %d: %w", externalID, datasetID, ErrNotFound)
		}
		return nil, err
	}
	m := imageModelToModel(im)
	return &m, nil
}

// CountImagesBun counts images belonging to a dataset.
func CountImagesBun(bdb *bun.DB, datasetID int) (int, error) {
	ctx := context.Background()
	return bdb.NewSelect().Model((*ImageModel)(nil)).Where("dataset_id = ?", datasetID).Count(ctx)
}

// --- Category helpers ---

// EnsureCategoryBun inserts the category if missing, keyed by
// (dataset_id, name), and returns its id.
func EnsureCategoryBun(bdb *bun.DB, cat *model.Category) (int, error) {
	ctx := context.Background()

	var existing CategoryModel
	err := bdb.NewSelect().Model(&existing).
		Where("dataset_id = ?", cat.DatasetID).
		Where("name = ?", cat.Name).
		Limit(1).Scan(ctx)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	cm := &CategoryModel{
		DatasetID:     cat.DatasetID,
		Name:          cat.Name,
		Supercategory: nullStr(cat.Supercategory),
		ExternalID:    nullStr(cat.ExternalID),
	}
	if _, err := bdb.NewInsert().Model(cm).Exec(ctx); err != nil {
		if errors.Is(MapDBError(err), ErrDuplicate) {
			err = bdb.NewSelect().Model(&existing).
				Where("dataset_id = ?", cat.DatasetID).
				Where("name = ?", cat.Name).
				Limit(1).Scan(ctx)
			if err != nil {
				return 0, err
			}
			return existing.ID, nil
		}
		return 0, err
	}
	return cm.ID, nil
}

// --- Annotation and segmentation helpers ---

// AddAnnotationBun inserts an annotation row and returns its new id. Inserts
// referencing missing images or categories map to ErrForeignKey.
func AddAnnotationBun(bdb *bun.DB, ann *model.Annotation) (int, error) {
	ctx := context.Background()

	am := annotationModelFromModel(ann)
	am.ID = 0
	if _, err := bdb.NewInsert().Model(am).Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return am.ID, nil
}

// AddSegmentationBun inserts a segmentation row and returns its new id.
func AddSegmentationBun(bdb *bun.DB, seg *model.Segmentation) (int, error) {
	ctx := context.Background()

	sm := &SegmentationModel{
		AnnotationID: seg.AnnotationID,
		Format:       seg.Format,
		Data:         seg.Data,
	}
	if _, err := bdb.NewInsert().Model(sm).Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return sm.ID, nil
}

// --- Reporting helpers ---

// GetDatasetStatsBun builds the per-dataset row-count report.
func GetDatasetStatsBun(bdb *bun.DB) ([]DatasetStats, error) {
	ctx := context.Background()

	datasets, err := GetAllDatasetsBun(bdb)
	if err != nil {
		return nil, err
	}

	out := make([]DatasetStats, 0, len(datasets))
	for _, ds := range datasets {
		st := DatasetStats{DatasetID: ds.ID, Name: ds.Name}
		if err := QueryRawInto(ctx, bdb, &st.Images,
			"SELECT COUNT(*) FROM images WHERE dataset_id = ?", ds.ID); err != nil {
			return nil, err
		}
		if err := QueryRawInto(ctx, bdb, &st.Categories,
			"SELECT COUNT(*) FROM categories WHERE dataset_id = ?", ds.ID); err != nil {
			return nil, err
		}
		if err := QueryRawInto(ctx, bdb, &st.Annotations,
			"SELECT COUNT(*) FROM annotations a JOIN images i ON a.image_id = i.image_id WHERE i.dataset_id = ?", ds.ID); err != nil {
			return nil, err
		}
		if err := QueryRawInto(ctx, bdb, &st.Segmentations,
			"SELECT COUNT(*) FROM segmentations s JOIN annotations a ON s.annotation_id = a.annotation_id JOIN images i ON a.image_id = i.image_id WHERE i.dataset_id = ?", ds.ID); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// integrityChecks are the SQL probes run by VerifyIntegrityBun. Each query
// must return a single count; a nonzero count is a violation.
var integrityChecks = []struct {
	name  string
	query string
}{
	{
		name:  "nonpositive bbox extent",
		query: "SELECT COUNT(*) FROM annotations WHERE bbox_width <= 0 OR bbox_height <= 0",
	},
	{
		name: "bbox outside image bounds",
		query: "SELECT COUNT(*) FROM annotations a JOIN images i ON a.image_id = i.image_id " +
			"WHERE i.width IS NOT NULL AND i.height IS NOT NULL " +
			"AND (a.bbox_xmin < 0 OR a.bbox_ymin < 0 " +
			"OR a.bbox_xmin + a.bbox_width > i.width " +
			"OR a.bbox_ymin + a.bbox_height > i.height)",
	},
	{
		name: "duplicate (dataset_id, external_id)",
		query: "SELECT COUNT(*) FROM (SELECT dataset_id, external_id FROM images " +
			"GROUP BY dataset_id, external_id HAVING COUNT(*) > 1) AS dupes",
	},
	{
		name:  "annotation referencing missing image",
		query: "SELECT COUNT(*) FROM annotations a LEFT JOIN images i ON a.image_id = i.image_id WHERE i.image_id IS NULL",
	},
	{
		name:  "annotation referencing missing category",
		query: "SELECT COUNT(*) FROM annotations a LEFT JOIN categories c ON a.category_id = c.category_id WHERE c.category_id IS NULL",
	},
	{
		name:  "segmentation referencing missing annotation",
		query: "SELECT COUNT(*) FROM segmentations s LEFT JOIN annotations a ON s.annotation_id = a.annotation_id WHERE a.annotation_id IS NULL",
	},
	{
		name:  "image referencing missing dataset",
		query: "SELECT COUNT(*) FROM images i LEFT JOIN datasets d ON i.dataset_id = d.dataset_id WHERE d.dataset_id IS NULL",
	},
	{
		name:  "category referencing missing dataset",
		query: "SELECT COUNT(*) FROM categories c LEFT JOIN datasets d ON c.dataset_id = d.dataset_id WHERE d.dataset_id IS NULL",
	},
}

// VerifyIntegrityBun runs the invariant probes and returns one Violation per
// failed check.
func VerifyIntegrityBun(bdb *bun.DB) ([]Violation, error) {
	ctx := context.Background()

	var out []Violation
	for _, check := range integrityChecks {
		var count int
		if err := QueryRawInto(ctx, bdb, &count, check.query); err != nil {
			return nil, fmt.Errorf("integrity check %q failed to run: %w", check.name, err)
		}
		if count > 0 {
			out = append(out, Violation{
				Check:  check.name,
				Detail: fmt.Sprintf("%d offending rows", count),
			})
		}
	}
	return out, nil
}
