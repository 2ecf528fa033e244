// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/toeirei/annodb/internal/model"
	"github.com/uptrace/bun"
)

// ExportDataForBackupBun retrieves all rows from all five tables inside a
// single transaction for a consistent snapshot.
func ExportDataForBackupBun(bdb *bun.DB) (*model.BackupData, error) {
	ctx := context.Background()

	tx, err := bdb.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	backup := &model.BackupData{}

	var datasets []DatasetModel
	if err := tx.NewSelect().Model(&datasets).Order("dataset_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export datasets: %w", err)
	}
	for _, d := range datasets {
		backup.Datasets = append(backup.Datasets, datasetModelToModel(d))
	}

	var images []ImageModel
	if err := tx.NewSelect().Model(&images).Order("image_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export images: %w", err)
	}
	for _, i := range images {
		backup.Images = append(backup.Images, imageModelToModel(i))
	}

	var categories []CategoryModel
	if err := tx.NewSelect().Model(&categories).Order("category_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export categories: %w", err)
	}
	for _, c := range categories {
		backup.Categories = append(backup.Categories, categoryModelToModel(c))
	}

	var annotations []AnnotationModel
	if err := tx.NewSelect().Model(&annotations).Order("annotation_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export annotations: %w", err)
	}
	for _, a := range annotations {
		backup.Annotations = append(backup.Annotations, annotationModelToModel(a))
	}

	var segmentations []SegmentationModel
	if err := tx.NewSelect().Model(&segmentations).Order("segmentation_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to export segmentations: %w", err)
	}
	for _, s := range segmentations {
		backup.Segmentations = append(backup.Segmentations, model.Segmentation{
			ID:           s.ID,
			AnnotationID: s.AnnotationID,
			Format:       s.Format,
			Data:         s.Data,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return backup, nil
}

// ImportDataFromBackupBun performs a full wipe-and-replace restore within a
// single transaction. Row ids are preserved so cross-table references in the
// backup stay valid.
func ImportDataFromBackupBun(bdb *bun.DB, backup *model.BackupData) error {
	ctx := context.Background()

	tx, err := bdb.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Wipe children before parents.
	for _, table := range []string{"segmentations", "annotations", "categories", "images", "datasets"} {
		if _, err := ExecRaw(ctx, tx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	// Insert parents before children, keeping original ids.
	for _, d := range backup.Datasets {
		dm := &DatasetModel{
			ID:          d.ID,
			Name:        d.Name,
			Version:     nullStr(d.Version),
			Description: nullStr(d.Description),
		}
		if _, err := tx.NewInsert().Model(dm).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore dataset %q: %w", d.Name, err)
		}
	}
	for i := range backup.Images {
		im := imageModelFromModel(&backup.Images[i])
		if _, err := tx.NewInsert().Model(im).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore image %q: %w", backup.Images[i].ExternalID, err)
		}
	}
	for _, c := range backup.Categories {
		cm := &CategoryModel{
			ID:            c.ID,
			DatasetID:     c.DatasetID,
			Name:          c.Name,
			Supercategory: nullStr(c.Supercategory),
			ExternalID:    nullStr(c.ExternalID),
		}
		if _, err := tx.NewInsert().Model(cm).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore category %q: %w", c.Name, err)
		}
	}
	for i := range backup.Annotations {
		am := annotationModelFromModel(&backup.Annotations[i])
		if _, err := tx.NewInsert().Model(am).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore annotation %d: %w", backup.Annotations[i].ID, err)
		}
	}
	for _, s := range backup.Segmentations {
		sm := &SegmentationModel{
			ID:           s.ID,
			AnnotationID: s.AnnotationID,
			Format:       s.Format,
			Data:         s.Data,
		}
		if _, err := tx.NewInsert().Model(sm).Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore segmentation %d: %w", s.ID, err)
		}
	}

	return tx.Commit()
}
