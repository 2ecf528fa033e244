// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for Annodb.
// This file contains the SQLite implementation of the database store.
package db // import "github.com/toeirei/annodb/internal/db"

import (
	"github.com/toeirei/annodb/internal/model"
	"github.com/uptrace/bun"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SqliteStore is the SQLite implementation of the Store interface.
type SqliteStore struct {
	bun *bun.DB
}

// EnsureDataset inserts or reuses the dataset row with the given name.
func (s *SqliteStore) EnsureDataset(name, version, description string) (int, error) {
	return EnsureDatasetBun(s.bun, name, version, description)
}

// GetDatasetByName retrieves a dataset row by its unique name.
func (s *SqliteStore) GetDatasetByName(name string) (*model.Dataset, error) {
	return GetDatasetByNameBun(s.bun, name)
}

// GetAllDatasets retrieves all dataset rows.
func (s *SqliteStore) GetAllDatasets() ([]model.Dataset, error) {
	return GetAllDatasetsBun(s.bun)
}

// AddImage inserts an image row.
func (s *SqliteStore) AddImage(img *model.Image) (int, error) {
	return AddImageBun(s.bun, img)
}

// GetImageByExternalID retrieves an image by its dataset-scoped external id.
func (s *SqliteStore) GetImageByExternalID(datasetID int, externalID string) (*model.Image, error) {
	return GetImageByExternalIDBun(s.bun, datasetID, externalID)
}

// CountImages counts images belonging to a dataset.
func (s *SqliteStore) CountImages(datasetID int) (int, error) {
	return CountImagesBun(s.bun, datasetID)
}

// EnsureCategory inserts or reuses a category keyed by (dataset_id, name).
func (s *SqliteStore) EnsureCategory(cat *model.Category) (int, error) {
	return EnsureCategoryBun(s.bun, cat)
}

// AddAnnotation inserts an annotation row.
func (s *SqliteStore) AddAnnotation(ann *model.Annotation) (int, error) {
	return AddAnnotationBun(s.bun, ann)
}

// AddSegmentation inserts a segmentation row.
func (s *SqliteStore) AddSegmentation(seg *model.Segmentation) (int, error) {
	return AddSegmentationBun(s.bun, seg)
}

// GetDatasetStats builds the per-dataset row-count report.
func (s *SqliteStore) GetDatasetStats() ([]DatasetStats, error) {
	return GetDatasetStatsBun(s.bun)
}

// VerifyIntegrity runs the invariant probes.
func (s *SqliteStore) VerifyIntegrity() ([]Violation, error) {
	return VerifyIntegrityBun(s.bun)
}

// ResetSchema drops and recreates all annotation tables.
func (s *SqliteStore) ResetSchema() error {
	return resetSchemaBun(s.bun, "sqlite")
}

// ExportDataForBackup retrieves all data from the database for a backup.
// It uses a transaction to ensure a consistent snapshot of the data.
func (s *SqliteStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

// ImportDataFromBackup restores the database from a backup data structure.
// It performs a full wipe-and-replace within a single transaction to ensure atomicity.
func (s *SqliteStore) ImportDataFromBackup(backup *model.BackupData) error {
	return ImportDataFromBackupBun(s.bun, backup)
}
