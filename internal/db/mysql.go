// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for Annodb.
// This file contains the MySQL implementation of the database store.
// MySQL DSNs must enable multiStatements for the migration runner.
package db // import "github.com/toeirei/annodb/internal/db"

import (
	"github.com/toeirei/annodb/internal/model"
	"github.com/uptrace/bun"
	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLStore is the MySQL implementation of the Store interface.
type MySQLStore struct {
	bun *bun.DB
}

// EnsureDataset inserts or reuses the dataset row with the given name.
func (s *MySQLStore) EnsureDataset(name, version, description string) (int, error) {
	return EnsureDatasetBun(s.bun, name, version, description)
}

// GetDatasetByName retrieves a dataset row by its unique name.
func (s *MySQLStore) GetDatasetByName(name string) (*model.Dataset, error) {
	return GetDatasetByNameBun(s.bun, name)
}

// GetAllDatasets retrieves all dataset rows.
func (s *MySQLStore) GetAllDatasets() ([]model.Dataset, error) {
	return GetAllDatasetsBun(s.bun)
}

// AddImage inserts an image row.
func (s *MySQLStore) AddImage(img *model.Image) (int, error) {
	return AddImageBun(s.bun, img)
}

// GetImageByExternalID retrieves an image by its dataset-scoped external id.
func (s *MySQLStore) GetImageByExternalID(datasetID int, externalID string) (*model.Image, error) {
	return GetImageByExternalIDBun(s.bun, datasetID, externalID)
}

// CountImages counts images belonging to a dataset.
func (s *MySQLStore) CountImages(datasetID int) (int, error) {
	return CountImagesBun(s.bun, datasetID)
}

// EnsureCategory inserts or reuses a category keyed by (dataset_id, name).
func (s *MySQLStore) EnsureCategory(cat *model.Category) (int, error) {
	return EnsureCategoryBun(s.bun, cat)
}

// AddAnnotation inserts an annotation row.
func (s *MySQLStore) AddAnnotation(ann *model.Annotation) (int, error) {
	return AddAnnotationBun(s.bun, ann)
}

// AddSegmentation inserts a segmentation row.
func (s *MySQLStore) AddSegmentation(seg *model.Segmentation) (int, error) {
	return AddSegmentationBun(s.bun, seg)
}

// GetDatasetStats builds the per-dataset row-count report.
func (s *MySQLStore) GetDatasetStats() ([]DatasetStats, error) {
	return GetDatasetStatsBun(s.bun)
}

// VerifyIntegrity runs the invariant probes.
func (s *MySQLStore) VerifyIntegrity() ([]Violation, error) {
	return VerifyIntegrityBun(s.bun)
}

// ResetSchema drops and recreates all annotation tables.
func (s *MySQLStore) ResetSchema() error {
	return resetSchemaBun(s.bun, "mysql")
}

// ExportDataForBackup retrieves all data from the database for a backup.
func (s *MySQLStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

// ImportDataFromBackup restores the database from a backup data structure.
func (s *MySQLStore) ImportDataFromBackup(backup *model.BackupData) error {
	return ImportDataFromBackupBun(s.bun, backup)
}
