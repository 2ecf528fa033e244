// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"github.com/toeirei/annodb/internal/model"
)

// DatasetStats is one row of the stats report.
type DatasetStats struct {
	DatasetID     int
	Name          string
	Images        int
	Categories    int
	Annotations   int
	Segmentations int
}

// Violation is one failed integrity check, reported by VerifyIntegrity.
type Violation struct {
	Check  string
	Detail string
}

// Store defines the interface for all database operations in Annodb.
// This allows for multiple database backends to be implemented.
type Store interface {
	// Dataset methods
	EnsureDataset(name, version, description string) (int, error)
	GetDatasetByName(name string) (*model.Dataset, error)
	GetAllDatasets() ([]model.Dataset, error)

	// Image methods
	AddImage(img *model.Image) (int, error)
	GetImageByExternalID(datasetID int, externalID string) (*model.Image, error)
	CountImages(datasetID int) (int, error)

	// Category methods
	EnsureCategory(cat *model.Category) (int, error)

	// Annotation and Segmentation methods
	AddAnnotation(ann *model.Annotation) (int, error)
	AddSegmentation(seg *model.Segmentation) (int, error)

	// Reporting methods
	GetDatasetStats() ([]DatasetStats, error)
	VerifyIntegrity() ([]Violation, error)

	// Schema and lifecycle methods
	ResetSchema() error

	// Backup methods
	ExportDataForBackup() (*model.BackupData, error)
	ImportDataFromBackup(backup *model.BackupData) error
}
