// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the core domain types shared across Annodb.
// These are plain structs; database mapping lives in the db package.
package model

import "fmt"

// Dataset is one source dataset (COCO, VOC2007, OpenImagesV7). Created once
// at import time and immutable thereafter.
type Dataset struct {
	ID          int
	Name        string
	Version     string
	Description string
}

// String returns the name@version representation.
func (d Dataset) String() string {
	return fmt.Sprintf("%s@%s", d.Name, d.Version)
}

// Image is one source image scoped to a dataset. ExternalID is the identifier
// the source dataset uses (COCO numeric id, VOC file stem, OpenImages hash);
// (DatasetID, ExternalID) is unique. Width and Height are nil when the source
// metadata does not carry dimensions.
type Image struct {
	ID         int
	DatasetID  int
	ExternalID string
	Width      *int
	Height     *int
	FilePath   string
	Split      string
}

// Category is one class label scoped to a dataset. Category namespaces are
// independent per dataset; the same label in two datasets yields two rows.
type Category struct {
	ID            int
	DatasetID     int
	Name          string
	Supercategory string
	ExternalID    string
}

// Annotation is one bounding-box instance. Coordinates follow the unified
// (xmin, ymin, width, height) convention in pixels, except for OpenImages
// rows without known image dimensions, which stay normalized and are tagged
// in SourceInfo.
type Annotation struct {
	ID         int
	ImageID    int
	CategoryID int
	BboxXmin   float64
	BboxYmin   float64
	BboxWidth  float64
	BboxHeight float64
	Area       float64
	IsCrowd    *int
	Difficulty *int
	SourceInfo string
}

// Segmentation formats stored in the segmentations table.
const (
	SegmentationPolygon = "polygon"
	SegmentationRLE     = "rle"
)

// Segmentation holds serialized polygon or RLE mask data for an annotation.
type Segmentation struct {
	ID           int
	AnnotationID int
	Format       string
	Data         string
}

// BackupData is the serializable snapshot of the whole database, used by the
// backup, restore and migrate commands.
type BackupData struct {
	Datasets      []Dataset      `json:"datasets"`
	Images        []Image        `json:"images"`
	Categories    []Category     `json:"categories"`
	Annotations   []Annotation   `json:"annotations"`
	Segmentations []Segmentation `json:"segmentations"`
}
