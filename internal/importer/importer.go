// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

// Package importer contains the per-dataset ETL routines that normalize
// COCO, PASCAL VOC and OpenImages annotation metadata into the unified
// schema. Each importer shares the same pattern: ensure the Dataset row,
// insert Image rows keyed by (dataset_id, external_id), ensure Category
// rows keyed by (dataset_id, name), then insert normalized Annotation and
// Segmentation rows. Malformed source records are skipped with a warning;
// they never abort the run.
package importer

import (
	"errors"

	"github.com/toeirei/annodb/internal/db"
	"github.com/toeirei/annodb/internal/logging"
	"github.com/toeirei/annodb/internal/model"
)

// Dataset identities seeded by `annodb init` and looked up by the importers.
const (
	CocoDatasetName       = "COCO"
	VocDatasetName        = "VOC2007"
	OpenImagesDatasetName = "OpenImagesV7"
)

// seedDatasets describes the three source datasets the schema initializer
// registers. Importers reuse these rows via EnsureDataset, so running an
// importer against a fresh schema also works.
var seedDatasets = []model.Dataset{
	{Name: CocoDatasetName, Version: "2017", Description: "COCO 2017 detection dataset"},
	{Name: VocDatasetName, Version: "2007", Description: "PASCAL VOC 2007 dataset"},
	{Name: OpenImagesDatasetName, Version: "v7", Description: "OpenImages v7 boxable subset"},
}

// SeedDatasets inserts (or reuses) the Dataset rows for all known sources.
func SeedDatasets(st db.Store) error {
	for _, ds := range seedDatasets {
		if _, err := st.EnsureDataset(ds.Name, ds.Version, ds.Description); err != nil {
			return err
		}
	}
	return nil
}

// Result accumulates row counts for one importer run.
type Result struct {
	Images        int
	Categories    int
	Annotations   int
	Segmentations int
	Skipped       int
}

func (r *Result) add(other Result) {
	r.Images += other.Images
	r.Categories += other.Categories
	r.Annotations += other.Annotations
	r.Segmentations += other.Segmentations
	r.Skipped += other.Skipped
}

// categoryCache memoizes EnsureCategory lookups per importer run so each
// distinct label hits the database once.
type categoryCache struct {
	st    db.Store
	byKey map[string]int
	added int
}

func newCategoryCache(st db.Store) *categoryCache {
	return &categoryCache{st: st, byKey: make(map[string]int)}
}

// id returns the database id for the category, inserting it on first use.
// The cache key is the source-side identity (COCO numeric id, VOC label,
// OpenImages MID) which may differ from the stored display name.
func (c *categoryCache) id(key string, cat *model.Category) (int, error) {
	if id, ok := c.byKey[key]; ok {
		return id, nil
	}
	before := len(c.byKey)
	id, err := c.st.EnsureCategory(cat)
	if err != nil {
		return 0, err
	}
	c.byKey[key] = id
	if len(c.byKey) > before {
		c.added++
	}
	return id, nil
}

// logImageCount reports the dataset's total image count after a run.
func logImageCount(st db.Store, prefix string, datasetID int) {
	if n, err := st.CountImages(datasetID); err == nil {
		logging.Infof("%s: dataset now holds %d images", prefix, n)
	}
}

// insertImage adds an image row, reusing the existing row when the
// (dataset_id, external_id) pair was already imported. The bool result
// reports whether a new row was created.
func insertImage(st db.Store, img *model.Image) (int, bool, error) {
	id, err := st.AddImage(img)
	if err == nil {
		return id, true, nil
	}
	if errors.Is(err, db.ErrDuplicate) {
		logging.Warnf("importer: image %q already present in dataset %d, reusing", img.ExternalID, img.DatasetID)
		existing, gerr := st.GetImageByExternalID(img.DatasetID, img.ExternalID)
		if gerr != nil {
			return 0, false, gerr
		}
		return existing.ID, false, nil
	}
	return 0, false, err
}

// insertAnnotation adds an annotation row, treating foreign-key rejections
// as a per-record failure rather than a run abort.
func insertAnnotation(st db.Store, ann *model.Annotation, res *Result) {
	if _, err := st.AddAnnotation(ann); err != nil {
		if errors.Is(err, db.ErrForeignKey) {
			logging.Warnf("importer: annotation rejected (missing image or category), skipping: %v", err)
		} else {
			logging.Warnf("importer: annotation insert failed, skipping: %v", err)
		}
		res.Skipped++
		return
	}
	res.Annotations++
}
