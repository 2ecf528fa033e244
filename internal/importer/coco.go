// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/toeirei/annodb/internal/db"
	"github.com/toeirei/annodb/internal/logging"
	"github.com/toeirei/annodb/internal/model"
)

// cocoSplitFiles maps split labels to the conventional COCO instances files.
var cocoSplitFiles = map[string]string{
	"train": "instances_train2017.json",
	"val":   "instances_val2017.json",
}

// cocoImage is one entry of the top-level "images" array.
type cocoImage struct {
	ID       int64  `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`
}

// cocoCategory is one entry of the top-level "categories" array.
type cocoCategory struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// cocoAnnotation is one entry of the top-level "annotations" array. The
// segmentation field is kept raw: polygons arrive as nested arrays, crowd
// masks as an RLE object.
type cocoAnnotation struct {
	ID           int64           `json:"id"`
	ImageID      int64           `json:"image_id"`
	CategoryID   int64           `json:"category_id"`
	Bbox         []float64       `json:"bbox"`
	Area         float64         `json:"area"`
	IsCrowd      *int            `json:"iscrowd"`
	Segmentation json.RawMessage `json:"segmentation"`
}

// cocoInstances is the relevant subset of a COCO instances file.
type cocoInstances struct {
	Images      []cocoImage      `json:"images"`
	Categories  []cocoCategory   `json:"categories"`
	Annotations []cocoAnnotation `json:"annotations"`
}

// ImportCOCO reads the COCO instances JSON files under dir and loads them
// into the unified schema. COCO boxes already use the target
// (xmin, ymin, width, height) convention, so no coordinate transform is
// needed beyond validation.
func ImportCOCO(st db.Store, dir string) (Result, error) {
	var res Result

	for _, name := range cocoSplitFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return res, fmt.Errorf("missing COCO annotation file %s: %w", name, err)
		}
	}

	datasetID, err := st.EnsureDataset(CocoDatasetName, "2017", "COCO 2017 detection dataset")
	if err != nil {
		return res, err
	}
	logging.Debugf("coco: using dataset_id=%d", datasetID)

	cats := newCategoryCache(st)

	// Deterministic split order keeps reruns comparable.
	for _, split := range []string{"train", "val"} {
		path := filepath.Join(dir, cocoSplitFiles[split])
		logging.Infof("coco: processing %s", path)

		var data cocoInstances
		if err := decodeJSONFile(path, &data); err != nil {
			return res, err
		}
		partial, err := importCocoSplit(st, datasetID, split, &data, cats)
		res.add(partial)
		if err != nil {
			return res, err
		}
	}

	res.Categories = cats.added
	logImageCount(st, "coco", datasetID)
	return res, nil
}

func decodeJSONFile(path string, dest interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewDecoder(f).Decode(dest); err != nil {
		return fmt.Errorf("could not parse %s: %w", path, err)
	}
	return nil
}

// importCocoSplit loads one instances file. Categories are ensured through
// the shared cache so ids stay stable across the train and val files.
func importCocoSplit(st db.Store, datasetID int, split string, data *cocoInstances, cats *categoryCache) (Result, error) {
	var res Result

	catIDs := make(map[int64]int, len(data.Categories))
	for _, cat := range data.Categories {
		key := "coco:" + strconv.FormatInt(cat.ID, 10)
		id, err := cats.id(key, &model.Category{
			DatasetID:     datasetID,
			Name:          cat.Name,
			Supercategory: cat.Supercategory,
			ExternalID:    strconv.FormatInt(cat.ID, 10),
		})
		if err != nil {
			return res, err
		}
		catIDs[cat.ID] = id
	}

	imageIDs := make(map[int64]int, len(data.Images))
	for i := range data.Images {
		img := &data.Images[i]
		if img.Width <= 0 || img.Height <= 0 {
			logging.Warnf("coco: image %d has invalid dimensions %dx%d, skipping", img.ID, img.Width, img.Height)
			res.Skipped++
			continue
		}
		w, h := img.Width, img.Height
		id, created, err := insertImage(st, &model.Image{
			DatasetID:  datasetID,
			ExternalID: strconv.FormatInt(img.ID, 10),
			Width:      &w,
			Height:     &h,
			FilePath:   img.FileName,
			Split:      split,
		})
		if err != nil {
			return res, err
		}
		imageIDs[img.ID] = id
		if created {
			res.Images++
		}
	}

	for i := range data.Annotations {
		ann := &data.Annotations[i]

		imgPK, ok := imageIDs[ann.ImageID]
		if !ok {
			logging.Warnf("coco: annotation %d references unknown image %d, skipping", ann.ID, ann.ImageID)
			res.Skipped++
			continue
		}
		catPK, ok := catIDs[ann.CategoryID]
		if !ok {
			logging.Warnf("coco: annotation %d references unknown category %d, skipping", ann.ID, ann.CategoryID)
			res.Skipped++
			continue
		}
		if len(ann.Bbox) != 4 {
			logging.Warnf("coco: annotation %d has malformed bbox (%d values), skipping", ann.ID, len(ann.Bbox))
			res.Skipped++
			continue
		}
		// COCO bbox is already [xmin, ymin, width, height].
		xmin, ymin, width, height := ann.Bbox[0], ann.Bbox[1], ann.Bbox[2], ann.Bbox[3]
		if width <= 0 || height <= 0 {
			logging.Warnf("coco: annotation %d has nonpositive bbox extent %gx%g, skipping", ann.ID, width, height)
			res.Skipped++
			continue
		}
		area := ann.Area
		if area <= 0 {
			area = width * height
		}

		annPK, err := st.AddAnnotation(&model.Annotation{
			ImageID:    imgPK,
			CategoryID: catPK,
			BboxXmin:   xmin,
			BboxYmin:   ymin,
			BboxWidth:  width,
			BboxHeight: height,
			Area:       area,
			IsCrowd:    ann.IsCrowd,
		})
		if err != nil {
			logging.Warnf("coco: annotation %d insert failed, skipping: %v", ann.ID, err)
			res.Skipped++
			continue
		}
		res.Annotations++

		if format, ok := cocoSegmentationFormat(ann.Segmentation); ok {
			if _, err := st.AddSegmentation(&model.Segmentation{
				AnnotationID: annPK,
				Format:       format,
				Data:         string(ann.Segmentation),
			}); err != nil {
				// The annotation row already landed and was counted, so a
				// failed segmentation is not a skipped record.
				logging.Warnf("coco: segmentation for annotation %d failed: %v", ann.ID, err)
				continue
			}
			res.Segmentations++
		}
	}

	return res, nil
}

// cocoSegmentationFormat classifies the raw segmentation payload. Polygon
// lists arrive as a JSON array, crowd RLE masks as an object with a
// "counts" member. Empty or null payloads yield no segmentation row.
func cocoSegmentationFormat(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	switch trimmed[0] {
	case '{':
		return model.SegmentationRLE, true
	case '[':
		// An empty polygon list carries no geometry.
		if bytes.Equal(trimmed, []byte("[]")) {
			return "", false
		}
		return model.SegmentationPolygon, true
	default:
		return "", false
	}
}
