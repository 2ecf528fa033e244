// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package importer

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/toeirei/annodb/internal/db"
	"github.com/toeirei/annodb/internal/logging"
	"github.com/toeirei/annodb/internal/model"
)

// vocBndbox holds corner coordinates. Some VOC files carry fractional
// values, so everything parses as float64.
type vocBndbox struct {
	Xmin float64 `xml:"xmin"`
	Ymin float64 `xml:"ymin"`
	Xmax float64 `xml:"xmax"`
	Ymax float64 `xml:"ymax"`
}

// vocObject is one annotated object instance in a VOC XML file.
type vocObject struct {
	Name      string    `xml:"name"`
	Pose      string    `xml:"pose"`
	Truncated int       `xml:"truncated"`
	Difficult int       `xml:"difficult"`
	Bndbox    vocBndbox `xml:"bndbox"`
}

// vocSize is the image dimension block.
type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
}

// vocAnnotation is the root element of a VOC annotation file.
type vocAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Filename string      `xml:"filename"`
	Size     vocSize     `xml:"size"`
	Objects  []vocObject `xml:"object"`
}

// ImportVOC reads a PASCAL VOC dataset rooted at dir (the directory holding
// Annotations/, JPEGImages/ and ImageSets/) and loads it into the unified
// schema. VOC boxes are corner-based; width and height are derived as
// xmax-xmin and ymax-ymin.
func ImportVOC(st db.Store, dir string) (Result, error) {
	var res Result

	annotationsDir := filepath.Join(dir, "Annotations")
	imagesDir := filepath.Join(dir, "JPEGImages")
	if _, err := os.Stat(annotationsDir); err != nil {
		return res, fmt.Errorf("VOC Annotations directory missing: %w", err)
	}

	datasetID, err := st.EnsureDataset(VocDatasetName, "2007", "PASCAL VOC 2007 dataset")
	if err != nil {
		return res, err
	}
	logging.Debugf("voc: using dataset_id=%d", datasetID)

	splits := loadVocSplits(filepath.Join(dir, "ImageSets", "Main"))
	logging.Infof("voc: loaded %d image ids with split info", len(splits))

	xmlFiles, err := filepath.Glob(filepath.Join(annotationsDir, "*.xml"))
	if err != nil {
		return res, err
	}
	logging.Infof("voc: found %d annotation XML files", len(xmlFiles))

	cats := newCategoryCache(st)

	for _, xmlPath := range xmlFiles {
		imgID := strings.TrimSuffix(filepath.Base(xmlPath), ".xml")

		var ann vocAnnotation
		if err := decodeXMLFile(xmlPath, &ann); err != nil {
			logging.Warnf("voc: could not parse %s, skipping: %v", xmlPath, err)
			res.Skipped++
			continue
		}

		split, ok := splits[imgID]
		if !ok {
			// Images absent from every split list default to train.
			split = "train"
		}

		var width, height *int
		if ann.Size.Width > 0 && ann.Size.Height > 0 {
			w, h := ann.Size.Width, ann.Size.Height
			width, height = &w, &h
		}

		imgPK, created, err := insertImage(st, &model.Image{
			DatasetID:  datasetID,
			ExternalID: imgID,
			Width:      width,
			Height:     height,
			FilePath:   filepath.Join(imagesDir, imgID+".jpg"),
			Split:      split,
		})
		if err != nil {
			return res, err
		}
		if created {
			res.Images++
		}

		for _, obj := range ann.Objects {
			if obj.Name == "" {
				logging.Warnf("voc: %s has object without a name, skipping", xmlPath)
				res.Skipped++
				continue
			}
			catPK, err := cats.id("voc:"+obj.Name, &model.Category{
				DatasetID:  datasetID,
				Name:       obj.Name,
				ExternalID: obj.Name,
			})
			if err != nil {
				return res, err
			}

			bboxWidth := obj.Bndbox.Xmax - obj.Bndbox.Xmin
			bboxHeight := obj.Bndbox.Ymax - obj.Bndbox.Ymin
			if bboxWidth <= 0 || bboxHeight <= 0 {
				logging.Warnf("voc: %s object %q has degenerate bndbox, skipping", xmlPath, obj.Name)
				res.Skipped++
				continue
			}

			difficulty := obj.Difficult
			insertAnnotation(st, &model.Annotation{
				ImageID:    imgPK,
				CategoryID: catPK,
				BboxXmin:   obj.Bndbox.Xmin,
				BboxYmin:   obj.Bndbox.Ymin,
				BboxWidth:  bboxWidth,
				BboxHeight: bboxHeight,
				Area:       bboxWidth * bboxHeight,
				Difficulty: &difficulty,
				SourceInfo: fmt.Sprintf("truncated=%d;pose=%s", obj.Truncated, obj.Pose),
			}, &res)
		}
	}

	res.Categories = cats.added
	logImageCount(st, "voc", datasetID)
	return res, nil
}

func decodeXMLFile(path string, dest interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return xml.NewDecoder(f).Decode(dest)
}

// loadVocSplits reads the train/val/test id lists from ImageSets/Main.
// When an id appears in multiple files the first split encountered wins.
// Missing split files are logged and skipped.
func loadVocSplits(dir string) map[string]string {
	splits := make(map[string]string)

	for _, split := range []string{"train", "val", "test"} {
		path := filepath.Join(dir, split+".txt")
		f, err := os.Open(path)
		if err != nil {
			logging.Warnf("voc: missing split file %s (skipping %s)", path, split)
			continue
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			// Detection lists ("aeroplane_train.txt" style) carry a label
			// column; the plain lists are one id per line. Take the first
			// field either way.
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}
			id := fields[0]
			if _, ok := splits[id]; !ok {
				splits[id] = split
			}
		}
		_ = f.Close()
	}

	return splits
}
