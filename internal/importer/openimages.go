// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/toeirei/annodb/internal/db"
	"github.com/toeirei/annodb/internal/logging"
	"github.com/toeirei/annodb/internal/model"
)

// openImagesFiles are the conventional CSV file names of the boxable subset.
// The v7 distribution prefixes the class description file with "oidv7-";
// older exports ship it without the prefix, so both names are accepted.
var openImagesFiles = struct {
	classNames []string
	imageInfo  map[string]string
	boxes      map[string]string
}{
	classNames: []string{
		"oidv7-class-descriptions-boxable.csv",
		"class-descriptions-boxable.csv",
	},
	imageInfo: map[string]string{
		"train": "train-images-boxable-with-rotation.csv",
		"val":   "validation-images-with-rotation.csv",
		"test":  "test-images-with-rotation.csv",
	},
	boxes: map[string]string{
		"train": "train-annotations-bbox.csv",
		"val":   "validation-annotations-bbox.csv",
		"test":  "test-annotations-bbox.csv",
	},
}

// oiImage is one row of an image-info CSV.
type oiImage struct {
	externalID string
	url        string
	width      *int
	height     *int
}

// ImportOpenImages reads the OpenImages boxable CSV files under dir and
// loads them into the unified schema. Box coordinates arrive normalized to
// [0,1]; when the image dimensions are known they are converted to pixel
// values, otherwise they are stored as-is and the annotation is tagged
// coords=normalized in source_info. limit caps the number of images taken
// per split; 0 means no cap.
func ImportOpenImages(st db.Store, dir string, limit int) (Result, error) {
	var res Result

	classPath, err := findClassFile(dir)
	if err != nil {
		return res, err
	}
	classNames, err := readClassNames(classPath)
	if err != nil {
		return res, err
	}
	logging.Infof("openimages: loaded %d class descriptions", len(classNames))

	datasetID, err := st.EnsureDataset(OpenImagesDatasetName, "v7", "OpenImages v7 boxable subset")
	if err != nil {
		return res, err
	}
	logging.Debugf("openimages: using dataset_id=%d", datasetID)

	cats := newCategoryCache(st)

	for _, split := range []string{"train", "val", "test"} {
		infoPath := filepath.Join(dir, openImagesFiles.imageInfo[split])
		boxPath := filepath.Join(dir, openImagesFiles.boxes[split])

		images, err := readImageInfo(infoPath, limit)
		if err != nil {
			return res, err
		}
		logging.Infof("openimages: %s split has %d images selected", split, len(images))

		partial, err := importOpenImagesSplit(st, datasetID, split, images, boxPath, classNames, cats)
		res.add(partial)
		if err != nil {
			return res, err
		}
	}

	res.Categories = cats.added
	logImageCount(st, "openimages", datasetID)
	return res, nil
}

// findClassFile locates the class description CSV under dir, trying the
// known file names in order.
func findClassFile(dir string) (string, error) {
	for _, name := range openImagesFiles.classNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no class description file found in %s (tried %s)",
		dir, strings.Join(openImagesFiles.classNames, ", "))
}

// readClassNames loads the MID to display-name map. The official file is
// headerless with two columns, but exports with a header row also occur.
func readClassNames(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open class descriptions %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	names := make(map[string]string)
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", path, err)
		}
		if len(rec) < 2 {
			continue
		}
		if first {
			first = false
			// Skip a header row when one is present.
			if looksLikeClassHeader(rec) {
				continue
			}
		}
		names[rec[0]] = rec[1]
	}
	return names, nil
}

func looksLikeClassHeader(rec []string) bool {
	switch strings.ToLower(strings.TrimSpace(rec[0])) {
	case "labelname", "labelmid", "label", "mid":
		return true
	}
	return false
}

// readImageInfo loads image metadata rows, up to limit (0 = all). Column
// positions are resolved from the header since the exports vary.
func readImageInfo(path string, limit int) (map[string]oiImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open image info %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read header of %s: %w", path, err)
	}
	cols := headerIndex(header)

	idCol, ok := firstColumn(cols, "imageid", "image_id")
	if !ok {
		return nil, fmt.Errorf("%s has no ImageID column", path)
	}
	urlCol, _ := firstColumn(cols, "thumbnail300kurl", "originalurl", "url")
	widthCol, hasWidth := firstColumn(cols, "width", "originalwidth", "imagewidth")
	heightCol, hasHeight := firstColumn(cols, "height", "originalheight", "imageheight")

	images := make(map[string]oiImage)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logging.Warnf("openimages: malformed row in %s, skipping: %v", path, err)
			continue
		}
		if idCol >= len(rec) || rec[idCol] == "" {
			continue
		}
		img := oiImage{externalID: rec[idCol]}
		if urlCol >= 0 && urlCol < len(rec) {
			img.url = rec[urlCol]
		}
		if hasWidth && hasHeight && widthCol < len(rec) && heightCol < len(rec) {
			if w, err := strconv.Atoi(rec[widthCol]); err == nil && w > 0 {
				if h, err := strconv.Atoi(rec[heightCol]); err == nil && h > 0 {
					img.width, img.height = &w, &h
				}
			}
		}
		images[img.externalID] = img
		if limit > 0 && len(images) >= limit {
			break
		}
	}
	return images, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func firstColumn(cols map[string]int, candidates ...string) (int, bool) {
	for _, c := range candidates {
		if i, ok := cols[c]; ok {
			return i, true
		}
	}
	return -1, false
}

// importOpenImagesSplit inserts the selected images of one split and streams
// the matching box rows from the annotations CSV.
func importOpenImagesSplit(st db.Store, datasetID int, split string, images map[string]oiImage, boxPath string, classNames map[string]string, cats *categoryCache) (Result, error) {
	var res Result

	imagePKs := make(map[string]int, len(images))
	dims := make(map[string][2]int, len(images))
	for _, img := range images {
		pk, created, err := insertImage(st, &model.Image{
			DatasetID:  datasetID,
			ExternalID: img.externalID,
			Width:      img.width,
			Height:     img.height,
			FilePath:   img.url,
			Split:      split,
		})
		if err != nil {
			return res, err
		}
		imagePKs[img.externalID] = pk
		if img.width != nil && img.height != nil {
			dims[img.externalID] = [2]int{*img.width, *img.height}
		}
		if created {
			res.Images++
		}
	}

	f, err := os.Open(boxPath)
	if err != nil {
		return res, fmt.Errorf("could not open box annotations %s: %w", boxPath, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return res, fmt.Errorf("could not read header of %s: %w", boxPath, err)
	}
	cols := headerIndex(header)
	required := []string{"imageid", "labelname", "xmin", "xmax", "ymin", "ymax"}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return res, fmt.Errorf("%s has no %s column", boxPath, name)
		}
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logging.Warnf("openimages: malformed row in %s, skipping: %v", boxPath, err)
			res.Skipped++
			continue
		}

		imgID := fieldAt(rec, cols["imageid"])
		imgPK, ok := imagePKs[imgID]
		if !ok {
			// Box for an image outside the selected subset.
			continue
		}

		mid := fieldAt(rec, cols["labelname"])
		name, ok := classNames[mid]
		if !ok {
			name = mid
		}
		catPK, err := cats.id("oi:"+mid, &model.Category{
			DatasetID:  datasetID,
			Name:       name,
			ExternalID: mid,
		})
		if err != nil {
			return res, err
		}

		xmin, err1 := strconv.ParseFloat(fieldAt(rec, cols["xmin"]), 64)
		xmax, err2 := strconv.ParseFloat(fieldAt(rec, cols["xmax"]), 64)
		ymin, err3 := strconv.ParseFloat(fieldAt(rec, cols["ymin"]), 64)
		ymax, err4 := strconv.ParseFloat(fieldAt(rec, cols["ymax"]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			logging.Warnf("openimages: box for image %s has unparseable coordinates, skipping", imgID)
			res.Skipped++
			continue
		}
		if xmax <= xmin || ymax <= ymin {
			logging.Warnf("openimages: box for image %s has degenerate extent, skipping", imgID)
			res.Skipped++
			continue
		}

		ann := model.Annotation{
			ImageID:    imgPK,
			CategoryID: catPK,
			SourceInfo: openImagesFlags(rec, cols),
		}

		if wh, ok := dims[imgID]; ok {
			// Convert normalized corners to pixel values. Width and height
			// come from the rounded corners so xmin+width equals the rounded
			// xmax exactly.
			pxXmin := math.Round(xmin * float64(wh[0]))
			pxYmin := math.Round(ymin * float64(wh[1]))
			ann.BboxXmin = pxXmin
			ann.BboxYmin = pxYmin
			ann.BboxWidth = math.Round(xmax*float64(wh[0])) - pxXmin
			ann.BboxHeight = math.Round(ymax*float64(wh[1])) - pxYmin
		} else {
			ann.BboxXmin = xmin
			ann.BboxYmin = ymin
			ann.BboxWidth = xmax - xmin
			ann.BboxHeight = ymax - ymin
			ann.SourceInfo = appendFlag(ann.SourceInfo, "coords=normalized")
		}
		if ann.BboxWidth <= 0 || ann.BboxHeight <= 0 {
			logging.Warnf("openimages: box for image %s rounds to zero extent, skipping", imgID)
			res.Skipped++
			continue
		}
		ann.Area = ann.BboxWidth * ann.BboxHeight

		if flagSet(rec, cols, "isgroupof") {
			crowd := 1
			ann.IsCrowd = &crowd
		}

		insertAnnotation(st, &ann, &res)
	}

	return res, nil
}

// openImagesFlags serializes the box attribute flags that are set to 1.
func openImagesFlags(rec []string, cols map[string]int) string {
	var flags string
	for _, name := range []string{"isoccluded", "istruncated", "isgroupof", "isdepiction", "isinside"} {
		if flagSet(rec, cols, name) {
			flags = appendFlag(flags, name+"=1")
		}
	}
	return flags
}

func flagSet(rec []string, cols map[string]int, name string) bool {
	i, ok := cols[name]
	if !ok {
		return false
	}
	return fieldAt(rec, i) == "1"
}

func appendFlag(flags, flag string) string {
	if flags == "" {
		return flag
	}
	return flags + ";" + flag
}

func fieldAt(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
