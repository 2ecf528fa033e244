// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"encoding/json"
	"testing"
)

func TestDatasetString(t *testing.T) {
	d := Dataset{Name: "COCO", Version: "2017"}
	if got := d.String(); got != "COCO@2017" {
		t.Fatalf("unexpected String(): %q", got)
	}
}

func TestBackupData_JSONRoundTrip(t *testing.T) {
	crowd := 1
	w, h := 640, 480
	in := BackupData{
		Datasets: []Dataset{{ID: 1, Name: "COCO", Version: "2017", Description: "d"}},
		Images: []Image{{
			ID: 2, DatasetID: 1, ExternalID: "100", Width: &w, Height: &h,
			FilePath: "a.jpg", Split: "train",
		}},
		Categories: []Category{{ID: 3, DatasetID: 1, Name: "dog", Supercategory: "animal", ExternalID: "18"}},
		Annotations: []Annotation{{
			ID: 4, ImageID: 2, CategoryID: 3,
			BboxXmin: 1.5, BboxYmin: 2.5, BboxWidth: 10, BboxHeight: 20,
			Area: 200, IsCrowd: &crowd, SourceInfo: "coords=normalized",
		}},
		Segmentations: []Segmentation{{ID: 5, AnnotationID: 4, Format: SegmentationRLE, Data: `{"counts":"x"}`}},
	}

	data, err := json.Marshal(&in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out BackupData
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(out.Images) != 1 || out.Images[0].Width == nil || *out.Images[0].Width != 640 {
		t.Fatalf("image dimensions lost in round trip: %+v", out.Images)
	}
	ann := out.Annotations[0]
	if ann.BboxXmin != 1.5 || ann.IsCrowd == nil || *ann.IsCrowd != 1 {
		t.Fatalf("annotation fields lost in round trip: %+v", ann)
	}
	if ann.Difficulty != nil {
		t.Fatalf("nil difficulty must stay nil, got %v", ann.Difficulty)
	}
}
