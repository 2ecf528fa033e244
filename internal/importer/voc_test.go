package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/toeirei/annodb/internal/db"
)

func newTestStore(t *testing.T) db.Store {
	t.Helper()
	dsn := "file:test_" + t.Name() + "?mode=memory&cache=shared"
	st, err := db.New("sqlite", dsn)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	return st
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s failed: %v", path, err)
	}
}

const vocSample = `<annotation>
	<filename>000001.jpg</filename>
	<size><width>200</width><height>200</height><depth>3</depth></size>
	<object>
		<name>dog</name>
		<pose>Left</pose>
		<truncated>1</truncated>
		<difficult>0</difficult>
		<bndbox><xmin>10</xmin><ymin>20</ymin><xmax>110</xmax><ymax>170</ymax></bndbox>
	</object>
</annotation>`

func writeVocFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Annotations", "000001.xml"), vocSample)
	writeFile(t, filepath.Join(dir, "ImageSets", "Main", "train.txt"), "000001\n")
	return dir
}

func TestImportVOC_CornerToExtentConversion(t *testing.T) {
	st := newTestStore(t)
	dir := writeVocFixture(t)

	res, err := ImportVOC(st, dir)
	if err != nil {
		t.Fatalf("ImportVOC failed: %v", err)
	}
	if res.Images != 1 || res.Categories != 1 || res.Annotations != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	backup, err := st.ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup failed: %v", err)
	}
	ann := backup.Annotations[0]
	// Corner box (10,20)-(110,170) becomes xmin=10 ymin=20 w=100 h=150.
	if ann.BboxXmin != 10 || ann.BboxYmin != 20 || ann.BboxWidth != 100 || ann.BboxHeight != 150 {
		t.Fatalf("unexpected converted bbox: %+v", ann)
	}
	if ann.Area != 100*150 {
		t.Fatalf("unexpected area: %g", ann.Area)
	}
	if ann.Difficulty == nil || *ann.Difficulty != 0 {
		t.Fatalf("expected difficulty 0, got %v", ann.Difficulty)
	}
	if ann.SourceInfo != "truncated=1;pose=Left" {
		t.Fatalf("unexpected source_info: %q", ann.SourceInfo)
	}

	img := backup.Images[0]
	if img.Split != "train" {
		t.Fatalf("expected split train from ImageSets list, got %q", img.Split)
	}
	if img.FilePath != filepath.Join(dir, "JPEGImages", "000001.jpg") {
		t.Fatalf("unexpected file path: %q", img.FilePath)
	}
}

func TestImportVOC_SplitDefaultsAndFirstWins(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Annotations", "000001.xml"), vocSample)
	// Listed in both val and test: val wins by scan order precedence
	// (train, val, test).
	writeFile(t, filepath.Join(dir, "ImageSets", "Main", "val.txt"), "000001\n")
	writeFile(t, filepath.Join(dir, "ImageSets", "Main", "test.txt"), "000001\n")

	if _, err := ImportVOC(st, dir); err != nil {
		t.Fatalf("ImportVOC failed: %v", err)
	}
	backup, err := st.ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup failed: %v", err)
	}
	if backup.Images[0].Split != "val" {
		t.Fatalf("expected split val, got %q", backup.Images[0].Split)
	}
}

func TestImportVOC_MalformedXMLSkipped(t *testing.T) {
	st := newTestStore(t)
	dir := writeVocFixture(t)
	writeFile(t, filepath.Join(dir, "Annotations", "000002.xml"), "<annotation><unterminated")

	res, err := ImportVOC(st, dir)
	if err != nil {
		t.Fatalf("ImportVOC failed: %v", err)
	}
	if res.Images != 1 {
		t.Fatalf("expected the valid image to import, got %+v", res)
	}
	if res.Skipped != 1 {
		t.Fatalf("expected malformed XML to be counted as skipped, got %+v", res)
	}
}

func TestImportVOC_DegenerateBoxSkipped(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Annotations", "000003.xml"), `<annotation>
	<size><width>200</width><height>200</height></size>
	<object>
		<name>dog</name>
		<bndbox><xmin>50</xmin><ymin>50</ymin><xmax>50</xmax><ymax>60</ymax></bndbox>
	</object>
</annotation>`)

	res, err := ImportVOC(st, dir)
	if err != nil {
		t.Fatalf("ImportVOC failed: %v", err)
	}
	if res.Annotations != 0 || res.Skipped != 1 {
		t.Fatalf("expected degenerate box to be skipped, got %+v", res)
	}
	// Image without split lists defaults to train.
	backup, err := st.ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup failed: %v", err)
	}
	if backup.Images[0].Split != "train" {
		t.Fatalf("expected default split train, got %q", backup.Images[0].Split)
	}
}

func TestImportVOC_ReimportReusesImages(t *testing.T) {
	st := newTestStore(t)
	dir := writeVocFixture(t)

	if _, err := ImportVOC(st, dir); err != nil {
		t.Fatalf("first ImportVOC failed: %v", err)
	}
	res, err := ImportVOC(st, dir)
	if err != nil {
		t.Fatalf("second ImportVOC failed: %v", err)
	}
	if res.Images != 0 {
		t.Fatalf("expected no new images on reimport, got %+v", res)
	}

	backup, err := st.ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup failed: %v", err)
	}
	if len(backup.Images) != 1 {
		t.Fatalf("expected a single image row after reimport, got %d", len(backup.Images))
	}
}
