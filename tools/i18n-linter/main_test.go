package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadKeysFromLocale(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "test.yaml")
	content := "init.cli_starting: \"Starting...\"\nstats.cli_header: \"Counts:\"\n"
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	got, err := loadKeysFromLocale(p)
	if err != nil {
		t.Fatalf("loadKeysFromLocale failed: %v", err)
	}
	if _, ok := got["init.cli_starting"]; !ok {
		t.Fatalf("expected key init.cli_starting, got %v", got)
	}
	if _, ok := got["stats.cli_header"]; !ok {
		t.Fatalf("expected key stats.cli_header, got %v", got)
	}
}

func TestFindUsedKeys(t *testing.T) {
	dir := t.TempDir()
	src := `package foo
func f() {
	_ = i18n.T("my.key")
	_ = i18n.T("other.key", 1, 2)
	plain("not.a.call")
}`
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "a.go"), []byte(src), 0644); err != nil {
		t.Fatalf("write go: %v", err)
	}

	used, err := findUsedKeys(dir)
	if err != nil {
		t.Fatalf("findUsedKeys failed: %v", err)
	}
	if _, ok := used["my.key"]; !ok {
		t.Fatalf("expected my.key in used keys")
	}
	if _, ok := used["other.key"]; !ok {
		t.Fatalf("expected other.key in used keys")
	}
	if _, ok := used["not.a.call"]; ok {
		t.Fatalf("did not expect plain string literal to be collected")
	}
}

func TestDiffKeys(t *testing.T) {
	a := map[string]struct{}{"x": {}, "y": {}}
	b := map[string]struct{}{"y": {}}
	got := diffKeys(a, b)
	if len(got) != 1 || got[0] != "x" {
		t.Fatalf("unexpected diff: %v", got)
	}
	if got := diffKeys(b, a); len(got) != 0 {
		t.Fatalf("expected empty diff, got %v", got)
	}
}
