// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.
package i18n

import (
	"errors"
	"testing"
)

func TestT_BasicAndFormatting(t *testing.T) {
	Init("en")

	if got := T("restore.cli_success"); got != "Restore complete." {
		t.Fatalf("unexpected translation: %q", got)
	}

	// fmt-style formatting
	got := T("import.cli_summary", 10, 2, 30, 4, 1)
	want := "Imported 10 images, 2 categories, 30 annotations, 4 segmentations (1 records skipped)."
	if got != want {
		t.Fatalf("unexpected formatted translation: %q", got)
	}

	// switch language to German
	SetLang("de")
	if got := T("restore.cli_success"); got != "Wiederherstellung abgeschlossen." {
		t.Fatalf("expected German translation, got %q", got)
	}
	SetLang("en")
}

func TestT_UnknownIDReturnsID(t *testing.T) {
	Init("en")
	if got := T("does.not.exist"); got != "does.not.exist" {
		t.Fatalf("expected message id passthrough, got %q", got)
	}
}

func TestT_ErrorFormatting(t *testing.T) {
	Init("en")
	got := T("init.cli_error", errors.New("boom"))
	if got != "Schema initialization failed: boom" {
		t.Fatalf("unexpected error formatting: %q", got)
	}
}
