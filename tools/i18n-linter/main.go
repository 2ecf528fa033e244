// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks the Annodb locale files for consistency. It scans the
// Go source tree for i18n.T() calls, compares the used keys against the
// primary locale, and verifies every secondary locale carries the same keys.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
	projectRoot   = "."
)

func main() {
	fmt.Println("Running i18n linter...")

	usedKeys, err := findUsedKeys(projectRoot)
	if err != nil {
		fmt.Printf("error finding used keys: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d unique translation keys used in source code.\n", len(usedKeys))

	primaryKeys, err := loadKeysFromLocale(filepath.Join(localesDir, primaryLocale))
	if err != nil {
		fmt.Printf("error loading primary locale %s: %v\n", primaryLocale, err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d keys from primary locale (%s).\n\n", len(primaryKeys), primaryLocale)

	failed := false

	// Keys used in code must exist in the primary locale.
	fmt.Println("--- Keys used in code but missing from the primary locale ---")
	if missing := diffKeys(usedKeys, primaryKeys); len(missing) > 0 {
		for _, key := range missing {
			fmt.Printf("  - missing: %s\n", key)
		}
		failed = true
	} else {
		fmt.Println("  none")
	}
	fmt.Println()

	// Keys in the primary locale should be used somewhere.
	fmt.Println("--- Orphaned keys (in primary locale but unused in code) ---")
	if orphaned := diffKeys(primaryKeys, usedKeys); len(orphaned) > 0 {
		for _, key := range orphaned {
			fmt.Printf("  - orphaned: %s\n", key)
		}
	} else {
		fmt.Println("  none")
	}
	fmt.Println()

	// Secondary locales must carry every primary key.
	fmt.Println("--- Secondary locales ---")
	localeFiles, err := filepath.Glob(filepath.Join(localesDir, "*.yaml"))
	if err != nil {
		fmt.Printf("error finding locale files: %v\n", err)
		os.Exit(1)
	}
	for _, file := range localeFiles {
		if filepath.Base(file) == primaryLocale {
			continue
		}
		fmt.Printf("Checking %s:\n", file)
		secondaryKeys, err := loadKeysFromLocale(file)
		if err != nil {
			fmt.Printf("  - error loading %s: %v\n", file, err)
			failed = true
			continue
		}
		if missing := diffKeys(primaryKeys, secondaryKeys); len(missing) > 0 {
			for _, key := range missing {
				fmt.Printf("  - missing: %s\n", key)
			}
			failed = true
		} else {
			fmt.Println("  all keys present")
		}
	}

	fmt.Println("\n--- Linter finished ---")
	if failed {
		fmt.Println("Found issues that need to be addressed.")
		os.Exit(1)
	}
	fmt.Println("All translation files are consistent.")
}

// findUsedKeys scans all non-test .go files for i18n.T("key") calls.
func findUsedKeys(root string) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	re := regexp.MustCompile(`i18n\.T\("([^"]+)"`)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && (info.Name() == "tools" || strings.HasPrefix(info.Name(), "_") || strings.HasPrefix(info.Name(), ".")) {
			if path != root {
				return filepath.SkipDir
			}
		}
		if !info.IsDir() && strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			for _, match := range re.FindAllStringSubmatch(string(content), -1) {
				keys[match[1]] = struct{}{}
			}
		}
		return nil
	})

	return keys, err
}

// diffKeys returns the keys present in a but absent from b, sorted.
func diffKeys(a, b map[string]struct{}) []string {
	var out []string
	for key := range a {
		if _, ok := b[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// loadKeysFromLocale reads a locale YAML file and returns its key set. The
// Annodb locale files are flat, dot-separated maps.
func loadKeysFromLocale(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}

	keys := make(map[string]struct{}, len(data))
	for k := range data {
		keys[k] = struct{}{}
	}
	return keys, nil
}
