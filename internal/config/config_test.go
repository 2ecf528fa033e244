package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cfg "github.com/toeirei/annodb/internal/config"
)

func resetViper() {
	viper.Reset()
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	tmp := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", tmp)
	defer os.Unsetenv("XDG_CONFIG_HOME")

	resetViper()
	defer resetViper()

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got.Database.Type != "sqlite" {
		t.Fatalf("expected default database type sqlite, got %q", got.Database.Type)
	}
	if got.Database.Dsn != "annodb.db" {
		t.Fatalf("expected default dsn annodb.db, got %q", got.Database.Dsn)
	}
	if got.Language != "en" {
		t.Fatalf("expected default language en, got %q", got.Language)
	}
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	tmp := t.TempDir()
	yaml := "database:\n  type: postgres\n  dsn: postgresql://user@/annodb\ndatasets:\n  coco_dir: /data/coco\n  openimages_limit: 500\nlanguage: de\n"
	file := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	resetViper()
	defer resetViper()

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got.Database.Type != "postgres" {
		t.Fatalf("expected postgres, got %q", got.Database.Type)
	}
	if got.Datasets.CocoDir != "/data/coco" {
		t.Fatalf("expected coco_dir from file, got %q", got.Datasets.CocoDir)
	}
	if got.Datasets.OpenImagesLimit != 500 {
		t.Fatalf("expected openimages_limit 500, got %d", got.Datasets.OpenImagesLimit)
	}
	if got.Language != "de" {
		t.Fatalf("expected de, got %q", got.Language)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	tmp := t.TempDir()
	yaml := "database:\n  type: sqlite\n  dsn: from-file.db\n"
	file := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	os.Setenv("ANNODB_DATABASE_DSN", "from-env.db")
	defer os.Unsetenv("ANNODB_DATABASE_DSN")

	resetViper()
	defer resetViper()

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got.Database.Dsn != "from-env.db" {
		t.Fatalf("expected env var to win, got %q", got.Database.Dsn)
	}
}

func TestWriteConfigFile_CreatesFile(t *testing.T) {
	tmp := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", tmp)
	defer os.Unsetenv("XDG_CONFIG_HOME")

	resetViper()
	defer resetViper()

	c := cfg.Config{}
	c.Database.Type = "sqlite"
	c.Database.Dsn = "annodb.db"
	c.Language = "en"

	if err := cfg.WriteConfigFile(&c, false); err != nil {
		t.Fatalf("WriteConfigFile failed: %v", err)
	}

	path, err := cfg.GetConfigPath(false)
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file at %s, stat error: %v", path, err)
	}
}
