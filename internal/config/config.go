// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads the Annodb configuration. Precedence, lowest to
// highest: built-in defaults, annodb.yaml (user config dir, system config
// dir, then current directory), ANNODB_* environment variables, CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// DatabaseConfig selects the backend and its connection string.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"`
	Dsn  string `mapstructure:"dsn" yaml:"dsn"`
}

// DatasetsConfig holds the default source directories for the importers
// so `annodb import coco` works without flags.
type DatasetsConfig struct {
	CocoDir         string `mapstructure:"coco_dir" yaml:"coco_dir"`
	VocDir          string `mapstructure:"voc_dir" yaml:"voc_dir"`
	OpenImagesDir   string `mapstructure:"openimages_dir" yaml:"openimages_dir"`
	OpenImagesLimit int    `mapstructure:"openimages_limit" yaml:"openimages_limit"`
}

// Config is the root configuration structure.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Datasets DatasetsConfig `mapstructure:"datasets" yaml:"datasets"`
	Language string         `mapstructure:"language" yaml:"language"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":             "sqlite",
		"database.dsn":              "annodb.db",
		"datasets.coco_dir":         "",
		"datasets.voc_dir":          "",
		"datasets.openimages_dir":   "",
		"datasets.openimages_limit": 0,
		"language":                  "en",
	}
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Annodb")
		default:
			configDir = "/etc/annodb"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "annodb")
	}

	return filepath.Join(configDir, "annodb.yaml"), nil
}

// LoadConfig resolves the configuration for the given command. An explicit
// --config file path, when provided, takes precedence over the standard
// search locations.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, additionalConfigFilePath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("annodb")
	v.SetConfigType("yaml")

	if additionalConfigFilePath != nil {
		v.SetConfigFile(*additionalConfigFilePath)
	}

	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, anything else is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("annodb")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// WriteConfigFile persists the configuration as YAML to the standard
// user or system location.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := GetConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	return os.WriteFile(path, data, 0600)
}
