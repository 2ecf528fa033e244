// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

// Package cli implements the Annodb command-line interface. It wires the
// Cobra command tree to the config, i18n and db packages and hosts the
// subcommands for schema initialization, dataset imports, verification,
// statistics, backup and restore, migration and maintenance.
package cli
