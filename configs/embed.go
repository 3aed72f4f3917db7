// Package configs provides embedded configuration templates for labsearch.
//
// The templates are used by:
//   - 'labsearch config init' creates .labsearch.yaml in the project root
//   - 'labsearch config init --user' creates ~/.config/labsearch/config.yaml
//
// Configuration hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/labsearch/config.yaml)
//  3. Project config (.labsearch.yaml)
//  4. Environment variables (LABSEARCH_*)
package configs

import _ "embed"

// UserConfigTemplate holds machine-level settings: log level, metrics
// address and object storage credentials.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate holds the sources, crawl roots and index settings
// of one deployment.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
