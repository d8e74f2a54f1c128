// Package configs carries the embedded configuration templates.
//
// The //go:embed directives compile the YAML templates into the binary,
// which lets `docsmcp init` write them regardless of how the tool was
// installed (go install, release tarball, Homebrew).
//
// Load() in internal/config resolves the effective configuration in four
// layers: built-in defaults, then ~/.config/docsmcp/config.yaml, then the
// project's .docsmcp.yaml, then DOCSMCP_* environment variables.
//
// Template edits take effect on the next build.
package configs

import _ "embed"

// UserConfigTemplate is the template for the user-level configuration.
// Created by `docsmcp init` at ~/.config/docsmcp/config.yaml.
// Contains the crawl roots, sources, and machine-wide settings. docsmcp
// maintains one personal index, so this is the primary config file.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for per-project overrides.
// Written as .docsmcp.yaml in a project root; useful to pin a project's
// docs directory or exclude generated files without touching the user
// config.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
