package config

import (
	"embed"
)

// AgencyTemplates holds the built-in agency requirement definitions. An
// external templates directory can override these at load time.
//
//go:embed agencies/*.json
var AgencyTemplates embed.FS
