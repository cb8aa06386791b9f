package config

import (
	"time"

	"servergate/pkg/log"
	"servergate/pkg/orchestrator/memory"
)

// Config is the process configuration for servergated.
type Config struct {
	// HTTPBindAddr is the API listen address.
	HTTPBindAddr string
	// BaseURL is the base used when building locations and references.
	BaseURL string
	// AllowAdminAPI enables the administrative request surface.
	AllowAdminAPI bool
	// PasswordLength is the generated admin password length.
	PasswordLength int
	// ReclaimInstanceInterval turns deletes into soft deletes when
	// positive.
	ReclaimInstanceInterval time.Duration
	// FlavorsFile is the path to the TOML flavor catalog.
	FlavorsFile string
	// StateRootDir is where the orchestrator keeps instance records.
	StateRootDir string
	// Limits are the collaborator quota limits.
	Limits memory.Limits
	// Logging is the log configuration.
	Logging log.Config
}
