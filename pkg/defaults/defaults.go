package defaults

const (
	// SecurityGroup is the group applied to a server when the request names none.
	SecurityGroup = "default"

	// PasswordLength is the length of generated admin passwords.
	PasswordLength = 16

	// HTTPBindAddr is the default bind address for the API server.
	HTTPBindAddr = "0.0.0.0:8774"

	// FlavorsFile is the default path to the flavor catalog.
	FlavorsFile = "flavors.toml"

	// StateRootDir is the default directory for orchestrator state.
	StateRootDir = "/var/lib/servergate"

	// BaseURL is the default base used when building image and server locations.
	BaseURL = "http://localhost:8774/v1"

	// DataDirPerm is the permissions to use for state folders.
	DataDirPerm = 0o755

	// DataFilePerm is the permissions to use for state files.
	DataFilePerm = 0o644
)
