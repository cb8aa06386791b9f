package version

var (
	// PackageName is the name of the package.
	PackageName = "servergate"
	// Version is the version of the build, set at build time.
	Version = "dev"
	// CommitHash is the git hash of the build, set at build time.
	CommitHash = ""
	// BuildDate is the date of the build, set at build time.
	BuildDate = ""
)
