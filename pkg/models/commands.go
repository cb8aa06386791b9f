package models

// InjectedFile is a small file written into a created instance's
// filesystem at boot. Contents are the decoded bytes, not base64.
type InjectedFile struct {
	Path     string `json:"path"`
	Contents []byte `json:"contents"`
}

// NetworkRequest asks for the instance to be booted on a network,
// optionally with a fixed IPv4 address.
type NetworkRequest struct {
	UUID    string `json:"uuid"`
	FixedIP string `json:"fixed_ip,omitempty"`
}

// CreateCommand is the canonical, encoding-agnostic representation of an
// instance-creation request. It is built fresh per request, consumed once
// by the orchestration collaborator and then discarded.
type CreateCommand struct {
	// Name is the display name, already trimmed and non-empty.
	Name string
	// ImageRef is the image reference, verbatim from the request apart
	// from self-referential URL stripping.
	ImageRef string
	// FlavorID is the flavor identifier resolved from flavorRef.
	FlavorID string
	// AdminPass is the admin password. Empty means the collaborator's
	// password policy generates one.
	AdminPass string
	// KeyName is the keypair to associate, if any.
	KeyName string
	// Metadata holds caller-supplied key/value pairs.
	Metadata map[string]string
	// AccessIPv4 and AccessIPv6 are caller-managed access addresses.
	AccessIPv4 string
	AccessIPv6 string
	// InjectedFiles are the decoded personality files, in request order.
	InjectedFiles []InjectedFile
	// SecurityGroups is deduplicated and never empty.
	SecurityGroups []string
	// Networks carries no duplicate UUIDs.
	Networks []NetworkRequest
	// UserData is the still-encoded base64 user data, if any.
	UserData string
	// AvailabilityZone is the requested placement zone, if any.
	AvailabilityZone string
	// ConfigDrive is passed through opaquely.
	ConfigDrive any
	// BlockDeviceMapping is supplied by a specialization point and passed
	// through opaquely.
	BlockDeviceMapping any
	// ReservationID is only ever set for admin callers.
	ReservationID string
	// ReturnReservationID asks for a reservation id instead of a
	// representation in the response.
	ReturnReservationID bool
	// MinCount and MaxCount satisfy 1 <= MinCount <= MaxCount.
	MinCount int
	MaxCount int
	// AutoDiskConfig is nil when the request made no choice.
	AutoDiskConfig *bool
}

// UpdateCommand is a sparse patch for an instance. A nil field means
// "no change", not "clear".
type UpdateCommand struct {
	DisplayName    *string
	AccessIPv4     *string
	AccessIPv6     *string
	AutoDiskConfig *bool
}

// RebuildCommand carries the validated fields of a rebuild action.
type RebuildCommand struct {
	// ImageRef is the image to rebuild from.
	ImageRef string
	// AdminPass is never empty; generated when the request omits it.
	AdminPass string
	// Name replaces the display name when non-nil.
	Name *string
	// Metadata replaces the instance metadata when non-nil.
	Metadata map[string]string
	// InjectedFiles are the decoded personality files.
	InjectedFiles []InjectedFile
}
