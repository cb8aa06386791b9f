package models

import (
	"strings"
	"time"
)

// InstanceState is the internal lifecycle state of an instance.
type InstanceState string

const (
	StateBuilding   InstanceState = "building"
	StateActive     InstanceState = "active"
	StateRebuilding InstanceState = "rebuilding"
	StateResizing   InstanceState = "resizing"
	StateResized    InstanceState = "resized"
	StatePaused     InstanceState = "paused"
	StateSuspended  InstanceState = "suspended"
	StateStopped    InstanceState = "stopped"
	StateRescued    InstanceState = "rescued"
	StateMigrating  InstanceState = "migrating"
	StateError      InstanceState = "error"
	StateDeleted    InstanceState = "deleted"
	StateSoftDelete InstanceState = "soft-delete"
)

// stateByStatus maps the client-visible status to the internal
// lifecycle-state filter used by the orchestration collaborator.
var stateByStatus = map[string]InstanceState{
	"BUILD":         StateBuilding,
	"ACTIVE":        StateActive,
	"REBUILD":       StateRebuilding,
	"RESIZE":        StateResizing,
	"VERIFY_RESIZE": StateResized,
	"PAUSED":        StatePaused,
	"SUSPENDED":     StateSuspended,
	"SHUTOFF":       StateStopped,
	"RESCUE":        StateRescued,
	"MIGRATING":     StateMigrating,
	"ERROR":         StateError,
	"DELETED":       StateDeleted,
}

// statusByState is the reverse of stateByStatus, for building views.
var statusByState = func() map[InstanceState]string {
	out := make(map[InstanceState]string, len(stateByStatus))
	for status, state := range stateByStatus {
		out[state] = status
	}
	out[StateSoftDelete] = "DELETED"

	return out
}()

// StateFromStatus resolves a client-supplied status filter to the internal
// lifecycle state. The second return is false for an unrecognized status.
func StateFromStatus(status string) (InstanceState, bool) {
	state, ok := stateByStatus[strings.ToUpper(status)]

	return state, ok
}

// Status returns the client-visible status for a lifecycle state.
func (s InstanceState) Status() string {
	if status, ok := statusByState[s]; ok {
		return status
	}

	return "UNKNOWN"
}

// Instance is the record the orchestration collaborator keeps for a
// server. This layer only reads it to build responses.
type Instance struct {
	// ID is the identifier of the instance.
	ID string `json:"id"`
	// ProjectID is the tenant the instance belongs to.
	ProjectID string `json:"project_id"`
	// UserID is the user that created the instance.
	UserID string `json:"user_id"`
	// Name is the display name of the instance.
	Name string `json:"name"`
	// State is the lifecycle state of the instance.
	State InstanceState `json:"state"`
	// Progress is the progress of the current lifecycle transition.
	Progress int `json:"progress"`
	// ImageRef is the image the instance was built from.
	ImageRef string `json:"image_ref"`
	// FlavorID is the flavor the instance runs with.
	FlavorID string `json:"flavor_id"`
	// PreviousFlavorID is set while a resize awaits confirmation.
	PreviousFlavorID string `json:"previous_flavor_id,omitempty"`
	// KeyName is the keypair associated with the instance, if any.
	KeyName string `json:"key_name,omitempty"`
	// Metadata holds the caller-supplied key/value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
	// AccessIPv4 is the caller-managed IPv4 access address.
	AccessIPv4 string `json:"access_ip_v4,omitempty"`
	// AccessIPv6 is the caller-managed IPv6 access address.
	AccessIPv6 string `json:"access_ip_v6,omitempty"`
	// SecurityGroups are the groups the instance was booted with.
	SecurityGroups []string `json:"security_groups,omitempty"`
	// Networks are the networks the instance was booted on.
	Networks []NetworkRequest `json:"networks,omitempty"`
	// ReservationID groups the instances created by one request.
	ReservationID string `json:"reservation_id,omitempty"`
	// AvailabilityZone is the zone the instance was placed in.
	AvailabilityZone string `json:"availability_zone,omitempty"`
	// AutoDiskConfig records the disk config choice, when made.
	AutoDiskConfig *bool `json:"auto_disk_config,omitempty"`
	// CreatedAt is when the instance record was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the instance record last changed.
	UpdatedAt time.Time `json:"updated_at"`
	// DeletedAt is when the instance was deleted, zero otherwise.
	DeletedAt time.Time `json:"deleted_at,omitempty"`
	// Deleted marks the record as deleted without removing it.
	Deleted bool `json:"deleted"`
}

// Image is the record produced by snapshot and backup operations.
type Image struct {
	// ID is the identifier of the image.
	ID string `json:"id"`
	// Name is the caller-supplied image name.
	Name string `json:"name"`
	// Type is "snapshot" or the backup type, like "daily".
	Type string `json:"type"`
	// Properties carries the instance back-reference and caller metadata.
	Properties map[string]string `json:"properties,omitempty"`
	// CreatedAt is when the image record was created.
	CreatedAt time.Time `json:"created_at"`
}
