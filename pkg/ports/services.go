package ports

import (
	"context"

	"servergate/pkg/auth"
	"servergate/pkg/models"
)

// SearchOptions is the validated filter set passed to GetAll. Values are
// either strings, bools, or the types the validator put there (lifecycle
// states, timestamps).
type SearchOptions map[string]any

// Orchestrator is the port definition for the compute-lifecycle service.
// Every call either returns a result or raises one of the domain error
// kinds in pkg/errors; this layer issues at most one state-changing call
// per request and never retries.
type Orchestrator interface {
	// Create boots min..max instances and returns them with the
	// reservation id that groups them.
	Create(ctx context.Context, caller *auth.Context, cmd *models.CreateCommand) ([]*models.Instance, string, error)
	// Update applies a sparse patch to an instance.
	Update(ctx context.Context, caller *auth.Context, id string, patch *models.UpdateCommand) (*models.Instance, error)
	// Delete destroys an instance.
	Delete(ctx context.Context, caller *auth.Context, instance *models.Instance) error
	// SoftDelete marks an instance for reclaim instead of destroying it.
	SoftDelete(ctx context.Context, caller *auth.Context, instance *models.Instance) error
	// Reboot restarts an instance. rebootType is HARD or SOFT.
	Reboot(ctx context.Context, caller *auth.Context, instance *models.Instance, rebootType string) error
	// Resize starts a resize to the supplied flavor.
	Resize(ctx context.Context, caller *auth.Context, instance *models.Instance, flavorID string) error
	// ConfirmResize commits a pending resize.
	ConfirmResize(ctx context.Context, caller *auth.Context, instance *models.Instance) error
	// RevertResize rolls back a pending resize.
	RevertResize(ctx context.Context, caller *auth.Context, instance *models.Instance) error
	// Rebuild re-images an instance in place.
	Rebuild(ctx context.Context, caller *auth.Context, instance *models.Instance, cmd *models.RebuildCommand) (*models.Instance, error)
	// Snapshot captures an image of an instance.
	Snapshot(ctx context.Context, caller *auth.Context, instance *models.Instance, name string, properties map[string]string) (*models.Image, error)
	// Backup captures a rotating backup image of an instance.
	Backup(ctx context.Context, caller *auth.Context, instance *models.Instance, name, backupType string, rotation int, properties map[string]string) (*models.Image, error)
	// SetAdminPassword changes the instance admin password.
	SetAdminPassword(ctx context.Context, caller *auth.Context, instance *models.Instance, password string) error
	// GetAll lists instances matching the validated search options.
	GetAll(ctx context.Context, caller *auth.Context, opts SearchOptions) ([]*models.Instance, error)
	// RoutingGet looks an instance up by id.
	RoutingGet(ctx context.Context, caller *auth.Context, id string) (*models.Instance, error)
}

// PasswordGenerator generates admin passwords under the collaborator's
// password policy.
type PasswordGenerator interface {
	Generate() string
}
