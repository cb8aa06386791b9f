// Package memory is an in-process orchestration collaborator backing the
// serve command and the tests. The gate treats it like any other
// collaborator: opaque, externally synchronized, and the single owner of
// quota and state rules.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"servergate/pkg/auth"
	"servergate/pkg/defaults"
	coreerrs "servergate/pkg/errors"
	"servergate/pkg/flavors"
	"servergate/pkg/log"
	"servergate/pkg/models"
	"servergate/pkg/ports"
)

// Limits are the quota limits this collaborator enforces.
type Limits struct {
	InstancesPerProject      int
	InjectedFiles            int
	InjectedFilePathBytes    int
	InjectedFileContentBytes int
	ImageMetadataItems       int
}

// DefaultLimits mirror the stock quota set.
func DefaultLimits() Limits {
	return Limits{
		InstancesPerProject:      10,
		InjectedFiles:            5,
		InjectedFilePathBytes:    255,
		InjectedFileContentBytes: 10 * 1024,
		ImageMetadataItems:       128,
	}
}

// Orchestrator implements ports.Orchestrator against an afero-backed
// instance store.
type Orchestrator struct {
	mu        sync.Mutex
	fs        afero.Fs
	stateDir  string
	catalog   *flavors.Catalog
	limits    Limits
	clock     func() time.Time
	instances map[string]*models.Instance
	images    map[string]*models.Image
	passwords map[string]string
}

// New builds an orchestrator over the supplied filesystem and flavor
// catalog, loading any instance records already present.
func New(fs afero.Fs, stateDir string, catalog *flavors.Catalog, limits Limits, clock func() time.Time) (*Orchestrator, error) {
	o := &Orchestrator{
		fs:        fs,
		stateDir:  stateDir,
		catalog:   catalog,
		limits:    limits,
		clock:     clock,
		instances: map[string]*models.Instance{},
		images:    map[string]*models.Image{},
		passwords: map[string]string{},
	}

	if err := fs.MkdirAll(o.instanceDir(), defaults.DataDirPerm); err != nil {
		return nil, fmt.Errorf("creating instance state dir: %w", err)
	}

	if err := o.loadInstances(); err != nil {
		return nil, err
	}

	return o, nil
}

func (o *Orchestrator) instanceDir() string {
	return path.Join(o.stateDir, "instances")
}

func (o *Orchestrator) instancePath(id string) string {
	return path.Join(o.instanceDir(), id+".json")
}

func (o *Orchestrator) loadInstances() error {
	entries, err := afero.ReadDir(o.fs, o.instanceDir())
	if err != nil {
		return fmt.Errorf("reading instance state dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := afero.ReadFile(o.fs, path.Join(o.instanceDir(), entry.Name()))
		if err != nil {
			return fmt.Errorf("reading instance record %s: %w", entry.Name(), err)
		}

		var instance models.Instance
		if err := json.Unmarshal(data, &instance); err != nil {
			return fmt.Errorf("parsing instance record %s: %w", entry.Name(), err)
		}

		o.instances[instance.ID] = &instance
	}

	return nil
}

func (o *Orchestrator) persist(instance *models.Instance) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("encoding instance record: %w", err)
	}

	if err := afero.WriteFile(o.fs, o.instancePath(instance.ID), data, defaults.DataFilePerm); err != nil {
		return fmt.Errorf("writing instance record: %w", err)
	}

	return nil
}

func (o *Orchestrator) checkInjectedFiles(files []models.InjectedFile) error {
	if len(files) > o.limits.InjectedFiles {
		return coreerrs.ErrInjectedFileLimitExceeded
	}

	for _, file := range files {
		if len(file.Path) > o.limits.InjectedFilePathBytes {
			return coreerrs.ErrInjectedFilePathLimitExceeded
		}
		if len(file.Contents) > o.limits.InjectedFileContentBytes {
			return coreerrs.ErrInjectedFileContentLimitExceeded
		}
	}

	return nil
}

// Create implements ports.Orchestrator.
func (o *Orchestrator) Create(ctx context.Context, caller *auth.Context, cmd *models.CreateCommand) ([]*models.Instance, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.catalog.Get(cmd.FlavorID); err != nil {
		return nil, "", err
	}

	if err := o.checkInjectedFiles(cmd.InjectedFiles); err != nil {
		return nil, "", err
	}

	existing := 0
	for _, instance := range o.instances {
		if instance.ProjectID == caller.ProjectID && !instance.Deleted {
			existing++
		}
	}
	if existing+cmd.MinCount > o.limits.InstancesPerProject {
		return nil, "", coreerrs.ErrInstanceLimitExceeded
	}

	reservationID := cmd.ReservationID
	if reservationID == "" {
		reservationID = "r-" + uuid.NewString()[:8]
	}

	now := o.clock()
	created := make([]*models.Instance, 0, cmd.MinCount)
	for i := 0; i < cmd.MinCount; i++ {
		instance := &models.Instance{
			ID:               uuid.NewString(),
			ProjectID:        caller.ProjectID,
			UserID:           caller.UserID,
			Name:             cmd.Name,
			State:            models.StateActive,
			Progress:         100,
			ImageRef:         cmd.ImageRef,
			FlavorID:         cmd.FlavorID,
			KeyName:          cmd.KeyName,
			Metadata:         cmd.Metadata,
			AccessIPv4:       cmd.AccessIPv4,
			AccessIPv6:       cmd.AccessIPv6,
			SecurityGroups:   cmd.SecurityGroups,
			Networks:         cmd.Networks,
			ReservationID:    reservationID,
			AvailabilityZone: cmd.AvailabilityZone,
			AutoDiskConfig:   cmd.AutoDiskConfig,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := o.persist(instance); err != nil {
			return nil, "", err
		}

		o.instances[instance.ID] = instance
		o.passwords[instance.ID] = cmd.AdminPass
		created = append(created, instance)
	}

	log.GetLogger(ctx).WithField("reservation", reservationID).Debugf("created %d instances", len(created))

	return created, reservationID, nil
}

// Update implements ports.Orchestrator.
func (o *Orchestrator) Update(ctx context.Context, caller *auth.Context, id string, patch *models.UpdateCommand) (*models.Instance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	instance, err := o.get(caller, id)
	if err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		instance.Name = *patch.DisplayName
	}
	if patch.AccessIPv4 != nil {
		instance.AccessIPv4 = *patch.AccessIPv4
	}
	if patch.AccessIPv6 != nil {
		instance.AccessIPv6 = *patch.AccessIPv6
	}
	if patch.AutoDiskConfig != nil {
		instance.AutoDiskConfig = patch.AutoDiskConfig
	}
	instance.UpdatedAt = o.clock()

	if err := o.persist(instance); err != nil {
		return nil, err
	}

	return instance, nil
}

// Delete implements ports.Orchestrator.
func (o *Orchestrator) Delete(ctx context.Context, caller *auth.Context, instance *models.Instance) error {
	return o.markDeleted(caller, instance.ID, models.StateDeleted)
}

// SoftDelete implements ports.Orchestrator.
func (o *Orchestrator) SoftDelete(ctx context.Context, caller *auth.Context, instance *models.Instance) error {
	return o.markDeleted(caller, instance.ID, models.StateSoftDelete)
}

func (o *Orchestrator) markDeleted(caller *auth.Context, id string, state models.InstanceState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	instance, err := o.get(caller, id)
	if err != nil {
		return err
	}

	now := o.clock()
	instance.State = state
	instance.Deleted = true
	instance.DeletedAt = now
	instance.UpdatedAt = now

	return o.persist(instance)
}

// Reboot implements ports.Orchestrator.
func (o *Orchestrator) Reboot(ctx context.Context, caller *auth.Context, instance *models.Instance, rebootType string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	record, err := o.get(caller, instance.ID)
	if err != nil {
		return err
	}

	log.GetLogger(ctx).WithField("instance", record.ID).Debugf("%s reboot", rebootType)
	record.State = models.StateActive
	record.UpdatedAt = o.clock()

	return o.persist(record)
}

// Resize implements ports.Orchestrator.
func (o *Orchestrator) Resize(ctx context.Context, caller *auth.Context, instance *models.Instance, flavorID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	record, err := o.get(caller, instance.ID)
	if err != nil {
		return err
	}

	current, err := o.catalog.Get(record.FlavorID)
	if err != nil {
		return err
	}

	requested, err := o.catalog.Get(flavorID)
	if err != nil {
		return err
	}

	if flavors.Same(current, requested) {
		return coreerrs.ErrCannotResizeToSameSize
	}
	if flavors.Smaller(requested, current) {
		return coreerrs.ErrCannotResizeToSmallerSize
	}

	record.PreviousFlavorID = record.FlavorID
	record.FlavorID = flavorID
	record.State = models.StateResized
	record.UpdatedAt = o.clock()

	return o.persist(record)
}

// ConfirmResize implements ports.Orchestrator.
func (o *Orchestrator) ConfirmResize(ctx context.Context, caller *auth.Context, instance *models.Instance) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	record, err := o.get(caller, instance.ID)
	if err != nil {
		return err
	}

	if record.PreviousFlavorID == "" {
		return coreerrs.NewMigrationNotFound(record.ID)
	}

	record.PreviousFlavorID = ""
	record.State = models.StateActive
	record.UpdatedAt = o.clock()

	return o.persist(record)
}

// RevertResize implements ports.Orchestrator.
func (o *Orchestrator) RevertResize(ctx context.Context, caller *auth.Context, instance *models.Instance) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	record, err := o.get(caller, instance.ID)
	if err != nil {
		return err
	}

	if record.PreviousFlavorID == "" {
		return coreerrs.NewMigrationNotFound(record.ID)
	}

	record.FlavorID = record.PreviousFlavorID
	record.PreviousFlavorID = ""
	record.State = models.StateActive
	record.UpdatedAt = o.clock()

	return o.persist(record)
}

// Rebuild implements ports.Orchestrator.
func (o *Orchestrator) Rebuild(ctx context.Context, caller *auth.Context, instance *models.Instance, cmd *models.RebuildCommand) (*models.Instance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	record, err := o.get(caller, instance.ID)
	if err != nil {
		return nil, err
	}

	if record.State != models.StateActive {
		return nil, coreerrs.NewRebuildRequiresActive(record.ID)
	}

	if err := o.checkInjectedFiles(cmd.InjectedFiles); err != nil {
		return nil, err
	}

	record.ImageRef = cmd.ImageRef
	if cmd.Name != nil {
		record.Name = *cmd.Name
	}
	if cmd.Metadata != nil {
		record.Metadata = cmd.Metadata
	}
	record.UpdatedAt = o.clock()
	o.passwords[record.ID] = cmd.AdminPass

	if err := o.persist(record); err != nil {
		return nil, err
	}

	return record, nil
}

// Snapshot implements ports.Orchestrator.
func (o *Orchestrator) Snapshot(ctx context.Context, caller *auth.Context, instance *models.Instance, name string, properties map[string]string) (*models.Image, error) {
	return o.captureImage(caller, instance, name, "snapshot", 0, properties)
}

// Backup implements ports.Orchestrator.
func (o *Orchestrator) Backup(ctx context.Context, caller *auth.Context, instance *models.Instance, name, backupType string, rotation int, properties map[string]string) (*models.Image, error) {
	return o.captureImage(caller, instance, name, backupType, rotation, properties)
}

func (o *Orchestrator) captureImage(caller *auth.Context, instance *models.Instance, name, imageType string, rotation int, properties map[string]string) (*models.Image, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	record, err := o.get(caller, instance.ID)
	if err != nil {
		return nil, err
	}

	if record.State != models.StateActive && record.State != models.StateStopped {
		return nil, coreerrs.ErrInstanceSnapshotting
	}

	// The metadata quota counts caller-supplied items, not the
	// back-reference this layer adds.
	if len(properties)-1 > o.limits.ImageMetadataItems {
		return nil, coreerrs.ErrImageMetadataLimitExceeded
	}

	image := &models.Image{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       imageType,
		Properties: properties,
		CreatedAt:  o.clock(),
	}
	o.images[image.ID] = image

	if rotation > 0 {
		o.rotateBackups(record.ID, imageType, rotation)
	}

	return image, nil
}

// rotateBackups drops the oldest backups of the given type for an
// instance beyond the rotation factor.
func (o *Orchestrator) rotateBackups(instanceID, backupType string, rotation int) {
	var backups []*models.Image
	for _, image := range o.images {
		if image.Type == backupType && strings.HasSuffix(image.Properties["instance_ref"], "/servers/"+instanceID) {
			backups = append(backups, image)
		}
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	for _, stale := range backups[min(rotation, len(backups)):] {
		delete(o.images, stale.ID)
	}
}

// Image reports whether an image is still in the store.
func (o *Orchestrator) Image(id string) (*models.Image, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	image, ok := o.images[id]

	return image, ok
}

// SetAdminPassword implements ports.Orchestrator.
func (o *Orchestrator) SetAdminPassword(ctx context.Context, caller *auth.Context, instance *models.Instance, password string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	record, err := o.get(caller, instance.ID)
	if err != nil {
		return err
	}

	o.passwords[record.ID] = password

	return nil
}

// GetAll implements ports.Orchestrator.
func (o *Orchestrator) GetAll(ctx context.Context, caller *auth.Context, opts ports.SearchOptions) ([]*models.Instance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*models.Instance
	for _, instance := range o.instances {
		if !caller.IsAdmin && instance.ProjectID != caller.ProjectID {
			continue
		}
		if !matches(instance, opts) {
			continue
		}
		out = append(out, instance)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func matches(instance *models.Instance, opts ports.SearchOptions) bool {
	if deleted, ok := opts["deleted"].(bool); ok && instance.Deleted != deleted {
		return false
	}
	if since, ok := opts["changes-since"].(time.Time); ok && instance.UpdatedAt.Before(since) {
		return false
	}
	if state, ok := opts["state"].(models.InstanceState); ok && instance.State != state {
		return false
	}
	if name, ok := opts["name"].(string); ok && !strings.Contains(instance.Name, name) {
		return false
	}
	if reservation, ok := opts["reservation_id"].(string); ok && instance.ReservationID != reservation {
		return false
	}
	if image, ok := opts["image"].(string); ok && instance.ImageRef != image {
		return false
	}
	if flavor, ok := opts["flavor"].(string); ok && instance.FlavorID != flavor {
		return false
	}

	return true
}

// RoutingGet implements ports.Orchestrator.
func (o *Orchestrator) RoutingGet(ctx context.Context, caller *auth.Context, id string) (*models.Instance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.get(caller, id)
}

func (o *Orchestrator) get(caller *auth.Context, id string) (*models.Instance, error) {
	instance, ok := o.instances[id]
	if !ok || instance.Deleted {
		return nil, coreerrs.NewInstanceNotFound(id)
	}
	if !caller.IsAdmin && instance.ProjectID != caller.ProjectID {
		return nil, coreerrs.NewInstanceNotFound(id)
	}

	return instance, nil
}
