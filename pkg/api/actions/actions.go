// Package actions routes the multi-purpose server action endpoint:
// exactly one named action per request, resolved through a flat
// name-to-handler table.
package actions

import (
	"context"
	"fmt"
	"net/http"

	"servergate/pkg/api/faults"
	"servergate/pkg/api/normalize"
	"servergate/pkg/api/validate"
	"servergate/pkg/auth"
	"servergate/pkg/log"
	"servergate/pkg/models"
	"servergate/pkg/ports"
)

// Response is the descriptor a handler produces: a status-only
// acknowledgement, a Location reference, or an updated representation.
type Response struct {
	// Status is the wire status code.
	Status int
	// Location references a created entity, when one was created.
	Location string
	// Instance is the updated representation, when one is returned.
	Instance *models.Instance
	// AdminPass rides along with the representation when the action set
	// or generated one.
	AdminPass string
}

type handlerFunc func(ctx context.Context, caller *auth.Context, id string, entity any) (*Response, error)

// Router selects and runs one named action against an instance.
type Router struct {
	ports   *ports.Collection
	baseURL string
	table   map[string]handlerFunc
}

// NewRouter builds the action table. The createBackup action only exists
// when the administrative API capability is enabled; otherwise the name
// is unrecognized.
func NewRouter(collection *ports.Collection, baseURL string, adminAPI bool) *Router {
	r := &Router{
		ports:   collection,
		baseURL: baseURL,
	}

	r.table = map[string]handlerFunc{
		"changePassword": r.changePassword,
		"reboot":         r.reboot,
		"resize":         r.resize,
		"confirmResize":  r.confirmResize,
		"revertResize":   r.revertResize,
		"rebuild":        r.rebuild,
		"createImage":    r.createImage,
	}

	if adminAPI {
		r.table["createBackup"] = r.createBackup
	}

	return r
}

// Dispatch picks one recognized action key out of the document and runs
// its handler. When a body carries several keys the first one encountered
// decides the outcome; the iteration order is deliberately unspecified.
func (r *Router) Dispatch(ctx context.Context, caller *auth.Context, id string, doc normalize.Document) (*Response, error) {
	for key, entity := range doc {
		handler, ok := r.table[key]
		if !ok {
			return nil, faults.BadRequest("There is no such server action: %s", key)
		}

		log.GetLogger(ctx).WithField("action", key).WithField("instance", id).Debug("dispatching server action")

		return handler(ctx, caller, id, entity)
	}

	return nil, faults.BadRequest("Invalid request body")
}

func (r *Router) instance(ctx context.Context, caller *auth.Context, id string) (*models.Instance, error) {
	instance, err := r.ports.Orchestrator.RoutingGet(ctx, caller, id)
	if err != nil {
		return nil, faults.Classify(err)
	}

	return instance, nil
}

func (r *Router) changePassword(ctx context.Context, caller *auth.Context, id string, entity any) (*Response, error) {
	fields, ok := entity.(map[string]any)
	if !ok {
		return nil, faults.BadRequest("No adminPass was specified")
	}

	raw, ok := fields["adminPass"]
	if !ok {
		return nil, faults.BadRequest("No adminPass was specified")
	}

	password, ok := raw.(string)
	if !ok || password == "" {
		return nil, faults.BadRequest("Invalid adminPass")
	}

	instance, err := r.instance(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if err := r.ports.Orchestrator.SetAdminPassword(ctx, caller, instance, password); err != nil {
		return nil, faults.Classify(err)
	}

	return &Response{Status: http.StatusAccepted}, nil
}

func (r *Router) reboot(ctx context.Context, caller *auth.Context, id string, entity any) (*Response, error) {
	rebootType, err := validate.RebootType(entity)
	if err != nil {
		return nil, err
	}

	instance, err := r.instance(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if err := r.ports.Orchestrator.Reboot(ctx, caller, instance, rebootType); err != nil {
		return nil, faults.Classify(err)
	}

	return &Response{Status: http.StatusAccepted}, nil
}

func (r *Router) resize(ctx context.Context, caller *auth.Context, id string, entity any) (*Response, error) {
	fields, ok := entity.(map[string]any)
	if !ok {
		return nil, faults.BadRequest("Resize requests require 'flavorRef' attribute.")
	}

	raw, ok := fields["flavorRef"]
	if !ok {
		return nil, faults.BadRequest("Resize requests require 'flavorRef' attribute.")
	}

	flavorRef, ok := raw.(string)
	if !ok || flavorRef == "" {
		return nil, faults.BadRequest("Resize request has invalid 'flavorRef' attribute.")
	}

	instance, err := r.instance(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if err := r.ports.Orchestrator.Resize(ctx, caller, instance, validate.FlavorID(flavorRef)); err != nil {
		return nil, faults.Classify(err)
	}

	return &Response{Status: http.StatusAccepted}, nil
}

func (r *Router) confirmResize(ctx context.Context, caller *auth.Context, id string, _ any) (*Response, error) {
	instance, err := r.instance(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if err := r.ports.Orchestrator.ConfirmResize(ctx, caller, instance); err != nil {
		return nil, faults.Classify(err)
	}

	return &Response{Status: http.StatusNoContent}, nil
}

func (r *Router) revertResize(ctx context.Context, caller *auth.Context, id string, _ any) (*Response, error) {
	instance, err := r.instance(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if err := r.ports.Orchestrator.RevertResize(ctx, caller, instance); err != nil {
		return nil, faults.Classify(err)
	}

	return &Response{Status: http.StatusAccepted}, nil
}

func (r *Router) rebuild(ctx context.Context, caller *auth.Context, id string, entity any) (*Response, error) {
	fields, ok := entity.(map[string]any)
	if !ok {
		return nil, faults.BadRequest("Could not parse imageRef from request.")
	}

	imageRef, ok := fields["imageRef"].(string)
	if !ok || imageRef == "" {
		return nil, faults.BadRequest("Could not parse imageRef from request.")
	}

	cmd := &models.RebuildCommand{ImageRef: imageRef}

	if personality, ok := fields["personality"]; ok && personality != nil {
		files, err := validate.InjectedFiles(personality)
		if err != nil {
			return nil, err
		}
		cmd.InjectedFiles = files
	}

	if metadata, ok := fields["metadata"]; ok && metadata != nil {
		parsed, err := validate.Metadata(metadata)
		if err != nil {
			return nil, err
		}
		cmd.Metadata = parsed
	}

	if raw, ok := fields["name"]; ok {
		name, err := validate.ServerName(raw)
		if err != nil {
			return nil, err
		}
		cmd.Name = &name
	}

	password, err := validate.AdminPassword(fields)
	if err != nil {
		return nil, err
	}
	if password == "" {
		password = r.ports.Passwords.Generate()
	}
	cmd.AdminPass = password

	instance, err := r.instance(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	rebuilt, err := r.ports.Orchestrator.Rebuild(ctx, caller, instance, cmd)
	if err != nil {
		return nil, faults.Classify(err)
	}

	return &Response{
		Status:    http.StatusAccepted,
		Instance:  rebuilt,
		AdminPass: password,
	}, nil
}

func (r *Router) createImage(ctx context.Context, caller *auth.Context, id string, entity any) (*Response, error) {
	fields, _ := entity.(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}

	name, ok := fields["name"].(string)
	if !ok || name == "" {
		return nil, faults.BadRequest("createImage entity requires name attribute")
	}

	properties, err := r.imageProperties(id, fields)
	if err != nil {
		return nil, err
	}

	instance, err := r.instance(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	image, err := r.ports.Orchestrator.Snapshot(ctx, caller, instance, name, properties)
	if err != nil {
		return nil, faults.Classify(err)
	}

	return &Response{
		Status:   http.StatusAccepted,
		Location: fmt.Sprintf("%s/images/%s", r.baseURL, image.ID),
	}, nil
}

func (r *Router) createBackup(ctx context.Context, caller *auth.Context, id string, entity any) (*Response, error) {
	fields, ok := entity.(map[string]any)
	if !ok {
		return nil, faults.BadRequest("Malformed createBackup entity")
	}

	name, ok := fields["name"].(string)
	if !ok || name == "" {
		return nil, faults.BadRequest("createBackup entity requires name attribute")
	}

	backupType, ok := fields["backup_type"].(string)
	if !ok || backupType == "" {
		return nil, faults.BadRequest("createBackup entity requires backup_type attribute")
	}

	raw, ok := fields["rotation"]
	if !ok {
		return nil, faults.BadRequest("createBackup entity requires rotation attribute")
	}

	rotation, err := validate.Integer(raw)
	if err != nil {
		return nil, faults.BadRequest("createBackup attribute 'rotation' must be an integer")
	}

	properties, err := r.imageProperties(id, fields)
	if err != nil {
		return nil, err
	}

	instance, err := r.instance(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	image, err := r.ports.Orchestrator.Backup(ctx, caller, instance, name, backupType, rotation, properties)
	if err != nil {
		return nil, faults.Classify(err)
	}

	return &Response{
		Status:   http.StatusAccepted,
		Location: fmt.Sprintf("%s/images/%s", r.baseURL, image.ID),
	}, nil
}

// imageProperties builds the image property set: the back-reference to
// the originating server merged with caller-supplied metadata. The
// metadata quota belongs to the collaborator.
func (r *Router) imageProperties(id string, fields map[string]any) (map[string]string, error) {
	properties := map[string]string{
		"instance_ref": fmt.Sprintf("%s/servers/%s", r.baseURL, id),
	}

	if raw, ok := fields["metadata"]; ok && raw != nil {
		metadata, err := validate.Metadata(raw)
		if err != nil {
			return nil, err
		}
		for key, value := range metadata {
			properties[key] = value
		}
	}

	return properties, nil
}
