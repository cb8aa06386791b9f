// Package validate applies the per-field and cross-field business rules
// to a normalized document. Every failure is a wire fault with one
// specific reason; the first violation wins.
package validate

import (
	"encoding/base64"
	"net/netip"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"servergate/pkg/api/faults"
	"servergate/pkg/api/normalize"
	"servergate/pkg/auth"
	"servergate/pkg/defaults"
	"servergate/pkg/models"
)

// Create validates a normalized create document and produces the
// canonical command for the orchestration collaborator.
func Create(caller *auth.Context, doc normalize.Document) (*models.CreateCommand, error) {
	server, err := doc.Entity("server")
	if err != nil {
		return nil, err
	}

	password, err := AdminPassword(server)
	if err != nil {
		return nil, err
	}

	raw, ok := server["name"]
	if !ok {
		return nil, faults.BadRequest("Server name is not defined")
	}
	name, err := ServerName(raw)
	if err != nil {
		return nil, err
	}

	imageRef, ok := stringField(server, "imageRef")
	if !ok {
		return nil, faults.BadRequest("Missing imageRef attribute")
	}

	flavorRef, ok := stringField(server, "flavorRef")
	if !ok {
		return nil, faults.BadRequest("Missing flavorRef attribute")
	}

	cmd := &models.CreateCommand{
		Name:      name,
		ImageRef:  imageRef,
		FlavorID:  FlavorID(flavorRef),
		AdminPass: password,
	}

	if personality, ok := server["personality"]; ok && personality != nil {
		cmd.InjectedFiles, err = InjectedFiles(personality)
		if err != nil {
			return nil, err
		}
	}

	if metadata, ok := server["metadata"]; ok && metadata != nil {
		cmd.Metadata, err = Metadata(metadata)
		if err != nil {
			return nil, err
		}
	}

	cmd.SecurityGroups, err = securityGroupNames(server["security_groups"])
	if err != nil {
		return nil, err
	}

	if networks, ok := server["networks"]; ok && networks != nil {
		cmd.Networks, err = RequestedNetworks(networks)
		if err != nil {
			return nil, err
		}
	}

	if userData, ok := stringField(server, "user_data"); ok {
		if _, err := base64.StdEncoding.DecodeString(strings.TrimSpace(userData)); err != nil {
			return nil, faults.BadRequest("Userdata content cannot be decoded")
		}
		cmd.UserData = userData
	}

	cmd.KeyName, _ = stringField(server, "key_name")
	cmd.AccessIPv4, _ = stringField(server, "accessIPv4")
	cmd.AccessIPv6, _ = stringField(server, "accessIPv6")
	cmd.AvailabilityZone, _ = stringField(server, "availability_zone")
	cmd.ConfigDrive = server["config_drive"]
	cmd.BlockDeviceMapping = server["block_device_mapping"]

	// Only admins may pin their own reservation id; anyone else gets a
	// generated one, silently.
	if reservation, ok := stringField(server, "reservation_id"); ok && reservation != "" && caller.IsAdmin {
		cmd.ReservationID = reservation
	}

	cmd.ReturnReservationID = boolField(server, "return_reservation_id")

	cmd.MinCount, cmd.MaxCount, err = instanceCounts(server)
	if err != nil {
		return nil, err
	}

	if value, ok := server["auto_disk_config"]; ok {
		cmd.AutoDiskConfig = boolPointer(value)
	}

	return cmd, nil
}

// Update validates a normalized update document into a sparse patch.
// Fields absent from the request stay nil: no change, not clear.
func Update(doc normalize.Document) (*models.UpdateCommand, error) {
	server, err := doc.Entity("server")
	if err != nil {
		return nil, err
	}

	patch := &models.UpdateCommand{}

	if raw, ok := server["name"]; ok {
		name, err := ServerName(raw)
		if err != nil {
			return nil, err
		}
		patch.DisplayName = &name
	}

	if raw, ok := server["accessIPv4"]; ok {
		value, ok := raw.(string)
		if !ok {
			return nil, faults.BadRequest("accessIPv4 is not a string")
		}
		trimmed := strings.TrimSpace(value)
		patch.AccessIPv4 = &trimmed
	}

	if raw, ok := server["accessIPv6"]; ok {
		value, ok := raw.(string)
		if !ok {
			return nil, faults.BadRequest("accessIPv6 is not a string")
		}
		trimmed := strings.TrimSpace(value)
		patch.AccessIPv6 = &trimmed
	}

	if value, ok := server["auto_disk_config"]; ok {
		patch.AutoDiskConfig = boolPointer(value)
	}

	return patch, nil
}

// ServerName checks that a name is a string and non-empty once trimmed,
// and returns the trimmed value.
func ServerName(value any) (string, error) {
	name, ok := value.(string)
	if !ok {
		return "", faults.BadRequest("Server name is not a string")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", faults.BadRequest("Server name is an empty string")
	}

	return name, nil
}

// AdminPassword reads the optional adminPass field. Empty return with nil
// error means the collaborator's password policy generates one.
func AdminPassword(entity map[string]any) (string, error) {
	raw, ok := entity["adminPass"]
	if !ok || raw == nil {
		return "", nil
	}

	password, ok := raw.(string)
	if !ok || password == "" {
		return "", faults.BadRequest("Invalid adminPass")
	}

	return password, nil
}

// InjectedFiles turns the personality attribute into decoded files. Each
// entry must carry both path and contents; a decode failure names the
// offending path.
func InjectedFiles(value any) ([]models.InjectedFile, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, faults.BadRequest("Bad personality format")
	}

	files := make([]models.InjectedFile, 0, len(list))
	for _, raw := range list {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, faults.BadRequest("Bad personality format")
		}

		path, ok := stringField(item, "path")
		if !ok {
			return nil, faults.BadRequest("Bad personality format: missing path")
		}

		contents, ok := stringField(item, "contents")
		if !ok {
			return nil, faults.BadRequest("Bad personality format: missing contents")
		}

		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(contents))
		if err != nil {
			return nil, faults.BadRequest("Personality content for %s cannot be decoded", path)
		}

		files = append(files, models.InjectedFile{Path: path, Contents: decoded})
	}

	return files, nil
}

// Metadata checks that metadata is a mapping of string keys to string
// values.
func Metadata(value any) (map[string]string, error) {
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, faults.BadRequest("Unable to parse metadata key/value pairs")
	}

	metadata := make(map[string]string, len(raw))
	for key, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, faults.BadRequest("Unable to parse metadata key/value pairs")
		}
		metadata[key] = s
	}

	return metadata, nil
}

// RequestedNetworks validates the networks attribute: every entry needs a
// UUID-shaped uuid, an optional fixed_ip must be IPv4, and no uuid may
// repeat across entries.
func RequestedNetworks(value any) ([]models.NetworkRequest, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, faults.BadRequest("Bad networks format")
	}

	networks := make([]models.NetworkRequest, 0, len(list))
	for _, raw := range list {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, faults.BadRequest("Bad networks format")
		}

		id, ok := stringField(item, "uuid")
		if !ok {
			return nil, faults.BadRequest("Bad network format: missing uuid")
		}

		if _, err := uuid.Parse(id); err != nil {
			return nil, faults.BadRequest("Bad networks format: network uuid is not in proper format (%s)", id)
		}

		network := models.NetworkRequest{UUID: id}

		if address, ok := stringField(item, "fixed_ip"); ok {
			parsed, err := netip.ParseAddr(address)
			if err != nil || !parsed.Is4() {
				return nil, faults.BadRequest("Invalid fixed IP address (%s)", address)
			}
			network.FixedIP = address
		}

		for _, existing := range networks {
			if existing.UUID == id {
				return nil, faults.BadRequest("Duplicate networks (%s) are not allowed", id)
			}
		}

		networks = append(networks, network)
	}

	return networks, nil
}

// FlavorID resolves a flavor reference to an identifier: the last path
// segment of a URL-shaped value, or the raw value when it is already an
// opaque id.
func FlavorID(ref string) string {
	trimmed := strings.TrimRight(ref, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}

	return trimmed
}

// securityGroupNames collects the requested group names, defaults to the
// default group, and deduplicates while preserving request order.
func securityGroupNames(value any) ([]string, error) {
	names := []string{}

	if value != nil {
		list, ok := value.([]any)
		if !ok {
			return nil, faults.BadRequest("Bad security_groups format")
		}

		for _, raw := range list {
			item, ok := raw.(map[string]any)
			if !ok {
				return nil, faults.BadRequest("Bad security_groups format")
			}
			if name, ok := stringField(item, "name"); ok && name != "" {
				names = append(names, name)
			}
		}
	}

	if len(names) == 0 {
		names = append(names, defaults.SecurityGroup)
	}

	seen := make(map[string]struct{}, len(names))
	unique := names[:0]
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}

	return unique, nil
}

// instanceCounts parses min_count and max_count, applying the defaults
// and the lower-min-to-max correction. The pair is never rejected for
// being reversed.
func instanceCounts(entity map[string]any) (int, int, error) {
	minCount, ok, err := intField(entity, "min_count")
	if err != nil {
		return 0, 0, faults.BadRequest("min_count must be an integer value")
	}
	if !ok {
		minCount = 1
	}
	if minCount < 1 {
		return 0, 0, faults.BadRequest("min_count must be at least 1")
	}

	maxCount, ok, err := intField(entity, "max_count")
	if err != nil {
		return 0, 0, faults.BadRequest("max_count must be an integer value")
	}
	if !ok {
		maxCount = minCount
	}
	if maxCount < 1 {
		return 0, 0, faults.BadRequest("max_count must be at least 1")
	}

	if minCount > maxCount {
		minCount = maxCount
	}

	return minCount, maxCount, nil
}

func stringField(entity map[string]any, key string) (string, bool) {
	raw, ok := entity[key]
	if !ok {
		return "", false
	}

	value, ok := raw.(string)

	return value, ok
}

// intField reads an integer that may arrive as a number or a string.
func intField(entity map[string]any, key string) (int, bool, error) {
	raw, ok := entity[key]
	if !ok || raw == nil {
		return 0, false, nil
	}

	switch value := raw.(type) {
	case float64:
		return int(value), true, nil
	case int:
		return value, true, nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, true, err
		}

		return parsed, true, nil
	default:
		return 0, true, strconv.ErrSyntax
	}
}

func boolField(entity map[string]any, key string) bool {
	pointer := boolPointer(entity[key])
	if pointer == nil {
		return false
	}

	return *pointer
}

// boolPointer interprets a wire boolean that may arrive typed or as a
// loose string.
func boolPointer(value any) *bool {
	switch v := value.(type) {
	case bool:
		return &v
	case string:
		b := normalize.BoolFromString(v)

		return &b
	default:
		return nil
	}
}
