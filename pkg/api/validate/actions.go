package validate

import (
	"strconv"
	"strings"

	"servergate/pkg/api/faults"
)

// RebootType validates the reboot action entity and returns the
// normalized (upper-case) reboot type, HARD or SOFT.
func RebootType(entity any) (string, error) {
	fields, ok := entity.(map[string]any)
	if !ok {
		return "", faults.BadRequest("Missing argument 'type' for reboot")
	}

	raw, ok := fields["type"]
	if !ok {
		return "", faults.BadRequest("Missing argument 'type' for reboot")
	}

	value, ok := raw.(string)
	if !ok {
		return "", faults.BadRequest("Argument 'type' for reboot is not HARD or SOFT")
	}

	rebootType := strings.ToUpper(value)
	if rebootType != "HARD" && rebootType != "SOFT" {
		return "", faults.BadRequest("Argument 'type' for reboot is not HARD or SOFT")
	}

	return rebootType, nil
}

// Integer reads an integer field that may arrive as a number or a string.
func Integer(value any) (int, error) {
	switch v := value.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, strconv.ErrSyntax
	}
}
