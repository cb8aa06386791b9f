package validate

import (
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"servergate/pkg/api/faults"
	"servergate/pkg/api/normalize"
	"servergate/pkg/auth"
	"servergate/pkg/models"
	"servergate/pkg/ports"
)

// allowedSearchOptions is the filter allow-list for non-privileged
// callers. Everything else is stripped, not rejected.
var allowedSearchOptions = map[string]struct{}{
	"reservation_id":  {},
	"name":            {},
	"local_zone_only": {},
	"status":          {},
	"image":           {},
	"flavor":          {},
	"changes-since":   {},
}

// changesSinceLayouts are the ISO-8601 profiles accepted for the
// changes-since filter.
var changesSinceLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// Search validates query filters into the option set handed to the
// collaborator's GetAll. Non-admin callers are restricted to the
// allow-list; dropped keys are recorded in the operation log.
func Search(caller *auth.Context, adminAPI bool, query url.Values, logger *logrus.Entry) (ports.SearchOptions, error) {
	opts := ports.SearchOptions{}
	for key := range query {
		opts[key] = query.Get(key)
	}

	if !(adminAPI && caller.IsAdmin) {
		var dropped []string
		for key := range opts {
			if _, ok := allowedSearchOptions[key]; !ok {
				dropped = append(dropped, key)
				delete(opts, key)
			}
		}
		if len(dropped) > 0 {
			logger.WithField("options", strings.Join(dropped, ", ")).Debug("removing invalid options from query")
		}
	}

	if raw, ok := opts["local_zone_only"]; ok {
		value, _ := raw.(string)
		opts["local_zone_only"] = normalize.BoolFromString(value)
	}

	// A status filter is translated to the internal lifecycle-state
	// filter before it reaches the collaborator.
	if raw, ok := opts["status"]; ok {
		status, _ := raw.(string)
		state, ok := models.StateFromStatus(status)
		if !ok {
			return nil, faults.BadRequest("Invalid server status: %s", status)
		}
		opts["state"] = state
	}

	if raw, ok := opts["changes-since"]; ok {
		value, _ := raw.(string)
		parsed, err := parseChangesSince(value)
		if err != nil {
			return nil, faults.BadRequest("Invalid changes-since value")
		}
		opts["changes-since"] = parsed
	}

	if raw, ok := opts["deleted"]; ok {
		value, _ := raw.(string)
		opts["deleted"] = normalize.BoolFromString(value)
	} else if _, ok := opts["changes-since"]; !ok {
		// Without an explicit deleted filter only live servers are
		// returned, unless changes-since asked for recent deletions too.
		opts["deleted"] = false
	}

	return opts, nil
}

func parseChangesSince(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range changesSinceLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}

	return time.Time{}, lastErr
}
