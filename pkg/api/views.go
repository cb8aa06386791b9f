package api

import (
	"fmt"
	"time"

	"servergate/pkg/models"
)

// serverView builds the representation body for one instance. The full
// representation contract belongs to the view layer; this builds the
// fields the gate itself owns.
func (s *Server) serverView(instance *models.Instance, detailed bool) map[string]any {
	view := map[string]any{
		"id":    instance.ID,
		"name":  instance.Name,
		"links": s.serverLinks(instance.ID),
	}

	if !detailed {
		return view
	}

	view["status"] = instance.State.Status()
	view["progress"] = instance.Progress
	view["tenant_id"] = instance.ProjectID
	view["user_id"] = instance.UserID
	view["created"] = instance.CreatedAt.UTC().Format(time.RFC3339)
	view["updated"] = instance.UpdatedAt.UTC().Format(time.RFC3339)
	view["accessIPv4"] = instance.AccessIPv4
	view["accessIPv6"] = instance.AccessIPv6
	view["flavor"] = map[string]any{"id": instance.FlavorID}
	view["image"] = map[string]any{"id": instance.ImageRef}

	if instance.Metadata != nil {
		view["metadata"] = instance.Metadata
	}

	if len(instance.SecurityGroups) > 0 {
		groups := make([]map[string]any, 0, len(instance.SecurityGroups))
		for _, name := range instance.SecurityGroups {
			groups = append(groups, map[string]any{"name": name})
		}
		view["security_groups"] = groups
	}

	return view
}

func (s *Server) serverLinks(id string) []map[string]string {
	return []map[string]string{
		{"rel": "self", "href": fmt.Sprintf("%s/servers/%s", s.cfg.BaseURL, id)},
	}
}

func (s *Server) serverListView(instances []*models.Instance, detailed bool) map[string]any {
	servers := make([]map[string]any, 0, len(instances))
	for _, instance := range instances {
		servers = append(servers, s.serverView(instance, detailed))
	}

	return map[string]any{"servers": servers}
}
