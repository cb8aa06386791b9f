package normalize

import (
	"bytes"
	"encoding/xml"

	"servergate/pkg/api/faults"
)

// xmlNode is a generic element tree; the decoder walks it instead of
// binding element names to struct fields so both decoders can converge
// on the same document shapes.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
	Text    string     `xml:",chardata"`
}

func (n *xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}

	return "", false
}

func (n *xmlNode) firstChild(name string) *xmlNode {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}

	return nil
}

func (n *xmlNode) children(name string) []*xmlNode {
	var out []*xmlNode
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			out = append(out, &n.Nodes[i])
		}
	}

	return out
}

func decodeXML(body []byte) (Document, error) {
	var root xmlNode
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&root); err != nil {
		return nil, faults.BadRequest("Malformed request body")
	}

	name := root.XMLName.Local
	if name == "server" {
		return Document{name: extractServer(&root)}, nil
	}

	// Any other root element is treated as an action document: the
	// element name is the single top-level key.
	return Document{name: extractEntity(&root)}, nil
}

// extractServer marshals the server element into the canonical entity
// shape. Attributes absent in the XML are omitted, never defaulted.
func extractServer(node *xmlNode) map[string]any {
	server := map[string]any{}

	stringAttrs := []string{
		"name", "imageRef", "flavorRef", "adminPass", "accessIPv4",
		"accessIPv6", "key_name", "user_data", "availability_zone",
		"min_count", "max_count", "reservation_id", "config_drive",
	}
	for _, attr := range stringAttrs {
		if value, ok := node.attr(attr); ok && value != "" {
			server[attr] = value
		}
	}

	if value, ok := node.attr("auto_disk_config"); ok && value != "" {
		server["auto_disk_config"] = BoolFromString(value)
	}

	if value, ok := node.attr("return_reservation_id"); ok && value != "" {
		server["return_reservation_id"] = BoolFromString(value)
	}

	if metadata := node.firstChild("metadata"); metadata != nil {
		server["metadata"] = extractMetadata(metadata)
	}

	if personality := extractPersonality(node); personality != nil {
		server["personality"] = personality
	}

	if networks := extractNetworks(node); networks != nil {
		server["networks"] = networks
	}

	if groups := extractSecurityGroups(node); groups != nil {
		server["security_groups"] = groups
	}

	return server
}

// extractEntity marshals an action element: every attribute becomes a
// string field, plus optional metadata and personality children. An
// element with no fields at all stays nil, matching the JSON shape of
// body-less actions such as confirmResize.
func extractEntity(node *xmlNode) any {
	entity := map[string]any{}

	for _, attr := range node.Attrs {
		if attr.Value != "" {
			entity[attr.Name.Local] = attr.Value
		}
	}

	if metadata := node.firstChild("metadata"); metadata != nil {
		entity["metadata"] = extractMetadata(metadata)
	}

	if personality := extractPersonality(node); personality != nil {
		entity["personality"] = personality
	}

	if len(entity) == 0 {
		return nil
	}

	return entity
}

func extractMetadata(node *xmlNode) map[string]any {
	metadata := map[string]any{}
	for _, meta := range node.children("meta") {
		if key, ok := meta.attr("key"); ok {
			metadata[key] = meta.Text
		}
	}

	return metadata
}

func extractPersonality(node *xmlNode) []any {
	personality := node.firstChild("personality")
	if personality == nil {
		return nil
	}

	files := []any{}
	for _, file := range personality.children("file") {
		item := map[string]any{"contents": file.Text}
		if path, ok := file.attr("path"); ok {
			item["path"] = path
		}
		files = append(files, item)
	}

	return files
}

func extractNetworks(node *xmlNode) []any {
	container := node.firstChild("networks")
	if container == nil {
		return nil
	}

	networks := []any{}
	for _, network := range container.children("network") {
		item := map[string]any{}
		if id, ok := network.attr("uuid"); ok {
			item["uuid"] = id
		}
		if ip, ok := network.attr("fixed_ip"); ok {
			item["fixed_ip"] = ip
		}
		networks = append(networks, item)
	}

	return networks
}

func extractSecurityGroups(node *xmlNode) []any {
	container := node.firstChild("security_groups")
	if container == nil {
		return nil
	}

	groups := []any{}
	for _, group := range container.children("security_group") {
		if name := group.firstChild("name"); name != nil {
			groups = append(groups, map[string]any{"name": name.Text})
		}
	}

	return groups
}
