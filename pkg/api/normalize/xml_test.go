package normalize_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	g "github.com/onsi/gomega"

	"servergate/pkg/api/normalize"
)

const createXML = `<server name="web-1" imageRef="img-1" flavorRef="1" adminPass="s3cret" auto_disk_config="true">
  <metadata><meta key="role">frontend</meta></metadata>
  <personality><file path="/etc/motd">aGVsbG8=</file></personality>
  <networks>
    <network uuid="6b2c04c2-f6ad-4e45-aae9-5e5e7220bc38" fixed_ip="10.0.0.5"/>
    <network uuid="e0c8f6f5-7a6c-44c1-9f4d-0c2e3f4f9b33"/>
  </networks>
  <security_groups>
    <security_group><name>web</name></security_group>
  </security_groups>
</server>`

const createJSON = `{"server": {
  "name": "web-1",
  "imageRef": "img-1",
  "flavorRef": "1",
  "adminPass": "s3cret",
  "auto_disk_config": true,
  "metadata": {"role": "frontend"},
  "personality": [{"path": "/etc/motd", "contents": "aGVsbG8="}],
  "networks": [
    {"uuid": "6b2c04c2-f6ad-4e45-aae9-5e5e7220bc38", "fixed_ip": "10.0.0.5"},
    {"uuid": "e0c8f6f5-7a6c-44c1-9f4d-0c2e3f4f9b33"}
  ],
  "security_groups": [{"name": "web"}]
}}`

func TestDecodeBody_xmlServer(t *testing.T) {
	g.RegisterTestingT(t)

	doc, err := normalize.DecodeBody(normalize.ContentTypeXML, []byte(createXML))
	g.Expect(err).NotTo(g.HaveOccurred())

	server, err := doc.Entity("server")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(server["name"]).To(g.Equal("web-1"))
	g.Expect(server["auto_disk_config"]).To(g.Equal(true))
	g.Expect(server["metadata"]).To(g.Equal(map[string]any{"role": "frontend"}))
	g.Expect(server["personality"]).To(g.Equal([]any{
		map[string]any{"path": "/etc/motd", "contents": "aGVsbG8="},
	}))
	g.Expect(server["security_groups"]).To(g.Equal([]any{
		map[string]any{"name": "web"},
	}))
}

// Both encodings of the same logical request must converge on one
// canonical document.
func TestDecodeBody_encodingsConverge(t *testing.T) {
	g.RegisterTestingT(t)

	fromXML, err := normalize.DecodeBody(normalize.ContentTypeXML, []byte(createXML))
	g.Expect(err).NotTo(g.HaveOccurred())

	fromJSON, err := normalize.DecodeBody(normalize.ContentTypeJSON, []byte(createJSON))
	g.Expect(err).NotTo(g.HaveOccurred())

	g.Expect(cmp.Diff(fromJSON, fromXML)).To(g.BeEmpty())
}

func TestDecodeBody_xmlOmitsAbsentAttributes(t *testing.T) {
	g.RegisterTestingT(t)

	doc, err := normalize.DecodeBody(normalize.ContentTypeXML, []byte(`<server name="web-1"/>`))
	g.Expect(err).NotTo(g.HaveOccurred())

	server, err := doc.Entity("server")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(server).To(g.HaveLen(1))
	g.Expect(server).NotTo(g.HaveKey("imageRef"))
	g.Expect(server).NotTo(g.HaveKey("metadata"))
}

func TestDecodeBody_xmlAction(t *testing.T) {
	g.RegisterTestingT(t)

	doc, err := normalize.DecodeBody(normalize.ContentTypeXML, []byte(`<reboot type="HARD"/>`))
	g.Expect(err).NotTo(g.HaveOccurred())

	g.Expect(doc).To(g.HaveKey("reboot"))
	g.Expect(doc["reboot"]).To(g.Equal(map[string]any{"type": "HARD"}))
}

func TestDecodeBody_xmlBodylessAction(t *testing.T) {
	g.RegisterTestingT(t)

	doc, err := normalize.DecodeBody(normalize.ContentTypeXML, []byte(`<confirmResize/>`))
	g.Expect(err).NotTo(g.HaveOccurred())

	g.Expect(doc).To(g.HaveKey("confirmResize"))
	g.Expect(doc["confirmResize"]).To(g.BeNil())
}

func TestDecodeBody_xmlBackupAction(t *testing.T) {
	g.RegisterTestingT(t)

	body := `<createBackup name="nightly" backup_type="daily" rotation="3">
  <metadata><meta key="tier">gold</meta></metadata>
</createBackup>`

	doc, err := normalize.DecodeBody(normalize.ContentTypeXML, []byte(body))
	g.Expect(err).NotTo(g.HaveOccurred())

	entity, ok := doc["createBackup"].(map[string]any)
	g.Expect(ok).To(g.BeTrue())
	g.Expect(entity["name"]).To(g.Equal("nightly"))
	g.Expect(entity["backup_type"]).To(g.Equal("daily"))
	g.Expect(entity["rotation"]).To(g.Equal("3"))
	g.Expect(entity["metadata"]).To(g.Equal(map[string]any{"tier": "gold"}))
}
