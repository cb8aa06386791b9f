package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	g "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"servergate/pkg/api"
	"servergate/pkg/flavors"
	"servergate/pkg/orchestrator/memory"
	"servergate/pkg/ports"
)

const baseURL = "http://localhost:8774/v1"

var testFlavors = []flavors.Flavor{
	{ID: "1", Name: "m1.tiny", VCPUs: 1, MemoryMB: 512, DiskGB: 1},
	{ID: "2", Name: "m1.small", VCPUs: 1, MemoryMB: 2048, DiskGB: 20},
	{ID: "3", Name: "m1.medium", VCPUs: 2, MemoryMB: 4096, DiskGB: 40},
}

type harness struct {
	handler http.Handler
	orch    *memory.Orchestrator
}

func newHarness(t *testing.T, cfg *api.Config) *harness {
	t.Helper()

	if cfg == nil {
		cfg = &api.Config{BaseURL: baseURL}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}

	limits := memory.DefaultLimits()
	limits.InstancesPerProject = 3

	orch, err := memory.New(afero.NewMemMapFs(), "/var/lib/servergate", flavors.New(testFlavors), limits, time.Now)
	g.Expect(err).NotTo(g.HaveOccurred())

	collection := &ports.Collection{
		Orchestrator: orch,
		Passwords:    memory.NewPasswordService(16),
		Clock:        time.Now,
	}

	return &harness{
		handler: api.NewServer(cfg, collection).Handler(),
		orch:    orch,
	}
}

func (h *harness) do(method, path string, headers map[string]string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("X-Project-ID", "p-1")
	req.Header.Set("X-User-ID", "u-1")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, req)

	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	g.Expect(json.Unmarshal(recorder.Body.Bytes(), &body)).To(g.Succeed())

	return body
}

func (h *harness) createServer(t *testing.T, name string) map[string]any {
	t.Helper()

	body := fmt.Sprintf(`{"server": {"name": %q, "imageRef": "img-1", "flavorRef": "2"}}`, name)
	recorder := h.do(http.MethodPost, "/v1/servers", nil, body)
	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))

	server, ok := decodeBody(t, recorder)["server"].(map[string]any)
	g.Expect(ok).To(g.BeTrue())

	return server
}

func TestCreate(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	server := h.createServer(t, "web-1")

	g.Expect(server["name"]).To(g.Equal("web-1"))
	g.Expect(server["status"]).To(g.Equal("ACTIVE"))
	g.Expect(server["adminPass"]).To(g.HaveLen(16))

	id, _ := server["id"].(string)
	password, ok := h.orch.AdminPassword(id)
	g.Expect(ok).To(g.BeTrue())
	g.Expect(password).To(g.Equal(server["adminPass"]))
}

func TestCreate_returnReservationID(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	body := `{"server": {"name": "web-1", "imageRef": "img-1", "flavorRef": "2",
		"min_count": 2, "max_count": 2, "return_reservation_id": true}}`
	recorder := h.do(http.MethodPost, "/v1/servers", nil, body)

	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))

	response := decodeBody(t, recorder)
	g.Expect(response).To(g.HaveKey("reservation_id"))
	g.Expect(response).NotTo(g.HaveKey("server"))
}

func TestCreate_imageSelfReferenceStripped(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	body := fmt.Sprintf(`{"server": {"name": "web-1", "imageRef": "%s/images/img-1", "flavorRef": "2"}}`, baseURL)
	recorder := h.do(http.MethodPost, "/v1/servers", nil, body)

	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))

	server := decodeBody(t, recorder)["server"].(map[string]any)
	image := server["image"].(map[string]any)
	g.Expect(image["id"]).To(g.Equal("img-1"))
}

func TestCreate_xmlBody(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	body := `<server name="web-1" imageRef="img-1" flavorRef="2"/>`
	recorder := h.do(http.MethodPost, "/v1/servers", map[string]string{
		"Content-Type": "application/xml",
	}, body)

	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))

	server := decodeBody(t, recorder)["server"].(map[string]any)
	g.Expect(server["name"]).To(g.Equal("web-1"))
}

func TestCreate_validationFault(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	recorder := h.do(http.MethodPost, "/v1/servers", nil, `{"server": {"name": "web-1", "flavorRef": "2"}}`)

	g.Expect(recorder.Code).To(g.Equal(http.StatusBadRequest))

	fault := decodeBody(t, recorder)["badRequest"].(map[string]any)
	g.Expect(fault["code"]).To(g.Equal(400.0))
	g.Expect(fault["message"]).To(g.Equal("Missing imageRef attribute"))
}

func TestCreate_emptyBody(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	recorder := h.do(http.MethodPost, "/v1/servers", map[string]string{"Content-Type": "application/json"}, " ")

	g.Expect(recorder.Code).To(g.Equal(http.StatusUnprocessableEntity))
	g.Expect(decodeBody(t, recorder)).To(g.HaveKey("unprocessableEntity"))
}

func TestCreate_quotaGets413WithRetryAfter(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	for i := 0; i < 3; i++ {
		h.createServer(t, fmt.Sprintf("web-%d", i))
	}

	recorder := h.do(http.MethodPost, "/v1/servers", nil,
		`{"server": {"name": "web-4", "imageRef": "img-1", "flavorRef": "2"}}`)

	g.Expect(recorder.Code).To(g.Equal(http.StatusRequestEntityTooLarge))
	g.Expect(recorder.Header().Get("Retry-After")).To(g.Equal("0"))

	fault := decodeBody(t, recorder)["overLimit"].(map[string]any)
	g.Expect(fault["message"]).To(g.Equal("Instance quotas have been exceeded"))
}

func TestShow(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")

	recorder := h.do(http.MethodGet, "/v1/servers/"+created["id"].(string), nil, "")

	g.Expect(recorder.Code).To(g.Equal(http.StatusOK))

	server := decodeBody(t, recorder)["server"].(map[string]any)
	g.Expect(server["name"]).To(g.Equal("web-1"))
	g.Expect(server).NotTo(g.HaveKey("adminPass"))

	links := server["links"].([]any)
	first := links[0].(map[string]any)
	g.Expect(first["href"]).To(g.Equal(baseURL + "/servers/" + created["id"].(string)))
}

func TestShow_unknownServer(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	recorder := h.do(http.MethodGet, "/v1/servers/missing", nil, "")

	g.Expect(recorder.Code).To(g.Equal(http.StatusNotFound))
	g.Expect(decodeBody(t, recorder)).To(g.HaveKey("itemNotFound"))
}

func TestIndex_briefViews(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	h.createServer(t, "web-1")

	recorder := h.do(http.MethodGet, "/v1/servers", nil, "")

	g.Expect(recorder.Code).To(g.Equal(http.StatusOK))

	servers := decodeBody(t, recorder)["servers"].([]any)
	g.Expect(servers).To(g.HaveLen(1))

	server := servers[0].(map[string]any)
	g.Expect(server).To(g.HaveKey("name"))
	g.Expect(server).NotTo(g.HaveKey("status"))
}

func TestDetail_filtersByName(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	h.createServer(t, "web-1")
	h.createServer(t, "db-1")

	recorder := h.do(http.MethodGet, "/v1/servers/detail?name=db", nil, "")

	g.Expect(recorder.Code).To(g.Equal(http.StatusOK))

	servers := decodeBody(t, recorder)["servers"].([]any)
	g.Expect(servers).To(g.HaveLen(1))

	server := servers[0].(map[string]any)
	g.Expect(server["name"]).To(g.Equal("db-1"))
	g.Expect(server["status"]).To(g.Equal("ACTIVE"))
}

func TestIndex_badStatusFilter(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	recorder := h.do(http.MethodGet, "/v1/servers?status=running", nil, "")

	g.Expect(recorder.Code).To(g.Equal(http.StatusBadRequest))
}

func TestUpdate(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")

	recorder := h.do(http.MethodPut, "/v1/servers/"+created["id"].(string), nil,
		`{"server": {"name": "renamed"}}`)

	g.Expect(recorder.Code).To(g.Equal(http.StatusOK))

	server := decodeBody(t, recorder)["server"].(map[string]any)
	g.Expect(server["name"]).To(g.Equal("renamed"))
}

func TestDelete(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")
	id := created["id"].(string)

	recorder := h.do(http.MethodDelete, "/v1/servers/"+id, nil, "")
	g.Expect(recorder.Code).To(g.Equal(http.StatusNoContent))

	recorder = h.do(http.MethodGet, "/v1/servers/"+id, nil, "")
	g.Expect(recorder.Code).To(g.Equal(http.StatusNotFound))
}

func TestAction_rebootAndResize(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")
	id := created["id"].(string)

	recorder := h.do(http.MethodPost, "/v1/servers/"+id+"/action", nil, `{"reboot": {"type": "hard"}}`)
	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))

	recorder = h.do(http.MethodPost, "/v1/servers/"+id+"/action", nil, `{"resize": {"flavorRef": "3"}}`)
	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))

	recorder = h.do(http.MethodPost, "/v1/servers/"+id+"/action", nil, `{"confirmResize": null}`)
	g.Expect(recorder.Code).To(g.Equal(http.StatusNoContent))
}

func TestAction_resizeToSameSize(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")

	recorder := h.do(http.MethodPost, "/v1/servers/"+created["id"].(string)+"/action", nil,
		`{"resize": {"flavorRef": "2"}}`)

	g.Expect(recorder.Code).To(g.Equal(http.StatusBadRequest))

	fault := decodeBody(t, recorder)["badRequest"].(map[string]any)
	g.Expect(fault["message"]).To(g.Equal("Resize requires a change in size."))
}

func TestAction_confirmResizeWithoutPending(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")

	recorder := h.do(http.MethodPost, "/v1/servers/"+created["id"].(string)+"/action", nil,
		`{"confirmResize": null}`)

	g.Expect(recorder.Code).To(g.Equal(http.StatusNotFound))
}

func TestAction_rebuildReturnsAdminPass(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")

	recorder := h.do(http.MethodPost, "/v1/servers/"+created["id"].(string)+"/action", nil,
		`{"rebuild": {"imageRef": "img-2"}}`)

	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))

	server := decodeBody(t, recorder)["server"].(map[string]any)
	g.Expect(server["adminPass"]).To(g.HaveLen(16))

	image := server["image"].(map[string]any)
	g.Expect(image["id"]).To(g.Equal("img-2"))
}

func TestAction_createImageSetsLocation(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")

	recorder := h.do(http.MethodPost, "/v1/servers/"+created["id"].(string)+"/action", nil,
		`{"createImage": {"name": "snap-1"}}`)

	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))
	g.Expect(recorder.Header().Get("Location")).To(g.HavePrefix(baseURL + "/images/"))
}

func TestAction_createBackupGatedOnAdminAPI(t *testing.T) {
	g.RegisterTestingT(t)

	body := `{"createBackup": {"name": "nightly", "backup_type": "daily", "rotation": 2}}`

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")

	recorder := h.do(http.MethodPost, "/v1/servers/"+created["id"].(string)+"/action", nil, body)
	g.Expect(recorder.Code).To(g.Equal(http.StatusBadRequest))
	g.Expect(recorder.Body.String()).To(g.ContainSubstring("There is no such server action: createBackup"))

	h = newHarness(t, &api.Config{BaseURL: baseURL, AllowAdminAPI: true})
	created = h.createServer(t, "web-1")

	recorder = h.do(http.MethodPost, "/v1/servers/"+created["id"].(string)+"/action", nil, body)
	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))
	g.Expect(recorder.Header().Get("Location")).NotTo(g.BeEmpty())
}

func TestAction_unknownAction(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	created := h.createServer(t, "web-1")

	recorder := h.do(http.MethodPost, "/v1/servers/"+created["id"].(string)+"/action", nil,
		`{"migrate": {}}`)

	g.Expect(recorder.Code).To(g.Equal(http.StatusBadRequest))
	g.Expect(recorder.Body.String()).To(g.ContainSubstring("There is no such server action: migrate"))
}

func TestReservationID_adminOnly(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, &api.Config{BaseURL: baseURL, AllowAdminAPI: true})

	body := `{"server": {"name": "web-1", "imageRef": "img-1", "flavorRef": "2",
		"reservation_id": "r-pinned", "return_reservation_id": true}}`

	recorder := h.do(http.MethodPost, "/v1/servers", nil, body)
	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))
	g.Expect(decodeBody(t, recorder)["reservation_id"]).NotTo(g.Equal("r-pinned"))

	recorder = h.do(http.MethodPost, "/v1/servers", map[string]string{"X-Roles": "admin"}, body)
	g.Expect(recorder.Code).To(g.Equal(http.StatusAccepted))
	g.Expect(decodeBody(t, recorder)["reservation_id"]).To(g.Equal("r-pinned"))
}

func TestSoftDeleteWhenReclaimConfigured(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, &api.Config{BaseURL: baseURL, AllowAdminAPI: true, ReclaimInstanceInterval: time.Hour})
	created := h.createServer(t, "web-1")
	id := created["id"].(string)

	recorder := h.do(http.MethodDelete, "/v1/servers/"+id, nil, "")
	g.Expect(recorder.Code).To(g.Equal(http.StatusNoContent))

	// The record is reclaimable, not destroyed, so the privileged deleted
	// listing still reports it.
	recorder = h.do(http.MethodGet, "/v1/servers/detail?deleted=1", map[string]string{"X-Roles": "admin"}, "")
	g.Expect(recorder.Code).To(g.Equal(http.StatusOK))

	servers := decodeBody(t, recorder)["servers"].([]any)
	g.Expect(servers).To(g.HaveLen(1))

	server := servers[0].(map[string]any)
	g.Expect(server["id"]).To(g.Equal(id))
	g.Expect(server["status"]).To(g.Equal("DELETED"))
}

func TestMetricsEndpoint(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)
	h.createServer(t, "web-1")

	recorder := h.do(http.MethodGet, "/metrics", nil, "")

	g.Expect(recorder.Code).To(g.Equal(http.StatusOK))
	g.Expect(recorder.Body.String()).To(g.ContainSubstring("servergate_requests_total"))
}

func TestBodySizeLimit(t *testing.T) {
	g.RegisterTestingT(t)

	h := newHarness(t, nil)

	oversized := fmt.Sprintf(`{"server": {"name": "web-1", "imageRef": "img-1", "flavorRef": "2", "user_data": %q}}`,
		strings.Repeat("A", 2<<20))

	recorder := h.do(http.MethodPost, "/v1/servers", nil, oversized)

	g.Expect(recorder.Code).To(g.Equal(http.StatusBadRequest))
}
