package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"custodycore/internal/core"
	memblob "custodycore/internal/infra/blob/memory"
	"custodycore/pkg/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Items   json.RawMessage `json:"items"`
	Record  json.RawMessage `json:"record"`
}

func newTestRouter(t *testing.T, opts Options) (*gin.Engine, *core.Service) {
	t.Helper()
	svc := core.NewInMemoryService(nil, core.WithBlobStore(memblob.New()))
	return NewRouter(svc, opts), svc
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ValidationError{Message: "bad"}, http.StatusBadRequest},
		{domain.NotFoundError{Entity: domain.EntityEquipment, ID: "x"}, http.StatusNotFound},
		{domain.DuplicateSerialError{Serial: "x"}, http.StatusConflict},
		{domain.ConflictError{Entity: domain.EntityPartition, Name: "7"}, http.StatusConflict},
		{domain.RuleViolationError{}, http.StatusUnprocessableEntity},
		{domain.ExternalServiceError{Service: "blob", Err: errors.New("down")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestEquipmentLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, Options{})

	rec, env := do(t, r, http.MethodPost, "/api/equipment", map[string]string{"serial": "SN1", "name": "Laptop", "brand": "Dell"})
	if rec.Code != http.StatusOK || !env.Success || env.Message != "Item added to Stock successfully." {
		t.Fatalf("create: %d %+v", rec.Code, env)
	}
	rec, env = do(t, r, http.MethodPost, "/api/equipment", map[string]string{"serial": "sn1", "name": "Copy"})
	if rec.Code != http.StatusConflict || env.Success {
		t.Fatalf("duplicate: %d %+v", rec.Code, env)
	}

	rec, env = do(t, r, http.MethodPost, "/api/equipment/assign", map[string]string{
		"serial": "SN1", "agentName": "Ana", "agentId": "E1", "agentEmail": "ana@x.com", "floor": "7",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: %d %+v", rec.Code, env)
	}
	var assigned domain.Equipment
	if err := json.Unmarshal(env.Record, &assigned); err != nil {
		t.Fatalf("decode record: %v", err)
	}

	path := "/api/partitions/7/equipment/" + assigned.ID
	rec, env = do(t, r, http.MethodPut, path, map[string]any{"patch": map[string]string{"name": "Laptop Pro"}})
	if rec.Code != http.StatusOK || env.Message != "Item updated." {
		t.Fatalf("save: %d %+v", rec.Code, env)
	}
	rec, env = do(t, r, http.MethodPost, path+"/resend", map[string]string{"agentId": "E1"})
	if rec.Code != http.StatusBadRequest || env.Message != "Missing data to resend the certificate." {
		t.Fatalf("resend: %d %+v", rec.Code, env)
	}
	rec, _ = do(t, r, http.MethodDelete, "/api/partitions/Stock/equipment/"+assigned.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete wrong partition: %d", rec.Code)
	}

	rec, env = do(t, r, http.MethodGet, "/api/equipment?location=7&general=pro", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("filter: %d %+v", rec.Code, env)
	}
	var items []domain.Equipment
	if err := json.Unmarshal(env.Items, &items); err != nil || len(items) != 1 || items[0].Name != "Laptop Pro" {
		t.Fatalf("unexpected items %s %v", env.Items, err)
	}

	rec, env = do(t, r, http.MethodGet, "/api/equipment/history/sn1", nil)
	var history []domain.AuditEntry
	if err := json.Unmarshal(env.Data, &history); err != nil || rec.Code != http.StatusOK || len(history) != 3 {
		t.Fatalf("history: %d %s %v", rec.Code, env.Data, err)
	}

	rec, env = do(t, r, http.MethodGet, "/api/outbox?status=pending", nil)
	var events []domain.OutboxEvent
	if err := json.Unmarshal(env.Data, &events); err != nil || rec.Code != http.StatusOK || len(events) != 1 {
		t.Fatalf("outbox: %d %s %v", rec.Code, env.Data, err)
	}

	rec, _ = do(t, r, http.MethodGet, "/api/equipment?location=99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown location: %d", rec.Code)
	}
}

func TestConfigRoutes(t *testing.T) {
	r, _ := newTestRouter(t, Options{})

	rec, env := do(t, r, http.MethodPost, "/api/config/marcas", map[string]string{"value": "Asus"})
	if rec.Code != http.StatusOK || env.Message != "Item added." {
		t.Fatalf("add: %d %+v", rec.Code, env)
	}
	rec, _ = do(t, r, http.MethodPost, "/api/config/agents", map[string]string{"value": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown list: %d", rec.Code)
	}
	rec, env = do(t, r, http.MethodPost, "/api/config/locations/rename", map[string]string{"oldName": "10", "newName": "11"})
	if rec.Code != http.StatusOK || env.Message != "Floor renamed successfully." {
		t.Fatalf("rename: %d %+v", rec.Code, env)
	}
	rec, _ = do(t, r, http.MethodDelete, "/api/config/pisos/"+url.PathEscape("12"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete floor: %d", rec.Code)
	}

	rec, env = do(t, r, http.MethodGet, "/api/config/lists", nil)
	var lists core.ConfigLists
	if err := json.Unmarshal(env.Data, &lists); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("lists: %d %v", rec.Code, err)
	}
	want := []string{"Stock", "7", "11", "16"}
	if len(lists.Locations) != len(want) {
		t.Fatalf("expected %v, got %v", want, lists.Locations)
	}
	for i := range want {
		if lists.Locations[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, lists.Locations)
		}
	}
}

func TestReportAndDashboard(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	do(t, r, http.MethodPost, "/api/equipment", map[string]string{"serial": "SN1", "name": "Laptop"})

	rec, _ := do(t, r, http.MethodPost, "/api/reports/advanced", map[string]any{"filterType": "state", "filterValues": []string{"stock"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("report: %d", rec.Code)
	}
	var body struct {
		Results []domain.Equipment `json:"results"`
		Stats   core.ReportStats   `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Stats.Stock != 1 {
		t.Fatalf("unexpected report %s %v", rec.Body.String(), err)
	}
	rec, _ = do(t, r, http.MethodPost, "/api/reports/advanced", map[string]any{"filterType": "color", "filterValues": []string{"red"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad report: %d", rec.Code)
	}

	rec, env := do(t, r, http.MethodGet, "/api/dashboard", nil)
	var d core.Dashboard
	if err := json.Unmarshal(env.Data, &d); err != nil || rec.Code != http.StatusOK || d.TotalStock != 1 {
		t.Fatalf("dashboard: %d %s %v", rec.Code, env.Data, err)
	}
}

func TestCertificateUpload(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	_, env := do(t, r, http.MethodPost, "/api/equipment", map[string]string{"serial": "SN1", "name": "Laptop"})
	var rec0 domain.Equipment
	if err := json.Unmarshal(env.Record, &rec0); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "acta.pdf")
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	part.Write([]byte("%PDF-1.4"))
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/partitions/Stock/equipment/"+rec0.ID+"/certificate", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}

	rec, env = do(t, r, http.MethodGet, "/api/certificates/SN1", nil)
	var infos []map[string]any
	if err := json.Unmarshal(env.Data, &infos); err != nil || rec.Code != http.StatusOK || len(infos) != 1 {
		t.Fatalf("list: %d %s %v", rec.Code, env.Data, err)
	}

	rec, _ = do(t, r, http.MethodPost, "/api/partitions/Stock/equipment/"+rec0.ID+"/certificate", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file: %d", rec.Code)
	}
}

func TestRateLimitAndHealth(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r, _ := newTestRouter(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 1, Metrics: metrics})
	rec, _ := do(t, r, http.MethodGet, "/api/equipment/stock", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec, env := do(t, r, http.MethodGet, "/api/equipment/stock", nil)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" || env.Success {
		t.Fatalf("expected rate limit, got %d", rec.Code)
	}
	rec, env = do(t, r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("healthz: %d", rec.Code)
	}
	rec, _ = do(t, r, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("metrics handler not mounted: %d", rec.Code)
	}
	rec, _ = do(t, r, http.MethodGet, "/openapi.yaml", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/yaml") {
		t.Fatalf("openapi: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}
