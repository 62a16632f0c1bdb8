package apiapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elite6108/sitesafe/internal/documents"
	"github.com/elite6108/sitesafe/internal/leave"
	"github.com/elite6108/sitesafe/internal/pdfgen"
	"github.com/elite6108/sitesafe/internal/storage"
	"github.com/elite6108/sitesafe/internal/store"
)

const testAdminPassword = "correct horse battery"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type offlineFetcher struct{}

func (offlineFetcher) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("offline")
}

type testServer struct {
	t       *testing.T
	srv     *server
	handler http.Handler
	store   *store.Store
	files   *storage.Local
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "api.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	files, err := storage.NewLocal(filepath.Join(dir, "files"), "http://localhost/api/files", []byte("test-secret"))
	require.NoError(t, err)

	gen := pdfgen.New(offlineFetcher{}, zap.NewNop(), pdfgen.WithCompression(false))
	docs := documents.NewService(st, gen, zap.NewNop(), 2)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	cal, err := leave.NewCalendar(1, []string{"2026-04-03"})
	require.NoError(t, err)

	srv, err := newServer(Config{
		AdminPasswordHash: string(hash),
		MaxUploadBytes:    1 << 20,
		SignedURLTTL:      time.Hour,
		Calendar:          cal,
		DefaultAllowance:  28,
	}, Deps{Store: st, Files: files, Documents: docs, Logger: zap.NewNop()})
	require.NoError(t, err)
	srv.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	return &testServer{t: t, srv: srv, handler: srv.handler(), store: st, files: files}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	ts.t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) json(method, path string, body any, admin bool) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userHeader, "site.manager")
	if admin {
		req.Header.Set(adminPasswordHeader, testAdminPassword)
	}
	return ts.do(req)
}

func (ts *testServer) upload(path, field, fileName string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(ts.t, mw.WriteField(k, v))
	}
	if data != nil {
		part, err := mw.CreateFormFile(field, fileName)
		require.NoError(ts.t, err)
		_, err = part.Write(data)
		require.NoError(ts.t, err)
	}
	require.NoError(ts.t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.do(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndMe(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.json(http.MethodGet, "/api/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = ts.json(http.MethodGet, "/api/me", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "site.manager", decode[map[string]string](t, rec)["user"])

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.json(http.MethodPost, "/api/health", nil, false)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestIncidentCRUD(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.json(http.MethodPost, "/api/incidents", map[string]any{"location": "Yard"}, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "description is required", decode[map[string]string](t, rec)["error"])

	rec = ts.json(http.MethodPost, "/api/incidents", map[string]any{"description": "Slipped", "incident_date": "yesterday"}, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.json(http.MethodPost, "/api/incidents", map[string]any{"description": "Slipped", "incident_date": "2026-02-27T14:30", "report_number": "IR-7"}, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	id := created["id"].(string)
	assert.Equal(t, "IR-0001", created["report_number"])
	assert.Equal(t, "open", created["status"])

	rec = ts.json(http.MethodPost, "/api/incidents", map[string]any{"description": "Tripped", "report_number": "IR-0001"}, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[map[string]any](t, rec)
	assert.Equal(t, "IR-0002", second["report_number"])
	require.Equal(t, http.StatusNoContent, ts.json(http.MethodDelete, "/api/incidents/"+second["id"].(string), nil, true).Code)

	rec = ts.json(http.MethodPut, "/api/incidents/"+id, map[string]any{"description": "Slipped on ice", "status": "closed"}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "IR-0001", decode[map[string]any](t, rec)["report_number"])

	rec = ts.json(http.MethodGet, "/api/incidents", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Slipped on ice", list[0]["description"])

	rec = ts.json(http.MethodGet, "/api/incidents/export", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "incident-register-2026-03-01.xlsx")
	assert.Equal(t, "PK", rec.Body.String()[:2])

	rec = ts.json(http.MethodDelete, "/api/incidents/"+id, nil, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.json(http.MethodDelete, "/api/incidents/"+id, nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.json(http.MethodGet, "/api/incidents/"+id, nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.json(http.MethodGet, "/api/invoices", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.json(http.MethodPost, "/api/risk-assessments", map[string]any{
		"name":    "Roof work",
		"hazards": []map[string]any{{"hazard": "Falls", "likelihood": 7}},
	}, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "hazard 1 scores must be between 0 and 5", decode[map[string]string](t, rec)["error"])

	rec = ts.json(http.MethodPost, "/api/risk-assessments", map[string]any{
		"name":    "Roof work",
		"hazards": []map[string]any{{"hazard": "Falls"}},
	}, false)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.json(http.MethodPost, "/api/sign-offs", map[string]any{"project_id": "p1"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.json(http.MethodPost, "/api/dse-assessments", map[string]any{
		"employee_name": "Sam",
		"answers":       map[string]any{"made_up": map[string]any{"answer": true}},
	}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.json(http.MethodPost, "/api/projects", map[string]any{"name": " "}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/customers", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[map[string]string](t, rec)["error"])
}

func TestSettingsAndCategories(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.json(http.MethodGet, "/api/settings", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.json(http.MethodPut, "/api/settings", map[string]any{"name": ""}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.json(http.MethodPut, "/api/settings", map[string]any{"name": "Acme Build", "company_number": "123"}, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.json(http.MethodPost, "/api/incident-categories", map[string]any{"name": "Slip"}, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]any](t, rec)["id"].(string)

	rec = ts.json(http.MethodPost, "/api/incident-categories", map[string]any{"name": "slip"}, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.json(http.MethodDelete, "/api/incident-categories/"+id, nil, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.json(http.MethodDelete, "/api/incident-categories/"+id, nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDocumentEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.json(http.MethodPost, "/api/incidents", map[string]any{"description": "Cut finger"}, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]any](t, rec)["id"].(string)

	rec = ts.json(http.MethodGet, "/api/documents/incidents/"+id, nil, false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "company settings")

	rec = ts.json(http.MethodPut, "/api/settings", map[string]any{"name": "Acme Build"}, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.json(http.MethodGet, "/api/documents/incidents/"+id, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.True(t, strings.HasPrefix(body["dataUrl"].(string), "data:application/pdf;base64,"))
	assert.Equal(t, "incident-report-ir-0001.pdf", body["fileName"])
	assert.EqualValues(t, 1, body["pages"])

	rec = ts.json(http.MethodGet, "/api/documents/incidents/"+id+"/pdf", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	req := httptest.NewRequest(http.MethodGet, "/api/documents/incidents/"+id+"/view", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148 Safari/604.1")
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "createObjectURL")

	rec = ts.json(http.MethodGet, "/api/documents/incidents/"+id+"/view", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<iframe")

	rec = ts.json(http.MethodGet, "/api/documents/incidents/"+id+"/docx", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.json(http.MethodGet, "/api/documents/invoices/"+id, nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.json(http.MethodGet, "/api/documents/incidents/missing", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignOffDocumentNeedsCustomer(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.json(http.MethodPut, "/api/settings", map[string]any{"name": "Acme"}, false).Code)

	rec := ts.json(http.MethodPost, "/api/projects", map[string]any{"name": "Mill Lane"}, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	projectID := decode[map[string]any](t, rec)["id"].(string)

	rec = ts.json(http.MethodPost, "/api/sign-offs", map[string]any{"project_id": projectID, "customer_id": "nobody"}, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]any](t, rec)["id"].(string)

	rec = ts.json(http.MethodGet, "/api/documents/sign-offs/"+id, nil, false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "customer")
}

func TestBundleExport(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.json(http.MethodPut, "/api/settings", map[string]any{"name": "Acme"}, false).Code)
	require.Equal(t, http.StatusCreated, ts.json(http.MethodPost, "/api/incidents", map[string]any{"description": "Trip"}, false).Code)

	rec := ts.json(http.MethodGet, "/api/documents/export", nil, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.json(http.MethodGet, "/api/documents/export", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-xz", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sitesafe-documents-20260301-090000.tar.xz")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}))
}
