package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"riverwatch/internal/config"
	"riverwatch/internal/db"
	"riverwatch/internal/engine"
	"riverwatch/internal/engine/gate"
	"riverwatch/internal/migrate"
)

const testAdminPassword = "correct-horse-battery"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	g, err := gate.New(testAdminPassword, "test-signing-secret")
	if err != nil {
		t.Fatalf("build gate: %v", err)
	}
	handler, err := New(Config{Engine: e, Gate: g, BasePath: "/v1"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createTestReport(t *testing.T, srv *testServer, overrides map[string]any) ReportResponse {
	t.Helper()
	body := map[string]any{
		"title":       "Oil film near the mill",
		"description": "Rainbow sheen drifting downstream",
		"report_type": "hazardous",
		"severity":    "high",
		"latitude":    48.85,
		"longitude":   2.35,
	}
	for k, v := range overrides {
		body[k] = v
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/reports", body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create report status %d: %s", res.StatusCode, string(data))
	}
	var created ReportResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	return created
}

func adminLogin(t *testing.T, srv *testServer) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/admin/auth", map[string]any{
		"password": testAdminPassword,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	for _, c := range res.Cookies() {
		if c.Name == gate.CookieName {
			return map[string]string{"Cookie": c.Name + "=" + c.Value}
		}
	}
	t.Fatalf("login response missing session cookie")
	return nil
}

func TestReportLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	created := createTestReport(t, srv, nil)
	if created.Status != "pending" || created.ConfirmationsCount != 0 {
		t.Fatalf("unexpected new report %+v", created)
	}

	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v1/reports/"+created.ID, nil, nil)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", getRes.StatusCode, string(getBody))
	}
	againRes, againBody := doJSON(t, client, http.MethodGet, srv.URL+"/v1/reports/"+created.ID, nil, nil)
	if againRes.StatusCode != http.StatusOK || string(againBody) != string(getBody) {
		t.Fatalf("repeated get diverged: %d %s", againRes.StatusCode, string(againBody))
	}

	confirmRes, confirmBody := doJSON(t, client, http.MethodPost, srv.URL+"/v1/confirmations", map[string]any{
		"report_id":       created.ID,
		"user_identifier": "walker-7",
	}, nil)
	if confirmRes.StatusCode != http.StatusCreated {
		t.Fatalf("confirm status %d: %s", confirmRes.StatusCode, string(confirmBody))
	}
	var confirmation ConfirmationResponse
	if err := json.Unmarshal(confirmBody, &confirmation); err != nil {
		t.Fatalf("unmarshal confirmation: %v", err)
	}
	if confirmation.ConfirmationsCount != 1 {
		t.Fatalf("expected count 1, got %d", confirmation.ConfirmationsCount)
	}

	// deletion requires an admin session
	delRes, delBody := doJSON(t, client, http.MethodDelete, srv.URL+"/v1/reports/"+created.ID, nil, nil)
	if delRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated delete status %d: %s", delRes.StatusCode, string(delBody))
	}

	session := adminLogin(t, srv)
	delRes, delBody = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/reports/"+created.ID, nil, session)
	if delRes.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", delRes.StatusCode, string(delBody))
	}
	var deleted DeleteResponse
	if err := json.Unmarshal(delBody, &deleted); err != nil || !deleted.Deleted {
		t.Fatalf("unexpected delete response %s (%v)", string(delBody), err)
	}

	getRes, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/reports/"+created.ID, nil, nil)
	if getRes.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getRes.StatusCode)
	}
}

func TestCreateReportValidation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v1/reports", map[string]any{
		"description": "no title",
		"report_type": "plastic",
		"severity":    "low",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing title status %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/reports", map[string]any{
		"title":       "t",
		"description": "d",
		"report_type": "plastic",
		"severity":    "catastrophic",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad severity status %d: %s", res.StatusCode, string(body))
	}
}

func TestAnonymousContactBlanking(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	created := createTestReport(t, srv, map[string]any{
		"is_anonymous": true,
		"user_name":    "Jo River",
		"user_email":   "jo@example.org",
	})
	if created.UserEmail != nil {
		t.Fatalf("public view leaked contact details")
	}

	session := adminLogin(t, srv)
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/admin/reports", nil, session)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin list status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedAdminReports
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal admin page: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 report, got %d", len(page.Items))
	}
	item := page.Items[0]
	if item.UserEmail == nil || *item.UserEmail != "jo@example.org" {
		t.Fatalf("admin view missing contact details: %+v", item)
	}
}

func TestAdminGateOnAdminSurface(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/admin/reports"},
		{http.MethodPatch, "/v1/admin/reports"},
		{http.MethodGet, "/v1/admin/logs"},
		{http.MethodPost, "/v1/admin/logs"},
	} {
		res, body := doJSON(t, client, tc.method, srv.URL+tc.path, map[string]any{}, nil)
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s status %d: %s", tc.method, tc.path, res.StatusCode, string(body))
		}
	}

	// a forged cookie must not pass
	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/admin/reports", nil, map[string]string{
		"Cookie": gate.CookieName + "=forged-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged cookie status %d", res.StatusCode)
	}

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v1/admin/auth", map[string]any{
		"password": "wrong",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status %d: %s", res.StatusCode, string(body))
	}
}

func TestAdminUpdateWritesAuditTrail(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	created := createTestReport(t, srv, nil)
	session := adminLogin(t, srv)

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v1/admin/reports", map[string]any{
		"reportId": created.ID,
		"updates": map[string]any{
			"status":      "in_progress",
			"admin_notes": "crew dispatched",
		},
	}, session)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, string(data))
	}
	var updated AdminReportResponse
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal updated report: %v", err)
	}
	if updated.Status != "in_progress" {
		t.Fatalf("expected in_progress, got %s", updated.Status)
	}
	if len(updated.Logs) != 2 {
		t.Fatalf("expected status_update and note_added entries, got %d", len(updated.Logs))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/admin/logs?report_id="+created.ID+"&action=status_update", nil, session)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list logs status %d: %s", res.StatusCode, string(data))
	}
	var logs paginatedLogs
	if err := json.Unmarshal(data, &logs); err != nil {
		t.Fatalf("unmarshal logs: %v", err)
	}
	if len(logs.Items) != 1 {
		t.Fatalf("expected one status_update, got %d", len(logs.Items))
	}
	entry := logs.Items[0]
	if entry.Details["from"] != "pending" || entry.Details["to"] != "in_progress" {
		t.Fatalf("unexpected details %v", entry.Details)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/admin/logs", map[string]any{
		"report_id": created.ID,
		"action":    "note_added",
		"details":   map[string]any{"note": "follow-up sample taken"},
	}, session)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("append log status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/admin/reports", map[string]any{
		"reportId": "no-such-id",
		"updates":  map[string]any{"status": "completed"},
	}, session)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("patch missing report status %d: %s", res.StatusCode, string(data))
	}
}

func TestListReportsPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for i := 0; i < 3; i++ {
		createTestReport(t, srv, map[string]any{"severity": "low"})
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/reports?limit=2", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedReports
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected 2 items and a cursor, got %d %q", len(page.Items), page.NextCursor)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/reports?limit=2&cursor="+page.NextCursor, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("second page status %d: %s", res.StatusCode, string(data))
	}
	var rest paginatedReports
	if err := json.Unmarshal(data, &rest); err != nil {
		t.Fatalf("unmarshal second page: %v", err)
	}
	if len(rest.Items) != 1 || rest.NextCursor != "" {
		t.Fatalf("expected final page of 1, got %d %q", len(rest.Items), rest.NextCursor)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/reports?cursor=broken", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad cursor status %d", res.StatusCode)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	session := adminLogin(t, srv)

	res, _ := doJSON(t, client, http.MethodPost, srv.URL+"/v1/admin/auth/logout", nil, session)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("logout status %d", res.StatusCode)
	}
	cleared := false
	for _, c := range res.Cookies() {
		if c.Name == gate.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected expired session cookie on logout")
	}
}

func TestDecodeJSONMap(t *testing.T) {
	if got := decodeJSONMap(""); got != nil {
		t.Fatalf("expected nil for empty column, got %v", got)
	}
	got := decodeJSONMap(`{"from":"pending"}`)
	if got["from"] != "pending" {
		t.Fatalf("unexpected decode %v", got)
	}
	for _, raw := range []string{"not json", `["a"]`, `"text"`} {
		got := decodeJSONMap(raw)
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty object for %q, got %v", raw, got)
		}
	}
}

func TestHealthAndStats(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}

	createTestReport(t, srv, nil)
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/stats", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", res.StatusCode, string(data))
	}
	var stats StatsResponse
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.TotalReports != 1 {
		t.Fatalf("expected 1 report, got %d", stats.TotalReports)
	}
}
