package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/store/docstore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const testPassword = "correct horse battery staple"

type testServer struct {
	server  *httptest.Server
	service *library.Service
	token   string
}

func newTestServer(t *testing.T, withCache bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	feed := library.NewChangeFeed()
	service, err := library.NewService(library.ServiceConfig{
		Store: docstore.New(docstore.NewMemoryBackend(), zap.NewNop()),
		Feed:  feed,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte("test-secret")})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	verifier, err := auth.NewPasswordVerifier(hash)
	if err != nil {
		t.Fatalf("failed to build password verifier: %v", err)
	}

	deps := Dependencies{
		TokenManager:      issuer,
		Passwords:         verifier,
		Library:           service,
		Logger:            zap.NewNop(),
		HeartbeatInterval: time.Hour,
	}
	if withCache {
		cache := library.NewCache(service)
		t.Cleanup(cache.Close)
		deps.Cache = cache
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ts := &testServer{server: server, service: service}
	ts.token = ts.login(t, testPassword, http.StatusOK)
	return ts
}

func (ts *testServer) login(t *testing.T, password string, wantStatus int) string {
	t.Helper()
	body, _ := json.Marshal(loginRequestPayload{Password: password})
	response, err := http.Post(ts.server.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != wantStatus {
		t.Fatalf("unexpected login status: got %d, want %d", response.StatusCode, wantStatus)
	}
	if wantStatus != http.StatusOK {
		return ""
	}
	var payload loginResponsePayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if payload.TokenType != "Bearer" || payload.ExpiresIn != int64(auth.DefaultTokenTTL.Seconds()) {
		t.Fatalf("unexpected login response: %+v", payload)
	}
	return payload.Token
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	switch typed := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(typed)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, ts.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Authorization", "Bearer "+ts.token)
	request.Header.Set("Content-Type", "application/json")
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer response.Body.Close()
	payload, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return response.StatusCode, payload
}

func decodeJSON[T any](t *testing.T, payload []byte) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		t.Fatalf("failed to decode %s: %v", payload, err)
	}
	return value
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ts := newTestServer(t, false)
	ts.login(t, "not the password", http.StatusUnauthorized)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, false)

	response, err := http.Get(ts.server.URL + "/api/components")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want %d", response.StatusCode, http.StatusUnauthorized)
	}
	if response.Header.Get(requestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}

	health, err := http.Get(ts.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("unexpected health status %d", health.StatusCode)
	}
}

func TestComponentLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, true)

	status, body := ts.do(t, http.MethodPost, "/api/components", componentRequestPayload{
		ID:   "hero",
		Name: "Hero",
		HTML: "<h1>Hi</h1>",
		Tags: []string{"banner"},
	})
	if status != http.StatusCreated {
		t.Fatalf("create failed: %d %s", status, body)
	}
	created := decodeJSON[library.Component](t, body)
	if created.Category != library.DefaultCategory {
		t.Fatalf("expected default category, got %q", created.Category)
	}

	status, body = ts.do(t, http.MethodPost, "/api/components", componentRequestPayload{ID: "hero", Name: "Again", HTML: "<p/>"})
	if status != http.StatusConflict {
		t.Fatalf("expected duplicate create to conflict, got %d %s", status, body)
	}

	stale := created.UpdatedAt - 1
	status, body = ts.do(t, http.MethodPut, "/api/components/hero", componentRequestPayload{
		Name:      "Hero v2",
		HTML:      "<h1>Hello</h1>",
		UpdatedAt: &stale,
	})
	if status != http.StatusConflict {
		t.Fatalf("expected stale update to conflict, got %d %s", status, body)
	}
	conflict := decodeJSON[errorResponsePayload](t, body)
	if conflict.Error != "conflict" || conflict.Code != "library.update_component.stale_updated_at" {
		t.Fatalf("unexpected conflict body: %+v", conflict)
	}

	baseline := created.UpdatedAt
	status, body = ts.do(t, http.MethodPut, "/api/components/hero", componentRequestPayload{
		Name:      "Hero v2",
		HTML:      "<h1>Hello</h1>",
		UpdatedAt: &baseline,
	})
	if status != http.StatusOK {
		t.Fatalf("update failed: %d %s", status, body)
	}
	updated := decodeJSON[updateResponsePayload](t, body)
	if !updated.OK || updated.UpdatedAt < created.UpdatedAt {
		t.Fatalf("unexpected update response: %+v", updated)
	}

	status, body = ts.do(t, http.MethodGet, "/api/components", nil)
	if status != http.StatusOK {
		t.Fatalf("list failed: %d %s", status, body)
	}
	listed := decodeJSON[[]library.Component](t, body)
	if len(listed) != 1 || listed[0].Name != "Hero v2" {
		t.Fatalf("expected cached list to reflect the update, got %+v", listed)
	}

	status, body = ts.do(t, http.MethodGet, "/api/versions?componentId=hero", nil)
	if status != http.StatusOK {
		t.Fatalf("versions failed: %d %s", status, body)
	}
	versions := decodeJSON[[]library.ComponentVersion](t, body)
	if len(versions) != 1 || versions[0].Name != "Hero" {
		t.Fatalf("expected the pre-update state as the only version, got %+v", versions)
	}

	status, body = ts.do(t, http.MethodPost, "/api/components/hero/favorite", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"favorite":true`) {
		t.Fatalf("favorite toggle failed: %d %s", status, body)
	}

	status, body = ts.do(t, http.MethodDelete, "/api/components/hero", nil)
	if status != http.StatusOK {
		t.Fatalf("delete failed: %d %s", status, body)
	}
	status, body = ts.do(t, http.MethodGet, "/api/components/hero", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected deleted component to be gone, got %d %s", status, body)
	}

	status, body = ts.do(t, http.MethodGet, "/api/trash", nil)
	if status != http.StatusOK {
		t.Fatalf("trash list failed: %d %s", status, body)
	}
	trash := decodeJSON[[]library.TrashEntry](t, body)
	if len(trash) != 1 || trash[0].ID != "hero" || trash[0].DeletedAt == 0 {
		t.Fatalf("unexpected trash: %+v", trash)
	}

	status, body = ts.do(t, http.MethodPost, "/api/trash/hero", nil)
	if status != http.StatusOK {
		t.Fatalf("restore failed: %d %s", status, body)
	}
	restored := decodeJSON[library.Component](t, body)
	if restored.Name != "Hero v2" || !restored.Favorite {
		t.Fatalf("unexpected restored component: %+v", restored)
	}

	status, body = ts.do(t, http.MethodPost, "/api/trash/hero", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected second restore to be not found, got %d %s", status, body)
	}
}

func TestUpdateMissingComponentReturnsNotFound(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPut, "/api/components/ghost", componentRequestPayload{Name: "Ghost", HTML: "<p/>"})
	if status != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d %s", status, body)
	}
	payload := decodeJSON[errorResponsePayload](t, body)
	if payload.Error != "not_found" {
		t.Fatalf("unexpected error body: %+v", payload)
	}
}

func TestCreateComponentRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPost, "/api/components", componentRequestPayload{ID: "x", Name: "  "})
	if status != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d %s", status, body)
	}
	payload := decodeJSON[errorResponsePayload](t, body)
	if payload.Error != "validation" {
		t.Fatalf("unexpected error body: %+v", payload)
	}

	status, _ = ts.do(t, http.MethodPost, "/api/components", []byte("{not json"))
	if status != http.StatusBadRequest {
		t.Fatalf("expected malformed body to be rejected, got %d", status)
	}
}

func TestTemplateRenderAndFoldersOverHTTP(t *testing.T) {
	ts := newTestServer(t, true)

	if status, body := ts.do(t, http.MethodPost, "/api/components", componentRequestPayload{ID: "p", Name: "Para", HTML: "<p>One</p>"}); status != http.StatusCreated {
		t.Fatalf("create component failed: %d %s", status, body)
	}
	custom := "<p>Custom</p>"
	status, body := ts.do(t, http.MethodPost, "/api/templates", templateRequestPayload{
		ID:   "page",
		Name: "Page",
		Blocks: []library.Block{
			{ComponentID: "p"},
			{ComponentID: "p", CustomHTML: &custom},
			{ComponentID: "missing"},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("create template failed: %d %s", status, body)
	}

	status, body = ts.do(t, http.MethodGet, "/api/templates/page/html", nil)
	if status != http.StatusOK {
		t.Fatalf("render failed: %d %s", status, body)
	}
	want := "<p>One</p>\n\n<p>Custom</p>\n\n" + library.MissingComponentHTML("missing")
	if string(body) != want {
		t.Fatalf("unexpected render:\n%s\nwant:\n%s", body, want)
	}

	status, body = ts.do(t, http.MethodPut, "/api/folders", library.FolderSet{"layout": {Label: "Layout"}})
	if status != http.StatusOK {
		t.Fatalf("replace folders failed: %d %s", status, body)
	}
	status, body = ts.do(t, http.MethodGet, "/api/folders", nil)
	if status != http.StatusOK {
		t.Fatalf("list folders failed: %d %s", status, body)
	}
	folders := decodeJSON[library.FolderSet](t, body)
	if folder, ok := folders["layout"]; !ok || folder.Icon != library.DefaultFolderIcon || folder.Color != library.DefaultFolderColor {
		t.Fatalf("unexpected folders: %+v", folders)
	}

	status, body = ts.do(t, http.MethodDelete, "/api/templates/page", nil)
	if status != http.StatusOK {
		t.Fatalf("delete template failed: %d %s", status, body)
	}
	status, _ = ts.do(t, http.MethodGet, "/api/templates/page", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected deleted template to be gone, got %d", status)
	}
}

func TestExportImportRoundTripOverHTTP(t *testing.T) {
	source := newTestServer(t, false)
	for _, id := range []string{"a", "b"} {
		if status, body := source.do(t, http.MethodPost, "/api/components", componentRequestPayload{ID: id, Name: strings.ToUpper(id), HTML: "<p>" + id + "</p>"}); status != http.StatusCreated {
			t.Fatalf("create failed: %d %s", status, body)
		}
	}

	status, exported := source.do(t, http.MethodGet, "/api/export?kind=components&format=yaml", nil)
	if status != http.StatusOK {
		t.Fatalf("export failed: %d %s", status, exported)
	}

	target := newTestServer(t, false)
	status, body := target.do(t, http.MethodPost, "/api/import?kind=components&format=yaml", exported)
	if status != http.StatusOK {
		t.Fatalf("import failed: %d %s", status, body)
	}
	if result := decodeJSON[map[string]int](t, body); result["imported"] != 2 {
		t.Fatalf("expected two imported components, got %v", result)
	}

	status, body = target.do(t, http.MethodPost, "/api/import", []byte(`{"id":"not-an-array"}`))
	if status != http.StatusBadRequest {
		t.Fatalf("expected malformed import to be rejected, got %d %s", status, body)
	}
	if payload := decodeJSON[errorResponsePayload](t, body); payload.Error != "malformed_input" {
		t.Fatalf("unexpected error body: %+v", payload)
	}

	status, body = target.do(t, http.MethodGet, "/api/export?kind=notes", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected unknown kind to be rejected, got %d %s", status, body)
	}
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err != errMissingTokenManager {
		t.Fatalf("expected missing token manager error, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{TokenManager: stubTokenManager{}}); err != errMissingPasswordChecker {
		t.Fatalf("expected missing password checker error, got %v", err)
	}
}
