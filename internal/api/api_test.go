package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/testutil"
)

var vault = map[string]string{
	"People/John.md": "# John\nMet [[People/Jane|Jane]] at the cafe.\n- [ ] Call John 📅 2026-01-15\n",
	"People.md":      "Directory",
	"2026-01-05.md":  "coffee with john\n- [x] Buy milk ✅ 2026-01-05 09:30\n",
	"2026-01-12.md":  "coffee again",
}

// testEnv sets up an indexed temp vault, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	s, _ := testutil.TestSession(t, vault)
	return NewRouter(noteservice.NewService(s), authToken != "", authToken, nil)
}

func get(t *testing.T, router http.Handler, target string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return w.Code
}

func TestGraphEndpoint(t *testing.T) {
	router := testEnv(t, "")

	var resp GraphResponse
	if code := get(t, router, "/graph", &resp); code != http.StatusOK {
		t.Fatalf("graph status = %d", code)
	}
	if resp.Count != len(resp.Nodes) {
		t.Errorf("count = %d, nodes = %d", resp.Count, len(resp.Nodes))
	}
	if got := resp.Nodes["2026.md"]; len(got) != 1 || got[0] != "2026-01.md" {
		t.Errorf("year node = %v", got)
	}
	if _, ok := resp.Nodes["People/Jane.md"]; !ok {
		t.Error("link target missing as key")
	}
}

func TestLinksEndpoint(t *testing.T) {
	router := testEnv(t, "")

	var ls LinkSet
	if code := get(t, router, "/graph/links/People%2FJohn.md", &ls); code != http.StatusOK {
		t.Fatalf("links status = %d", code)
	}
	if len(ls.Links) != 2 || ls.Links[0] != "People.md" || ls.Links[1] != "People/Jane.md" {
		t.Errorf("links = %v", ls.Links)
	}

	var back struct {
		File      string   `json:"file"`
		Backlinks []string `json:"backlinks"`
	}
	if code := get(t, router, "/graph/backlinks/People", &back); code != http.StatusOK {
		t.Fatalf("backlinks status = %d", code)
	}
	if back.File != "People.md" || len(back.Backlinks) != 1 || back.Backlinks[0] != "People/John.md" {
		t.Errorf("backlinks = %+v", back)
	}

	if code := get(t, router, "/graph/backlinks/Nobody.md", nil); code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", code)
	}
}

func TestTasksEndpoint(t *testing.T) {
	router := testEnv(t, "")

	var resp TaskListResponse
	if code := get(t, router, "/tasks", &resp); code != http.StatusOK {
		t.Fatalf("tasks status = %d", code)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}

	if code := get(t, router, "/tasks?status=todo&file=People/John", &resp); code != http.StatusOK {
		t.Fatalf("filtered status = %d", code)
	}
	if resp.Total != 1 || resp.Tasks[0].DueDate != "2026-01-15" {
		t.Errorf("filtered = %+v", resp.Tasks)
	}

	if code := get(t, router, "/tasks?status=someday", nil); code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "")

	var resp SearchResponse
	if code := get(t, router, "/search?q=cafe", &resp); code != http.StatusOK {
		t.Fatalf("search status = %d", code)
	}
	if len(resp.Results) != 1 || resp.Results[0].Filename != "People/John.md" {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Snippet != "Met [[People/Jane|Jane]] at the cafe." {
		t.Errorf("snippet = %q", resp.Results[0].Snippet)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router := testEnv(t, "")
	if code := get(t, router, "/search", nil); code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", code)
	}
}

func TestPredictEndpoints(t *testing.T) {
	router := testEnv(t, "")

	var resp SuggestionResponse
	if code := get(t, router, "/predict/complete?prefix=cof", &resp); code != http.StatusOK {
		t.Fatalf("complete status = %d", code)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].Word != "coffee" || resp.Suggestions[0].Count != 2 {
		t.Errorf("complete = %+v", resp.Suggestions)
	}

	if code := get(t, router, "/predict/next?word=coffee", &resp); code != http.StatusOK {
		t.Fatalf("next status = %d", code)
	}
	// Each successor of "coffee" appears once, below the n-gram threshold.
	if len(resp.Suggestions) != 0 {
		t.Errorf("next = %+v", resp.Suggestions)
	}

	if code := get(t, router, "/predict/next", nil); code != http.StatusBadRequest {
		t.Errorf("missing word = %d, want 400", code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router := testEnv(t, "")

	var st StatusResponse
	if code := get(t, router, "/status", &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !st.Ready || st.Tasks != 2 || st.Files != 4 {
		t.Errorf("status = %+v", st)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed graph = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")
	if code := get(t, router, "/tasks", nil); code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "")
	if code := get(t, router, "/tasks", nil); code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", code)
	}
}

// testEnvWithSSE creates a router with a dummy SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	s, _ := testutil.TestSession(t, nil)

	// Minimal SSE handler stub: writes headers and blocks until context done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(noteservice.NewService(s), authEnabled, token, sseHandler)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	// No token → 401.
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/events?access_token=nope", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE with wrong query token = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 should carry WWW-Authenticate")
	}
}
