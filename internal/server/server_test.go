package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/wrangle/internal/engine"
	"github.com/leapstack-labs/wrangle/internal/testutil"
	"github.com/leapstack-labs/wrangle/internal/workspace"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	store := workspace.NewStore(logger)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })

	return New(Config{
		Namespace: "test",
		Engine:    engine.New(engine.Config{BatchSize: 2, Logger: logger}),
		Store:     store,
		Logger:    logger,
	})
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createWorkspace(t *testing.T, h http.Handler, body string) workspace.Workspace {
	t.Helper()
	w := do(t, h, http.MethodPost, "/workspaces", "application/json", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[workspace.Workspace](t, w)
}

func TestHealth(t *testing.T) {
	h := setupTestServer(t).Handler()
	w := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDirectives(t *testing.T) {
	h := setupTestServer(t).Handler()
	w := do(t, h, http.MethodGet, "/directives", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	infos := decode[[]DirectiveInfo](t, w)
	byName := make(map[string]DirectiveInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}
	require.Contains(t, byName, "rename")
	assert.Contains(t, byName["rename"].Usage, "rename")
	assert.Equal(t, "skip-row", byName["parse-as-csv"].Policy)
	assert.Equal(t, "fail-batch", byName["rename"].Policy)
}

func TestCompile(t *testing.T) {
	h := setupTestServer(t).Handler()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantOK      bool
		wantCount   int
		wantLines   []int
	}{
		{name: "plain text", body: "rename :a :b\ndrop :c", wantOK: true, wantCount: 2},
		{name: "json", contentType: "application/json", body: `{"recipe":"uppercase :a"}`, wantOK: true, wantCount: 1},
		{name: "errors", body: "renam :a :b\nrename :a\ndrop :c", wantLines: []int{1, 2}},
		{name: "empty", body: "", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/compile", tt.contentType, tt.body)
			require.Equal(t, http.StatusOK, w.Code)
			resp := decode[CompileResponse](t, w)
			assert.Equal(t, tt.wantOK, resp.OK)
			assert.Equal(t, tt.wantCount, resp.Directives)

			var lines []int
			for _, e := range resp.Errors {
				lines = append(lines, e.Line)
			}
			assert.Equal(t, tt.wantLines, lines)
		})
	}

	w := do(t, h, http.MethodPost, "/compile", "application/json", `{"recipe":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompile_Suggestion(t *testing.T) {
	h := setupTestServer(t).Handler()
	w := do(t, h, http.MethodPost, "/compile", "text/plain", "renam :a :b")
	resp := decode[CompileResponse](t, w)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "renam", resp.Errors[0].Directive)
	assert.Contains(t, resp.Errors[0].Message, `did you mean "rename"?`)
}

func TestWorkspaces_CRUD(t *testing.T) {
	h := setupTestServer(t).Handler()

	created := createWorkspace(t, h, `{"name":"people","scope":"s1","properties":{"owner":"ops"}}`)
	assert.Equal(t, "test", created.Namespace, "server namespace is the default")
	assert.Equal(t, workspace.DataText, created.Type)
	assert.Len(t, created.ID, 36)

	other := createWorkspace(t, h, `{"id":"fixed","name":"other"}`)
	assert.Equal(t, "fixed", other.ID)

	w := do(t, h, http.MethodPost, "/workspaces", "application/json", `{"id":"fixed","name":"dup"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, h, http.MethodPost, "/workspaces", "application/json", `{"scope":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/workspaces", "application/json", `{"name":"x","bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/workspaces?scope=s1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []workspace.Identifier{{ID: created.ID, Name: "people"}}, decode[[]workspace.Identifier](t, w))

	w = do(t, h, http.MethodGet, "/workspaces", "", "")
	assert.Equal(t, []workspace.Identifier{{ID: "fixed", Name: "other"}}, decode[[]workspace.Identifier](t, w))

	w = do(t, h, http.MethodGet, "/workspaces?namespace=elsewhere", "", "")
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, h, http.MethodPut, "/workspaces/fixed/properties", "application/json", `{"k":"v"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/workspaces/fixed", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[workspace.Workspace](t, w)
	assert.Equal(t, map[string]string{"k": "v"}, got.Properties)

	w = do(t, h, http.MethodDelete, "/workspaces/fixed", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, "/workspaces/fixed", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/workspaces", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "scope is required")
	w = do(t, h, http.MethodDelete, "/workspaces?scope=s1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":1}`, w.Body.String())
}

func TestWorkspaces_NotFound(t *testing.T) {
	h := setupTestServer(t).Handler()

	tests := []struct {
		method, target, contentType, body string
	}{
		{http.MethodGet, "/workspaces/nope", "", ""},
		{http.MethodGet, "/workspaces/nope/data", "", ""},
		{http.MethodPut, "/workspaces/nope/data", "text/plain", "x"},
		{http.MethodPut, "/workspaces/nope/recipe", "text/plain", "drop :a"},
		{http.MethodPut, "/workspaces/nope/properties", "application/json", `{}`},
		{http.MethodPost, "/workspaces/nope/execute", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.contentType, tt.body)
			assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		})
	}
}

func TestWorkspaces_Data(t *testing.T) {
	h := setupTestServer(t).Handler()
	ws := createWorkspace(t, h, `{"name":"d"}`)
	base := "/workspaces/" + ws.ID

	tests := []struct {
		name        string
		target      string
		contentType string
		wantType    workspace.DataType
		wantCode    int
	}{
		{"plain", base + "/data", "text/plain", workspace.DataText, http.StatusOK},
		{"csv header", base + "/data", "text/csv", workspace.DataCSV, http.StatusOK},
		{"octet", base + "/data", "application/octet-stream", workspace.DataBinary, http.StatusOK},
		{"query wins", base + "/data?type=csv", "text/plain", workspace.DataCSV, http.StatusOK},
		{"bad type", base + "/data?type=xml", "", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPut, tt.target, tt.contentType, "a,b\n1,2\n")
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}

			w = do(t, h, http.MethodGet, base+"/data", "", "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "a,b\n1,2\n", w.Body.String())
			assert.Equal(t, contentType(tt.wantType), w.Header().Get("Content-Type"))
		})
	}
}

func TestWorkspaces_Recipe(t *testing.T) {
	h := setupTestServer(t).Handler()
	ws := createWorkspace(t, h, `{"name":"r"}`)
	base := "/workspaces/" + ws.ID

	w := do(t, h, http.MethodPut, base+"/recipe", "text/plain", "renam :a :b")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[errorResponse](t, w)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, resp.Errors[0].Line)

	w = do(t, h, http.MethodGet, base, "", "")
	assert.Empty(t, decode[workspace.Workspace](t, w).Recipe, "failed recipes are not stored")

	w = do(t, h, http.MethodPut, base+"/recipe", "text/plain", "parse-as-csv :body\ndrop :body")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[CompileResponse](t, w).Directives)

	w = do(t, h, http.MethodGet, base, "", "")
	assert.Equal(t, "parse-as-csv :body\ndrop :body", decode[workspace.Workspace](t, w).Recipe)
}

func TestWorkspaces_Execute(t *testing.T) {
	h := setupTestServer(t).Handler()
	ws := createWorkspace(t, h, `{"name":"e"}`)
	base := "/workspaces/" + ws.ID

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, base+"/data", "text/plain", "a,b\n1,2\n3,4\n").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, base+"/recipe", "text/plain", "parse-as-csv :body\ndrop :body").Code)

	w := do(t, h, http.MethodPost, base+"/execute", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ExecuteResponse](t, w)
	assert.Equal(t, 3, resp.Read)
	assert.Equal(t, []string{"body_1", "body_2"}, resp.Columns)
	require.Len(t, resp.Rows, 3)
	assert.Equal(t, map[string]any{"body_1": "a", "body_2": "b"}, resp.Rows[0])

	w = do(t, h, http.MethodPost, base+"/execute", "application/json",
		`{"recipe":"uppercase :body","sampling":{"method":"reservoir","limit":2,"seed":7}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decode[ExecuteResponse](t, w)
	assert.Equal(t, 2, resp.Read)
	assert.Len(t, resp.Rows, 2)

	w = do(t, h, http.MethodPost, base+"/execute", "application/json", `{"recipe":"explode :body"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, http.MethodPost, base+"/execute", "application/json", `{"recipe":"rename :missing :x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode[errorResponse](t, w).Error, "missing")
}

func TestWorkspaces_ExecuteCSVAndSkipped(t *testing.T) {
	h := setupTestServer(t).Handler()
	ws := createWorkspace(t, h, `{"name":"csv","type":"csv","properties":{"delimiter":";"}}`)
	base := "/workspaces/" + ws.ID

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, base+"/data?type=csv", "", "name;age\nada;36\nbob;41\n").Code)

	w := do(t, h, http.MethodPost, base+"/execute", "application/json",
		`{"recipe":"filter-row-if-true { name == 'bob' }"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ExecuteResponse](t, w)
	assert.Equal(t, 1, resp.Dropped)
	assert.Equal(t, []map[string]any{{"name": "ada", "age": "36"}}, resp.Rows)

	w = do(t, h, http.MethodPost, base+"/execute", "application/json", `{"recipe":"parse-as-csv :age"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decode[ExecuteResponse](t, w)
	assert.Empty(t, resp.Skipped)
	assert.Equal(t, []string{"name", "age", "age_1"}, resp.Columns)
}

func TestEvents(t *testing.T) {
	s := setupTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	assert.Equal(t, 1, s.Notifier().Len())

	post, err := ts.Client().Post(ts.URL+"/workspaces?namespace=other", "application/json", strings.NewReader(`{"name":"ignored"}`))
	require.NoError(t, err)
	_ = post.Body.Close()
	post, err = ts.Client().Post(ts.URL+"/workspaces", "application/json", strings.NewReader(`{"id":"w1","name":"seen"}`))
	require.NoError(t, err)
	_ = post.Body.Close()

	var data string
	for data == "" {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			data = strings.TrimSpace(rest)
		}
	}
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, Event{Kind: "created", Namespace: "test", ID: "w1", Scope: workspace.DefaultScope}, ev)
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	assert.Equal(t, 2, n.Len())

	n.Broadcast(Event{Kind: "data", Namespace: "n", ID: "a"})
	assert.Equal(t, "a", (<-ch1).ID)
	assert.Equal(t, "a", (<-ch2).ID)

	n.Unsubscribe(ch1)
	_, open := <-ch1
	assert.False(t, open)

	for i := 0; i < 100; i++ {
		n.Broadcast(Event{Kind: "data"})
	}
	assert.Len(t, ch2, cap(ch2), "full listeners do not block broadcast")
	n.Unsubscribe(ch2)
	assert.Zero(t, n.Len())
}

func TestServeListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestSchemas_Versions(t *testing.T) {
	h := setupTestServer(t).Handler()

	w := do(t, h, http.MethodPost, "/schemas", "application/json",
		`{"id":"customer","name":"Customer","description":"customer record","type":"avro"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[workspace.Schema](t, w)
	assert.Equal(t, "test", created.Namespace)
	assert.Equal(t, workspace.DescriptorAvro, created.Type)

	for i, spec := range []string{`{"v":1}`, `{"v":2}`} {
		w = do(t, h, http.MethodPost, "/schemas/customer/versions", "application/json", spec)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, VersionResponse{ID: "customer", Version: int64(i + 1)}, decode[VersionResponse](t, w))
	}

	w = do(t, h, http.MethodGet, "/schemas/customer", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	sc := decode[workspace.Schema](t, w)
	assert.Equal(t, []int64{1, 2}, sc.Versions)
	assert.Equal(t, int64(2), sc.Current)

	w = do(t, h, http.MethodGet, "/schemas/customer/versions", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[1,2]`, w.Body.String())

	w = do(t, h, http.MethodGet, "/schemas/customer/versions/1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[workspace.SchemaVersion](t, w)
	assert.Equal(t, int64(1), v.Version)
	assert.Equal(t, `{"v":1}`, string(v.Specification))

	w = do(t, h, http.MethodGet, "/schemas/customer/versions/latest/specification", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"v":2}`, w.Body.String())
	assert.Equal(t, "2", w.Header().Get("X-Schema-Version"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	w = do(t, h, http.MethodDelete, "/schemas/customer/versions/latest", "", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, "/schemas/customer/versions/latest", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[workspace.SchemaVersion](t, w).Version)

	w = do(t, h, http.MethodGet, "/schemas", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]workspace.SchemaMeta](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "customer", list[0].ID)

	w = do(t, h, http.MethodDelete, "/schemas/customer", "", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, "/schemas/customer", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchemas_Errors(t *testing.T) {
	h := setupTestServer(t).Handler()
	w := do(t, h, http.MethodPost, "/schemas", "application/json",
		`{"id":"book","name":"Book","description":"layout","type":"copybook"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		code        int
	}{
		{"unknown type", http.MethodPost, "/schemas", "application/json", `{"id":"x","name":"X","description":"d","type":"json"}`, http.StatusBadRequest},
		{"missing description", http.MethodPost, "/schemas", "application/json", `{"id":"x","name":"X","type":"avro"}`, http.StatusBadRequest},
		{"duplicate", http.MethodPost, "/schemas", "application/json", `{"id":"book","name":"B","description":"d","type":"avro"}`, http.StatusConflict},
		{"upload to missing schema", http.MethodPost, "/schemas/nope/versions", "text/plain", "spec", http.StatusNotFound},
		{"empty upload", http.MethodPost, "/schemas/book/versions", "text/plain", "", http.StatusBadRequest},
		{"no versions yet", http.MethodGet, "/schemas/book/versions/latest", "", "", http.StatusNotFound},
		{"missing version", http.MethodGet, "/schemas/book/versions/7", "", "", http.StatusNotFound},
		{"bad version", http.MethodGet, "/schemas/book/versions/zero", "", "", http.StatusBadRequest},
		{"non-positive version", http.MethodDelete, "/schemas/book/versions/0", "", "", http.StatusBadRequest},
		{"delete missing version", http.MethodDelete, "/schemas/book/versions/3", "", "", http.StatusNotFound},
		{"list versions of missing schema", http.MethodGet, "/schemas/nope/versions", "", "", http.StatusNotFound},
		{"delete missing schema", http.MethodDelete, "/schemas/nope", "", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.contentType, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestSchemas_NamespaceIsolation(t *testing.T) {
	h := setupTestServer(t).Handler()
	w := do(t, h, http.MethodPost, "/schemas?namespace=a", "application/json",
		`{"id":"s","name":"S","description":"d","type":"protobuf-desc"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/schemas/s?namespace=b", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodGet, "/schemas/s?namespace=a", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
