package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/wrangle/internal/engine"
	"github.com/leapstack-labs/wrangle/internal/source"
	"github.com/leapstack-labs/wrangle/internal/workspace"
	"github.com/leapstack-labs/wrangle/pkg/recipe"
	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/sampling"
)

// DirectiveInfo describes a registered directive.
type DirectiveInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Policy      string `json:"policy"`
}

// CompileError is one recipe error in a response.
type CompileError struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Directive string `json:"directive,omitempty"`
	Message   string `json:"message"`
}

// CompileResponse is the result of POST /compile.
type CompileResponse struct {
	OK         bool           `json:"ok"`
	Directives int            `json:"directives"`
	Errors     []CompileError `json:"errors,omitempty"`
}

// ExecuteRequest is the optional body of POST /workspaces/{id}/execute.
type ExecuteRequest struct {
	Recipe   *string           `json:"recipe,omitempty"` // defaults to the stored recipe
	Sampling *sampling.Options `json:"sampling,omitempty"`
}

// SkippedRow reports a row a step failed on and passed through.
type SkippedRow struct {
	Row       int    `json:"row"`
	Line      int    `json:"line"`
	Directive string `json:"directive"`
	Column    string `json:"column,omitempty"`
	Message   string `json:"message"`
}

// ExecuteResponse is the result of POST /workspaces/{id}/execute.
type ExecuteResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Skipped []SkippedRow     `json:"skipped,omitempty"`
	Dropped int              `json:"dropped"`
	Read    int              `json:"read"`
	Elapsed string           `json:"elapsed"`
}

type errorResponse struct {
	Error  string         `json:"error"`
	Errors []CompileError `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDirectives(w http.ResponseWriter, _ *http.Request) {
	defs := s.engine.Directives()
	out := make([]DirectiveInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, DirectiveInfo{
			Name:        def.Name,
			Description: def.Description,
			Usage:       def.Usage.String(),
			Policy:      def.Policy.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCompile accepts the recipe as text/plain, or as JSON {"recipe": "..."}.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	text, err := readRecipe(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	status := s.engine.Compile(text)
	resp := CompileResponse{OK: status.OK(), Errors: compileErrors(status)}
	if status.Pipeline != nil {
		resp.Directives = status.Pipeline.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents streams workspace events as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	namespace := s.namespaceOf(r)
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-updates:
			if ev.Namespace != namespace {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: workspace\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context(), s.namespaceOf(r), r.URL.Query().Get("scope"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var meta workspace.Meta
	if err := decodeJSON(r, &meta); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if meta.Namespace == "" {
		meta.Namespace = s.namespaceOf(r)
	}

	ws, err := s.store.Create(r.Context(), meta)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.notifier.Broadcast(Event{Kind: "created", Namespace: ws.Namespace, ID: ws.ID, Scope: ws.Scope})
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleDeleteScope(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeError(w, http.StatusBadRequest, errors.New("scope is required"))
		return
	}
	namespace := s.namespaceOf(r)
	n, err := s.store.DeleteScope(r.Context(), namespace, scope)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.notifier.Broadcast(Event{Kind: "deleted", Namespace: namespace, Scope: scope})
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.store.Get(r.Context(), s.namespaceOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	namespace, id := s.namespaceOf(r), chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), namespace, id); err != nil {
		s.storeError(w, err)
		return
	}
	s.notifier.Broadcast(Event{Kind: "deleted", Namespace: namespace, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	ws, err := s.store.Get(r.Context(), s.namespaceOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(ws.Type))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ws.Data)
}

// handlePutData stores the request body. The data type comes from the
// "type" query parameter, else from the Content-Type header.
func (s *Server) handlePutData(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	typ := workspace.DataType(r.URL.Query().Get("type"))
	if typ == "" {
		typ = dataType(r.Header.Get("Content-Type"))
	}
	if !typ.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown data type %q", typ))
		return
	}

	namespace, id := s.namespaceOf(r), chi.URLParam(r, "id")
	if err := s.store.UpdateData(r.Context(), namespace, id, typ, data); err != nil {
		s.storeError(w, err)
		return
	}
	s.notifier.Broadcast(Event{Kind: "data", Namespace: namespace, ID: id})
	writeJSON(w, http.StatusOK, map[string]any{"type": typ, "bytes": len(data)})
}

// handlePutRecipe compiles the recipe and stores it only when it compiles.
func (s *Server) handlePutRecipe(w http.ResponseWriter, r *http.Request) {
	text, err := readRecipe(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	status := s.engine.Compile(text)
	if !status.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "recipe does not compile",
			Errors: compileErrors(status),
		})
		return
	}

	namespace, id := s.namespaceOf(r), chi.URLParam(r, "id")
	if err := s.store.UpdateRecipe(r.Context(), namespace, id, text); err != nil {
		s.storeError(w, err)
		return
	}
	s.notifier.Broadcast(Event{Kind: "recipe", Namespace: namespace, ID: id})
	writeJSON(w, http.StatusOK, CompileResponse{OK: true, Directives: status.Pipeline.Len()})
}

func (s *Server) handlePutProperties(w http.ResponseWriter, r *http.Request) {
	var props map[string]string
	if err := decodeJSON(r, &props); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	namespace, id := s.namespaceOf(r), chi.URLParam(r, "id")
	if err := s.store.UpdateProperties(r.Context(), namespace, id, props); err != nil {
		s.storeError(w, err)
		return
	}
	s.notifier.Broadcast(Event{Kind: "properties", Namespace: namespace, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// handleExecute runs a recipe over a sample of the workspace data.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	ws, err := s.store.Get(r.Context(), s.namespaceOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	text := ws.Recipe
	if req.Recipe != nil {
		text = *req.Recipe
	}
	status := s.engine.Compile(text)
	if !status.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "recipe does not compile",
			Errors: compileErrors(status),
		})
		return
	}

	src, err := workspaceSource(ws)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer func() { _ = src.Close() }()

	res, err := s.engine.Run(r.Context(), status.Pipeline, src, engine.RunOptions{Sampling: req.Sampling})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, executeResponse(res))
}

// namespaceOf returns the namespace query parameter, or the server default.
func (s *Server) namespaceOf(r *http.Request) string {
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		return ns
	}
	return s.namespace
}

// storeError maps workspace store errors to status codes.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workspace.ErrNotFound), errors.Is(err, workspace.ErrSchemaNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, workspace.ErrExists), errors.Is(err, workspace.ErrSchemaExists):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, workspace.ErrInvalid):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("workspace store failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// workspaceSource reads workspace data as rows. Text data yields a row per
// line and binary data a single row, both in the body column.
func workspaceSource(ws *workspace.Workspace) (source.Source, error) {
	switch ws.Type {
	case workspace.DataCSV:
		var opts source.CSVOptions
		if d := ws.Properties["delimiter"]; d != "" {
			if utf8.RuneCountInString(d) != 1 {
				return nil, fmt.Errorf("csv delimiter must be a single character, got %q", d)
			}
			opts.Delimiter, _ = utf8.DecodeRuneInString(d)
		}
		opts.NoHeader = ws.Properties["header"] == "false"
		return source.NewCSV(bytes.NewReader(ws.Data), opts), nil
	case workspace.DataBinary:
		return source.FromRows([]*row.Row{row.Of(source.BodyColumn, ws.Data)}), nil
	default:
		return source.NewLines(bytes.NewReader(ws.Data), source.BodyColumn), nil
	}
}

func executeResponse(res *engine.Result) ExecuteResponse {
	resp := ExecuteResponse{
		Columns: res.Columns(),
		Rows:    make([]map[string]any, 0, len(res.Rows)),
		Dropped: res.Dropped,
		Read:    res.Read,
		Elapsed: res.Elapsed.String(),
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}
	for _, rw := range res.Rows {
		resp.Rows = append(resp.Rows, rw.Map())
	}
	for _, se := range res.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedRow{
			Row:       se.Row,
			Line:      se.Info.Line,
			Directive: se.Info.Directive,
			Column:    se.Column,
			Message:   se.Err.Error(),
		})
	}
	return resp
}

func compileErrors(status *recipe.Status) []CompileError {
	var out []CompileError
	for _, err := range status.Errors {
		ce := CompileError{Message: err.Error()}
		var rerr *recipe.CompileError
		if errors.As(err, &rerr) {
			ce.Line = rerr.Line
			ce.Column = rerr.Column
			ce.Directive = rerr.Directive
			ce.Message = rerr.Err.Error()
		}
		out = append(out, ce)
	}
	return out
}

func readRecipe(r *http.Request) (string, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		var body struct {
			Recipe string `json:"recipe"`
		}
		if err := decodeJSON(r, &body); err != nil {
			return "", err
		}
		return body.Recipe, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read recipe: %w", err)
	}
	return string(data), nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func dataType(header string) workspace.DataType {
	mt, _, _ := mime.ParseMediaType(header)
	switch {
	case mt == "text/csv":
		return workspace.DataCSV
	case mt == "" || strings.HasPrefix(mt, "text/"):
		return workspace.DataText
	default:
		return workspace.DataBinary
	}
}

func contentType(t workspace.DataType) string {
	switch t {
	case workspace.DataCSV:
		return "text/csv; charset=utf-8"
	case workspace.DataBinary:
		return "application/octet-stream"
	default:
		return "text/plain; charset=utf-8"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
