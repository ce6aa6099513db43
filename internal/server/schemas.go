package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/wrangle/internal/workspace"
)

// latestVersion addresses the highest version of a schema in routes.
const latestVersion = "latest"

// VersionResponse is the result of uploading a schema version.
type VersionResponse struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

func (s *Server) schemaRoutes(r chi.Router) {
	r.Get("/", s.handleListSchemas)
	r.Post("/", s.handleCreateSchema)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSchema)
		r.Delete("/", s.handleDeleteSchema)
		r.Get("/versions", s.handleListVersions)
		r.Post("/versions", s.handleAddVersion)
		r.Get("/versions/{version}", s.handleGetVersion)
		r.Get("/versions/{version}/specification", s.handleGetSpecification)
		r.Delete("/versions/{version}", s.handleDeleteVersion)
	})
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListSchemas(r.Context(), s.namespaceOf(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var meta workspace.SchemaMeta
	if err := decodeJSON(r, &meta); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if meta.Namespace == "" {
		meta.Namespace = s.namespaceOf(r)
	}

	sc, err := s.store.CreateSchema(r.Context(), meta)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetSchema(r.Context(), s.namespaceOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSchema(r.Context(), s.namespaceOf(r), chi.URLParam(r, "id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.store.ListVersions(r.Context(), s.namespaceOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// handleAddVersion stores the request body as the next version.
func (s *Server) handleAddVersion(w http.ResponseWriter, r *http.Request) {
	spec, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	id := chi.URLParam(r, "id")
	version, err := s.store.AddVersion(r.Context(), s.namespaceOf(r), id, spec)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, VersionResponse{ID: id, Version: version})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	v, ok := s.schemaVersion(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleGetSpecification writes the raw specification bytes.
func (s *Server) handleGetSpecification(w http.ResponseWriter, r *http.Request) {
	v, ok := s.schemaVersion(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", specContentType(v.Type))
	w.Header().Set("X-Schema-Version", strconv.FormatInt(v.Version, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(v.Specification)
}

func (s *Server) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	namespace, id := s.namespaceOf(r), chi.URLParam(r, "id")
	version, err := s.resolveVersion(r.Context(), namespace, id, chi.URLParam(r, "version"))
	if err != nil {
		s.versionError(w, err)
		return
	}
	if err := s.store.DeleteVersion(r.Context(), namespace, id, version); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// schemaVersion loads the version named in the route, writing the error
// response when it cannot.
func (s *Server) schemaVersion(w http.ResponseWriter, r *http.Request) (*workspace.SchemaVersion, bool) {
	namespace, id := s.namespaceOf(r), chi.URLParam(r, "id")
	param := chi.URLParam(r, "version")

	var (
		v   *workspace.SchemaVersion
		err error
	)
	if param == latestVersion {
		v, err = s.store.LatestVersion(r.Context(), namespace, id)
	} else {
		var version int64
		if version, err = parseVersion(param); err == nil {
			v, err = s.store.GetVersion(r.Context(), namespace, id, version)
		}
	}
	if err != nil {
		s.versionError(w, err)
		return nil, false
	}
	return v, true
}

// resolveVersion turns a route version into a number, looking up "latest".
func (s *Server) resolveVersion(ctx context.Context, namespace, id, param string) (int64, error) {
	if param != latestVersion {
		return parseVersion(param)
	}
	v, err := s.store.LatestVersion(ctx, namespace, id)
	if err != nil {
		return 0, err
	}
	return v.Version, nil
}

func (s *Server) versionError(w http.ResponseWriter, err error) {
	var perr *versionParamError
	if errors.As(err, &perr) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.storeError(w, err)
}

type versionParamError struct{ param string }

func (e *versionParamError) Error() string {
	return fmt.Sprintf("invalid schema version %q: expected a positive number or %q", e.param, latestVersion)
}

func parseVersion(param string) (int64, error) {
	v, err := strconv.ParseInt(param, 10, 64)
	if err != nil || v < 1 {
		return 0, &versionParamError{param: param}
	}
	return v, nil
}

func specContentType(t workspace.DescriptorType) string {
	switch t {
	case workspace.DescriptorAvro:
		return "application/json"
	case workspace.DescriptorCopybook:
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
