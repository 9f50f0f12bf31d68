// Package httpapi serves read access and blob uploads over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/odvcencio/gitobj/internal/view"
	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/repository"
	"github.com/odvcencio/gitobj/pkg/revwalk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	// MaxBlobSize bounds POST /api/blobs bodies.
	MaxBlobSize = 32 << 20
	// DefaultLogLimit is the number of commits /api/log returns by default.
	DefaultLogLimit = 50
)

// Server holds the handlers' dependencies.
type Server struct {
	repo     *repository.Repository
	logger   logrus.FieldLogger
	gatherer prometheus.Gatherer
}

// New returns a server over repo. gatherer backs /metrics; nil disables it.
func New(repo *repository.Repository, logger logrus.FieldLogger, gatherer prometheus.Gatherer) *Server {
	return &Server{repo: repo, logger: logger.WithField("component", "httpapi"), gatherer: gatherer}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/refs", s.listRefs)
		r.Get("/refs/*", s.getRef)
		r.Get("/default-branch", s.getDefaultBranch)
		r.Get("/branches/*", s.getBranch)
		r.Get("/commits/{id}", s.getCommit)
		r.Get("/trees/{id}", s.getTree)
		r.Get("/blobs/{id}", s.getBlob)
		r.Post("/blobs", s.createBlob)
		r.Get("/tags/{id}", s.getTag)
		r.Get("/log/*", s.log)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// statusFor maps the repository error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrObjectNotFound),
		errors.Is(err, repository.ErrReferenceNotFound),
		errors.Is(err, repository.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrObjectTypeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrReferenceResolution):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	s.writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Warn("write response")
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRefs(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.References(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]view.Reference, 0, len(list))
	for _, ref := range list {
		out = append(out, view.FromReference(ref))
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) getRef(w http.ResponseWriter, r *http.Request) {
	ref, err := s.repo.GetReference(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view.FromReference(ref))
}

func (s *Server) getBranch(w http.ResponseWriter, r *http.Request) {
	c, err := s.repo.GetBranch(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view.FromCommit(c))
}

func (s *Server) getDefaultBranch(w http.ResponseWriter, r *http.Request) {
	c, err := s.repo.GetDefaultBranch(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view.FromCommit(c))
}

func (s *Server) getCommit(w http.ResponseWriter, r *http.Request) {
	c, err := s.repo.GetCommit(r.Context(), object.Hex(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view.FromCommit(c))
}

func (s *Server) getTree(w http.ResponseWriter, r *http.Request) {
	t, err := s.repo.GetTree(r.Context(), object.Hex(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view.FromTree(t))
}

func (s *Server) getTag(w http.ResponseWriter, r *http.Request) {
	t, err := s.repo.GetTag(r.Context(), object.Hex(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view.FromTag(t))
}

func (s *Server) getBlob(w http.ResponseWriter, r *http.Request) {
	b, err := s.repo.GetBlob(r.Context(), object.Hex(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(b.Size()))
	if _, err := w.Write(b.Content()); err != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Warn("write blob")
	}
}

func (s *Server) createBlob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBlobSize))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.writeJSON(w, r, status, map[string]string{"error": err.Error()})
		return
	}
	id, err := s.repo.CreateBlobFromBuffer(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]string{"id": id.String()})
}

func (s *Server) log(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid limit parameter"})
			return
		}
		limit = n
	}

	ctx := r.Context()
	rw := s.repo.CreateRevWalk()
	rw.Sorting(revwalk.SortTime)
	rev := chi.URLParam(r, "*")
	var err error
	if _, parseErr := object.ParseID(rev); parseErr == nil {
		err = rw.Push(object.Hex(rev))
	} else {
		err = rw.PushRef(ctx, rev)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]view.Commit, 0, limit)
	for len(out) < limit {
		c, err := rw.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, view.FromCommit(c))
	}
	s.writeJSON(w, r, http.StatusOK, out)
}
