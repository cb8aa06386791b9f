// Package api is the HTTP front of the gate: it normalizes request
// bodies, validates them, issues at most one orchestration call per
// request, and classifies the outcome.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"servergate/pkg/api/actions"
	"servergate/pkg/api/faults"
	"servergate/pkg/api/normalize"
	"servergate/pkg/api/validate"
	"servergate/pkg/auth"
	"servergate/pkg/log"
	"servergate/pkg/ports"
)

const maxBodyBytes = 1 << 20

// Config holds the API server configuration.
type Config struct {
	// BindAddr is the listen address.
	BindAddr string
	// BaseURL is the base used when building locations and references.
	BaseURL string
	// AllowAdminAPI enables the administrative request surface.
	AllowAdminAPI bool
	// ReclaimInstanceInterval, when positive, turns deletes into soft
	// deletes reclaimed by the collaborator.
	ReclaimInstanceInterval time.Duration
}

// Server is the request-normalization, validation and dispatch layer in
// front of the orchestration collaborator. It keeps no per-request state
// of its own.
type Server struct {
	cfg     *Config
	ports   *ports.Collection
	router  *actions.Router
	metrics *metrics
}

// NewServer wires the server with its ports.
func NewServer(cfg *Config, collection *ports.Collection) *Server {
	return &Server{
		cfg:     cfg,
		ports:   collection,
		router:  actions.NewRouter(collection, cfg.BaseURL, cfg.AllowAdminAPI),
		metrics: newMetrics(),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", s.metrics.handler())
	mux.HandleFunc("POST /v1/servers", s.instrument("create", s.create))
	mux.HandleFunc("GET /v1/servers", s.instrument("index", s.index))
	mux.HandleFunc("GET /v1/servers/detail", s.instrument("detail", s.detail))
	mux.HandleFunc("GET /v1/servers/{id}", s.instrument("show", s.show))
	mux.HandleFunc("PUT /v1/servers/{id}", s.instrument("update", s.update))
	mux.HandleFunc("DELETE /v1/servers/{id}", s.instrument("delete", s.deleteServer))
	mux.HandleFunc("POST /v1/servers/{id}/action", s.instrument("action", s.action))

	return mux
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.BindAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	log.GetLogger(ctx).WithField("addr", s.cfg.BindAddr).Info("api server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down api server: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serving api: %w", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logrus.WithFields(logrus.Fields{
			"handler": name,
			"method":  r.Method,
			"path":    r.URL.Path,
		})

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r.WithContext(log.WithLogger(r.Context(), logger)))
		s.metrics.observe(name, recorder.status)
	}
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromRequest(r)

	doc, err := s.decode(w, r)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	cmd, err := validate.Create(caller, doc)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	if cmd.AdminPass == "" {
		cmd.AdminPass = s.ports.Passwords.Generate()
	}

	// References minted by this API are stripped back down to an id.
	cmd.ImageRef = s.stripSelfReference(cmd.ImageRef)

	instances, reservationID, err := s.ports.Orchestrator.Create(r.Context(), caller, cmd)
	if err != nil {
		s.fail(w, r, faults.Classify(err))

		return
	}

	if cmd.ReturnReservationID {
		s.respond(w, http.StatusAccepted, map[string]any{"reservation_id": reservationID})

		return
	}

	view := s.serverView(instances[0], true)
	view["adminPass"] = cmd.AdminPass
	s.respond(w, http.StatusAccepted, map[string]any{"server": view})
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, false)
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, true)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, detailed bool) {
	caller := auth.FromRequest(r)

	opts, err := validate.Search(caller, s.cfg.AllowAdminAPI, r.URL.Query(), log.GetLogger(r.Context()))
	if err != nil {
		s.fail(w, r, err)

		return
	}

	instances, err := s.ports.Orchestrator.GetAll(r.Context(), caller, opts)
	if err != nil {
		s.fail(w, r, faults.Classify(err))

		return
	}

	s.respond(w, http.StatusOK, s.serverListView(instances, detailed))
}

func (s *Server) show(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromRequest(r)

	instance, err := s.ports.Orchestrator.RoutingGet(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, faults.Classify(err))

		return
	}

	s.respond(w, http.StatusOK, map[string]any{"server": s.serverView(instance, true)})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromRequest(r)

	doc, err := s.decode(w, r)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	patch, err := validate.Update(doc)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	instance, err := s.ports.Orchestrator.Update(r.Context(), caller, r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, faults.Classify(err))

		return
	}

	s.respond(w, http.StatusOK, map[string]any{"server": s.serverView(instance, true)})
}

func (s *Server) deleteServer(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromRequest(r)

	instance, err := s.ports.Orchestrator.RoutingGet(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, faults.Classify(err))

		return
	}

	if s.cfg.ReclaimInstanceInterval > 0 {
		err = s.ports.Orchestrator.SoftDelete(r.Context(), caller, instance)
	} else {
		err = s.ports.Orchestrator.Delete(r.Context(), caller, instance)
	}
	if err != nil {
		s.fail(w, r, faults.Classify(err))

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) action(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromRequest(r)

	doc, err := s.decode(w, r)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	resp, err := s.router.Dispatch(r.Context(), caller, r.PathValue("id"), doc)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	if resp.Location != "" {
		w.Header().Set("Location", resp.Location)
	}

	if resp.Instance != nil {
		view := s.serverView(resp.Instance, true)
		if resp.AdminPass != "" {
			view["adminPass"] = resp.AdminPass
		}
		s.respond(w, resp.Status, map[string]any{"server": view})

		return
	}

	w.WriteHeader(resp.Status)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (normalize.Document, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, faults.BadRequest("Malformed request body")
	}

	return normalize.DecodeBody(r.Header.Get("Content-Type"), body)
}

func (s *Server) stripSelfReference(ref string) string {
	if strings.HasPrefix(ref, s.cfg.BaseURL) {
		return validate.FlavorID(ref)
	}

	return ref
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("writing response body")
	}
}

// fail renders a classified fault, or propagates an unmapped error as a
// server fault with its message intact.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fault *faults.Fault
	if !errors.As(err, &fault) {
		log.GetLogger(r.Context()).WithError(err).Error("unclassified failure")
		s.respond(w, http.StatusInternalServerError, faultBody(http.StatusInternalServerError, err.Error()))

		return
	}

	log.GetLogger(r.Context()).WithField("status", fault.Status).Debug(fault.Explanation)

	if fault.RetryAfter != nil {
		w.Header().Set("Retry-After", strconv.Itoa(*fault.RetryAfter))
	}

	s.respond(w, fault.Status, faultBody(fault.Status, fault.Explanation))
}

func faultBody(status int, message string) map[string]any {
	return map[string]any{
		faultKey(status): map[string]any{
			"code":    status,
			"message": message,
		},
	}
}

func faultKey(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "badRequest"
	case http.StatusNotFound:
		return "itemNotFound"
	case http.StatusConflict:
		return "conflictingRequest"
	case http.StatusRequestEntityTooLarge:
		return "overLimit"
	case http.StatusUnprocessableEntity:
		return "unprocessableEntity"
	default:
		return "computeFault"
	}
}
