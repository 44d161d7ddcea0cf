// Package api serves single verifications and run history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-verifier/internal/batch"
	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/internal/store"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	verifier batch.Verifier
	cache    *batch.Cache
	store    store.Store // nil when persistence is disabled
	ttl      time.Duration
	preset   string
	origins  []string
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables run history and the persistent verdict cache.
func WithStore(s store.Store, ttl time.Duration) Option {
	return func(srv *Server) {
		srv.store = s
		srv.ttl = ttl
	}
}

// WithPreset names the scoring preset of the verifier, so stored verdicts
// scored under another preset are recomputed.
func WithPreset(name string) Option {
	return func(s *Server) {
		s.preset = name
	}
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithRequestTimeout bounds a single verification.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// NewServer creates a Server.
func NewServer(v batch.Verifier, opts ...Option) *Server {
	s := &Server{
		verifier: v,
		timeout:  10 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	// the cache only joins in-flight calls and serves stored successes
	var backing batch.Backing
	if s.store != nil {
		backing = s.store
	}
	s.cache = batch.NewCache(backing, s.ttl, batch.SuccessOnly(), batch.ForPreset(s.preset))
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/verify", s.handleVerify)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/outcomes", s.handleListOutcomes)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			zap.L().Warn("api: store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type verifyRequest struct {
	Holding string            `json:"holding"`
	Brand   string            `json:"brand"`
	Context map[string]string `json:"context,omitempty"`
}

type verifyResponse struct {
	RunID   string         `json:"run_id,omitempty"`
	Cached  bool           `json:"cached"`
	Outcome *model.Outcome `json:"outcome"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req := model.NewRequest(0, body.Holding, body.Brand, body.Context)
	if !req.Valid() {
		writeError(w, http.StatusBadRequest, "holding and brand are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	o, hit, err := s.cache.GetOrCompute(ctx, req.Key(), func(ctx context.Context) (*model.Outcome, error) {
		return s.verifier.Verify(ctx, req)
	})
	if err != nil {
		if ctx.Err() != nil {
			zap.L().Warn("api: verification aborted", zap.String("brand", req.Brand), zap.Error(err))
			writeError(w, http.StatusGatewayTimeout, "verification did not complete")
			return
		}
		s.internalError(w, "verify", err)
		return
	}
	if o == nil {
		s.internalError(w, "verify", eris.New("api: no outcome"))
		return
	}
	if o.Request.Row != req.Row || o.Request.Key() != req.Key() {
		c := *o
		c.Request = req
		o = &c
	}

	resp := verifyResponse{Cached: hit, Outcome: o}
	if s.store != nil {
		resp.RunID = s.record(r.Context(), o, hit)
	}
	writeJSON(w, http.StatusOK, resp)
}

// record stores a single verification as a run. Failures are logged; the
// caller still gets its verdict.
func (s *Server) record(ctx context.Context, o *model.Outcome, cached bool) string {
	run, err := s.store.CreateRun(ctx, "api", "", model.RunModeSingle)
	if err != nil {
		zap.L().Warn("api: create run failed", zap.Error(err))
		return ""
	}
	var summary model.Summary
	summary.Add(o, cached)
	if err := s.store.SaveOutcomes(ctx, run.ID, []*model.Outcome{o}); err != nil {
		zap.L().Warn("api: save outcome failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	if err := s.store.CompleteRun(ctx, run.ID, &summary, nil); err != nil {
		zap.L().Warn("api: complete run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	return run.ID
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	filter := store.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status"))}
	var err error
	if filter.Limit, err = intParam(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Offset, err = intParam(r, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		s.storeError(w, "get run", err)
		return
	}
	outcomes, err := s.store.ListOutcomes(r.Context(), id)
	if err != nil {
		s.internalError(w, "list outcomes", err)
		return
	}
	if outcomes == nil {
		outcomes = []*model.Outcome{}
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "run history is disabled")
		return false
	}
	return true
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.internalError(w, op, err)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("api: "+op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
