package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bohumlab/commission-gateway/common/httpx"
	"github.com/bohumlab/commission-gateway/common/logger"
	"github.com/bohumlab/commission-gateway/config"
	"github.com/bohumlab/commission-gateway/dataset"
	"github.com/bohumlab/commission-gateway/router"
)

const maxBodyBytes = 1 << 20

// Server exposes the gateway over HTTP: the KakaoTalk skill webhook, health
// and metrics endpoints, and an admin dataset-reload hook.
type Server struct {
	queries  *router.QueryRouter
	datasets *dataset.Store
	callback *httpx.Client

	addr           string
	adminToken     string
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
}

// New builds the HTTP server around an assembled query router.
func New(queries *router.QueryRouter, datasets *dataset.Store, serverCfg config.ServerConfig, callbackCfg config.CallbackConfig) *Server {
	s := &Server{
		queries:  queries,
		datasets: datasets,
		callback: httpx.New(httpx.Options{
			Timeout:       time.Duration(callbackCfg.TimeoutMs) * time.Millisecond,
			Retry:         callbackCfg.Retry,
			HostAllowlist: callbackCfg.HostAllowlist,
		}),
		addr:           serverCfg.Addr,
		adminToken:     serverCfg.AdminToken,
		requestTimeout: time.Duration(serverCfg.RequestTimeoutS) * time.Second,
		readTimeout:    time.Duration(serverCfg.ReadTimeoutMs) * time.Millisecond,
		writeTimeout:   time.Duration(serverCfg.WriteTimeoutMs) * time.Millisecond,
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = 25 * time.Second
	}
	return s
}

// Router lays out the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/chat", s.handleChat)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/admin/reload", s.handleReload)
	return r
}

// handleChat serves the KakaoTalk skill webhook. When the platform supplies a
// callback URL the final answer is delivered there and the webhook returns an
// immediate acknowledgment; otherwise the answer is computed inline.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	kr := parseKakaoRequest(body)
	if kr.Utterance == "" {
		http.Error(w, "missing utterance", http.StatusBadRequest)
		return
	}
	logger.Infof("server: [%s] utterance=%q user=%s callback=%v", reqID, kr.Utterance, kr.UserID, kr.CallbackURL != "")

	if kr.CallbackURL != "" {
		// Answer asynchronously; the skill timeout is far shorter than a
		// worst-case completion call.
		go s.answerAsync(reqID, kr)
		writeJSON(w, http.StatusOK, kakaoUseCallback())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	ans := s.queries.Handle(ctx, kr.UserID, kr.Utterance)
	logger.Infof("server: [%s] answered route=%s status=%s", reqID, ans.Route, ans.Status)
	writeJSON(w, http.StatusOK, kakaoSimpleText(ans.Text))
}

func (s *Server) answerAsync(reqID string, kr kakaoRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()
	ans := s.queries.Handle(ctx, kr.UserID, kr.Utterance)
	logger.Infof("server: [%s] answered route=%s status=%s (callback)", reqID, ans.Route, ans.Status)
	s.postCallback(ctx, kr.CallbackURL, ans.Text)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ds := s.datasets.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"companies": len(ds.CompanyNames()),
		"products":  ds.NumProducts(),
	})
}

// handleReload swaps in a freshly parsed dataset. The previous dataset stays
// live if the reload fails.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.adminToken == "" {
		http.Error(w, "reload disabled", http.StatusForbidden)
		return
	}
	token := r.Header.Get("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := s.datasets.Reload(); err != nil {
		logger.Errorf("server: dataset reload failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
		return
	}
	ds := s.datasets.Current()
	logger.Infof("server: dataset reloaded, %d companies %d products", len(ds.CompanyNames()), ds.NumProducts())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"companies": len(ds.CompanyNames()),
		"products":  ds.NumProducts(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("server: response encode failed: %v", err)
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(cctx)
	}()

	logger.Infof("server: listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
