package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"biogate/internal/alerts"
	"biogate/internal/config"
	"biogate/internal/ledger"
	"biogate/internal/model"
	"biogate/internal/profile"
	"biogate/internal/session"
)

type EngineControl interface {
	Reset()
	UpdateConfig(cfg *config.Config)
}

// Server is the read/ops surface: alert and risk inspection, threshold
// tuning, admin maintenance. Telemetry and transfers go through the ingest
// listener, not here.
type Server struct {
	cfg      *config.Manager
	alerts   *alerts.Store
	sessions *session.Store
	profiles *profile.Store
	ledger   *ledger.Ledger
	engine   EngineControl
	logger   *slog.Logger
	version  string
}

type statusResponse struct {
	Status     string                `json:"status"`
	Time       string                `json:"time"`
	Version    string                `json:"version"`
	ConfigPath string                `json:"config_path"`
	Ingest     ingestStatus          `json:"ingest"`
	Analysis   config.AnalysisConfig `json:"analysis"`
	Decision   config.DecisionConfig `json:"decision"`
	Sessions   int                   `json:"sessions"`
}

type ingestStatus struct {
	REST   bool `json:"rest"`
	Kafka  bool `json:"kafka"`
	Replay bool `json:"replay"`
}

type thresholdsUpdate struct {
	Analysis *config.AnalysisConfig `json:"analysis,omitempty"`
	Decision *config.DecisionConfig `json:"decision,omitempty"`
}

func Start(ctx context.Context, cfg *config.Manager, alertsStore *alerts.Store, sessions *session.Store, profiles *profile.Store, ldg *ledger.Ledger, engine EngineControl, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:      cfg,
		alerts:   alertsStore,
		sessions: sessions,
		profiles: profiles,
		ledger:   ldg,
		engine:   engine,
		logger:   logger,
		version:  version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/risk", server.handleRisk)
	mux.HandleFunc("/transactions", server.handleTransactions)
	mux.HandleFunc("/accounts", server.handleAccounts)
	mux.HandleFunc("/profiles", server.handleProfiles)
	mux.HandleFunc("/config/thresholds", server.handleThresholds)
	mux.HandleFunc("/admin/clear", server.handleClear)
	mux.HandleFunc("/admin/reset", server.handleReset)

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Ingest: ingestStatus{
			REST:   cfg.Ingest.REST.Enabled,
			Kafka:  cfg.Ingest.Kafka.Enabled,
			Replay: cfg.Ingest.Replay.Enabled,
		},
		Analysis: cfg.Analysis,
		Decision: cfg.Decision,
		Sessions: s.sessions.Len(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.Alert
	switch {
	case r.URL.Query().Get("user_id") != "":
		list = s.alerts.ByUser(r.URL.Query().Get("user_id"), limit)
	case r.URL.Query().Get("since") != "":
		ts, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.Since(ts)
	default:
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	sessionID := r.URL.Query().Get("session_id")
	if userID == "" || sessionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	snap, ok := s.sessions.Snapshot(userID, sessionID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	resp := map[string]any{
		"user_id":    snap.UserID,
		"session_id": snap.SessionID,
		"started_at": snap.StartedAt.Format(time.RFC3339Nano),
		"keystrokes": len(snap.Keystrokes),
		"pointer":    len(snap.Pointer),
		"navigation": len(snap.Navigation),
		"anomalies":  snap.Anomalies,
	}
	if snap.RiskScore != nil {
		resp["risk_score"] = *snap.RiskScore
	}
	if snap.EndedAt != nil {
		resp["ended_at"] = snap.EndedAt.Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	list := s.ledger.RecentByUser(userID, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": list,
		"count":        len(list),
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	list := s.ledger.AccountsByUser(userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": list,
		"count":    len(list),
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p, ok := s.profiles.Get(userID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.cfg.Get()
		writeJSON(w, http.StatusOK, map[string]any{
			"analysis": cfg.Analysis,
			"decision": cfg.Decision,
		})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var update thresholdsUpdate
		if err := json.Unmarshal(body, &update); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		current := s.cfg.Get()
		next := *current
		if update.Analysis != nil {
			next.Analysis = *update.Analysis
		}
		if update.Decision != nil {
			next.Decision = *update.Decision
		}
		if err := s.cfg.Update(&next); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if s.engine != nil {
			s.engine.UpdateConfig(&next)
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		s.alerts.Clear()
		s.sessions.Clear()
	case "alerts":
		s.alerts.Clear()
	case "sessions":
		s.sessions.Clear()
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine != nil {
		s.engine.Reset()
	}
	s.alerts.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
