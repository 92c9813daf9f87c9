package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"biogate/internal/config"
	"biogate/internal/ledger"
	"biogate/internal/model"
)

// TransferGate is the slice of the engine the transfer endpoint needs.
type TransferGate interface {
	SubmitTransfer(ctx context.Context, userID string, req model.TransferRequest) (model.Transaction, error)
}

type RESTServer struct {
	cfg    *config.Manager
	out    chan<- model.Envelope
	gate   TransferGate
	logger *slog.Logger
}

// StartREST exposes the telemetry batch endpoint and the synchronous
// transfer endpoint. Telemetry is fire-and-forget onto the ingest channel;
// transfers return the decision inline because the caller must learn the
// disposition.
func StartREST(ctx context.Context, cfg *config.Manager, out chan<- model.Envelope, gate TransferGate, logger *slog.Logger) *http.Server {
	current := cfg.Get().Ingest.REST
	if !current.Enabled {
		if logger != nil {
			logger.Info("rest ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("rest ingest enabled", "addr", current.Addr)
	}
	server := &RESTServer{cfg: cfg, out: out, gate: gate, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/telemetry", server.handleTelemetry)
	mux.HandleFunc("/v1/transfers", server.handleTransfer)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
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
				logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *RESTServer) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 2<<20))
	if err != nil || len(body) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	trim := bytesTrim(body)
	if len(trim) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	accepted := 0
	failed := 0
	if trim[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trim, &raws); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, raw := range raws {
			if s.processEnvelope(r.Context(), raw) {
				accepted++
			} else {
				failed++
			}
		}
	} else {
		if s.processEnvelope(r.Context(), trim) {
			accepted++
		} else {
			failed++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accepted": accepted,
		"failed":   failed,
	})
}

func (s *RESTServer) processEnvelope(ctx context.Context, raw []byte) bool {
	env, err := ParseEnvelope(raw)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("rest envelope rejected", "err", err)
		}
		return false
	}
	env.Source = "rest"
	return SendNonBlocking(ctx, s.out, env, s.logger)
}

type transferRequest struct {
	UserID string `json:"user_id"`
	model.TransferRequest
}

func (s *RESTServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.gate == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req transferRequest
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	tx, err := s.gate.SubmitTransfer(r.Context(), req.UserID, req.TransferRequest)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case errors.Is(err, ledger.ErrAccessDenied):
			w.WriteHeader(http.StatusForbidden)
		case errors.Is(err, ledger.ErrAccountNotFound):
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"transaction_id": tx.ID,
		"status":         tx.Status,
		"risk_score":     tx.RiskScore,
		"fraud_flags":    tx.FraudFlags,
	})
}

func bytesTrim(b []byte) []byte {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == '\n' || b[start] == '\r' || b[start] == '\t') {
		start++
	}
	end := len(b)
	for end > start && (b[end-1] == ' ' || b[end-1] == '\n' || b[end-1] == '\r' || b[end-1] == '\t') {
		end--
	}
	return b[start:end]
}
