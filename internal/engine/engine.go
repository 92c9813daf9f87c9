package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"biogate/internal/alerts"
	"biogate/internal/analyzer"
	"biogate/internal/config"
	"biogate/internal/decision"
	"biogate/internal/ledger"
	"biogate/internal/model"
	"biogate/internal/profile"
	"biogate/internal/session"
	"biogate/internal/storage"
)

// Engine wires telemetry intake, asynchronous risk analysis, and transfer
// gating over the shared session state. Telemetry appends return as soon as
// the session record is updated; analysis runs on a separate worker pool.
type Engine struct {
	logger   *slog.Logger
	cfg      atomic.Value
	profiles *profile.Store
	sessions *session.Store
	ledger   *ledger.Ledger
	emitter  *alerts.Emitter
	store    storage.Store
	updater  profile.Updater

	jobs   chan analysisJob
	mu     sync.Mutex
	queued map[string]struct{}
}

type analysisJob struct {
	userID    string
	sessionID string
}

func NewEngine(cfg *config.Config, logger *slog.Logger, profiles *profile.Store, sessions *session.Store, ldg *ledger.Ledger, emitter *alerts.Emitter, store storage.Store, updater profile.Updater) *Engine {
	if updater == nil {
		updater = profile.NoopUpdater{}
	}
	e := &Engine{
		logger:   logger,
		profiles: profiles,
		sessions: sessions,
		ledger:   ldg,
		emitter:  emitter,
		store:    store,
		updater:  updater,
		jobs:     make(chan analysisJob, cfg.Workers.QueueSize),
		queued:   make(map[string]struct{}),
	}
	e.cfg.Store(cfg)
	return e
}

func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.cfg.Store(cfg)
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

// Start launches the analysis workers and the envelope consumer.
func (e *Engine) Start(ctx context.Context, in <-chan model.Envelope) {
	for i := 0; i < e.config().Workers.Count; i++ {
		go e.runWorker(ctx)
	}
	if in == nil {
		return
	}
	go func() {
		for {
			select {
			case env := <-in:
				if err := e.ProcessEnvelope(ctx, env); err != nil && e.logger != nil {
					e.logger.Warn("envelope rejected",
						"kind", env.Kind,
						"user_id", env.UserID,
						"session_id", env.SessionID,
						"source", env.Source,
						"err", err,
					)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ProcessEnvelope dispatches one telemetry frame to the matching operation.
func (e *Engine) ProcessEnvelope(ctx context.Context, env model.Envelope) error {
	switch env.Kind {
	case model.EnvelopeSessionStart:
		var fp model.DeviceFingerprint
		if env.Device != nil {
			fp = *env.Device
		}
		return e.StartSession(ctx, env.UserID, env.SessionID, fp)
	case model.EnvelopeSessionEnd:
		return e.EndSession(env.UserID, env.SessionID)
	case model.EnvelopeKeystrokes:
		return e.RecordKeystrokes(ctx, env.UserID, env.SessionID, env.Keystrokes)
	case model.EnvelopePointer:
		return e.RecordPointer(env.UserID, env.SessionID, env.Pointer)
	case model.EnvelopeNavigation:
		return e.RecordNavigation(env.UserID, env.SessionID, env.Navigation)
	default:
		return errors.New("unknown envelope kind")
	}
}

// StartSession registers a session and ensures the user has a baseline
// profile, creating the default one on first contact. When a profile already
// exists, the observed device is compared against the fingerprint captured
// at profile creation and a mismatch raises a device-change alert. The
// stored fingerprint itself is left untouched.
func (e *Engine) StartSession(ctx context.Context, userID, sessionID string, fp model.DeviceFingerprint) error {
	if userID == "" || sessionID == "" {
		return errors.New("user id and session id required")
	}
	now := time.Now().UTC()
	e.sessions.Start(userID, sessionID, now)
	prof, created := e.profiles.Ensure(userID, fp, now)
	if created {
		if e.logger != nil {
			e.logger.Info("baseline profile created", "user_id", userID)
		}
		return nil
	}
	if changed := profile.DiffFingerprint(prof.Device, fp); len(changed) > 0 {
		e.emitter.DeviceChangeAlert(ctx, userID, sessionID, changed)
	}
	return nil
}

func (e *Engine) EndSession(userID, sessionID string) error {
	if !e.sessions.End(userID, sessionID, time.Now().UTC()) {
		return session.ErrNotFound
	}
	return nil
}

// RecordKeystrokes appends a keystroke batch and, once the buffered count
// crosses the trigger threshold, schedules a risk recomputation. The append
// itself never waits for analysis.
func (e *Engine) RecordKeystrokes(ctx context.Context, userID, sessionID string, events []model.KeystrokeEvent) error {
	count, err := e.sessions.AppendKeystrokes(userID, sessionID, events)
	if err != nil {
		return err
	}
	if count > e.config().Analysis.TriggerKeystrokes {
		e.scheduleAnalysis(userID, sessionID)
	}
	return nil
}

func (e *Engine) RecordPointer(userID, sessionID string, events []model.PointerEvent) error {
	return e.sessions.AppendPointer(userID, sessionID, events)
}

func (e *Engine) RecordNavigation(userID, sessionID string, events []model.NavigationEvent) error {
	return e.sessions.AppendNavigation(userID, sessionID, events)
}

// SubmitTransfer evaluates a transfer request against the session's last
// known risk score and records the resulting transaction. The decision is
// fixed at creation; a concurrent recomputation does not reopen it.
func (e *Engine) SubmitTransfer(ctx context.Context, userID string, req model.TransferRequest) (model.Transaction, error) {
	if userID == "" {
		return model.Transaction{}, errors.New("user id required")
	}
	if req.AccountID == "" || req.SessionID == "" {
		return model.Transaction{}, errors.New("account id and session id required")
	}
	account, err := e.ledger.Authorize(req.AccountID, userID)
	if err != nil {
		return model.Transaction{}, err
	}

	cfg := e.config()
	risk, known := e.sessions.RiskScore(userID, req.SessionID)
	if !known {
		risk = decision.FallbackRisk(cfg.Decision)
	}
	status, flags := decision.Evaluate(risk, req.Amount, cfg.Decision)

	tx := model.Transaction{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		UserID:      userID,
		Amount:      req.Amount,
		Type:        req.Type,
		Recipient:   req.Recipient,
		Description: req.Description,
		Timestamp:   time.Now().UTC(),
		SessionID:   req.SessionID,
		RiskScore:   risk,
		Status:      status,
		FraudFlags:  flags,
	}
	e.ledger.Append(tx)
	if e.store != nil {
		if err := e.store.SaveTransaction(ctx, tx); err != nil && e.logger != nil {
			e.logger.Warn("transaction persist failed", "transaction_id", tx.ID, "err", err)
		}
	}
	e.emitter.TransactionAlert(ctx, tx)
	if e.logger != nil {
		e.logger.Info("transfer evaluated",
			"transaction_id", tx.ID,
			"user_id", userID,
			"session_id", req.SessionID,
			"status", status,
			"risk_score", risk,
			"fraud_flags", flags,
		)
	}
	return tx, nil
}

// AnalyzeSession runs one synchronous analysis pass. Missing session or
// profile is not a fault: there is nothing to analyze yet, so it reports
// ok=false without writing anything.
func (e *Engine) AnalyzeSession(ctx context.Context, userID, sessionID string) (model.Assessment, bool) {
	snap, ok := e.sessions.Snapshot(userID, sessionID)
	if !ok {
		return model.Assessment{}, false
	}
	prof, ok := e.profiles.Get(userID)
	if !ok {
		return model.Assessment{}, false
	}
	cfg := e.config()
	assessment := analyzer.Analyze(snap, prof, time.Now().Hour(), cfg.Analysis)
	e.sessions.SetRisk(userID, sessionID, assessment)
	if e.store != nil {
		if err := e.store.SaveSessionRisk(ctx, userID, sessionID, assessment); err != nil && e.logger != nil {
			e.logger.Warn("session risk persist failed", "session_id", sessionID, "err", err)
		}
	}
	e.emitter.SessionAlert(ctx, userID, sessionID, assessment, cfg.Analysis.AlertThreshold, cfg.Analysis.AlertHighSeverity)
	if err := e.updater.UpdateBaseline(ctx, prof, snap); err != nil && e.logger != nil {
		e.logger.Warn("baseline update hook failed", "user_id", userID, "err", err)
	}
	if e.logger != nil {
		e.logger.Debug("session analyzed",
			"user_id", userID,
			"session_id", sessionID,
			"risk_score", assessment.RiskScore,
			"anomalies", assessment.Anomalies,
		)
	}
	return assessment, true
}

// scheduleAnalysis enqueues a recompute job for the session, fire-and-forget.
// At most one job per session key sits in the queue at a time; a full queue
// drops the job with a warning and a later append re-triggers it.
func (e *Engine) scheduleAnalysis(userID, sessionID string) {
	key := userID + "|" + sessionID
	e.mu.Lock()
	if _, pending := e.queued[key]; pending {
		e.mu.Unlock()
		return
	}
	e.queued[key] = struct{}{}
	e.mu.Unlock()

	select {
	case e.jobs <- analysisJob{userID: userID, sessionID: sessionID}:
	default:
		e.mu.Lock()
		delete(e.queued, key)
		e.mu.Unlock()
		if e.logger != nil {
			e.logger.Warn("analysis queue full, dropping job", "user_id", userID, "session_id", sessionID)
		}
	}
}

func (e *Engine) runWorker(ctx context.Context) {
	for {
		select {
		case job := <-e.jobs:
			e.mu.Lock()
			delete(e.queued, job.userID+"|"+job.sessionID)
			e.mu.Unlock()
			e.AnalyzeSession(ctx, job.userID, job.sessionID)
		case <-ctx.Done():
			return
		}
	}
}

// Reset drops all in-memory session state and pending analysis jobs.
func (e *Engine) Reset() {
	e.sessions.Clear()
	e.mu.Lock()
	e.queued = make(map[string]struct{})
	e.mu.Unlock()
	for {
		select {
		case <-e.jobs:
		default:
			return
		}
	}
}
