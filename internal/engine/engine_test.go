package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"biogate/internal/alerts"
	"biogate/internal/config"
	"biogate/internal/ledger"
	"biogate/internal/model"
	"biogate/internal/profile"
	"biogate/internal/session"
)

type testEnv struct {
	eng      *Engine
	alerts   *alerts.Store
	sessions *session.Store
	profiles *profile.Store
	ledger   *ledger.Ledger
}

func newTestEnv() *testEnv {
	cfg := config.DefaultConfig()
	alertsStore := alerts.NewStore(100)
	sessions := session.NewStore(100)
	profiles := profile.NewStore()
	ldg := ledger.New()
	emitter := alerts.NewEmitter(alertsStore, nil, nil)
	return &testEnv{
		eng:      NewEngine(cfg, nil, profiles, sessions, ldg, emitter, nil, nil),
		alerts:   alertsStore,
		sessions: sessions,
		profiles: profiles,
		ledger:   ldg,
	}
}

func (te *testEnv) addAccount(userID string) model.Account {
	return te.ledger.AddAccount(model.Account{UserID: userID, Number: "CHK0000000001", Type: "checking", Balance: 5000, Active: true})
}

func testDevice() model.DeviceFingerprint {
	return model.DeviceFingerprint{
		ScreenResolution: "1920x1080",
		Timezone:         "Europe/Berlin",
		Language:         "en-US",
		UserAgent:        "test-agent",
	}
}

func keystrokes(n int, flight int64) []model.KeystrokeEvent {
	out := make([]model.KeystrokeEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.KeystrokeEvent{Key: "a", Timestamp: int64(i) * 200, DwellTime: 90, FlightTime: flight})
	}
	return out
}

func TestTransferUnknownSessionUsesDefaultRisk(t *testing.T) {
	te := newTestEnv()
	acct := te.addAccount("user01")
	tx, err := te.eng.SubmitTransfer(context.Background(), "user01", model.TransferRequest{
		AccountID: acct.ID,
		Amount:    100,
		Type:      "transfer",
		SessionID: "never-started",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.RiskScore != 0.5 {
		t.Fatalf("expected default risk 0.5, got %v", tx.RiskScore)
	}
	if tx.Status != model.TxApproved {
		t.Fatalf("expected approved at default risk, got %s", tx.Status)
	}
	if got := te.alerts.List(0); len(got) != 0 {
		t.Fatalf("approved transfer must not alert, got %d", len(got))
	}
}

func TestTransferUnanalyzedSessionUsesDefaultRisk(t *testing.T) {
	te := newTestEnv()
	acct := te.addAccount("user01")
	if err := te.eng.StartSession(context.Background(), "user01", "sess01", testDevice()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	tx, err := te.eng.SubmitTransfer(context.Background(), "user01", model.TransferRequest{
		AccountID: acct.ID,
		Amount:    100,
		SessionID: "sess01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.RiskScore != 0.5 {
		t.Fatalf("session without analysis must fall back to 0.5, got %v", tx.RiskScore)
	}
}

func TestBlockedTransferEmitsCriticalAlert(t *testing.T) {
	te := newTestEnv()
	acct := te.addAccount("user01")
	te.sessions.Start("user01", "sess01", time.Now().UTC())
	te.sessions.SetRisk("user01", "sess01", model.Assessment{RiskScore: 0.85})

	tx, err := te.eng.SubmitTransfer(context.Background(), "user01", model.TransferRequest{
		AccountID: acct.ID,
		Amount:    100,
		SessionID: "sess01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != model.TxBlocked {
		t.Fatalf("expected blocked, got %s", tx.Status)
	}
	got := te.alerts.List(0)
	if len(got) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(got))
	}
	a := got[0]
	if a.Type != model.AlertHighRiskTransaction || a.Severity != model.SeverityCritical {
		t.Fatalf("unexpected alert %s/%s", a.Type, a.Severity)
	}
	if a.TransactionID != tx.ID {
		t.Fatalf("alert must reference the transaction")
	}
}

func TestFlaggedTransferEmitsMediumAlert(t *testing.T) {
	te := newTestEnv()
	acct := te.addAccount("user01")
	te.sessions.Start("user01", "sess01", time.Now().UTC())
	te.sessions.SetRisk("user01", "sess01", model.Assessment{RiskScore: 0.65})

	tx, err := te.eng.SubmitTransfer(context.Background(), "user01", model.TransferRequest{
		AccountID: acct.ID,
		Amount:    100,
		SessionID: "sess01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != model.TxFlagged {
		t.Fatalf("expected flagged, got %s", tx.Status)
	}
	got := te.alerts.List(0)
	if len(got) != 1 || got[0].Severity != model.SeverityMedium {
		t.Fatalf("expected one medium alert, got %v", got)
	}
}

func TestRepeatedTriggersAlertEveryTime(t *testing.T) {
	te := newTestEnv()
	acct := te.addAccount("user01")
	te.sessions.Start("user01", "sess01", time.Now().UTC())
	te.sessions.SetRisk("user01", "sess01", model.Assessment{RiskScore: 0.9})

	for i := 0; i < 3; i++ {
		_, err := te.eng.SubmitTransfer(context.Background(), "user01", model.TransferRequest{
			AccountID: acct.ID,
			Amount:    100,
			SessionID: "sess01",
		})
		if err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}
	if got := te.alerts.List(0); len(got) != 3 {
		t.Fatalf("expected three alerts without dedup, got %d", len(got))
	}
}

func TestTransferDeniedForForeignAccount(t *testing.T) {
	te := newTestEnv()
	acct := te.addAccount("owner")
	_, err := te.eng.SubmitTransfer(context.Background(), "intruder", model.TransferRequest{
		AccountID: acct.ID,
		Amount:    100,
		SessionID: "sess01",
	})
	if !errors.Is(err, ledger.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if got := te.ledger.RecentByUser("intruder", 10); len(got) != 0 {
		t.Fatalf("denied transfer must not be recorded")
	}
	if got := te.alerts.List(0); len(got) != 0 {
		t.Fatalf("denied transfer must not alert")
	}
}

func TestTransferUnknownAccount(t *testing.T) {
	te := newTestEnv()
	_, err := te.eng.SubmitTransfer(context.Background(), "user01", model.TransferRequest{
		AccountID: "missing",
		Amount:    100,
		SessionID: "sess01",
	})
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestStartSessionCreatesProfileOnce(t *testing.T) {
	te := newTestEnv()
	ctx := context.Background()
	if err := te.eng.StartSession(ctx, "user01", "sess01", testDevice()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	p1, ok := te.profiles.Get("user01")
	if !ok {
		t.Fatalf("expected profile after first session start")
	}
	if err := te.eng.StartSession(ctx, "user01", "sess02", testDevice()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	p2, _ := te.profiles.Get("user01")
	if !p1.UpdatedAt.Equal(p2.UpdatedAt) {
		t.Fatalf("repeated session start must not reset the profile")
	}
	if got := te.alerts.List(0); len(got) != 0 {
		t.Fatalf("same device must not raise a device-change alert")
	}
}

func TestDeviceChangeRaisesAlert(t *testing.T) {
	te := newTestEnv()
	ctx := context.Background()
	if err := te.eng.StartSession(ctx, "user01", "sess01", testDevice()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	changed := testDevice()
	changed.Timezone = "America/New_York"
	changed.UserAgent = "other-agent"
	if err := te.eng.StartSession(ctx, "user01", "sess02", changed); err != nil {
		t.Fatalf("second start: %v", err)
	}
	got := te.alerts.List(0)
	if len(got) != 1 {
		t.Fatalf("expected one device-change alert, got %d", len(got))
	}
	a := got[0]
	if a.Type != model.AlertDeviceChange || a.Severity != model.SeverityMedium {
		t.Fatalf("unexpected alert %s/%s", a.Type, a.Severity)
	}
	if len(a.RiskFactors) != 2 {
		t.Fatalf("expected two changed attributes, got %v", a.RiskFactors)
	}
}

func TestAnalyzeUnknownSessionIsNoop(t *testing.T) {
	te := newTestEnv()
	if _, ok := te.eng.AnalyzeSession(context.Background(), "user01", "missing"); ok {
		t.Fatalf("analysis of a missing session must report ok=false")
	}
	if got := te.alerts.List(0); len(got) != 0 {
		t.Fatalf("missing session must not alert")
	}
}

func TestAnalyzeSessionSetsRisk(t *testing.T) {
	te := newTestEnv()
	ctx := context.Background()
	if err := te.eng.StartSession(ctx, "user01", "sess01", testDevice()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := te.eng.RecordKeystrokes(ctx, "user01", "sess01", keystrokes(12, 450)); err != nil {
		t.Fatalf("record keystrokes: %v", err)
	}
	a, ok := te.eng.AnalyzeSession(ctx, "user01", "sess01")
	if !ok {
		t.Fatalf("expected analysis to run")
	}
	if a.RiskScore != 0.25 {
		t.Fatalf("expected 0.25 for tripled flight time, got %v", a.RiskScore)
	}
	score, known := te.sessions.RiskScore("user01", "sess01")
	if !known || score != a.RiskScore {
		t.Fatalf("risk score not persisted on the session")
	}
}

func TestRecordKeystrokesUnknownSession(t *testing.T) {
	te := newTestEnv()
	err := te.eng.RecordKeystrokes(context.Background(), "user01", "missing", keystrokes(3, 150))
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestProcessEnvelopeDispatch(t *testing.T) {
	te := newTestEnv()
	ctx := context.Background()
	device := testDevice()
	if err := te.eng.ProcessEnvelope(ctx, model.Envelope{
		Kind: model.EnvelopeSessionStart, UserID: "user01", SessionID: "sess01", Device: &device,
	}); err != nil {
		t.Fatalf("session_start: %v", err)
	}
	if err := te.eng.ProcessEnvelope(ctx, model.Envelope{
		Kind: model.EnvelopeKeystrokes, UserID: "user01", SessionID: "sess01", Keystrokes: keystrokes(3, 150),
	}); err != nil {
		t.Fatalf("keystrokes: %v", err)
	}
	if err := te.eng.ProcessEnvelope(ctx, model.Envelope{
		Kind: model.EnvelopeSessionEnd, UserID: "user01", SessionID: "sess01",
	}); err != nil {
		t.Fatalf("session_end: %v", err)
	}
	snap, ok := te.sessions.Snapshot("user01", "sess01")
	if !ok || len(snap.Keystrokes) != 3 || snap.EndedAt == nil {
		t.Fatalf("envelope dispatch did not update the session")
	}
	if err := te.eng.ProcessEnvelope(ctx, model.Envelope{Kind: "bogus", UserID: "u", SessionID: "s"}); err == nil {
		t.Fatalf("expected error for unknown envelope kind")
	}
}

func TestResetDropsSessions(t *testing.T) {
	te := newTestEnv()
	te.sessions.Start("user01", "sess01", time.Now().UTC())
	te.eng.Reset()
	if te.sessions.Len() != 0 {
		t.Fatalf("reset must clear sessions")
	}
}
