package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"biogate/internal/model"
)

// Sink receives every emitted alert for durable persistence. It matches the
// storage layer's alert method so the emitter does not import storage.
type Sink interface {
	SaveAlert(ctx context.Context, alert model.Alert) error
}

// Emitter builds and records fraud alerts. Each qualifying event produces
// its own alert record; there is no deduplication across repeated triggers.
type Emitter struct {
	store  *Store
	sink   Sink
	logger *slog.Logger
}

func NewEmitter(store *Store, sink Sink, logger *slog.Logger) *Emitter {
	return &Emitter{store: store, sink: sink, logger: logger}
}

// TransactionAlert emits one alert for a non-approved transaction: critical
// when blocked, medium when flagged. Approved transactions emit nothing.
func (e *Emitter) TransactionAlert(ctx context.Context, tx model.Transaction) *model.Alert {
	if tx.Status == model.TxApproved {
		return nil
	}
	severity := model.SeverityMedium
	if tx.Status == model.TxBlocked {
		severity = model.SeverityCritical
	}
	alert := model.Alert{
		ID:            uuid.NewString(),
		UserID:        tx.UserID,
		SessionID:     tx.SessionID,
		TransactionID: tx.ID,
		Type:          model.AlertHighRiskTransaction,
		Severity:      severity,
		Description:   fmt.Sprintf("Transaction %s due to behavioral risk factors", tx.Status),
		RiskFactors:   append([]string(nil), tx.FraudFlags...),
		Status:        model.AlertOpen,
		Timestamp:     time.Now().UTC(),
	}
	e.record(ctx, alert)
	return &alert
}

// SessionAlert emits one alert when an analysis run concludes the session
// risk exceeds threshold, independent of any transaction.
func (e *Emitter) SessionAlert(ctx context.Context, userID, sessionID string, a model.Assessment, threshold, highSeverity float64) *model.Alert {
	if a.RiskScore <= threshold {
		return nil
	}
	severity := model.SeverityMedium
	if a.RiskScore > highSeverity {
		severity = model.SeverityHigh
	}
	alert := model.Alert{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionID:   sessionID,
		Type:        model.AlertBehavioralAnomaly,
		Severity:    severity,
		Description: "Behavioral anomalies detected: " + strings.Join(a.Anomalies, ", "),
		RiskFactors: append([]string(nil), a.Anomalies...),
		Status:      model.AlertOpen,
		Timestamp:   time.Now().UTC(),
	}
	e.record(ctx, alert)
	return &alert
}

// DeviceChangeAlert emits one alert when a session starts on a device whose
// fingerprint no longer matches the one captured at profile creation.
func (e *Emitter) DeviceChangeAlert(ctx context.Context, userID, sessionID string, changed []string) *model.Alert {
	if len(changed) == 0 {
		return nil
	}
	alert := model.Alert{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionID:   sessionID,
		Type:        model.AlertDeviceChange,
		Severity:    model.SeverityMedium,
		Description: "Device fingerprint changed: " + strings.Join(changed, ", "),
		RiskFactors: append([]string(nil), changed...),
		Status:      model.AlertOpen,
		Timestamp:   time.Now().UTC(),
	}
	e.record(ctx, alert)
	return &alert
}

func (e *Emitter) record(ctx context.Context, alert model.Alert) {
	if e.store != nil {
		e.store.Add(alert)
	}
	if e.logger != nil {
		e.logger.Warn("fraud alert",
			"alert_type", alert.Type,
			"severity", alert.Severity,
			"user_id", alert.UserID,
			"session_id", alert.SessionID,
			"risk_factors", alert.RiskFactors,
		)
	}
	if e.sink != nil {
		if err := e.sink.SaveAlert(ctx, alert); err != nil && e.logger != nil {
			e.logger.Warn("alert persist failed", "err", err)
		}
	}
}
