package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"biogate/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:biogate.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			transaction_id TEXT,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL,
			risk_factors_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			account_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			amount REAL NOT NULL,
			tx_type TEXT NOT NULL,
			recipient TEXT,
			description TEXT NOT NULL,
			risk_score REAL NOT NULL,
			status TEXT NOT NULL,
			fraud_flags_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_session ON transactions(session_id)`,
		`CREATE TABLE IF NOT EXISTS session_risk (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			risk_score REAL NOT NULL,
			anomalies_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_risk_key ON session_risk(user_id, session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, ts, user_id, session_id, transaction_id, alert_type, severity, description, status, risk_factors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.Timestamp.UTC(),
		alert.UserID,
		alert.SessionID,
		alert.TransactionID,
		string(alert.Type),
		string(alert.Severity),
		alert.Description,
		string(alert.Status),
		encodeJSON(alert.RiskFactors),
	)
	return err
}

func (s *sqliteStore) SaveTransaction(ctx context.Context, tx model.Transaction) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, ts, account_id, user_id, session_id, amount, tx_type, recipient, description, risk_score, status, fraud_flags_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.Timestamp.UTC(),
		tx.AccountID,
		tx.UserID,
		tx.SessionID,
		tx.Amount,
		tx.Type,
		tx.Recipient,
		tx.Description,
		tx.RiskScore,
		string(tx.Status),
		encodeJSON(tx.FraudFlags),
	)
	return err
}

func (s *sqliteStore) SaveSessionRisk(ctx context.Context, userID, sessionID string, a model.Assessment) error {
	if s.db == nil || userID == "" || sessionID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_risk (ts, user_id, session_id, risk_score, anomalies_json)
		VALUES (?, ?, ?, ?, ?)`,
		nowUTC(),
		userID,
		sessionID,
		a.RiskScore,
		encodeJSON(a.Anomalies),
	)
	return err
}
