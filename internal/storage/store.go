package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"biogate/internal/config"
	"biogate/internal/model"
)

// Store is the durable write-through behind the in-memory stores: alerts,
// transaction records, and session risk snapshots survive restarts; live
// telemetry buffers do not.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveAlert(ctx context.Context, alert model.Alert) error
	SaveTransaction(ctx context.Context, tx model.Transaction) error
	SaveSessionRisk(ctx context.Context, userID, sessionID string, a model.Assessment) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
