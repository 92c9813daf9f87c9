package session

import (
	"errors"
	"sync"
	"time"

	"biogate/internal/model"
)

var ErrNotFound = errors.New("session not found")

// Store keeps one record per (user, session id) pair. Every mutation runs
// under the store lock as a whole-record read-modify-write, so concurrent
// telemetry appends and risk updates serialize instead of losing writes.
type Store struct {
	mu        sync.RWMutex
	byKey     map[string]*model.Session
	updatedAt map[string]time.Time
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		byKey:     make(map[string]*model.Session),
		updatedAt: make(map[string]time.Time),
		limit:     limit,
	}
}

// key uniqueness is per (user, identifier) pair, not global.
func key(userID, sessionID string) string {
	return userID + "|" + sessionID
}

// Start registers a new session. Starting an already-known session is a
// no-op: the accumulated telemetry is kept.
func (s *Store) Start(userID, sessionID string, now time.Time) {
	if userID == "" || sessionID == "" {
		return
	}
	k := key(userID, sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[k]; ok {
		return
	}
	s.byKey[k] = &model.Session{
		UserID:     userID,
		SessionID:  sessionID,
		StartedAt:  now,
		Keystrokes: []model.KeystrokeEvent{},
		Pointer:    []model.PointerEvent{},
		Navigation: []model.NavigationEvent{},
		Anomalies:  []string{},
	}
	s.updatedAt[k] = now
	if len(s.byKey) > s.limit {
		s.evictOldest()
	}
}

// AppendKeystrokes adds a telemetry batch and returns the total buffered
// keystroke count, which the caller uses to decide whether to schedule a
// risk recomputation.
func (s *Store) AppendKeystrokes(userID, sessionID string, events []model.KeystrokeEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key(userID, sessionID)]
	if !ok {
		return 0, ErrNotFound
	}
	rec.Keystrokes = append(rec.Keystrokes, events...)
	s.touch(userID, sessionID)
	return len(rec.Keystrokes), nil
}

func (s *Store) AppendPointer(userID, sessionID string, events []model.PointerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key(userID, sessionID)]
	if !ok {
		return ErrNotFound
	}
	rec.Pointer = append(rec.Pointer, events...)
	s.touch(userID, sessionID)
	return nil
}

func (s *Store) AppendNavigation(userID, sessionID string, events []model.NavigationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key(userID, sessionID)]
	if !ok {
		return ErrNotFound
	}
	rec.Navigation = append(rec.Navigation, events...)
	s.touch(userID, sessionID)
	return nil
}

// SetRisk persists an analyzer result onto the session.
func (s *Store) SetRisk(userID, sessionID string, a model.Assessment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key(userID, sessionID)]
	if !ok {
		return false
	}
	score := a.RiskScore
	rec.RiskScore = &score
	rec.Anomalies = append([]string(nil), a.Anomalies...)
	s.touch(userID, sessionID)
	return true
}

// RiskScore returns the last computed score. ok is false when the session is
// unknown or has never been analyzed.
func (s *Store) RiskScore(userID, sessionID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byKey[key(userID, sessionID)]
	if !ok || rec.RiskScore == nil {
		return 0, false
	}
	return *rec.RiskScore, true
}

func (s *Store) End(userID, sessionID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key(userID, sessionID)]
	if !ok {
		return false
	}
	if rec.EndedAt == nil {
		t := now
		rec.EndedAt = &t
	}
	s.touch(userID, sessionID)
	return true
}

// Snapshot returns a deep-enough copy for the analyzer to work on without
// holding the store lock.
func (s *Store) Snapshot(userID, sessionID string) (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byKey[key(userID, sessionID)]
	if !ok {
		return model.Session{}, false
	}
	out := *rec
	out.Keystrokes = append([]model.KeystrokeEvent(nil), rec.Keystrokes...)
	out.Pointer = append([]model.PointerEvent(nil), rec.Pointer...)
	out.Navigation = append([]model.NavigationEvent(nil), rec.Navigation...)
	out.Anomalies = append([]string(nil), rec.Anomalies...)
	if rec.RiskScore != nil {
		score := *rec.RiskScore
		out.RiskScore = &score
	}
	if rec.EndedAt != nil {
		t := *rec.EndedAt
		out.EndedAt = &t
	}
	return out, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.byKey = make(map[string]*model.Session)
	s.updatedAt = make(map[string]time.Time)
	s.mu.Unlock()
}

func (s *Store) touch(userID, sessionID string) {
	s.updatedAt[key(userID, sessionID)] = time.Now().UTC()
}

func (s *Store) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, ts := range s.updatedAt {
		if oldestKey == "" || ts.Before(oldest) {
			oldestKey = k
			oldest = ts
		}
	}
	if oldestKey != "" {
		delete(s.byKey, oldestKey)
		delete(s.updatedAt, oldestKey)
	}
}
