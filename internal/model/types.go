package model

import "time"

type TransactionStatus string

const (
	TxApproved TransactionStatus = "approved"
	TxFlagged  TransactionStatus = "flagged"
	TxBlocked  TransactionStatus = "blocked"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type AlertType string

const (
	AlertBehavioralAnomaly   AlertType = "behavioral_anomaly"
	AlertHighRiskTransaction AlertType = "high_risk_transaction"
	AlertDeviceChange        AlertType = "device_change"
)

type AlertStatus string

const (
	AlertOpen          AlertStatus = "open"
	AlertInvestigating AlertStatus = "investigating"
	AlertResolved      AlertStatus = "resolved"
	AlertFalsePositive AlertStatus = "false_positive"
)

type PointerKind string

const (
	PointerMove   PointerKind = "move"
	PointerClick  PointerKind = "click"
	PointerScroll PointerKind = "scroll"
)

// KeystrokeEvent timestamps and durations are epoch/interval milliseconds
// as reported by the capture surface.
type KeystrokeEvent struct {
	Key        string `json:"key"`
	Timestamp  int64  `json:"timestamp"`
	DwellTime  int64  `json:"dwell_time"`
	FlightTime int64  `json:"flight_time"`
}

type PointerEvent struct {
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Timestamp int64       `json:"timestamp"`
	Kind      PointerKind `json:"event_type"`
	Pressure  *float64    `json:"pressure,omitempty"`
}

type NavigationEvent struct {
	Page      string `json:"page"`
	Timestamp int64  `json:"timestamp"`
	Action    string `json:"action"`
}

type DeviceFingerprint struct {
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	UserAgent        string `json:"user_agent"`
}

type DigraphTiming struct {
	Keys     string  `json:"keys"`
	Interval float64 `json:"interval"`
}

type TypingBaseline struct {
	AvgKeystrokeInterval float64         `json:"avg_keystroke_interval"`
	AvgDwellTime         float64         `json:"avg_dwell_time"`
	KeystrokeVariance    float64         `json:"keystroke_variance"`
	CommonDigraphs       []DigraphTiming `json:"common_digraphs"`
}

type PointerBaseline struct {
	AvgSpeed        float64 `json:"avg_speed"`
	AvgAcceleration float64 `json:"avg_acceleration"`
	ClickPressure   float64 `json:"click_pressure"`
	MovementStyle   string  `json:"movement_style"`
}

type NavigationBaseline struct {
	CommonPaths        []string    `json:"common_paths"`
	AvgSessionDuration float64     `json:"avg_session_duration"`
	PreferredFeatures  []string    `json:"preferred_features"`
	TimeOfDayUsage     [24]float64 `json:"time_of_day_usage"`
}

// Profile is the per-user behavioral baseline live telemetry is compared
// against. At most one profile exists per user.
type Profile struct {
	UserID     string             `json:"user_id"`
	Typing     TypingBaseline     `json:"typing"`
	Pointer    PointerBaseline    `json:"pointer"`
	Navigation NavigationBaseline `json:"navigation"`
	Device     DeviceFingerprint  `json:"device"`
	Confidence float64            `json:"confidence"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Session accumulates telemetry for one (user, session id) pair. RiskScore
// is nil until the analyzer has run at least once.
type Session struct {
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    *time.Time        `json:"ended_at,omitempty"`
	Keystrokes []KeystrokeEvent  `json:"keystrokes"`
	Pointer    []PointerEvent    `json:"pointer"`
	Navigation []NavigationEvent `json:"navigation"`
	RiskScore  *float64          `json:"risk_score,omitempty"`
	Anomalies  []string          `json:"anomalies"`
}

// Assessment is the analyzer output for one session.
type Assessment struct {
	RiskScore float64  `json:"risk_score"`
	Anomalies []string `json:"anomalies"`
}

type TransferRequest struct {
	AccountID   string  `json:"account_id"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Recipient   string  `json:"recipient,omitempty"`
	Description string  `json:"description"`
	SessionID   string  `json:"session_id"`
}

// Transaction is immutable once created: risk score and status are fixed at
// submission time and never retroactively updated.
type Transaction struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"account_id"`
	UserID      string            `json:"user_id"`
	Amount      float64           `json:"amount"`
	Type        string            `json:"type"`
	Recipient   string            `json:"recipient,omitempty"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"timestamp"`
	SessionID   string            `json:"session_id"`
	RiskScore   float64           `json:"risk_score"`
	Status      TransactionStatus `json:"status"`
	FraudFlags  []string          `json:"fraud_flags"`
}

type Alert struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	SessionID         string      `json:"session_id"`
	TransactionID     string      `json:"transaction_id,omitempty"`
	Type              AlertType   `json:"alert_type"`
	Severity          Severity    `json:"severity"`
	Description       string      `json:"description"`
	RiskFactors       []string    `json:"risk_factors"`
	Status            AlertStatus `json:"status"`
	Timestamp         time.Time   `json:"timestamp"`
	InvestigatorNotes string      `json:"investigator_notes,omitempty"`
}

type Account struct {
	ID      string  `json:"id"`
	UserID  string  `json:"user_id"`
	Number  string  `json:"number"`
	Type    string  `json:"type"`
	Balance float64 `json:"balance"`
	Active  bool    `json:"active"`
}

type EnvelopeKind string

const (
	EnvelopeSessionStart EnvelopeKind = "session_start"
	EnvelopeSessionEnd   EnvelopeKind = "session_end"
	EnvelopeKeystrokes   EnvelopeKind = "keystrokes"
	EnvelopePointer      EnvelopeKind = "pointer"
	EnvelopeNavigation   EnvelopeKind = "navigation"
)

// Envelope is the transport frame for telemetry batches arriving from the
// capture surface, regardless of ingest source.
type Envelope struct {
	Kind       EnvelopeKind       `json:"kind"`
	UserID     string             `json:"user_id"`
	SessionID  string             `json:"session_id"`
	Device     *DeviceFingerprint `json:"device,omitempty"`
	Keystrokes []KeystrokeEvent   `json:"keystrokes,omitempty"`
	Pointer    []PointerEvent     `json:"pointer,omitempty"`
	Navigation []NavigationEvent  `json:"navigation,omitempty"`
	Source     string             `json:"-"`
}
