package analyzer

import (
	"math"

	"biogate/internal/config"
	"biogate/internal/model"
)

// Anomaly tags produced by the analyzer.
const (
	TagUnusualTyping       = "unusual_typing_rhythm"
	TagUnusualPointerSpeed = "unusual_mouse_speed"
	TagUnusualTimeOfAccess = "unusual_time_of_access"
)

// Analyze scores a session's accumulated telemetry against the user's
// baseline. It is pure: no store access, no side effects, deterministic for
// a given (session, profile, hour) triple. Each signal contributes a bounded
// amount only when it has enough samples; signals below their sample floor
// are skipped, not flagged. The summed score is clamped to [0,1].
func Analyze(s model.Session, p model.Profile, hour int, cfg config.AnalysisConfig) model.Assessment {
	risk := 0.0
	anomalies := make([]string, 0, 3)

	if d, ok := typingDeviation(s.Keystrokes, p.Typing, cfg.MinKeystrokes); ok && d > cfg.TypingDeviation {
		risk += cfg.TypingWeight
		anomalies = append(anomalies, TagUnusualTyping)
	}

	if d, ok := pointerDeviation(s.Pointer, p.Pointer, cfg.MinPointerEvents); ok && d > cfg.PointerDeviation {
		risk += cfg.PointerWeight
		anomalies = append(anomalies, TagUnusualPointerSpeed)
	}

	// Off-hours access only counts against well-established baselines; a
	// low-confidence profile is not yet trusted to know the user's hours.
	if hour >= 0 && hour < 24 {
		if p.Navigation.TimeOfDayUsage[hour] < cfg.OffHoursUsageFloor && p.Confidence > cfg.OffHoursConfidence {
			risk += cfg.OffHoursWeight
			anomalies = append(anomalies, TagUnusualTimeOfAccess)
		}
	}

	// Every remote session carries residual suspicion regardless of signals.
	risk += cfg.BaseRisk

	if risk > 1.0 {
		risk = 1.0
	}
	if risk < 0 {
		risk = 0
	}
	return model.Assessment{RiskScore: risk, Anomalies: anomalies}
}

// typingDeviation compares the mean flight time of the buffered keystrokes
// against the baseline keystroke interval. ok is false below the sample
// floor. The first keystroke of a session has flight time 0 by construction
// and is averaged in as-is.
func typingDeviation(events []model.KeystrokeEvent, baseline model.TypingBaseline, minSamples int) (float64, bool) {
	if len(events) < minSamples {
		return 0, false
	}
	if baseline.AvgKeystrokeInterval == 0 {
		return 0, false
	}
	var sum float64
	for _, k := range events {
		sum += float64(k.FlightTime)
	}
	mean := sum / float64(len(events))
	return math.Abs(mean-baseline.AvgKeystrokeInterval) / baseline.AvgKeystrokeInterval, true
}

// pointerDeviation averages instantaneous speed over consecutive move-event
// pairs and compares it with the baseline speed. Requires minSamples pointer
// events overall and at least two moves among them.
func pointerDeviation(events []model.PointerEvent, baseline model.PointerBaseline, minSamples int) (float64, bool) {
	if len(events) < minSamples {
		return 0, false
	}
	if baseline.AvgSpeed == 0 {
		return 0, false
	}
	moves := make([]model.PointerEvent, 0, len(events))
	for _, ev := range events {
		if ev.Kind == model.PointerMove {
			moves = append(moves, ev)
		}
	}
	if len(moves) < 2 {
		return 0, false
	}
	var total float64
	pairs := 0
	for i := 1; i < len(moves); i++ {
		dt := float64(moves[i].Timestamp - moves[i-1].Timestamp)
		if dt <= 0 {
			// Coincident or out-of-order timestamps carry no usable speed.
			continue
		}
		dx := moves[i].X - moves[i-1].X
		dy := moves[i].Y - moves[i-1].Y
		total += math.Sqrt(dx*dx+dy*dy) / dt
		pairs++
	}
	if pairs == 0 {
		return 0, false
	}
	avgSpeed := total / float64(pairs)
	return math.Abs(avgSpeed-baseline.AvgSpeed) / baseline.AvgSpeed, true
}
