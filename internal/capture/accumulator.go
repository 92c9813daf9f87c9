package capture

import (
	"sync"

	"biogate/internal/model"
)

const (
	pointerBufferCap  = 50
	pointerBufferKeep = 25
)

// Accumulator buffers interaction telemetry for one capture session. It owns
// its buffers explicitly: callers feed raw key and pointer activity and
// drain batches with Flush. Dwell time is measured key-down to key-up;
// flight time is the gap since the previous key-up, zero for the first
// keystroke of the session.
type Accumulator struct {
	mu         sync.Mutex
	sessionID  string
	keystrokes []model.KeystrokeEvent
	pointer    []model.PointerEvent
	keyDownAt  map[string]int64
	lastKeyUp  int64
}

func NewAccumulator(sessionID string) *Accumulator {
	return &Accumulator{
		sessionID: sessionID,
		keyDownAt: make(map[string]int64),
	}
}

func (a *Accumulator) SessionID() string {
	return a.sessionID
}

func (a *Accumulator) KeyDown(key string, ts int64) {
	a.mu.Lock()
	a.keyDownAt[key] = ts
	a.mu.Unlock()
}

// KeyUp completes a keystroke. A key-up without a matching key-down is
// dropped.
func (a *Accumulator) KeyUp(key string, ts int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	downAt, ok := a.keyDownAt[key]
	if !ok {
		return
	}
	delete(a.keyDownAt, key)
	var flight int64
	if a.lastKeyUp > 0 {
		flight = downAt - a.lastKeyUp
	}
	a.keystrokes = append(a.keystrokes, model.KeystrokeEvent{
		Key:        key,
		Timestamp:  ts,
		DwellTime:  ts - downAt,
		FlightTime: flight,
	})
	a.lastKeyUp = ts
}

// PointerMove records a move sample. The move buffer is capped: past the cap
// only the most recent samples are kept, since old positions stop being
// representative of current motion.
func (a *Accumulator) PointerMove(x, y float64, ts int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pointer = append(a.pointer, model.PointerEvent{X: x, Y: y, Timestamp: ts, Kind: model.PointerMove})
	if len(a.pointer) > pointerBufferCap {
		a.pointer = append([]model.PointerEvent(nil), a.pointer[len(a.pointer)-pointerBufferKeep:]...)
	}
}

func (a *Accumulator) PointerClick(x, y float64, ts int64, pressure float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := pressure
	a.pointer = append(a.pointer, model.PointerEvent{X: x, Y: y, Timestamp: ts, Kind: model.PointerClick, Pressure: &p})
}

func (a *Accumulator) PointerScroll(x, y float64, ts int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pointer = append(a.pointer, model.PointerEvent{X: x, Y: y, Timestamp: ts, Kind: model.PointerScroll})
}

// PendingKeystrokes reports the buffered keystroke count, used by callers to
// decide when to flush.
func (a *Accumulator) PendingKeystrokes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.keystrokes)
}

// Flush drains both buffers and returns the batches. In-flight key-downs
// survive a flush so a keystroke spanning the boundary is not lost.
func (a *Accumulator) Flush() ([]model.KeystrokeEvent, []model.PointerEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	keystrokes := a.keystrokes
	pointer := a.pointer
	a.keystrokes = nil
	a.pointer = nil
	return keystrokes, pointer
}
