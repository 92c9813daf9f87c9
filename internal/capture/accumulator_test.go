package capture

import (
	"testing"

	"biogate/internal/model"
)

func TestKeystrokeTiming(t *testing.T) {
	a := NewAccumulator("sess01")
	a.KeyDown("h", 1000)
	a.KeyUp("h", 1090)
	a.KeyDown("i", 1250)
	a.KeyUp("i", 1330)

	keys, _ := a.Flush()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keystrokes, got %d", len(keys))
	}
	first, second := keys[0], keys[1]
	if first.DwellTime != 90 || first.FlightTime != 0 {
		t.Fatalf("first keystroke: dwell %d flight %d", first.DwellTime, first.FlightTime)
	}
	if second.DwellTime != 80 {
		t.Fatalf("second dwell %d", second.DwellTime)
	}
	// Flight is key-down relative to the previous key-up: 1250 - 1090.
	if second.FlightTime != 160 {
		t.Fatalf("second flight %d", second.FlightTime)
	}
}

func TestKeyUpWithoutDownDropped(t *testing.T) {
	a := NewAccumulator("sess01")
	a.KeyUp("x", 1000)
	if got := a.PendingKeystrokes(); got != 0 {
		t.Fatalf("expected no keystrokes, got %d", got)
	}
}

func TestFlushDrainsBuffers(t *testing.T) {
	a := NewAccumulator("sess01")
	a.KeyDown("a", 1000)
	a.KeyUp("a", 1080)
	a.PointerMove(10, 20, 1100)

	keys, pointer := a.Flush()
	if len(keys) != 1 || len(pointer) != 1 {
		t.Fatalf("expected one of each, got %d/%d", len(keys), len(pointer))
	}
	keys, pointer = a.Flush()
	if len(keys) != 0 || len(pointer) != 0 {
		t.Fatalf("second flush must be empty, got %d/%d", len(keys), len(pointer))
	}
}

func TestInFlightKeySurvivesFlush(t *testing.T) {
	a := NewAccumulator("sess01")
	a.KeyDown("a", 1000)
	a.Flush()
	a.KeyUp("a", 1080)
	keys, _ := a.Flush()
	if len(keys) != 1 || keys[0].DwellTime != 80 {
		t.Fatalf("keystroke spanning a flush was lost: %+v", keys)
	}
}

func TestPointerBufferCapped(t *testing.T) {
	a := NewAccumulator("sess01")
	for i := 0; i < 60; i++ {
		a.PointerMove(float64(i), 0, int64(i)*10)
	}
	_, pointer := a.Flush()
	if len(pointer) > pointerBufferCap {
		t.Fatalf("buffer exceeded cap: %d", len(pointer))
	}
	last := pointer[len(pointer)-1]
	if last.X != 59 {
		t.Fatalf("newest sample must survive trimming, got x=%v", last.X)
	}
}

func TestClickCarriesPressure(t *testing.T) {
	a := NewAccumulator("sess01")
	a.PointerClick(10, 20, 1000, 0.7)
	a.PointerScroll(10, 40, 1010)
	_, pointer := a.Flush()
	if len(pointer) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pointer))
	}
	if pointer[0].Kind != model.PointerClick || pointer[0].Pressure == nil || *pointer[0].Pressure != 0.7 {
		t.Fatalf("click event malformed: %+v", pointer[0])
	}
	if pointer[1].Kind != model.PointerScroll || pointer[1].Pressure != nil {
		t.Fatalf("scroll event malformed: %+v", pointer[1])
	}
}
