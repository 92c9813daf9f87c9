// Command seed writes a deterministic demo telemetry capture to a JSONL
// file, one envelope per line, suitable for the replay ingester. The capture
// contains one low-risk session typing near the default baseline and one
// anomalous session typing far off it with erratic pointer motion.
//
// Usage:
//
//	go run ./cmd/seed [-out data/replay.jsonl]
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"biogate/internal/model"
)

func main() {
	out := "data/replay.jsonl"
	if len(os.Args) > 2 && os.Args[1] == "-out" {
		out = os.Args[2]
	}

	var envelopes []model.Envelope
	envelopes = append(envelopes, demoSession("demo-alice", "sess-alice-1", 150, 200)...)
	envelopes = append(envelopes, demoSession("demo-mallory", "sess-mallory-1", 450, 40)...)

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir error: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, env := range envelopes {
		if err := enc.Encode(env); err != nil {
			fmt.Fprintf(os.Stderr, "encode error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("wrote %d envelopes to %s\n", len(envelopes), out)
}

// demoSession emits a full capture: start, three keystroke batches with the
// given flight time, a pointer batch moving at roughly the given speed in
// units per ms, navigation, and end.
func demoSession(userID, sessionID string, flightMs int64, speed float64) []model.Envelope {
	device := &model.DeviceFingerprint{
		ScreenResolution: "1920x1080",
		Timezone:         "Europe/Berlin",
		Language:         "en-US",
		UserAgent:        "Mozilla/5.0 (demo)",
	}
	envelopes := []model.Envelope{
		{Kind: model.EnvelopeSessionStart, UserID: userID, SessionID: sessionID, Device: device},
	}

	ts := int64(1_700_000_000_000)
	keys := "the quick brown fox"
	for batch := 0; batch < 3; batch++ {
		var events []model.KeystrokeEvent
		for i := 0; i < 6; i++ {
			key := string(keys[(batch*6+i)%len(keys)])
			flight := flightMs
			if batch == 0 && i == 0 {
				flight = 0
			}
			events = append(events, model.KeystrokeEvent{
				Key:        key,
				Timestamp:  ts,
				DwellTime:  90,
				FlightTime: flight,
			})
			ts += flightMs + 90
		}
		envelopes = append(envelopes, model.Envelope{
			Kind:       model.EnvelopeKeystrokes,
			UserID:     userID,
			SessionID:  sessionID,
			Keystrokes: events,
		})
	}

	var pointer []model.PointerEvent
	x := 100.0
	for i := 0; i < 12; i++ {
		pointer = append(pointer, model.PointerEvent{
			X:         x,
			Y:         200,
			Timestamp: ts,
			Kind:      model.PointerMove,
		})
		x += speed * 10
		ts += 10
	}
	envelopes = append(envelopes,
		model.Envelope{Kind: model.EnvelopePointer, UserID: userID, SessionID: sessionID, Pointer: pointer},
		model.Envelope{Kind: model.EnvelopeNavigation, UserID: userID, SessionID: sessionID, Navigation: []model.NavigationEvent{
			{Page: "/dashboard", Timestamp: ts, Action: "visit"},
			{Page: "/transfer", Timestamp: ts + 2000, Action: "click"},
		}},
		model.Envelope{Kind: model.EnvelopeSessionEnd, UserID: userID, SessionID: sessionID},
	)
	return envelopes
}
