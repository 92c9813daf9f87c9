package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"biogate/internal/model"
)

// ParseEnvelope decodes and validates one telemetry frame. Frames with an
// unknown kind, missing identifiers, or no payload for their kind are
// rejected here so downstream code only sees well-formed envelopes.
func ParseEnvelope(data []byte) (model.Envelope, error) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := ValidateEnvelope(env); err != nil {
		return model.Envelope{}, err
	}
	return env, nil
}

func ValidateEnvelope(env model.Envelope) error {
	if env.UserID == "" {
		return errors.New("envelope missing user_id")
	}
	if env.SessionID == "" {
		return errors.New("envelope missing session_id")
	}
	switch env.Kind {
	case model.EnvelopeSessionStart:
		if env.Device == nil {
			return errors.New("session_start envelope missing device fingerprint")
		}
	case model.EnvelopeSessionEnd:
	case model.EnvelopeKeystrokes:
		if len(env.Keystrokes) == 0 {
			return errors.New("keystrokes envelope has no events")
		}
	case model.EnvelopePointer:
		if len(env.Pointer) == 0 {
			return errors.New("pointer envelope has no events")
		}
		for _, ev := range env.Pointer {
			switch ev.Kind {
			case model.PointerMove, model.PointerClick, model.PointerScroll:
			default:
				return fmt.Errorf("unknown pointer event type %q", ev.Kind)
			}
		}
	case model.EnvelopeNavigation:
		if len(env.Navigation) == 0 {
			return errors.New("navigation envelope has no events")
		}
	default:
		return fmt.Errorf("unknown envelope kind %q", env.Kind)
	}
	return nil
}
