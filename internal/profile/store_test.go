package profile

import (
	"testing"
	"time"

	"biogate/internal/model"
)

func testDevice() model.DeviceFingerprint {
	return model.DeviceFingerprint{
		ScreenResolution: "1920x1080",
		Timezone:         "Europe/Berlin",
		Language:         "en-US",
		UserAgent:        "ua",
	}
}

func TestDefaultProfileValues(t *testing.T) {
	now := time.Now().UTC()
	p := DefaultProfile("user01", testDevice(), now)
	if p.Typing.AvgKeystrokeInterval != 150 || p.Typing.AvgDwellTime != 100 {
		t.Fatalf("unexpected typing baseline %+v", p.Typing)
	}
	if p.Pointer.AvgSpeed != 200 || p.Pointer.MovementStyle != "smooth" {
		t.Fatalf("unexpected pointer baseline %+v", p.Pointer)
	}
	if p.Confidence != 0.1 {
		t.Fatalf("new profile must start with low confidence, got %v", p.Confidence)
	}
	if p.Device != testDevice() {
		t.Fatalf("device fingerprint not captured")
	}
}

func TestEnsureCreatesOnce(t *testing.T) {
	s := NewStore()
	now := time.Now().UTC()
	p1, created := s.Ensure("user01", testDevice(), now)
	if !created {
		t.Fatalf("first ensure must create")
	}
	other := testDevice()
	other.Timezone = "America/New_York"
	p2, created := s.Ensure("user01", other, now.Add(time.Hour))
	if created {
		t.Fatalf("second ensure must not create")
	}
	if p2.Device != p1.Device {
		t.Fatalf("ensure must not overwrite the stored fingerprint")
	}
}

func TestDiffFingerprint(t *testing.T) {
	stored := testDevice()
	if got := DiffFingerprint(stored, stored); len(got) != 0 {
		t.Fatalf("identical fingerprints must not differ: %v", got)
	}
	observed := stored
	observed.Timezone = "America/New_York"
	observed.UserAgent = "other"
	got := DiffFingerprint(stored, observed)
	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %v", got)
	}
	want := map[string]bool{"timezone": true, "user_agent": true}
	for _, attr := range got {
		if !want[attr] {
			t.Fatalf("unexpected attribute %q", attr)
		}
	}
}

func TestPutIgnoresEmptyUser(t *testing.T) {
	s := NewStore()
	s.Put(model.Profile{})
	if _, ok := s.Get(""); ok {
		t.Fatalf("empty user id must not be stored")
	}
	p := DefaultProfile("user01", testDevice(), time.Now().UTC())
	p.Confidence = 0.9
	s.Put(p)
	got, ok := s.Get("user01")
	if !ok || got.Confidence != 0.9 {
		t.Fatalf("put must replace the profile")
	}
}
