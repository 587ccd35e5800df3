package kline

import "testing"

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval(" 1H ")
	if err != nil {
		t.Fatalf("parse interval: %v", err)
	}
	if iv.Key != "1h" {
		t.Fatalf("expected normalized key 1h, got %s", iv.Key)
	}
	if iv.Millis() != 3_600_000 {
		t.Fatalf("unexpected millis: %d", iv.Millis())
	}
}

func TestParseIntervalRejectsUnknown(t *testing.T) {
	if _, err := ParseInterval("2h"); err == nil {
		t.Fatal("expected error for unsupported interval")
	}
}

func TestSupportedIntervalsOrdered(t *testing.T) {
	keys := SupportedIntervals()
	if len(keys) != 6 {
		t.Fatalf("expected 6 intervals, got %d", len(keys))
	}
	if keys[0] != "1m" || keys[len(keys)-1] != "1d" {
		t.Fatalf("unexpected ordering: %v", keys)
	}
}
