package domain

import (
	"testing"
	"time"
)

func TestBarFields(t *testing.T) {
	d := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	b := Bar{Date: d, Open: 101.2, High: 103.5, Low: 100.1, Close: 102.8, Volume: 1_250_000}
	if !b.Date.Equal(d) || b.Close != 102.8 {
		t.Errorf("Bar fields not set correctly: %+v", b)
	}
}

func TestSignalEventFields(t *testing.T) {
	e := SignalEvent{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Score: -0.4, Weight: 12, Source: "reddit"}
	if e.Score != -0.4 || e.Weight != 12 || e.Source != "reddit" {
		t.Errorf("SignalEvent fields not set correctly: %+v", e)
	}
}

func TestDirectionConstants(t *testing.T) {
	if DirectionUp != "up" || DirectionDown != "down" || DirectionFlat != "flat" {
		t.Errorf("direction constants wrong: %s %s %s", DirectionUp, DirectionDown, DirectionFlat)
	}
}
