// squelch threshold calibration tests
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package squelch

import (
	"math"
	"testing"
)

func TestEvaluate_FixedMode(t *testing.T) {
	s := Settings{Delta: 6}

	testCases := []struct {
		name   string
		base   float64
		level  float64
		active bool
	}{
		{"below threshold", -60, -58, false},
		{"at threshold", -60, -54, false},
		{"above threshold", -60, -44, true},
		{"unset base", 0, 7, true},
		{"unset base below", 0, 5, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(s, tc.base, -100, true, tc.level)
			if d.Active != tc.active {
				t.Errorf("Expected active=%t, got %s", tc.active, d)
			}
			if d.Threshold != tc.base+6 {
				t.Errorf("Expected threshold %.1f, got %.1f", tc.base+6, d.Threshold)
			}
		})
	}
}

func TestEvaluate_AutoMode(t *testing.T) {
	s := Settings{Delta: 3, Auto: true}

	d := Evaluate(s, -20, -80, true, -75)
	if !d.Active || d.Threshold != -77 {
		t.Errorf("Expected active with threshold -77, got %s", d)
	}

	// no noise floor yet: fall back to base + delta
	d = Evaluate(s, -20, 0, false, -75)
	if d.Active || d.Threshold != -17 {
		t.Errorf("Expected inactive with threshold -17, got %s", d)
	}
}

func TestEvaluate_TopCeiling(t *testing.T) {
	s := Settings{Delta: 5, Auto: true, Top: 30}

	testCases := []struct {
		level  float64
		active bool
	}{
		{-78, false}, // below threshold -75
		{-60, true},
		{-51, true},
		{-50, false}, // at ceiling
		{-10, false}, // saturation
	}

	for _, tc := range testCases {
		d := Evaluate(s, 0, -80, true, tc.level)
		if d.Active != tc.active {
			t.Errorf("Level %.1f: expected active=%t, got %s", tc.level, tc.active, d)
		}
		if !d.HasCeiling || d.Ceiling != -50 {
			t.Errorf("Level %.1f: expected ceiling -50, got %s", tc.level, d)
		}
	}
}

func TestEvaluate_Monotonic(t *testing.T) {
	settings := []Settings{
		{Delta: 6},
		{Delta: 0.5, Auto: true},
		{Delta: -3, Auto: true},
	}

	for _, s := range settings {
		wasActive := false
		for level := -120.0; level <= 20; level += 0.25 {
			d := Evaluate(s, -40, -90, true, level)
			if wasActive && !d.Active {
				t.Fatalf("%+v: decision flipped to inactive at level %.2f", s, level)
			}
			wasActive = d.Active
		}
		if !wasActive {
			t.Errorf("%+v: never became active", s)
		}
	}
}

func TestEvaluate_TopBelowDelta(t *testing.T) {
	s := Settings{Delta: 6, Auto: true, Top: 3}

	for level := -150.0; level <= 50; level += 0.5 {
		if d := Evaluate(s, 0, -90, true, level); d.Active {
			t.Fatalf("Level %.1f should never be active: %s", level, d)
		}
	}
}

func TestNoiseFloor_Observe(t *testing.T) {
	var nf NoiseFloor

	nf.Observe(-80)
	if nf.Level != -80 {
		t.Errorf("First sample should set the floor, got %.2f", nf.Level)
	}

	nf.Observe(-90)
	if nf.Level != -90 {
		t.Errorf("Lower sample should replace the floor, got %.2f", nf.Level)
	}

	nf.Observe(-40)
	if math.Abs(nf.Level+85) > 1e-9 {
		t.Errorf("Higher sample should rise slowly to -85, got %.2f", nf.Level)
	}

	if nf.Samples != 3 {
		t.Errorf("Expected 3 samples, got %d", nf.Samples)
	}
}

func TestCalibrator_PerFrequency(t *testing.T) {
	c := New(Settings{Delta: 4, Auto: true})
	if !c.NeedsBaseline() {
		t.Fatal("Auto mode needs a baseline")
	}

	c.Observe(100_000_000, -90)
	c.Observe(100_010_000, -70)

	if th := c.Threshold(100_000_000); th != -86 {
		t.Errorf("Expected threshold -86, got %.1f", th)
	}
	if th := c.Threshold(100_010_000); th != -66 {
		t.Errorf("Expected threshold -66, got %.1f", th)
	}

	// same level, different background noise
	if d := c.Decide(100_000_000, -75); !d.Active {
		t.Errorf("Expected active on quiet frequency: %s", d)
	}
	if d := c.Decide(100_010_000, -75); d.Active {
		t.Errorf("Expected inactive on noisy frequency: %s", d)
	}

	if _, ok := c.NoiseFloor(100_020_000); ok {
		t.Error("Unvisited frequency should have no noise floor")
	}
}

func TestCalibrator_FixedNeedsNoBaseline(t *testing.T) {
	c := New(Settings{Delta: 6})
	if c.NeedsBaseline() {
		t.Error("Fixed mode without ceiling needs no baseline")
	}

	c.SetBase(-60)
	if d := c.Decide(1, -50); !d.Active {
		t.Errorf("Expected active: %s", d)
	}
	if d := c.Decide(1, -55); d.Active {
		t.Errorf("Expected inactive: %s", d)
	}
}
