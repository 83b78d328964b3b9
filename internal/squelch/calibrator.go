// squelch threshold calibration
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package squelch turns a sampled signal level into an activity decision,
// using either a fixed threshold above the receiver squelch or a threshold
// relative to the noise floor measured at each frequency.
package squelch

import "fmt"

// RiseFactor is the weight given to a baseline sample that is above the
// current noise floor estimate. Samples below the estimate replace it.
const RiseFactor = 0.1

// Settings holds the configured deltas.
type Settings struct {
	Delta float64 // dB above the base (fixed) or the noise floor (auto)
	Auto  bool    // threshold relative to the noise floor
	Top   float64 // dB above the noise floor for the ceiling, 0 = no ceiling
}

// NoiseFloor is the rolling baseline estimate for a single frequency.
type NoiseFloor struct {
	Level   float64
	Samples int
}

// Observe folds a baseline sample into the estimate.
func (n *NoiseFloor) Observe(level float64) {
	if n.Samples == 0 || level < n.Level {
		n.Level = level
	} else {
		n.Level += (level - n.Level) * RiseFactor
	}
	n.Samples++
}

// Decision is the outcome of comparing a level against the thresholds.
type Decision struct {
	Level      float64
	Threshold  float64
	Ceiling    float64
	HasCeiling bool
	Active     bool
}

func (d Decision) String() string {
	if d.HasCeiling {
		return fmt.Sprintf("level=%.1fdB threshold=%.1fdB ceiling=%.1fdB active=%t", d.Level, d.Threshold, d.Ceiling, d.Active)
	}
	return fmt.Sprintf("level=%.1fdB threshold=%.1fdB active=%t", d.Level, d.Threshold, d.Active)
}

// Evaluate decides whether level is active. floor is only used when known is
// true; without a noise floor the auto threshold falls back to base + delta
// and no ceiling applies.
func Evaluate(s Settings, base, floor float64, known bool, level float64) Decision {
	d := Decision{
		Level:     level,
		Threshold: base + s.Delta,
	}
	if known {
		if s.Auto {
			d.Threshold = floor + s.Delta
		}
		if s.Top != 0 {
			d.Ceiling = floor + s.Top
			d.HasCeiling = true
		}
	}

	d.Active = level > d.Threshold
	if d.HasCeiling && level >= d.Ceiling {
		d.Active = false
	}
	return d
}

// Calibrator keeps the noise floor per frequency and applies the settings.
// It is owned by the scan loop and is not safe for concurrent use.
type Calibrator struct {
	settings Settings
	base     float64
	floors   map[int64]*NoiseFloor
}

// New creates a calibrator with a base level of 0.
func New(settings Settings) *Calibrator {
	return &Calibrator{
		settings: settings,
		floors:   make(map[int64]*NoiseFloor),
	}
}

// Settings returns the configured deltas.
func (c *Calibrator) Settings() Settings {
	return c.settings
}

// SetBase sets the receiver squelch used as the fixed threshold base.
func (c *Calibrator) SetBase(db float64) {
	c.base = db
}

// Base returns the fixed threshold base.
func (c *Calibrator) Base() float64 {
	return c.base
}

// NeedsBaseline reports whether the noise floor must be sampled after tuning.
func (c *Calibrator) NeedsBaseline() bool {
	return c.settings.Auto || c.settings.Top != 0
}

// Observe records a baseline sample taken at freq right after tuning.
func (c *Calibrator) Observe(freq int64, level float64) NoiseFloor {
	nf, ok := c.floors[freq]
	if !ok {
		nf = &NoiseFloor{}
		c.floors[freq] = nf
	}
	nf.Observe(level)
	return *nf
}

// NoiseFloor returns the current estimate for freq.
func (c *Calibrator) NoiseFloor(freq int64) (float64, bool) {
	nf, ok := c.floors[freq]
	if !ok || nf.Samples == 0 {
		return 0, false
	}
	return nf.Level, true
}

// Threshold returns the level a signal at freq must exceed.
func (c *Calibrator) Threshold(freq int64) float64 {
	floor, known := c.NoiseFloor(freq)
	return Evaluate(c.settings, c.base, floor, known, c.base).Threshold
}

// Decide classifies level sampled at freq.
func (c *Calibrator) Decide(freq int64, level float64) Decision {
	floor, known := c.NoiseFloor(freq)
	return Evaluate(c.settings, c.base, floor, known, level)
}
