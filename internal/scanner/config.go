// scan configuration
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package scanner

import (
	"fmt"
	"strings"
	"time"

	"gqrx-scanner/internal/bookmark"
	"gqrx-scanner/internal/gqrx"
	"gqrx-scanner/internal/udp"
)

const (
	DefaultStep             = 10_000
	DefaultCenterSpan       = 1_000_000
	DefaultDelay            = 2000 * time.Millisecond
	DefaultSpeed            = 250 * time.Millisecond
	DefaultSweepSpeed       = 500 * time.Millisecond
	DefaultUDPWindow        = time.Second
	DefaultReconnectBackoff = time.Second
)

// Mode selects how the engine walks frequencies.
type Mode int

const (
	ModeSweep Mode = iota
	ModeBookmark
)

func (m Mode) String() string {
	switch m {
	case ModeSweep:
		return "sweep"
	case ModeBookmark:
		return "bookmark"
	default:
		return fmt.Sprintf("invalid mode: %d", m)
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "sweep":
		return ModeSweep, nil
	case "bookmark":
		return ModeBookmark, nil
	default:
		return ModeSweep, &ConfigError{Reason: fmt.Sprintf("invalid mode: %s", s)}
	}
}

// DateFormat selects the timestamp layout shown to the operator.
type DateFormat int

const (
	DateMDY DateFormat = iota // mm-dd-yy
	DateDMY                   // dd-mm-yy
)

// Layout returns the time layout for the format.
func (f DateFormat) Layout() string {
	if f == DateDMY {
		return "02-01-06 15:04:05"
	}
	return "01-02-06 15:04:05"
}

func (f DateFormat) String() string {
	switch f {
	case DateMDY:
		return "mm-dd-yy"
	case DateDMY:
		return "dd-mm-yy"
	default:
		return fmt.Sprintf("invalid date format: %d", f)
	}
}

// ConfigError reports an invalid or contradictory configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Config is the validated scan configuration.
type Config struct {
	Host string
	Port int

	Mode Mode

	// Sweep frequencies: either Center (scanned over +/- CenterSpan, a
	// single frequency when CenterSpan is 0) or the Min/Max range.
	// In bookmark mode Min/Max optionally restrict the bookmarks to a band.
	Center     int64
	CenterSpan int64
	Min        int64
	Max        int64
	Step       int64

	Delay      time.Duration // quiet time before the scan resumes
	MaxListen  time.Duration // 0 = listen as long as there is activity
	Speed      time.Duration // bookmark probe interval
	SweepSpeed time.Duration // sweep probe interval

	DateFormat DateFormat

	SquelchDelta     float64
	SquelchDeltaAuto bool
	SquelchDeltaTop  float64 // 0 = unset
	ReceiverSquelch  bool    // push the effective threshold to gqrx

	UDPListen  bool
	UDPAddress string
	UDPWindow  time.Duration

	Tags    []string
	Verbose bool
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Host:       gqrx.DefaultHost,
		Port:       gqrx.DefaultPort,
		Mode:       ModeSweep,
		CenterSpan: DefaultCenterSpan,
		Step:       DefaultStep,
		Delay:      DefaultDelay,
		Speed:      DefaultSpeed,
		SweepSpeed: DefaultSweepSpeed,
		UDPAddress: udp.DefaultAddress,
		UDPWindow:  DefaultUDPWindow,
	}
}

// HasRange reports whether a Min/Max range is configured.
func (c *Config) HasRange() bool {
	return c.Min != 0 || c.Max != 0
}

// SweepRange returns the first and last frequency of a sweep.
func (c *Config) SweepRange() (first, last int64) {
	if c.HasRange() {
		return c.Min, c.Max
	}
	first = max(c.Center-c.CenterSpan, 1)
	return first, c.Center + c.CenterSpan
}

// Validate checks the configuration before any network I/O happens.
func (c *Config) Validate() error {
	if c.Host == "" {
		return configErrorf("missing host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return configErrorf("invalid port: %d", c.Port)
	}
	if c.Delay < 0 {
		return configErrorf("delay must not be negative: %v", c.Delay)
	}
	if c.MaxListen < 0 {
		return configErrorf("max listen must not be negative: %v", c.MaxListen)
	}
	if c.Speed <= 0 {
		return configErrorf("speed must be positive: %v", c.Speed)
	}
	if c.SweepSpeed <= 0 {
		return configErrorf("sweep speed must be positive: %v", c.SweepSpeed)
	}
	if c.DateFormat != DateMDY && c.DateFormat != DateDMY {
		return configErrorf("invalid date format: %d", c.DateFormat)
	}
	if c.UDPListen {
		if c.UDPAddress == "" {
			return configErrorf("missing UDP listen address")
		}
		if c.UDPWindow <= 0 {
			return configErrorf("UDP activity window must be positive: %v", c.UDPWindow)
		}
	}
	if c.HasRange() {
		if c.Min <= 0 || c.Max <= 0 {
			return configErrorf("frequency range needs both min and max: %d-%d", c.Min, c.Max)
		}
		if c.Max <= c.Min {
			return configErrorf("max frequency must be greater than min frequency: %d <= %d", c.Max, c.Min)
		}
	}

	switch c.Mode {
	case ModeSweep:
		if len(bookmark.NormalizeFilter(c.Tags)) > 0 {
			return configErrorf("tags are only supported in bookmark mode")
		}
		if c.HasRange() && c.Center != 0 {
			return configErrorf("center frequency is incompatible with a min/max range")
		}
		if !c.HasRange() && c.Center <= 0 {
			return configErrorf("sweep mode needs a center frequency or a min/max range")
		}
		if c.CenterSpan < 0 {
			return configErrorf("center span must not be negative: %d", c.CenterSpan)
		}
		if (c.HasRange() || c.CenterSpan > 0) && c.Step <= 0 {
			return configErrorf("step must be positive to sweep a range: %d", c.Step)
		}
	case ModeBookmark:
		if c.Center != 0 {
			return configErrorf("center frequency is not supported in bookmark mode")
		}
	default:
		return configErrorf("invalid mode: %d", c.Mode)
	}

	return nil
}

// probeInterval is the wait between tuning and sampling a frequency.
func (c *Config) probeInterval() time.Duration {
	if c.Mode == ModeBookmark {
		return c.Speed
	}
	return c.SweepSpeed
}
