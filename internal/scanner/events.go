// scan events
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package scanner

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Source tells which detector reported the activity.
type Source int

const (
	SourceLevel Source = iota // control channel signal level
	SourceUDP                 // UDP audio datagrams
)

func (s Source) String() string {
	switch s {
	case SourceLevel:
		return "level"
	case SourceUDP:
		return "udp"
	default:
		return fmt.Sprintf("invalid source: %d", s)
	}
}

// Reason tells why listening ended.
type Reason int

const (
	ReasonNone     Reason = iota
	ReasonQuiet           // below threshold for the whole delay
	ReasonTimeout         // max listen time elapsed
	ReasonSkipped         // operator skipped the frequency
	ReasonShutdown        // engine stopped
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonQuiet:
		return "quiet"
	case ReasonTimeout:
		return "timeout"
	case ReasonSkipped:
		return "skipped"
	case ReasonShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("invalid reason: %d", r)
	}
}

// Activity is the listening state of the engine.
type Activity struct {
	Listening bool
	Since     time.Time
	Source    Source
}

type EventKind int

const (
	EventActive EventKind = iota
	EventInactive
)

func (k EventKind) String() string {
	switch k {
	case EventActive:
		return "active"
	case EventInactive:
		return "inactive"
	default:
		return fmt.Sprintf("invalid event: %d", k)
	}
}

// Event reports an activation or deactivation.
type Event struct {
	Kind      EventKind
	Time      time.Time
	Stamp     string // Time in the configured date format
	Target    Target
	Level     float64
	Threshold float64
	Source    Source
	Reason    Reason
	Duration  time.Duration // time spent listening, for EventInactive
}

// Notifier receives the scan events. Notify is called from the scan loop
// and must not block for long.
type Notifier interface {
	Notify(Event)
}

// FormatFrequency renders hz for the operator, e.g. "100.02 MHz".
func FormatFrequency(hz int64) string {
	return humanize.SIWithDigits(float64(hz), 6, "Hz")
}

// LogNotifier writes the events to the standard logger.
type LogNotifier struct{}

func (LogNotifier) Notify(e Event) {
	fields := []string{
		e.Kind.String(),
		fmt.Sprintf("f=%s", FormatFrequency(e.Target.Frequency)),
	}
	if b := e.Target.Bookmark; b != nil {
		fields = append(fields, fmt.Sprintf("name=%q", b.Name))
		if len(b.Tags) > 0 {
			fields = append(fields, fmt.Sprintf("tags=%s", strings.Join(b.Tags, "|")))
		}
	}
	switch e.Kind {
	case EventActive:
		fields = append(fields,
			fmt.Sprintf("level=%.1fdB", e.Level),
			fmt.Sprintf("threshold=%.1fdB", e.Threshold),
			fmt.Sprintf("source=%s", e.Source))
	case EventInactive:
		fields = append(fields,
			fmt.Sprintf("reason=%s", e.Reason),
			fmt.Sprintf("listened=%s", e.Duration.Round(time.Millisecond)))
	}
	log.Printf("[INFO] %s", strings.Join(fields, " "))
}
