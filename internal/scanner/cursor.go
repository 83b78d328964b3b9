// scan cursors
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package scanner

import (
	"strings"

	"gqrx-scanner/internal/bookmark"
)

// Target is a frequency the engine tunes to.
type Target struct {
	Frequency int64
	Bookmark  *bookmark.Bookmark
}

// Cursor walks the scan targets, wrapping to the first one after the last.
type Cursor interface {
	Next() Target
	Len() int
}

type sweepCursor struct {
	first, last, step int64
	current           int64
	started           bool
}

func newSweepCursor(first, last, step int64) *sweepCursor {
	if first == last {
		step = 0
	}
	return &sweepCursor{first: first, last: last, step: step}
}

func (c *sweepCursor) Next() Target {
	switch {
	case !c.started:
		c.current = c.first
		c.started = true
	case c.step == 0 || c.current+c.step > c.last:
		c.current = c.first
	default:
		c.current += c.step
	}
	return Target{Frequency: c.current}
}

func (c *sweepCursor) Len() int {
	if c.step == 0 {
		return 1
	}
	return int((c.last-c.first)/c.step) + 1
}

type bookmarkCursor struct {
	bookmarks []bookmark.Bookmark
	index     int
}

func (c *bookmarkCursor) Next() Target {
	c.index = (c.index + 1) % len(c.bookmarks)
	b := &c.bookmarks[c.index]
	return Target{Frequency: b.Frequency, Bookmark: b}
}

func (c *bookmarkCursor) Len() int {
	return len(c.bookmarks)
}

// newCursor builds the cursor for config. In bookmark mode the bookmarks are
// filtered by tag and, when a range is set, by frequency.
func newCursor(config *Config, bookmarks []bookmark.Bookmark) (Cursor, error) {
	if config.Mode == ModeSweep {
		first, last := config.SweepRange()
		return newSweepCursor(first, last, config.Step), nil
	}

	if len(bookmarks) == 0 {
		return nil, configErrorf("no bookmarks to scan")
	}
	matched := bookmark.Filter(bookmarks, config.Tags)
	if config.HasRange() {
		inRange := matched[:0:0]
		for _, b := range matched {
			if b.Frequency >= config.Min && b.Frequency <= config.Max {
				inRange = append(inRange, b)
			}
		}
		matched = inRange
	}
	if len(matched) == 0 {
		return nil, configErrorf("no bookmark matches tags %q", strings.Join(config.Tags, "|"))
	}

	return &bookmarkCursor{bookmarks: matched, index: -1}, nil
}
