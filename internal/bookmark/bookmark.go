// gqrx bookmarks
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bookmark reads the gqrx bookmark list and matches bookmarks
// against a tag filter.
package bookmark

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Bookmark is a single gqrx bookmark.
type Bookmark struct {
	Frequency  int64
	Name       string
	Modulation string
	Bandwidth  int64
	Tags       []string
}

func (b Bookmark) String() string {
	return fmt.Sprintf("%s [%s]", b.Name, strings.Join(b.Tags, ","))
}

// NormalizeFilter lowercases the filter and drops empty entries.
func NormalizeFilter(filter []string) []string {
	var normalized []string
	for _, f := range filter {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			normalized = append(normalized, f)
		}
	}
	return normalized
}

// Matches reports whether one of the bookmark tags contains one of the
// filter strings, ignoring case. An empty filter matches every bookmark.
func (b Bookmark) Matches(filter []string) bool {
	filter = NormalizeFilter(filter)
	if len(filter) == 0 {
		return true
	}
	for _, tag := range b.Tags {
		tag = strings.ToLower(tag)
		for _, f := range filter {
			if strings.Contains(tag, f) {
				return true
			}
		}
	}
	return false
}

// Filter returns the bookmarks matching filter, preserving their order.
func Filter(bookmarks []Bookmark, filter []string) []Bookmark {
	var matched []Bookmark
	for _, b := range bookmarks {
		if b.Matches(filter) {
			matched = append(matched, b)
		}
	}
	return matched
}

// DefaultPath returns the location gqrx stores its bookmarks in.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gqrx", "bookmarks.csv"), nil
}

// File is a bookmark source backed by a gqrx bookmarks.csv file.
type File struct {
	Path string
}

// Bookmarks reads the file.
func (f File) Bookmarks() ([]Bookmark, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	bookmarks, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return bookmarks, nil
}

// Read parses the gqrx bookmark format: a tag table ("name; color") followed
// by the bookmark table ("frequency; name; modulation; bandwidth; tags[; info]").
// Lines starting with '#' are comments and tags are separated by commas.
func Read(r io.Reader) (bookmarks []Bookmark, err error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	for {
		var record []string
		record, err = reader.Read()
		if errors.Is(err, io.EOF) {
			err = nil
			break
		}
		if err != nil {
			return
		}

		line, _ := reader.FieldPos(0)
		switch {
		case len(record) == 2:
			// tag definition
			continue
		case len(record) < 5:
			err = fmt.Errorf("line %d: invalid bookmark record: %v", line, record)
			return
		}

		var b Bookmark
		b.Frequency, err = strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			err = fmt.Errorf("line %d: invalid frequency: %w", line, err)
			return
		}
		b.Name = strings.TrimSpace(record[1])
		b.Modulation = strings.TrimSpace(record[2])
		if bandwidth := strings.TrimSpace(record[3]); bandwidth != "" {
			b.Bandwidth, err = strconv.ParseInt(bandwidth, 10, 64)
			if err != nil {
				err = fmt.Errorf("line %d: invalid bandwidth: %w", line, err)
				return
			}
		}
		for _, tag := range strings.Split(record[4], ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				b.Tags = append(b.Tags, tag)
			}
		}
		bookmarks = append(bookmarks, b)
	}
	return
}
