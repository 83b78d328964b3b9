// logging setup tests
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/logutils"
)

func TestNewWriter_Levels(t *testing.T) {
	testCases := []struct {
		verbose  bool
		expected []string
	}{
		{false, []string{"[INFO] tuned", "[WARN] retry", "[ERROR] failed"}},
		{true, []string{"[DEBUG] level", "[INFO] tuned", "[WARN] retry", "[ERROR] failed"}},
	}

	for _, tc := range testCases {
		var buf bytes.Buffer
		logger := log.New(NewWriter(&buf, tc.verbose, "01-02-06 15:04:05"), "", 0)
		for _, line := range []string{"[DEBUG] level", "[INFO] tuned", "[WARN] retry", "[ERROR] failed"} {
			logger.Print(line)
		}

		lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
		if len(lines) != len(tc.expected) {
			t.Fatalf("Verbose %t: expected %d lines, got %q", tc.verbose, len(tc.expected), lines)
		}
		for i, line := range lines {
			if !strings.HasSuffix(line, tc.expected[i]) {
				t.Errorf("Verbose %t: expected %q, got %q", tc.verbose, tc.expected[i], line)
			}
		}
	}
}

func TestStampWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &stampWriter{
		out:    &buf,
		layout: "02-01-06 15:04:05",
		now:    func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) },
	}

	n, err := w.Write([]byte("[INFO] hello\n"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len("[INFO] hello\n") {
		t.Errorf("Expected the input length, got %d", n)
	}
	if got := buf.String(); got != "14-03-26 09:26:53 [INFO] hello\n" {
		t.Errorf("Unexpected line %q", got)
	}
}

func TestSetup_File(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	defer log.SetFlags(log.LstdFlags)

	path := filepath.Join(t.TempDir(), "scanner.log")
	closer := Setup(Options{Layout: "01-02-06 15:04:05", File: path, MaxSize: 1})
	log.Print("[INFO] to file")
	log.Print("[DEBUG] filtered")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[INFO] to file") || strings.Contains(string(data), "filtered") {
		t.Errorf("Unexpected log file contents %q", data)
	}
}

func TestLevels(t *testing.T) {
	filter := &logutils.LevelFilter{Levels: Levels, MinLevel: "WARN"}
	if filter.Check([]byte("[INFO] x")) || !filter.Check([]byte("[ERROR] x")) {
		t.Error("Unexpected level order")
	}
}
