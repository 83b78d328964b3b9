// command line and configuration file tests
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"gqrx-scanner/internal/scanner"
)

func TestParseOptions_Defaults(t *testing.T) {
	options, err := ParseOptions(nil, io.Discard)
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}

	config := options.Scan
	if config.Host != "localhost" || config.Port != 7356 || config.Mode != scanner.ModeSweep {
		t.Errorf("Unexpected connection defaults: %+v", config)
	}
	if config.Step != 10_000 || config.Delay != 2*time.Second || config.Speed != 250*time.Millisecond {
		t.Errorf("Unexpected scan defaults: %+v", config)
	}
	if !options.NeedsCurrentFrequency() {
		t.Error("Expected to sweep around the current frequency")
	}
	if options.RequestTimeout != 2*time.Second || options.MQTT.Broker != "" {
		t.Errorf("Unexpected options: %+v", options)
	}
}

func TestParseOptions_ShortFlags(t *testing.T) {
	args := []string{
		"-h", "192.168.1.20", "-p", "7357", "-m", "bookmark",
		"-b", "144000000", "-e", "146000000", "-d", "500", "-l", "10000",
		"-x", "400", "-y", "1", "-q", "a6.5", "-a", "30", "-u",
		"-t", "Police|fire", "-v",
	}
	options, err := ParseOptions(args, io.Discard)
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}

	config := options.Scan
	if config.Host != "192.168.1.20" || config.Port != 7357 || config.Mode != scanner.ModeBookmark {
		t.Errorf("Unexpected connection settings: %+v", config)
	}
	if config.Min != 144_000_000 || config.Max != 146_000_000 {
		t.Errorf("Unexpected range %d-%d", config.Min, config.Max)
	}
	if config.Delay != 500*time.Millisecond || config.MaxListen != 10*time.Second || config.Speed != 400*time.Millisecond {
		t.Errorf("Unexpected timing: %+v", config)
	}
	if config.DateFormat != scanner.DateDMY {
		t.Errorf("Expected dd-mm-yy, got %s", config.DateFormat)
	}
	if config.SquelchDelta != 6.5 || !config.SquelchDeltaAuto || config.SquelchDeltaTop != 30 {
		t.Errorf("Unexpected squelch settings: %+v", config)
	}
	if !config.UDPListen || !config.Verbose {
		t.Errorf("Expected UDP listening and verbose output: %+v", config)
	}
	if !slices.Equal(config.Tags, []string{"Police", "fire"}) {
		t.Errorf("Unexpected tags %q", config.Tags)
	}
	if err = config.Validate(); err != nil {
		t.Errorf("Expected a valid configuration, got %v", err)
	}
}

func TestParseOptions_Errors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"bad mode", []string{"-m", "random"}},
		{"bad date", []string{"-y", "2"}},
		{"bad squelch delta", []string{"-q", "loud"}},
		{"bad port", []string{"-p", "port"}},
		{"extra argument", []string{"145000000"}},
		{"zero timeout", []string{"--timeout", "0"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseOptions(tc.args, io.Discard); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestParseOptions_Help(t *testing.T) {
	if _, err := ParseOptions([]string{"--help"}, io.Discard); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("Expected ErrHelp, got %v", err)
	}
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gqrx-scanner.ini")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("Failed to write configuration file: %v", err)
	}
	return path
}

func TestParseOptions_ConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
host = radio.local
freq = 145500000
span = 0
squelch_delta = 10
delay = 3000

[mqtt]
broker = tcp://broker.local:1883
topic = shack/scanner
qos = 1
`)

	options, err := ParseOptions([]string{"--conf", path, "--delay", "1000"}, io.Discard)
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}

	config := options.Scan
	if config.Host != "radio.local" || config.Center != 145_500_000 || config.CenterSpan != 0 {
		t.Errorf("Configuration file settings not applied: %+v", config)
	}
	if config.SquelchDelta != 10 || config.SquelchDeltaAuto {
		t.Errorf("Unexpected squelch settings: %+v", config)
	}
	if config.Delay != time.Second {
		t.Errorf("Expected the command line to override the file, got %v", config.Delay)
	}
	if options.MQTT.Broker != "tcp://broker.local:1883" || options.MQTT.TopicPrefix != "shack/scanner" || options.MQTT.QoS != 1 {
		t.Errorf("Unexpected MQTT settings: %+v", options.MQTT)
	}
	if options.NeedsCurrentFrequency() {
		t.Error("Expected the configured center frequency to be used")
	}
}

func TestParseOptions_ConfigFileErrors(t *testing.T) {
	testCases := []struct {
		name     string
		contents string
	}{
		{"unknown setting", "volume = 11\n"},
		{"unknown section", "[scan]\nfreq = 145500000\n"},
		{"bad value", "port = seventy\n"},
		{"nested conf", "conf = other.ini\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfigFile(t, tc.contents)
			if _, err := ParseOptions([]string{"--conf", path}, io.Discard); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := ParseOptions([]string{"--conf", filepath.Join(t.TempDir(), "missing.ini")}, io.Discard); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
