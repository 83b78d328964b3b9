// logging setup
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging configures the standard logger: level filtering on the
// "[LEVEL]" prefix of each line, a timestamp in the operator's date format,
// and an optional rotating log file.
package logging

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/hashicorp/logutils"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Levels = []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"}

// Options selects where and what to log.
type Options struct {
	Verbose    bool   // include [DEBUG] lines
	Layout     string // time layout of the line prefix
	File       string // optional log file, rotated
	MaxSize    int    // megabytes before rotation
	MaxBackups int    // rotated files kept
	MaxAge     int    // days rotated files are kept
}

type stampWriter struct {
	out    io.Writer
	layout string
	now    func() time.Time
}

func (w *stampWriter) Write(p []byte) (int, error) {
	line := make([]byte, 0, len(w.layout)+1+len(p))
	line = w.now().AppendFormat(line, w.layout)
	line = append(line, ' ')
	line = append(line, p...)
	if _, err := w.out.Write(line); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewWriter returns a writer that drops lines below the selected level and
// stamps the others before writing them to out.
func NewWriter(out io.Writer, verbose bool, layout string) io.Writer {
	minLevel := logutils.LogLevel("INFO")
	if verbose {
		minLevel = "DEBUG"
	}
	return &logutils.LevelFilter{
		Levels:   Levels,
		MinLevel: minLevel,
		Writer:   &stampWriter{out: out, layout: layout, now: time.Now},
	}
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// Setup redirects the standard logger to stderr and, when a file is
// configured, to the file as well. The returned closer flushes and closes
// the log file.
func Setup(options Options) io.Closer {
	var out io.Writer = os.Stderr
	closer := closerFunc(func() error { return nil })

	if options.File != "" {
		file := &lumberjack.Logger{
			Filename:   options.File,
			MaxSize:    options.MaxSize,
			MaxBackups: options.MaxBackups,
			MaxAge:     options.MaxAge,
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = file.Close
	}

	log.SetFlags(0)
	log.SetOutput(NewWriter(out, options.Verbose, options.Layout))
	log.Print("[DEBUG] debug logging enabled")
	return closer
}
