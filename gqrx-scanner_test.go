// scanner for gqrx tests
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"gqrx-scanner/internal/gqrx"
	"gqrx-scanner/internal/scanner"
)

func TestHandleUserCommands(t *testing.T) {
	config := scanner.DefaultConfig()
	config.Center = 145_500_000
	engine, err := scanner.New(config, gqrx.New("localhost", gqrx.DefaultPort))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	commands := make(chan userCommand)
	ctx := handleUserCommands(context.Background(), engine, commands)

	commands <- userCommandTogglePause
	commands <- userCommandNextFrequency
	commands <- userCommandTerminate

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Expected the context to be cancelled")
	}
	if !errors.Is(context.Cause(ctx), ErrUserCommandTerminate) {
		t.Errorf("Unexpected cause: %v", context.Cause(ctx))
	}
}
