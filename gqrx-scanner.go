// scanner for gqrx
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eiannone/keyboard"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"gqrx-scanner/internal/bookmark"
	"gqrx-scanner/internal/gqrx"
	"gqrx-scanner/internal/logging"
	"gqrx-scanner/internal/mqttpub"
	"gqrx-scanner/internal/scanner"
)

// user commands
type userCommand int

const (
	userCommandTogglePause userCommand = iota
	userCommandNextFrequency
	userCommandTerminate
)

// custom errors to pass user commands
var ErrUserCommandTerminate = errors.New("user command terminate")

func main() {
	options, err := ParseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "gqrx-scanner:", err)
		os.Exit(2)
	}

	closer := logging.Setup(logging.Options{
		Verbose:    options.Scan.Verbose,
		Layout:     options.Scan.DateFormat.Layout(),
		File:       options.LogFile,
		MaxSize:    options.LogMaxSize,
		MaxBackups: 3,
	})

	err = run(options)
	closer.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(options *Options) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := gqrx.New(options.Scan.Host, options.Scan.Port, gqrx.WithTimeout(options.RequestTimeout))

	if options.NeedsCurrentFrequency() {
		options.Scan.Center, err = currentFrequency(ctx, client)
		if err != nil {
			log.Println("[ERROR]", err)
			return
		}
		log.Printf("[INFO] scanning around %s", scanner.FormatFrequency(options.Scan.Center))
	}

	engineOptions := []func(*scanner.Engine){
		scanner.WithBookmarks(bookmark.File{Path: options.Bookmarks}),
		scanner.WithNotifier(scanner.LogNotifier{}),
	}
	if options.MQTT.Broker != "" {
		publisher, err := mqttpub.New(options.MQTT)
		if err != nil {
			log.Println("[ERROR]", err)
			return err
		}
		defer publisher.Close()
		engineOptions = append(engineOptions, scanner.WithNotifier(publisher))
	}

	engine, err := scanner.New(options.Scan, client, engineOptions...)
	if err != nil {
		log.Println("[ERROR]", err)
		return
	}

	if options.Keyboard && isatty.IsTerminal(os.Stdin.Fd()) {
		if err = keyboard.Open(); err != nil {
			log.Println("[WARN] keyboard control disabled:", err)
		} else {
			defer keyboard.Close()
			commands := make(chan userCommand)
			go getKeyPresses(commands)
			ctx = handleUserCommands(ctx, engine, commands)
			log.Println("[INFO] press space to pause, n to skip, q to quit")
		}
	}

	err = engine.Run(ctx)
	if err != nil {
		log.Println("[ERROR] scan error:", err)
	}
	return
}

// currentFrequency asks gqrx for the frequency it is tuned to.
func currentFrequency(ctx context.Context, client *gqrx.Client) (int64, error) {
	if err := client.Connect(ctx); err != nil {
		return 0, err
	}
	defer client.Close()

	freq, err := client.Frequency(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading current frequency: %w", err)
	}
	return freq, nil
}

func getKeyPresses(commands chan<- userCommand) {
	defer close(commands)
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			return
		}
		if key == keyboard.KeyCtrlC || char == 'q' || char == 'Q' {
			commands <- userCommandTerminate
			return
		} else if key == keyboard.KeySpace {
			commands <- userCommandTogglePause
		} else if char == 'n' || char == 'N' {
			commands <- userCommandNextFrequency
		}
	}
}

// handleUserCommands forwards the key presses to the engine and returns a
// context that is cancelled when the operator quits.
func handleUserCommands(ctx context.Context, engine *scanner.Engine, commands <-chan userCommand) context.Context {
	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		for command := range commands {
			switch command {
			case userCommandTogglePause:
				engine.TogglePause()
			case userCommandNextFrequency:
				engine.Skip()
			case userCommandTerminate:
				log.Println("[INFO] quit")
				cancel(ErrUserCommandTerminate)
				return
			}
		}
	}()
	return ctx
}
