// scan engine
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scanner drives gqrx through a frequency sweep or a bookmark list,
// stopping on active frequencies until they have been quiet for a while.
package scanner

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"gqrx-scanner/internal/bookmark"
	"gqrx-scanner/internal/gqrx"
	"gqrx-scanner/internal/squelch"
	"gqrx-scanner/internal/udp"
)

const (
	pausePoll       = 100 * time.Millisecond
	shutdownTimeout = 2 * time.Second
)

// Receiver is the remote control channel of the receiver. Implementations
// return gqrx.ConnectError when the link is down and gqrx.ProtocolError for
// bad replies.
type Receiver interface {
	Connect(ctx context.Context) error
	SetFrequency(ctx context.Context, hz int64) error
	SignalLevel(ctx context.Context) (float64, error)
	Squelch(ctx context.Context) (float64, error)
	SetSquelch(ctx context.Context, db float64) error
	Close() error
}

// ActivityDetector is an additional source of activity, such as the UDP
// audio monitor. LastActivity returns the time of the most recent activity
// and false when there has been none.
type ActivityDetector interface {
	LastActivity() (time.Time, bool)
}

// BookmarkSource supplies the bookmarks scanned in bookmark mode.
type BookmarkSource interface {
	Bookmarks() ([]bookmark.Bookmark, error)
}

// Clock is the time source of the engine. Sleep must return the context
// error as soon as ctx is done.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State is the position of the engine in its scan cycle.
type State int32

const (
	StateIdle State = iota
	StateTuning
	StateSampling
	StateListening
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTuning:
		return "tuning"
	case StateSampling:
		return "sampling"
	case StateListening:
		return "listening"
	default:
		return fmt.Sprintf("invalid state: %d", s)
	}
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) func(*Engine) {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithNotifier adds a receiver of scan events. Without notifiers the events
// are logged.
func WithNotifier(n Notifier) func(*Engine) {
	return func(e *Engine) {
		e.notifiers = append(e.notifiers, n)
	}
}

// WithBookmarks sets the bookmark source, required in bookmark mode.
func WithBookmarks(source BookmarkSource) func(*Engine) {
	return func(e *Engine) {
		e.bookmarks = source
	}
}

// WithActivityDetector replaces the UDP monitor the engine would otherwise
// start when UDP listening is enabled. Only activity after the current
// frequency was tuned and within the UDP window counts.
func WithActivityDetector(d ActivityDetector) func(*Engine) {
	return func(e *Engine) {
		e.detector = d
	}
}

// WithReconnectBackoff sets the wait before reconnecting a dropped channel.
func WithReconnectBackoff(d time.Duration) func(*Engine) {
	return func(e *Engine) {
		e.backoff = d
	}
}

// Engine is the scan state machine. Run drives the receiver from a single
// goroutine; TogglePause and Skip may be called from any goroutine.
type Engine struct {
	config     Config
	receiver   Receiver
	bookmarks  BookmarkSource
	detector   ActivityDetector
	monitor    *udp.Monitor
	calibrator *squelch.Calibrator
	cursor     Cursor
	clock      Clock
	notifiers  []Notifier
	backoff    time.Duration

	state  atomic.Int32
	paused atomic.Bool
	skip   atomic.Bool

	target   Target
	tunedAt  time.Time
	activity Activity

	baseSquelch float64
	squelchRead bool
	squelchSet  bool
}

// New validates config and prepares the scan targets. It performs no
// network I/O; configuration problems are returned as *ConfigError.
func New(config Config, receiver Receiver, options ...func(*Engine)) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := Engine{
		config:   config,
		receiver: receiver,
		clock:    realClock{},
		backoff:  DefaultReconnectBackoff,
		calibrator: squelch.New(squelch.Settings{
			Delta: config.SquelchDelta,
			Auto:  config.SquelchDeltaAuto,
			Top:   config.SquelchDeltaTop,
		}),
	}

	for _, option := range options {
		option(&e)
	}

	if len(e.notifiers) == 0 {
		e.notifiers = []Notifier{LogNotifier{}}
	}
	if !config.UDPListen {
		e.detector = nil
	}

	var bookmarks []bookmark.Bookmark
	if config.Mode == ModeBookmark {
		if e.bookmarks == nil {
			return nil, configErrorf("bookmark mode needs a bookmark source")
		}
		var err error
		if bookmarks, err = e.bookmarks.Bookmarks(); err != nil {
			return nil, configErrorf("reading bookmarks: %v", err)
		}
	}

	cursor, err := newCursor(&e.config, bookmarks)
	if err != nil {
		return nil, err
	}
	e.cursor = cursor

	return &e, nil
}

// State returns the current state of the engine.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Targets returns the number of frequencies in one scan pass.
func (e *Engine) Targets() int {
	return e.cursor.Len()
}

// TogglePause suspends or resumes scanning and returns the new paused state.
func (e *Engine) TogglePause() bool {
	paused := !e.paused.Load()
	e.paused.Store(paused)
	if paused {
		log.Println("[INFO] scan paused")
	} else {
		log.Println("[INFO] scan resumed")
	}
	return paused
}

// Skip abandons the current frequency and moves on to the next one.
func (e *Engine) Skip() {
	e.skip.Store(true)
}

// Run scans until ctx is cancelled, which is not an error, or until the
// control channel is lost for good. The control channel and the UDP monitor
// are closed before Run returns.
func (e *Engine) Run(ctx context.Context) (err error) {
	defer e.shutdown()

	log.Printf("[INFO] connecting to gqrx at %s:%d", e.config.Host, e.config.Port)
	if err = e.receiver.Connect(ctx); err != nil {
		if gqrx.IsConnectError(err) {
			err = e.reconnect(ctx, "connect", err)
		}
		if err != nil {
			return e.exitError(ctx, fmt.Errorf("connecting to gqrx: %w", err))
		}
	}

	if err = e.readBaseSquelch(ctx); err != nil {
		return e.exitError(ctx, err)
	}
	e.startUDP(ctx)

	log.Printf("[INFO] %s scan of %d frequencies started", e.config.Mode, e.cursor.Len())

	state := StateIdle
	for {
		e.state.Store(int32(state))
		switch state {
		case StateIdle:
			state, err = e.idle(ctx)
		case StateTuning:
			state, err = e.tune(ctx)
		case StateSampling:
			state, err = e.sample(ctx)
		case StateListening:
			state, err = e.listen(ctx)
		}
		if err != nil {
			return e.exitError(ctx, err)
		}
	}
}

func (e *Engine) exitError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (e *Engine) readBaseSquelch(ctx context.Context) error {
	sql, ok, err := e.query(ctx, "read squelch", e.receiver.Squelch)
	if err != nil {
		return err
	}
	if !ok {
		log.Println("[WARN] receiver squelch unknown, using 0 dB as base level")
		return nil
	}
	e.baseSquelch = sql
	e.squelchRead = true
	e.calibrator.SetBase(sql)
	log.Printf("[DEBUG] receiver squelch %.1fdB", sql)
	return nil
}

func (e *Engine) startUDP(ctx context.Context) {
	if !e.config.UDPListen || e.detector != nil {
		return
	}
	m, err := udp.Listen(e.config.UDPAddress)
	if err != nil {
		log.Printf("[ERROR] %v: UDP activity detection disabled", err)
		return
	}
	m.Start(ctx)
	e.monitor = m
	e.detector = m
	log.Printf("[INFO] listening for gqrx UDP audio on %s", m.Addr())
}

func (e *Engine) idle(ctx context.Context) (State, error) {
	for e.paused.Load() {
		if err := e.clock.Sleep(ctx, pausePoll); err != nil {
			return StateIdle, err
		}
	}
	return StateTuning, nil
}

func (e *Engine) tune(ctx context.Context) (State, error) {
	e.skip.Store(false)
	e.target = e.cursor.Next()
	freq := e.target.Frequency

	err := e.withReconnect(ctx, "set frequency", func() error {
		return e.receiver.SetFrequency(ctx, freq)
	})
	if err != nil {
		if gqrx.IsProtocolError(err) {
			log.Printf("[WARN] tuning %s: %v", FormatFrequency(freq), err)
			return StateIdle, nil
		}
		return StateIdle, err
	}
	e.tunedAt = e.clock.Now()
	log.Printf("[DEBUG] tuned %s", FormatFrequency(freq))

	if e.calibrator.NeedsBaseline() {
		level, ok, err := e.query(ctx, "read noise floor", e.receiver.SignalLevel)
		if err != nil {
			return StateIdle, err
		}
		if ok {
			nf := e.calibrator.Observe(freq, level)
			log.Printf("[DEBUG] noise floor %.1fdB after %d samples", nf.Level, nf.Samples)
		}
	}

	if e.config.ReceiverSquelch {
		threshold := e.calibrator.Threshold(freq)
		err := e.withReconnect(ctx, "set squelch", func() error {
			return e.receiver.SetSquelch(ctx, threshold)
		})
		switch {
		case err == nil:
			e.squelchSet = true
		case gqrx.IsProtocolError(err):
			log.Printf("[WARN] set squelch: %v", err)
		default:
			return StateIdle, err
		}
	}

	return StateSampling, nil
}

func (e *Engine) sample(ctx context.Context) (State, error) {
	if err := e.wait(ctx, e.config.probeInterval()); err != nil {
		return StateIdle, err
	}
	if e.skip.Swap(false) {
		return StateIdle, nil
	}

	active, decision, source, err := e.detect(ctx)
	if err != nil {
		return StateIdle, err
	}
	if !active {
		return StateIdle, nil
	}

	now := e.clock.Now()
	e.activity = Activity{Listening: true, Since: now, Source: source}
	e.notify(Event{
		Kind:      EventActive,
		Time:      now,
		Target:    e.target,
		Level:     decision.Level,
		Threshold: decision.Threshold,
		Source:    source,
	})
	return StateListening, nil
}

func (e *Engine) listen(ctx context.Context) (State, error) {
	since := e.activity.Since
	var quiet bool
	var quietSince time.Time

	for {
		poll := e.config.probeInterval()
		if e.config.MaxListen > 0 {
			remaining := since.Add(e.config.MaxListen).Sub(e.clock.Now())
			if remaining <= 0 {
				return e.deactivate(ReasonTimeout), nil
			}
			poll = min(poll, remaining)
		}

		if err := e.wait(ctx, poll); err != nil {
			return StateListening, err
		}
		if e.skip.Swap(false) {
			return e.deactivate(ReasonSkipped), nil
		}

		now := e.clock.Now()
		if e.config.MaxListen > 0 && now.Sub(since) >= e.config.MaxListen {
			return e.deactivate(ReasonTimeout), nil
		}

		active, _, _, err := e.detect(ctx)
		if err != nil {
			return StateListening, err
		}
		switch {
		case active:
			quiet = false
		case !quiet:
			quiet = true
			quietSince = now
		}
		if quiet && now.Sub(quietSince) >= e.config.Delay {
			return e.deactivate(ReasonQuiet), nil
		}
	}
}

func (e *Engine) deactivate(reason Reason) State {
	now := e.clock.Now()
	e.notify(Event{
		Kind:     EventInactive,
		Time:     now,
		Target:   e.target,
		Source:   e.activity.Source,
		Reason:   reason,
		Duration: now.Sub(e.activity.Since),
	})
	e.activity = Activity{}
	return StateIdle
}

// detect samples the current frequency. A reading that fails with a
// ProtocolError counts as no activity from the control channel.
func (e *Engine) detect(ctx context.Context) (bool, squelch.Decision, Source, error) {
	level, ok, err := e.query(ctx, "read signal level", e.receiver.SignalLevel)
	if err != nil {
		return false, squelch.Decision{}, SourceLevel, err
	}

	var decision squelch.Decision
	if ok {
		decision = e.calibrator.Decide(e.target.Frequency, level)
		log.Printf("[DEBUG] %s %s", FormatFrequency(e.target.Frequency), decision)
		if decision.Active {
			return true, decision, SourceLevel, nil
		}
	}
	if e.udpActive() {
		return true, decision, SourceUDP, nil
	}
	return false, decision, SourceLevel, nil
}

// udpActive reports whether the detector saw activity since the current
// frequency was tuned and within the UDP window. Datagrams buffered from
// the previous frequency do not count.
func (e *Engine) udpActive() bool {
	if e.detector == nil {
		return false
	}
	last, ok := e.detector.LastActivity()
	if !ok || !last.After(e.tunedAt) {
		return false
	}
	return e.clock.Now().Sub(last) <= e.config.UDPWindow
}

// query reads a value from the receiver. ok is false when the reading failed
// with a ProtocolError; err is only set when scanning cannot continue.
func (e *Engine) query(ctx context.Context, op string, read func(context.Context) (float64, error)) (value float64, ok bool, err error) {
	err = e.withReconnect(ctx, op, func() error {
		var readErr error
		value, readErr = read(ctx)
		return readErr
	})
	switch {
	case err == nil:
		return value, true, nil
	case gqrx.IsProtocolError(err):
		log.Printf("[WARN] %s: %v", op, err)
		return 0, false, nil
	default:
		return 0, false, err
	}
}

// withReconnect runs call and, when the channel turns out to be dead,
// reconnects exactly once and retries. A second failure is returned.
func (e *Engine) withReconnect(ctx context.Context, op string, call func() error) error {
	err := call()
	if err == nil || !gqrx.IsConnectError(err) {
		return err
	}
	if err = e.reconnect(ctx, op, err); err != nil {
		return err
	}

	if err = call(); err != nil && gqrx.IsConnectError(err) {
		return fmt.Errorf("%s: failed after reconnect: %w", op, err)
	}
	return err
}

// reconnect waits for the backoff and connects once more after op failed
// with cause.
func (e *Engine) reconnect(ctx context.Context, op string, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log.Printf("[WARN] %s: %v: reconnecting", op, cause)
	if err := e.clock.Sleep(ctx, e.backoff); err != nil {
		return err
	}
	if err := e.receiver.Connect(ctx); err != nil {
		return fmt.Errorf("%s: reconnect failed: %w", op, err)
	}
	log.Println("[INFO] reconnected to gqrx")
	return nil
}

// wait sleeps for d and then for as long as the scan is paused.
func (e *Engine) wait(ctx context.Context, d time.Duration) error {
	if err := e.clock.Sleep(ctx, d); err != nil {
		return err
	}
	for e.paused.Load() {
		if err := e.clock.Sleep(ctx, pausePoll); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) notify(event Event) {
	event.Stamp = event.Time.Format(e.config.DateFormat.Layout())
	for _, n := range e.notifiers {
		n.Notify(event)
	}
}

func (e *Engine) shutdown() {
	if e.activity.Listening {
		e.deactivate(ReasonShutdown)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if e.squelchSet && e.squelchRead {
		if err := e.receiver.SetSquelch(ctx, e.baseSquelch); err != nil {
			log.Printf("[WARN] restoring receiver squelch: %v", err)
		}
	}
	if err := e.receiver.Close(); err != nil {
		log.Printf("[WARN] closing gqrx connection: %v", err)
	}
	if e.monitor != nil {
		if err := e.monitor.Close(); err != nil {
			log.Printf("[WARN] closing UDP monitor: %v", err)
		}
		e.monitor = nil
	}
	e.state.Store(int32(StateIdle))
}
