// gqrx UDP audio activity monitor
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package udp watches the UDP audio stream gqrx sends while its squelch is
// open. Payloads are not decoded: a datagram arriving means audio is present.
package udp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultAddress is the gqrx default UDP audio port.
const DefaultAddress = ":7355"

const bufferSize = 65536

// Error reports a socket failure of the monitor.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("udp %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Monitor records the arrival time of the last datagram. It has a single
// writer (the listener goroutine) and any number of readers.
type Monitor struct {
	conn net.PacketConn

	lastActivity atomic.Int64 // unix nanoseconds, 0 = never
	datagrams    atomic.Uint64

	wg        sync.WaitGroup
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Listen binds the monitor to addr.
func Listen(addr string) (*Monitor, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, &Error{Op: "listen", Err: err}
	}
	return &Monitor{conn: conn}, nil
}

// Addr returns the local address the monitor is bound to.
func (m *Monitor) Addr() net.Addr {
	return m.conn.LocalAddr()
}

// Start runs the listener in the background until ctx is done or Close is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()

	go func() {
		<-ctx.Done()
		m.conn.Close()
	}()
}

func (m *Monitor) run(ctx context.Context) {
	buf := make([]byte, bufferSize)
	for {
		_, _, err := m.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("[WARN] %v", &Error{Op: "read", Err: err})
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			// the socket is unusable: activity detection degrades to "never active"
			return
		}
		m.lastActivity.Store(time.Now().UnixNano())
		m.datagrams.Add(1)
	}
}

// IsActive reports whether a datagram arrived within window before now.
func (m *Monitor) IsActive(now time.Time, window time.Duration) bool {
	last := m.lastActivity.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) <= window
}

// LastActivity returns the arrival time of the last datagram.
func (m *Monitor) LastActivity() (time.Time, bool) {
	last := m.lastActivity.Load()
	if last == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, last), true
}

// Datagrams returns the number of datagrams received so far.
func (m *Monitor) Datagrams() uint64 {
	return m.datagrams.Load()
}

// Close stops the listener and waits for it to exit.
func (m *Monitor) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		err = m.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		m.wg.Wait()
	})
	return err
}
