// gqrx remote control errors
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gqrx

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a request is issued on a channel that
// was never connected or was dropped by a previous ConnectError.
var ErrNotConnected = errors.New("not connected")

// ConnectError reports that the control channel is unreachable or dropped.
// After a ConnectError the client must be connected again before use.
type ConnectError struct {
	Addr string
	Op   string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("gqrx %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ProtocolError reports an error reply or a reply that could not be parsed.
// The connection stays usable.
type ProtocolError struct {
	Command string
	Reply   string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gqrx %q: unexpected reply %q: %v", e.Command, e.Reply, e.Err)
	}
	return fmt.Sprintf("gqrx %q: unexpected reply %q", e.Command, e.Reply)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsConnectError reports whether err is, or wraps, a ConnectError.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce) || errors.Is(err, ErrNotConnected)
}

// IsProtocolError reports whether err is, or wraps, a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
