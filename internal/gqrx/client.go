// gqrx remote control client
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gqrx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultHost    = "localhost"
	DefaultPort    = 7356
	DefaultTimeout = 2 * time.Second
)

// WithTimeout sets the maximum time to wait for a connection or a reply.
func WithTimeout(timeout time.Duration) func(*Client) {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client talks to the gqrx remote control socket. Every command is a single
// line answered by a single line; requests are never pipelined.
type Client struct {
	addr    string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// New creates a client for host:port. No connection is made until Connect.
func New(host string, port int, options ...func(*Client)) *Client {
	c := Client{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: DefaultTimeout,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Addr returns the remote control address.
func (c *Client) Addr() string {
	return c.addr
}

// Connect dials the remote control endpoint, replacing any previous
// connection. It makes exactly one attempt.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return &ConnectError{Addr: c.addr, Op: "connect", Err: err}
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Connected reports whether the channel currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SetFrequency tunes the receiver to hz.
func (c *Client) SetFrequency(ctx context.Context, hz int64) error {
	return c.command(ctx, fmt.Sprintf("F %d", hz))
}

// Frequency returns the frequency the receiver is tuned to.
func (c *Client) Frequency(ctx context.Context) (int64, error) {
	reply, err := c.exchange(ctx, "f")
	if err != nil {
		return 0, err
	}
	hz, err := strconv.ParseInt(reply, 10, 64)
	if err != nil {
		return 0, &ProtocolError{Command: "f", Reply: reply, Err: err}
	}
	return hz, nil
}

// SignalLevel returns the current signal strength in dBFS.
func (c *Client) SignalLevel(ctx context.Context) (float64, error) {
	return c.level(ctx, "l STRENGTH")
}

// Squelch returns the squelch level configured in the receiver.
func (c *Client) Squelch(ctx context.Context) (float64, error) {
	return c.level(ctx, "l SQL")
}

// SetSquelch changes the receiver squelch level.
func (c *Client) SetSquelch(ctx context.Context, db float64) error {
	return c.command(ctx, "L SQL "+strconv.FormatFloat(db, 'f', 1, 64))
}

// Close ends the remote control session. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// let gqrx close its side of the session
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	io.WriteString(c.conn, "c\n")

	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

func (c *Client) level(ctx context.Context, cmd string) (float64, error) {
	reply, err := c.exchange(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if strings.HasPrefix(reply, "RPRT") {
		return 0, &ProtocolError{Command: cmd, Reply: reply}
	}
	value, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, &ProtocolError{Command: cmd, Reply: reply, Err: err}
	}
	return value, nil
}

func (c *Client) command(ctx context.Context, cmd string) error {
	reply, err := c.exchange(ctx, cmd)
	if err != nil {
		return err
	}
	code, ok := strings.CutPrefix(reply, "RPRT ")
	if !ok {
		return &ProtocolError{Command: cmd, Reply: reply}
	}
	if code != "0" {
		return &ProtocolError{Command: cmd, Reply: reply, Err: fmt.Errorf("error code %s", code)}
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return "", &ConnectError{Addr: c.addr, Op: cmd, Err: ErrNotConnected}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn := c.conn
	conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, cmd+"\n"); err != nil {
		return "", c.drop(ctx, cmd, err)
	}
	reply, err := c.reader.ReadString('\n')
	if err != nil {
		return "", c.drop(ctx, cmd, err)
	}

	return strings.TrimSpace(reply), nil
}

// drop closes a connection whose request/response sequence can no longer be
// trusted. Must be called with c.mu held.
func (c *Client) drop(ctx context.Context, cmd string, err error) error {
	c.conn.Close()
	c.conn = nil
	c.reader = nil

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &ConnectError{Addr: c.addr, Op: cmd, Err: err}
}
