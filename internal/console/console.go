// Package console frames the bridge's text console on top of a serial port.
// Input is consumed through deadline-bounded reads that never fail on a
// timeout: they report how much arrived and whether the deadline expired, and
// the caller decides what a short read means. Output is buffered until Flush.
package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/blebridge/internal/serialport"
	"github.com/banshee-data/blebridge/internal/timeutil"
)

const (
	// Sentinel marks the start of a command line.
	Sentinel byte = '&'
	// LineTerminator ends every reply line.
	LineTerminator = "\r\n"
	// ReadyToken tells the other side that a binary burst may follow.
	ReadyToken = "RDY"
)

// pollSlice bounds a single port read so that deadlines and context
// cancellation are observed even while waiting without a timeout.
const pollSlice = 100 * time.Millisecond

// Timeouts bounds each suspension point of the protocol.
type Timeouts struct {
	// Sentinel bounds the scan for the '&' that opens a command.
	Sentinel time.Duration
	// Line bounds reading the rest of a command once the sentinel was seen.
	Line time.Duration
	// Frame bounds the bulk read of a WRI payload.
	Frame time.Duration
	// Ready bounds the wait for RDY before a CHE burst. Zero waits forever.
	Ready time.Duration
}

// DefaultTimeouts returns the standard console timeouts. Ready is zero, so the
// RDY wait is unbounded.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Sentinel: 50 * time.Millisecond,
		Line:     1000 * time.Millisecond,
		Frame:    5000 * time.Millisecond,
	}
}

// ReadResult reports the outcome of a bounded read.
type ReadResult struct {
	N        int
	TimedOut bool
}

// Console reads commands and payloads from a port and writes replies to it.
// It is not safe for concurrent use.
type Console struct {
	port    serialport.Port
	clock   timeutil.Clock
	out     *bufio.Writer
	pending []byte
	chunk   []byte
}

// New wraps port. A nil clock uses the real clock.
func New(port serialport.Port, clock timeutil.Clock) *Console {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Console{
		port:  port,
		clock: clock,
		out:   bufio.NewWriterSize(port, 512),
		chunk: make([]byte, 256),
	}
}

// fill performs one port read, waiting at most until deadline (or pollSlice
// when unbounded). It reports whether any bytes arrived.
func (c *Console) fill(ctx context.Context, deadline time.Time, bounded bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	wait := pollSlice
	if bounded {
		remaining := deadline.Sub(c.clock.Now())
		if remaining <= 0 {
			return false, nil
		}
		if remaining < wait {
			wait = remaining
		}
	}
	if tp, ok := c.port.(serialport.TimeoutPort); ok {
		if err := tp.SetReadTimeout(wait); err != nil {
			return false, fmt.Errorf("set read timeout: %w", err)
		}
	}

	n, err := c.port.Read(c.chunk)
	if n > 0 {
		c.pending = append(c.pending, c.chunk[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n > 0, serialport.ErrPortClosed
		}
		return n > 0, fmt.Errorf("read serial port: %w", err)
	}
	return n > 0, nil
}

func (c *Console) consume(n int) {
	c.pending = append(c.pending[:0], c.pending[n:]...)
}

func (c *Console) expired(deadline time.Time) bool {
	return !c.clock.Now().Before(deadline)
}

// FindByte consumes input up to and including b. Everything scanned before b
// is discarded, including bytes scanned before a timeout.
func (c *Console) FindByte(ctx context.Context, b byte, timeout time.Duration) (bool, error) {
	deadline := c.clock.Now().Add(timeout)
	for {
		if i := bytes.IndexByte(c.pending, b); i >= 0 {
			c.consume(i + 1)
			return true, nil
		}
		c.pending = c.pending[:0]
		if c.expired(deadline) {
			return false, nil
		}
		if _, err := c.fill(ctx, deadline, true); err != nil {
			return false, err
		}
	}
}

// ReadLine reads up to the next '\n', consumes the terminator and returns the
// line trimmed of surrounding whitespace. When no terminator arrives before
// the timeout the partial line is discarded and ok is false.
func (c *Console) ReadLine(ctx context.Context, timeout time.Duration) (line string, ok bool, err error) {
	deadline := c.clock.Now().Add(timeout)
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line = strings.TrimSpace(string(c.pending[:i]))
			c.consume(i + 1)
			return line, true, nil
		}
		if c.expired(deadline) {
			c.pending = c.pending[:0]
			return "", false, nil
		}
		if _, err := c.fill(ctx, deadline, true); err != nil {
			return "", false, err
		}
	}
}

// ReadCommand runs one Line Reader poll: a short sentinel scan, then a longer
// bounded read of the rest of the line. ok is false when there is no command
// this poll, which covers a missing sentinel, a line timeout and an empty line.
func (c *Console) ReadCommand(ctx context.Context, t Timeouts) (string, bool, error) {
	found, err := c.FindByte(ctx, Sentinel, t.Sentinel)
	if err != nil || !found {
		return "", false, err
	}
	line, ok, err := c.ReadLine(ctx, t.Line)
	if err != nil || !ok || line == "" {
		return "", false, err
	}
	return line, true, nil
}

// ReadFull tries to fill buf before the timeout expires. A short read is not
// an error: the result reports how many bytes arrived.
func (c *Console) ReadFull(ctx context.Context, buf []byte, timeout time.Duration) (ReadResult, error) {
	deadline := c.clock.Now().Add(timeout)
	n := copy(buf, c.pending)
	c.consume(n)
	for n < len(buf) {
		if c.expired(deadline) {
			return ReadResult{N: n, TimedOut: true}, nil
		}
		if _, err := c.fill(ctx, deadline, true); err != nil {
			return ReadResult{N: n}, err
		}
		m := copy(buf[n:], c.pending)
		c.consume(m)
		n += m
	}
	return ReadResult{N: n}, nil
}

// WaitForToken consumes input until token has been seen. Bytes after the
// token stay buffered. A zero timeout waits until the token arrives or ctx is
// done.
func (c *Console) WaitForToken(ctx context.Context, token string, timeout time.Duration) (bool, error) {
	if token == "" {
		return true, nil
	}
	bounded := timeout > 0
	deadline := c.clock.Now().Add(timeout)
	matched := 0
	for {
		for i, b := range c.pending {
			switch {
			case b == token[matched]:
				matched++
			case b == token[0]:
				matched = 1
			default:
				matched = 0
			}
			if matched == len(token) {
				c.consume(i + 1)
				return true, nil
			}
		}
		c.pending = c.pending[:0]
		if bounded && c.expired(deadline) {
			return false, nil
		}
		if _, err := c.fill(ctx, deadline, bounded); err != nil {
			return false, err
		}
	}
}

// Print buffers s without a terminator.
func (c *Console) Print(s string) {
	_, _ = c.out.WriteString(s)
}

// Println buffers s followed by LineTerminator.
func (c *Console) Println(s string) {
	_, _ = c.out.WriteString(s)
	_, _ = c.out.WriteString(LineTerminator)
}

// Write buffers raw bytes.
func (c *Console) Write(p []byte) {
	_, _ = c.out.Write(p)
}

// Flush pushes buffered output to the port and, when the port supports it,
// waits until it has been transmitted. Write errors are sticky: once a write
// fails every later Flush reports it.
func (c *Console) Flush() error {
	if err := c.out.Flush(); err != nil {
		return fmt.Errorf("write serial port: %w", err)
	}
	if d, ok := c.port.(serialport.Drainer); ok {
		if err := d.Drain(); err != nil {
			return fmt.Errorf("drain serial port: %w", err)
		}
	}
	return nil
}
