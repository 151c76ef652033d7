// Package bridge is the command and frame protocol between the serial console
// and the BLE radio. A Bridge polls the console for one command per Step,
// dispatches it against a radio.Adapter and writes the reply lines back.
//
// A Bridge is single-threaded: Step, Dispatch and Run must never be called
// concurrently, and the scratch buffer is not locked. A handshake in progress
// blocks all other console input until it finishes or times out.
package bridge

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/banshee-data/blebridge/internal/console"
	"github.com/banshee-data/blebridge/internal/monitoring"
	"github.com/banshee-data/blebridge/internal/radio"
	"github.com/banshee-data/blebridge/internal/timeutil"
)

const (
	replyOK         = "OK"
	replyReboot     = "REBOOT"
	replyZero       = "0"
	replyBeginUsage = "ERR Usage: BEGIN <name> <pin>"
)

// Banner lines written once at startup.
const (
	bannerStarting    = "BLE Bridge Starting..."
	bannerInitialized = "BLEBridge Initialized"
)

// Exchange is the transcript record of one dispatched command.
type Exchange struct {
	SessionID  string
	Code       string
	Args       string
	Replies    []string
	FrameBytes int
	Started    time.Time
	Duration   time.Duration
}

// Recorder receives an Exchange after every dispatched command.
type Recorder interface {
	RecordExchange(ctx context.Context, ex Exchange) error
}

type handlerFunc func(*Bridge, context.Context, string) error

// handlers serve their code regardless of the enabled gate.
var handlers = map[string]handlerFunc{
	"STA": (*Bridge).handleStartAdv,
	"STP": (*Bridge).handleStopAdv,
	"ENA": (*Bridge).handleEnable,
	"DIS": (*Bridge).handleDisable,
	"BEG": (*Bridge).handleBegin,
	"STS": (*Bridge).handleStatus,
	"ISE": (*Bridge).handleIsEnabled,
	"ISC": (*Bridge).handleIsConnected,
	"ISW": (*Bridge).handleIsWriteBusy,
}

// gatedHandlers serve their code only while the radio is enabled. Otherwise
// the command falls through to the unknown-command reply.
var gatedHandlers = map[string]handlerFunc{
	"WRI": (*Bridge).handleWrite,
	"CHE": (*Bridge).handleCheckRecv,
}

// Stats counts bridge activity for the debug pages.
type Stats struct {
	Commands      atomic.Int64
	FramesWritten atomic.Int64
	FramesRead    atomic.Int64
	ShortReads    atomic.Int64
}

// Bridge dispatches console commands to a radio adapter.
type Bridge struct {
	console  *console.Console
	radio    radio.Adapter
	clock    timeutil.Clock
	timeouts console.Timeouts

	recorder  Recorder
	sessionID string

	// scratch holds the frame of the handshake in progress; it is only
	// valid for the duration of one command.
	scratch [radio.MaxFrameSize + 1]byte
	current *Exchange

	stats Stats
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeouts overrides console.DefaultTimeouts.
func WithTimeouts(t console.Timeouts) Option {
	return func(b *Bridge) { b.timeouts = t }
}

// WithClock sets the clock used for the poll ticker and exchange timing.
func WithClock(c timeutil.Clock) Option {
	return func(b *Bridge) { b.clock = c }
}

// WithRecorder sends every Exchange, stamped with sessionID, to r.
func WithRecorder(r Recorder, sessionID string) Option {
	return func(b *Bridge) {
		b.recorder = r
		b.sessionID = sessionID
	}
}

// New returns a Bridge serving con with adapter.
func New(con *console.Console, adapter radio.Adapter, opts ...Option) *Bridge {
	b := &Bridge{
		console:  con,
		radio:    adapter,
		clock:    timeutil.RealClock{},
		timeouts: console.DefaultTimeouts(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stats returns the live activity counters.
func (b *Bridge) Stats() *Stats { return &b.stats }

// Announce writes the startup banner.
func (b *Bridge) Announce() error {
	b.console.Println(bannerStarting)
	b.console.Println(bannerInitialized)
	return b.console.Flush()
}

// Run calls Step once per tick of interval until ctx is done or the port
// fails.
func (b *Bridge) Run(ctx context.Context, interval time.Duration) error {
	ticker := b.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := b.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
	}
}

// Step polls the console for at most one command and dispatches it. A poll
// that finds no command returns nil immediately after the sentinel timeout.
func (b *Bridge) Step(ctx context.Context) error {
	line, ok, err := b.console.ReadCommand(ctx, b.timeouts)
	if err != nil {
		return fmt.Errorf("read command: %w", err)
	}
	if !ok {
		return nil
	}
	monitoring.Tracef("rx %q", line)
	return b.Dispatch(ctx, ParseCommand(line))
}

// Dispatch runs one command to completion, including any handshake, and
// flushes its replies.
func (b *Bridge) Dispatch(ctx context.Context, cmd CommandLine) error {
	ex := &Exchange{
		SessionID: b.sessionID,
		Code:      cmd.Code,
		Args:      cmd.Args,
		Started:   b.clock.Now(),
	}
	b.current = ex
	defer func() { b.current = nil }()
	b.stats.Commands.Add(1)

	err := b.dispatch(ctx, cmd)
	if flushErr := b.console.Flush(); err == nil && flushErr != nil {
		err = flushErr
	}
	ex.Duration = b.clock.Since(ex.Started)

	if b.recorder != nil {
		if recErr := b.recorder.RecordExchange(context.WithoutCancel(ctx), *ex); recErr != nil {
			monitoring.Logf("failed to record %s exchange: %v", cmd.Code, recErr)
		}
	}
	return err
}

func (b *Bridge) dispatch(ctx context.Context, cmd CommandLine) error {
	if h, ok := handlers[cmd.Code]; ok {
		return h(b, ctx, cmd.Args)
	}
	if h, ok := gatedHandlers[cmd.Code]; ok && b.radio.Enabled() {
		return h(b, ctx, cmd.Args)
	}
	if b.radio.Enabled() {
		b.reply(fmt.Sprintf("ERR Unknown command: %s %s Enabled: 1", cmd.Code, cmd.Args))
	} else {
		b.reply(replyReboot)
	}
	return nil
}

// reply buffers one terminated reply line.
func (b *Bridge) reply(line string) {
	monitoring.Tracef("tx %q", line)
	b.console.Println(line)
	if b.current != nil {
		b.current.Replies = append(b.current.Replies, line)
	}
}

// emit buffers an unterminated token.
func (b *Bridge) emit(token string) {
	monitoring.Tracef("tx %q (bare)", token)
	b.console.Print(token)
	if b.current != nil {
		b.current.Replies = append(b.current.Replies, token)
	}
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (b *Bridge) handleStartAdv(_ context.Context, _ string) error {
	b.radio.StartAdvertising()
	b.reply(replyOK)
	return nil
}

func (b *Bridge) handleStopAdv(_ context.Context, _ string) error {
	b.radio.StopAdvertising()
	b.reply(replyOK)
	return nil
}

func (b *Bridge) handleEnable(_ context.Context, _ string) error {
	b.radio.SetEnabled(true)
	b.reply(replyOK)
	return nil
}

func (b *Bridge) handleDisable(_ context.Context, _ string) error {
	b.radio.SetEnabled(false)
	b.reply(replyOK)
	return nil
}

// handleBegin starts the radio under the given name. The Begin line goes to the
// diagnostic log rather than the console, so the only reply is OK.
func (b *Bridge) handleBegin(_ context.Context, args string) error {
	name, pin, ok := parseBegin(args)
	if !ok {
		b.reply(replyBeginUsage)
		return nil
	}
	monitoring.Logf("BLEBridge Begin: %s PIN: %d", name, pin)
	b.radio.Begin(name, pin)
	b.reply(replyOK)
	return nil
}

func (b *Bridge) handleStatus(_ context.Context, _ string) error {
	b.reply(fmt.Sprintf("ENABLED=%s CONNECTED=%s WRITE_BUSY=%s",
		flag(b.radio.Enabled()), flag(b.radio.Connected()), flag(b.radio.WriteBusy())))
	return nil
}

func (b *Bridge) handleIsEnabled(_ context.Context, _ string) error {
	b.reply(flag(b.radio.Enabled()))
	return nil
}

func (b *Bridge) handleIsConnected(_ context.Context, _ string) error {
	b.reply(flag(b.radio.Connected()))
	return nil
}

func (b *Bridge) handleIsWriteBusy(_ context.Context, _ string) error {
	b.reply(flag(b.radio.WriteBusy()))
	return nil
}

// handleWrite runs the host-to-peer handshake: announce RDY, take up to the
// declared number of raw bytes within the frame timeout, and forward whatever
// arrived. A short read is reported but never aborts the transfer.
//
// A zero-byte read replies "0" before the write result, so it produces two
// lines.
func (b *Bridge) handleWrite(ctx context.Context, args string) error {
	want := parseLength(args)

	b.emit(console.ReadyToken)
	if err := b.console.Flush(); err != nil {
		return err
	}

	// reads are capped at the scratch buffer; anything larger is reported as
	// a short read below
	buf := b.scratch[:]
	if want < uint64(len(buf)) {
		buf = buf[:want]
	}
	res, err := b.console.ReadFull(ctx, buf, b.timeouts.Frame)
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	got := res.N

	if uint64(got) != want {
		b.stats.ShortReads.Add(1)
		b.reply(fmt.Sprintf("ERR Expected to read %d bytes, but got %d", want, got))
	}
	if got == 0 {
		b.reply(replyZero)
	}

	written := b.radio.WriteFrame(b.scratch[:got])
	if b.current != nil {
		b.current.FrameBytes = got
	}
	if written == got {
		if got > 0 {
			b.stats.FramesWritten.Add(1)
		}
		b.reply(strconv.Itoa(written))
	} else {
		b.reply(replyZero)
	}
	return nil
}

// handleCheckRecv runs the peer-to-host handshake: announce the length of the
// next inbound frame, wait until the host answers RDY, then send the raw
// bytes. Nothing binary is written before RDY.
func (b *Bridge) handleCheckRecv(ctx context.Context, _ string) error {
	n := b.radio.PollReceivedFrame(b.scratch[:])
	if n <= 0 {
		b.reply(replyZero)
		return nil
	}

	b.reply(strconv.Itoa(n))
	if err := b.console.Flush(); err != nil {
		return err
	}

	ready, err := b.console.WaitForToken(ctx, console.ReadyToken, b.timeouts.Ready)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", console.ReadyToken, err)
	}
	if !ready {
		monitoring.Logf("no %s within %v, dropping %d byte frame", console.ReadyToken, b.timeouts.Ready, n)
		return nil
	}

	b.console.Write(b.scratch[:n])
	if b.current != nil {
		b.current.FrameBytes = n
	}
	b.stats.FramesRead.Add(1)
	return b.console.Flush()
}
