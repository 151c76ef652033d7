// Package stub provides an in-memory radio.Adapter for host-side development
// and tests. The "peer" side is driven through Connect, Deliver and TakeSent.
package stub

import (
	"sync"

	"github.com/banshee-data/blebridge/internal/monitoring"
	"github.com/banshee-data/blebridge/internal/radio"
)

// Options configures a stub adapter.
type Options struct {
	// Connected starts the adapter with a peer already attached.
	Connected bool
	// Loopback feeds every written frame straight back to the inbound queue.
	Loopback bool
}

// Adapter implements radio.Adapter without hardware.
type Adapter struct {
	mu sync.Mutex

	opts        Options
	name        string
	pin         uint32
	begun       bool
	enabled     bool
	advertising bool
	connected   bool

	send radio.FrameQueue
	recv radio.FrameQueue
}

var _ radio.Adapter = (*Adapter)(nil)

// New returns a disabled stub adapter.
func New(opts Options) *Adapter {
	return &Adapter{opts: opts, connected: opts.Connected}
}

func (a *Adapter) StartAdvertising() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advertising = true
}

func (a *Adapter) StopAdvertising() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advertising = false
}

// Begin records the identity and brings the radio up, like the real adapter.
func (a *Adapter) Begin(name string, pin uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.name = name
	a.pin = pin
	a.begun = true
	a.enableLocked()
}

func (a *Adapter) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if enabled {
		a.enableLocked()
		return
	}
	a.enabled = false
	a.advertising = false
}

// enableLocked clears both queues on the transition to enabled and does
// nothing while already enabled.
func (a *Adapter) enableLocked() {
	if a.enabled {
		return
	}
	a.enabled = true
	a.send.Reset()
	a.recv.Reset()
	a.advertising = true
}

func (a *Adapter) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *Adapter) WriteBusy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.send.Busy()
}

func (a *Adapter) WriteFrame(frame []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(frame) > radio.MaxFrameSize {
		monitoring.Logf("stub radio: refusing %d byte frame (max %d)", len(frame), radio.MaxFrameSize)
		return 0
	}
	if len(frame) == 0 || !a.enabled || !a.connected {
		return 0
	}
	if a.opts.Loopback {
		a.recv.PushDropOldest(frame)
		return len(frame)
	}
	if !a.send.Push(frame) {
		return 0
	}
	return len(frame)
}

func (a *Adapter) PollReceivedFrame(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame, ok := a.recv.Pop()
	if !ok {
		return 0
	}
	return copy(dst, frame)
}

// Connect attaches a simulated peer.
func (a *Adapter) Connect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = true
	a.advertising = false
}

// Disconnect detaches the peer and drops undelivered outbound frames.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	a.send.Reset()
	if a.enabled {
		a.advertising = true
	}
}

// Deliver queues a frame as if the peer had written it. Oversized frames and
// frames arriving while no peer is connected are dropped.
func (a *Adapter) Deliver(frame []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected || len(frame) > radio.MaxFrameSize {
		return false
	}
	if a.recv.PushDropOldest(frame) {
		monitoring.Logf("stub radio: inbound queue full, dropped oldest frame")
	}
	return true
}

// TakeSent drains and returns the frames written for the peer.
func (a *Adapter) TakeSent() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out [][]byte
	for {
		f, ok := a.send.Pop()
		if !ok {
			return out
		}
		out = append(out, f)
	}
}

// Identity returns the name and pin passed to Begin.
func (a *Adapter) Identity() (name string, pin uint32, begun bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name, a.pin, a.begun
}

// Advertising reports the simulated advertising state.
func (a *Adapter) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.advertising
}
