// Package radio defines the capability set the bridge needs from a BLE radio.
// The dispatcher depends only on Adapter; the concrete implementations live in
// the ble (real hardware) and stub (in-memory) subpackages.
package radio

const (
	// MaxFrameSize is the largest payload exchanged with the peer in one frame.
	MaxFrameSize = 172

	// FrameQueueSize bounds the inbound and outbound frame queues.
	FrameQueueSize = 8
)

// Adapter is the radio as seen by the bridge. State queries are always live;
// callers must not cache them between commands. Implementations must be safe
// for concurrent use because status pages read them from other goroutines.
type Adapter interface {
	// StartAdvertising begins advertising the bridge service.
	StartAdvertising()
	// StopAdvertising stops advertising.
	StopAdvertising()
	// Begin sets the device name and pairing pin and brings the radio up.
	Begin(name string, pin uint32)
	// SetEnabled opens or closes the gate for frame traffic.
	SetEnabled(enabled bool)

	Enabled() bool
	Connected() bool
	// WriteBusy reports that the outbound queue is close to full.
	WriteBusy() bool

	// WriteFrame queues frame for the peer and returns the number of bytes
	// accepted. Implementations accept all or nothing.
	WriteFrame(frame []byte) int
	// PollReceivedFrame copies the oldest inbound frame into dst and returns
	// its length, or 0 when nothing is waiting.
	PollReceivedFrame(dst []byte) int
}
