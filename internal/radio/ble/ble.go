// Package ble implements radio.Adapter on tinygo.org/x/bluetooth. The bridge
// appears to the peer as a Nordic UART Service peripheral: the peer writes
// frames to the RX characteristic and receives frames as TX notifications.
package ble

import (
	"context"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/banshee-data/blebridge/internal/monitoring"
	"github.com/banshee-data/blebridge/internal/radio"
)

var (
	serviceUUID = bluetooth.ServiceUUIDNordicUART
	rxUUID      = bluetooth.CharacteristicUUIDUARTRX
	txUUID      = bluetooth.CharacteristicUUIDUARTTX
)

// Stack is the part of *bluetooth.Adapter the bridge uses.
type Stack interface {
	Enable() error
	SetConnectHandler(c func(device bluetooth.Device, connected bool))
	AddService(s *bluetooth.Service) error
	DefaultAdvertisement() *bluetooth.Advertisement
}

// Advertiser is the part of *bluetooth.Advertisement the bridge uses.
type Advertiser interface {
	Configure(options bluetooth.AdvertisementOptions) error
	Start() error
	Stop() error
}

// Notifier sends a notification on the TX characteristic.
type Notifier interface {
	Write(p []byte) (int, error)
}

// Adapter is a radio.Adapter backed by the host Bluetooth stack.
type Adapter struct {
	mu sync.Mutex

	stack Stack
	adv   Advertiser
	tx    Notifier
	txCh  bluetooth.Characteristic
	rxCh  bluetooth.Characteristic

	name        string
	pin         uint32
	started     bool
	enabled     bool
	advertising bool
	connected   bool

	send radio.FrameQueue
	recv radio.FrameQueue
	wake chan struct{}
}

var _ radio.Adapter = (*Adapter)(nil)

// New returns an adapter for stack. A nil stack uses bluetooth.DefaultAdapter.
func New(stack Stack) *Adapter {
	if stack == nil {
		stack = bluetooth.DefaultAdapter
	}
	return &Adapter{
		stack: stack,
		wake:  make(chan struct{}, 1),
	}
}

// startLocked brings up the stack and registers the UART service once.
func (a *Adapter) startLocked() error {
	if a.started {
		return nil
	}
	if err := a.stack.Enable(); err != nil {
		return err
	}
	a.stack.SetConnectHandler(a.onConnect)

	err := a.stack.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &a.rxCh,
				UUID:   rxUUID,
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					a.onReceive(value)
				},
			},
			{
				Handle: &a.txCh,
				UUID:   txUUID,
				Flags:  bluetooth.CharacteristicNotifyPermission | bluetooth.CharacteristicReadPermission,
			},
		},
	})
	if err != nil {
		return err
	}
	if a.tx == nil {
		a.tx = &a.txCh
	}
	if a.adv == nil {
		a.adv = a.stack.DefaultAdvertisement()
	}
	a.started = true
	return nil
}

// Begin starts the stack, sets the advertised name and enables the radio.
// The host stack owns pairing, so the pin is only recorded.
func (a *Adapter) Begin(name string, pin uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.startLocked(); err != nil {
		monitoring.Logf("ble: failed to start bluetooth stack: %v", err)
		return
	}
	a.name = name
	a.pin = pin
	err := a.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	})
	if err != nil {
		monitoring.Logf("ble: failed to configure advertisement for %q: %v", name, err)
		return
	}
	a.enableLocked()
}

func (a *Adapter) StartAdvertising() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startAdvLocked()
}

func (a *Adapter) startAdvLocked() {
	if a.adv == nil {
		monitoring.Logf("ble: advertising requested before BEGIN")
		return
	}
	if a.advertising {
		return
	}
	if err := a.adv.Start(); err != nil {
		monitoring.Logf("ble: failed to start advertising: %v", err)
		return
	}
	a.advertising = true
}

func (a *Adapter) StopAdvertising() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopAdvLocked()
}

func (a *Adapter) stopAdvLocked() {
	if a.adv == nil || !a.advertising {
		return
	}
	if err := a.adv.Stop(); err != nil {
		monitoring.Logf("ble: failed to stop advertising: %v", err)
		return
	}
	a.advertising = false
}

func (a *Adapter) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if enabled {
		a.enableLocked()
		return
	}
	a.enabled = false
	a.stopAdvLocked()
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
	if !a.connected {
		a.startAdvLocked()
	}
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
		monitoring.Logf("ble: refusing %d byte frame (max %d)", len(frame), radio.MaxFrameSize)
		return 0
	}
	if len(frame) == 0 || !a.enabled || !a.connected || !a.send.Push(frame) {
		return 0
	}
	select {
	case a.wake <- struct{}{}:
	default:
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

func (a *Adapter) onConnect(device bluetooth.Device, connected bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.connected = connected
	if connected {
		// the stack stops advertising once a central connects
		a.advertising = false
		monitoring.Logf("ble: peer connected")
		return
	}
	monitoring.Logf("ble: peer disconnected")
	a.send.Reset()
	if a.enabled {
		a.startAdvLocked()
	}
}

func (a *Adapter) onReceive(value []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(value) > radio.MaxFrameSize {
		monitoring.Logf("ble: dropping %d byte inbound frame (max %d)", len(value), radio.MaxFrameSize)
		return
	}
	if a.recv.PushDropOldest(value) {
		monitoring.Logf("ble: inbound queue full, dropped oldest frame")
	}
}

// Run delivers queued outbound frames as TX notifications until ctx is done.
func (a *Adapter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.wake:
		}
		for a.notifyOne() {
		}
	}
}

// notifyOne sends the oldest outbound frame and reports whether one was sent.
func (a *Adapter) notifyOne() bool {
	a.mu.Lock()
	if !a.connected || a.tx == nil {
		a.mu.Unlock()
		return false
	}
	frame, ok := a.send.Pop()
	tx := a.tx
	a.mu.Unlock()
	if !ok {
		return false
	}

	if _, err := tx.Write(frame); err != nil {
		monitoring.Logf("ble: failed to notify %d byte frame: %v", len(frame), err)
	}
	return true
}
