package serialport

import (
	"bytes"
	"sync"
	"time"
)

// TestablePort implements TimeoutPort and Drainer with configurable behaviour
// for testing. Reads wait for data up to the configured read timeout and then
// return (0, nil), the same contract as a real go.bug.st/serial port.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// MaxReadChunk caps the bytes returned by a single Read when positive,
	// simulating a slow line.
	MaxReadChunk int

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// ReadCalls records the number of Read calls
	ReadCalls int

	// WriteCalls records the number of Write calls
	WriteCalls int

	// DrainCalls records the number of Drain calls
	DrainCalls int

	// ReadTimeout is the current read timeout; zero or negative blocks until
	// data arrives or the port is closed.
	ReadTimeout time.Duration

	closed   bool
	readCond *sync.Cond
}

// NewTestablePort creates a new TestablePort for testing.
func NewTestablePort() *TestablePort {
	p := &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Read returns buffered input, waiting up to ReadTimeout for some to arrive.
func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadCalls++

	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}

	if p.ReadBuffer.Len() == 0 && !p.closed {
		expired := false
		if p.ReadTimeout > 0 {
			timer := time.AfterFunc(p.ReadTimeout, func() {
				p.mu.Lock()
				expired = true
				p.readCond.Broadcast()
				p.mu.Unlock()
			})
			defer timer.Stop()
		}
		for !p.closed && p.ReadBuffer.Len() == 0 && !expired {
			p.readCond.Wait()
		}
	}

	if p.closed {
		return 0, ErrPortClosed
	}
	if p.ReadBuffer.Len() == 0 {
		return 0, nil
	}

	if p.MaxReadChunk > 0 && len(b) > p.MaxReadChunk {
		b = b[:p.MaxReadChunk]
	}
	return p.ReadBuffer.Read(b)
}

// Write appends to the write buffer.
func (p *TestablePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.WriteCalls++

	if p.closed {
		return 0, ErrPortClosed
	}

	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}

	return p.WriteBuffer.Write(b)
}

// Drain records the call; writes are synchronous so there is nothing to wait for.
func (p *TestablePort) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DrainCalls++
	return nil
}

// Close marks the port as closed and wakes blocked readers.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// SetReadTimeout implements TimeoutPort.
func (p *TestablePort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadTimeout = timeout
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (p *TestablePort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadBuffer.Write(data)
	p.readCond.Broadcast()
}

// AddReadString is AddReadData for text.
func (p *TestablePort) AddReadString(s string) {
	p.AddReadData([]byte(s))
}

// GetWrittenData returns a copy of all data written to the port.
func (p *TestablePort) GetWrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]byte(nil), p.WriteBuffer.Bytes()...)
}

// Unread reports how many input bytes have not been consumed yet.
func (p *TestablePort) Unread() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ReadBuffer.Len()
}

// Reset clears all buffers and counters and reopens the port.
func (p *TestablePort) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadBuffer.Reset()
	p.WriteBuffer.Reset()
	p.ReadCalls = 0
	p.WriteCalls = 0
	p.DrainCalls = 0
	p.closed = false
	p.ReadError = nil
	p.WriteError = nil
	p.MaxReadChunk = 0
}

var (
	_ TimeoutPort = (*TestablePort)(nil)
	_ Drainer     = (*TestablePort)(nil)
)
