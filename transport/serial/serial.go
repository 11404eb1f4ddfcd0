// Package serial adapts a USB ANT stick exposed as a virtual serial/CDC
// device (e.g. /dev/ttyUSB0) to the ant.Transport interface.
package serial

import (
	"errors"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// errNotOpen is returned by Write/Read when called before a successful Open.
var errNotOpen = errors.New("serial: transport not open")

// DefaultBaud is the baud rate ANT USB sticks speak over their CDC port.
const DefaultBaud = 115200

// readTimeout bounds each blocking read so ant.EventMachine's reader
// goroutine can still observe a Stop between reads.
const readTimeout = 250 * time.Millisecond

// Transport implements ant.Transport over a serial.Port.
type Transport struct {
	device string
	baud   int

	mu   sync.Mutex
	port *serial.Port
}

// New builds a Transport for device (e.g. "/dev/ttyUSB0") at DefaultBaud.
// It does not open the port; call Open before use.
func New(device string) *Transport {
	return &Transport{device: device, baud: DefaultBaud}
}

// NewWithBaud is like New but overrides the baud rate.
func NewWithBaud(device string, baud int) *Transport {
	return &Transport{device: device, baud: baud}
}

// Open opens the underlying serial port. It is a no-op if already open.
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return nil
	}

	cfg := &serial.Config{Name: t.device, Baud: t.baud, ReadTimeout: readTimeout}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return err
	}
	t.port = port
	return nil
}

// Close closes the underlying serial port. It is a no-op if already closed.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

// IsOpen reports whether the port is currently open.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Write sends b in its entirety over the serial port.
func (t *Transport) Write(b []byte) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()

	if port == nil {
		return errNotOpen
	}
	_, err := port.Write(b)
	return err
}

// Read pulls whatever is currently available into b. A read timeout is
// reported as a zero-length, nil-error read so the caller's poll loop just
// tries again.
func (t *Transport) Read(b []byte) (int, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()

	if port == nil {
		return 0, errNotOpen
	}
	n, err := port.Read(b)
	if isTimeout(err) {
		return 0, nil
	}
	return n, err
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}
