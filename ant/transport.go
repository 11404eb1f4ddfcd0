package ant

// Transport is the byte-stream driver the event machine and node read
// from and write to. Concrete transports (USB CDC, direct USB, a serial
// port) live outside this package — see transport/serial for one — and
// are supplied by the application.
type Transport interface {
	// Open prepares the transport for use. It is a no-op if already open.
	Open() error
	// Close releases the transport. It is a no-op if already closed.
	Close() error
	// IsOpen reports whether the transport is currently open.
	IsOpen() bool
	// Write sends b in its entirety, or returns an error.
	Write(b []byte) error
	// Read pulls whatever is currently available into b and returns how
	// many bytes were written. It may return fewer than len(b) bytes on a
	// short read, and may block up to an implementation-defined quantum.
	Read(b []byte) (int, error)
}
