// Package eventlog reads and writes the append-only msgpack event log used
// to capture a session's driver activity for later replay or inspection.
package eventlog

import (
	"errors"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Event codes identify what kind of driver activity a record describes.
const (
	EventOpen  byte = 0x01
	EventClose byte = 0x02
	EventRead  byte = 0x03
	EventWrite byte = 0x04
)

const logMagic = "ANT-LOG"
const logVersion = 0x01

// ErrBadFormat is returned by NewReader when the stream does not begin with
// the expected [ANT-LOG, version] header.
var ErrBadFormat = errors.New("eventlog: unrecognized log format")

// Record is a single decoded log entry. Data is nil for EventOpen/EventClose,
// which carry no payload.
type Record struct {
	Event     byte
	Timestamp int64
	Data      []byte
}

// Writer appends msgpack-encoded records to an underlying stream, writing
// the format header on construction.
type Writer struct {
	enc *msgpack.Encoder
}

// NewWriter wraps w and immediately writes the log header.
func NewWriter(w io.Writer) (*Writer, error) {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode([]interface{}{[]byte(logMagic), logVersion}); err != nil {
		return nil, err
	}
	return &Writer{enc: enc}, nil
}

// LogOpen records a transport-open event.
func (w *Writer) LogOpen() error {
	return w.logEvent(EventOpen, nil)
}

// LogClose records a transport-close event.
func (w *Writer) LogClose() error {
	return w.logEvent(EventClose, nil)
}

// LogRead records bytes pulled off the transport. An empty slice is
// dropped silently, matching a zero-length read being uninteresting.
func (w *Writer) LogRead(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return w.logEvent(EventRead, data)
}

// LogWrite records bytes pushed to the transport. An empty slice is
// dropped silently.
func (w *Writer) LogWrite(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return w.logEvent(EventWrite, data)
}

func (w *Writer) logEvent(event byte, data []byte) error {
	if data != nil && len(data) == 0 {
		return nil
	}

	ts := time.Now().Unix()
	if data == nil {
		return w.enc.Encode([]interface{}{event, ts})
	}
	return w.enc.Encode([]interface{}{event, ts, data})
}

// Reader decodes records from an underlying stream previously produced by a
// Writer, validating the format header on construction.
type Reader struct {
	dec *msgpack.Decoder
}

// NewReader wraps r and validates its log header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := msgpack.NewDecoder(r)

	var header []interface{}
	if err := dec.Decode(&header); err != nil {
		return nil, ErrBadFormat
	}
	if !validHeader(header) {
		return nil, ErrBadFormat
	}
	return &Reader{dec: dec}, nil
}

func validHeader(header []interface{}) bool {
	if len(header) != 2 {
		return false
	}
	magic, ok := header[0].([]byte)
	if !ok || string(magic) != logMagic {
		return false
	}
	version, ok := header[1].(int8)
	if !ok {
		if v, ok := header[1].(int64); ok {
			return v == logVersion
		}
		return false
	}
	return version == logVersion
}

// Read decodes the next record from the stream. It returns io.EOF when the
// stream is exhausted.
func (r *Reader) Read() (*Record, error) {
	var raw []interface{}
	if err := r.dec.Decode(&raw); err != nil {
		return nil, err
	}

	if len(raw) < 2 {
		return nil, ErrBadFormat
	}

	rec := &Record{}
	if err := assignByte(&rec.Event, raw[0]); err != nil {
		return nil, err
	}
	if err := assignInt64(&rec.Timestamp, raw[1]); err != nil {
		return nil, err
	}
	if len(raw) >= 3 {
		data, ok := raw[2].([]byte)
		if !ok {
			return nil, ErrBadFormat
		}
		rec.Data = data
	}
	return rec, nil
}

func assignByte(dst *byte, v interface{}) error {
	n, err := toInt64(v)
	if err != nil {
		return err
	}
	*dst = byte(n)
	return nil
}

func assignInt64(dst *int64, v interface{}) error {
	n, err := toInt64(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int8:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, ErrBadFormat
	}
}
