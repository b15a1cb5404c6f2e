// Package frame reassembles navigation records from a fragmented byte stream.
// The transport delivers writes of arbitrary size; the reassembler consumes
// them byte by byte and yields a record each time a marker pair closes.
//
// Wire format:
//
//	[START:5][BODY:N][END:5]
//	- START: ">>>>>" (checked at the head of the buffer while idle)
//	- BODY:  bitmap bytes, ';', then "title|eta|distance"
//	- END:   "<<<<<" (checked at the tail of the buffer while receiving)
//
// Marker-like byte runs inside the body are not escaped. Only the head and
// tail positions are ever compared, so a body that happens to end in "<<<<<"
// closes the record early.
package frame

import (
	"bytes"
)

const (
	// DefaultCapacity bounds the accumulation buffer. A record that does not
	// close within this many bytes is discarded.
	DefaultCapacity = 60000

	markerLen = 5
)

var (
	StartMarker = []byte(">>>>>")
	EndMarker   = []byte("<<<<<")
)

// State is the reassembly state.
type State uint8

const (
	Idle State = iota
	Receiving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Receiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// Stats counts reassembly events since the reassembler was created.
type Stats struct {
	Bytes      uint32 // Bytes consumed
	Records    uint32 // Records completed
	Overflows  uint32 // Buffers discarded at capacity
	Superseded uint32 // Records completed and replaced within one Feed call
}

// Reassembler is the two-state marker machine over a bounded buffer.
// It is not safe for concurrent use; the session serializes access.
type Reassembler struct {
	buf      []byte
	capacity int
	state    State
	record   []byte
	stats    Stats
}

// New creates a reassembler with the given buffer capacity.
// A capacity smaller than two markers is raised to DefaultCapacity.
func New(capacity int) *Reassembler {
	if capacity < 2*markerLen {
		capacity = DefaultCapacity
	}
	return &Reassembler{
		buf:      make([]byte, 0, capacity),
		capacity: capacity,
		record:   make([]byte, 0, 64),
	}
}

// Feed appends a transport chunk and returns the record it completed, if any.
// At most one record is returned per call. An empty body yields an empty,
// non-nil record. The returned slice is owned by the reassembler and is only
// valid until the next call to Feed.
func (r *Reassembler) Feed(p []byte) []byte {
	completed := 0
	for _, b := range p {
		r.buf = append(r.buf, b)
		r.stats.Bytes++

		if r.state == Idle && len(r.buf) >= markerLen {
			if bytes.Equal(r.buf[:markerLen], StartMarker) {
				// Strip the marker so the body starts at index 0
				n := copy(r.buf, r.buf[markerLen:])
				r.buf = r.buf[:n]
				r.state = Receiving
			}
		}

		if r.state == Receiving && len(r.buf) >= markerLen {
			if bytes.Equal(r.buf[len(r.buf)-markerLen:], EndMarker) {
				r.record = append(r.record[:0], r.buf[:len(r.buf)-markerLen]...)
				r.buf = r.buf[:0]
				r.state = Idle
				r.stats.Records++
				completed++
			}
		}

		if len(r.buf) >= r.capacity {
			r.buf = r.buf[:0]
			r.state = Idle
			r.stats.Overflows++
		}
	}

	if completed == 0 {
		return nil
	}
	r.stats.Superseded += uint32(completed - 1)
	return r.record
}

// Reset discards any buffered bytes and returns to Idle.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.state = Idle
}

// State returns the current reassembly state.
func (r *Reassembler) State() State {
	return r.state
}

// Len returns the number of buffered bytes.
func (r *Reassembler) Len() int {
	return len(r.buf)
}

// Capacity returns the buffer capacity.
func (r *Reassembler) Capacity() int {
	return r.capacity
}

// Stats returns a copy of the event counters.
func (r *Reassembler) Stats() Stats {
	return r.stats
}

// Encode wraps a record body in start and end markers.
func Encode(body []byte) []byte {
	buf := make([]byte, 0, len(body)+2*markerLen)
	buf = append(buf, StartMarker...)
	buf = append(buf, body...)
	buf = append(buf, EndMarker...)
	return buf
}
