// Package nav decodes reassembled records into navigation state.
//
// Record format:
//
//	[BITMAP:N][';'][TITLE]['|'][ETA]['|'][DISTANCE]
//
// The bitmap length is implied by the first ';'. Everything after the second
// '|' belongs to DISTANCE, including further '|' bytes.
package nav

import (
	"bytes"
	"strings"
)

const (
	// Unavailable replaces all three text fields when a record cannot be split.
	Unavailable = "N/A"

	FieldSeparator = ';'
	TextSeparator  = '|'
)

// Field identifies one of the three text fields.
type Field uint8

const (
	FieldTitle Field = iota
	FieldETA
	FieldDistance

	FieldCount
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldETA:
		return "eta"
	case FieldDistance:
		return "distance"
	default:
		return "unknown"
	}
}

// State is one decoded navigation update. It is replaced as a whole on every
// decode and never edited in place.
type State struct {
	Bitmap   []byte // Owned copy of the bitmap payload
	Title    string
	ETA      string
	Distance string
	Valid    bool // false when the text fields hold Unavailable
}

// Empty returns the state shown before any record arrives.
func Empty() State {
	return State{
		Title:    Unavailable,
		ETA:      Unavailable,
		Distance: Unavailable,
	}
}

// Text returns the value of the given field.
func (s State) Text(f Field) string {
	switch f {
	case FieldTitle:
		return s.Title
	case FieldETA:
		return s.ETA
	case FieldDistance:
		return s.Distance
	default:
		return ""
	}
}

// Decode splits a record into bitmap and text fields. It never fails: a
// malformed record yields a degraded state with Unavailable text. The record
// is not retained.
func Decode(record []byte) State {
	sep := bytes.IndexByte(record, FieldSeparator)
	if sep < 0 {
		return Empty()
	}

	state := Empty()
	if sep > 0 {
		state.Bitmap = make([]byte, sep)
		copy(state.Bitmap, record[:sep])
	}

	text := string(record[sep+1:])
	first := strings.IndexByte(text, TextSeparator)
	if first < 0 {
		return state
	}
	second := strings.IndexByte(text[first+1:], TextSeparator)
	if second < 0 {
		return state
	}
	second += first + 1

	state.Title = text[:first]
	state.ETA = text[first+1 : second]
	state.Distance = text[second+1:]
	state.Valid = true
	return state
}

// Record builds the record body for a state. It is the inverse of Decode for
// titles and ETAs that contain no '|'.
func Record(s State) []byte {
	buf := make([]byte, 0, len(s.Bitmap)+len(s.Title)+len(s.ETA)+len(s.Distance)+3)
	buf = append(buf, s.Bitmap...)
	buf = append(buf, FieldSeparator)
	buf = append(buf, s.Title...)
	buf = append(buf, TextSeparator)
	buf = append(buf, s.ETA...)
	buf = append(buf, TextSeparator)
	buf = append(buf, s.Distance...)
	return buf
}
