// Package grib2 reads and writes WMO GRIB edition 2 messages.
//
// Only what the GFS 0.25 degree products need is supported: regular
// latitude/longitude grids (template 3.0), the analysis/forecast product
// templates that share the 4.0 layout (4.0, 4.1, 4.8, 4.11), simple packing
// (5.0) and complex packing with or without spatial differencing (5.2,
// 5.3). Anything else parses as far as the header allows and then reports
// ErrUnsupportedTemplate, so callers can skip the message.
package grib2

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformed marks a message whose bytes do not form a valid GRIB2 message.
	ErrMalformed = errors.New("grib2: malformed message")
	// ErrUnsupportedTemplate marks a well-formed message using a template this package cannot decode.
	ErrUnsupportedTemplate = fmt.Errorf("%w: unsupported template", ErrMalformed)
)

const (
	indicatorLen = 16
	// Largest message accepted; a 0.25 degree global field is a few MB.
	maxMessageLen = 1 << 30
)

var (
	magic   = []byte("GRIB")
	trailer = []byte("7777")
)

// Message is one GRIB2 message exactly as it appears in the file.
type Message struct {
	Offset     int64
	Discipline int
	raw        []byte
}

// Raw returns the message bytes, including indicator and trailer.
func (m *Message) Raw() []byte {
	return m.raw
}

// Len is the message length in bytes.
func (m *Message) Len() int {
	return len(m.raw)
}

// Parse decodes the message headers. Data values are unpacked lazily by
// Field.Values.
func (m *Message) Parse() (*Field, error) {
	f, err := parseSections(m.raw)
	if err != nil {
		return nil, fmt.Errorf("message at offset %d: %w", m.Offset, err)
	}
	return f, nil
}

// Scanner iterates the messages of a GRIB2 stream.
type Scanner struct {
	r      *bufio.Reader
	offset int64
	msg    *Message
	err    error
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 1<<16)}
}

// Scan advances to the next message. It returns false at end of input or
// on an error that prevents finding the next message.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	s.msg = nil

	start, err := s.seekMagic()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		return false
	}

	head := make([]byte, indicatorLen)
	copy(head, magic)
	if _, err := io.ReadFull(s.r, head[len(magic):]); err != nil {
		s.err = fmt.Errorf("%w: indicator at offset %d: %w", ErrMalformed, start, err)
		return false
	}
	s.offset += indicatorLen - int64(len(magic))

	if edition := head[7]; edition != 2 {
		s.err = fmt.Errorf("%w: edition %d at offset %d", ErrMalformed, edition, start)
		return false
	}
	total := binary.BigEndian.Uint64(head[8:16])
	if total < indicatorLen+uint64(len(trailer)) || total > maxMessageLen {
		s.err = fmt.Errorf("%w: length %d at offset %d", ErrMalformed, total, start)
		return false
	}

	raw := make([]byte, total)
	copy(raw, head)
	if _, err := io.ReadFull(s.r, raw[indicatorLen:]); err != nil {
		s.err = fmt.Errorf("%w: truncated message at offset %d: %w", ErrMalformed, start, err)
		return false
	}
	s.offset += int64(total) - indicatorLen

	s.msg = &Message{Offset: start, Discipline: int(head[6]), raw: raw}
	return true
}

// seekMagic consumes input up to and including the next "GRIB" marker and
// returns the marker's offset.
func (s *Scanner) seekMagic() (int64, error) {
	matched := 0
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && matched > 0 {
				return 0, fmt.Errorf("%w: trailing bytes at offset %d", ErrMalformed, s.offset)
			}
			return 0, err
		}
		s.offset++
		switch {
		case b == magic[matched]:
			matched++
		case b == magic[0]:
			matched = 1
		default:
			matched = 0
		}
		if matched == len(magic) {
			return s.offset - int64(len(magic)), nil
		}
	}
}

// Message returns the message read by the last successful Scan.
func (s *Scanner) Message() *Message {
	return s.msg
}

// Err returns the first non-EOF error encountered.
func (s *Scanner) Err() error {
	return s.err
}

// ReadAll reads every message from r.
func ReadAll(r io.Reader) ([]*Message, error) {
	var msgs []*Message
	sc := NewScanner(r)
	for sc.Scan() {
		msgs = append(msgs, sc.Message())
	}
	return msgs, sc.Err()
}

func hasTrailer(raw []byte) bool {
	return len(raw) >= len(trailer) && bytes.Equal(raw[len(raw)-len(trailer):], trailer)
}
