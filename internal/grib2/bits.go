package grib2

import (
	"encoding/binary"
	"io"
)

// bitReader reads big-endian bit fields of arbitrary width.
type bitReader struct {
	buf []byte
	pos int
	err error
}

func newBitReader(b []byte) *bitReader {
	return &bitReader{buf: b}
}

func (r *bitReader) read(n int) uint64 {
	if n == 0 || r.err != nil {
		return 0
	}
	if n > 64 || r.pos+n > len(r.buf)*8 {
		r.err = io.ErrUnexpectedEOF
		return 0
	}
	var v uint64
	for n > 0 {
		avail := 8 - r.pos%8
		take := avail
		if n < take {
			take = n
		}
		mask := 1<<take - 1
		bits := int(r.buf[r.pos/8]) >> (avail - take) & mask
		v = v<<take | uint64(bits)
		r.pos += take
		n -= take
	}
	return v
}

// readSigned reads an n-bit sign-magnitude integer.
func (r *bitReader) readSigned(n int) int64 {
	if n == 0 {
		return 0
	}
	v := r.read(n)
	mag := int64(v & (1<<(n-1) - 1))
	if v>>(n-1)&1 == 1 {
		return -mag
	}
	return mag
}

func (r *bitReader) align() {
	if rem := r.pos % 8; rem != 0 {
		r.pos += 8 - rem
	}
}

// bitWriter is the inverse of bitReader.
type bitWriter struct {
	buf   []byte
	nbits int
}

func (w *bitWriter) write(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.nbits%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[len(w.buf)-1] |= 1 << (7 - uint(w.nbits%8))
		}
		w.nbits++
	}
}

func (w *bitWriter) writeSigned(v int64, n int) {
	var sign uint64
	if v < 0 {
		sign = 1
		v = -v
	}
	w.write(sign<<(n-1)|uint64(v), n)
}

func (w *bitWriter) align() {
	w.nbits = len(w.buf) * 8
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}

// Sign-magnitude helpers for fixed-width header fields.

func int16SM(b []byte) int {
	v := binary.BigEndian.Uint16(b)
	if v&0x8000 != 0 {
		return -int(v & 0x7fff)
	}
	return int(v)
}

func int32SM(b []byte) int64 {
	v := binary.BigEndian.Uint32(b)
	if v&0x80000000 != 0 {
		return -int64(v & 0x7fffffff)
	}
	return int64(v)
}

func int8SM(b byte) int {
	if b&0x80 != 0 {
		return -int(b & 0x7f)
	}
	return int(b)
}

func putInt16SM(b []byte, v int) {
	u := uint16(0)
	if v < 0 {
		u = 0x8000
		v = -v
	}
	binary.BigEndian.PutUint16(b, u|uint16(v))
}

func putInt32SM(b []byte, v int64) {
	u := uint32(0)
	if v < 0 {
		u = 0x80000000
		v = -v
	}
	binary.BigEndian.PutUint32(b, u|uint32(v))
}
