// Copyright 2024 The powchain Authors
// This file is part of the powchain library.
//
// The powchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powchain library. If not, see <http://www.gnu.org/licenses/>.

// Package codec implements the minimal length-prefixed binary wire format
// every type in this module serializes through: big-endian fixed-width
// integers, u32 length prefixes on vectors and strings, and raw fixed-size
// byte arrays for hashes, public keys and signatures. It is deliberately
// small; any equivalent serializer satisfying the same byte layout would do.
package codec

import (
	"encoding/binary"
	"errors"
	"math/big"
)

// Errors returned by Reader methods.
var (
	ErrEndOfBuffer   = errors.New("codec: unexpected end of buffer")
	ErrInvalidFormat = errors.New("codec: invalid format")
	ErrNotFound      = errors.New("codec: value not found")
)

// Writer accumulates the canonical byte encoding of a value.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// WriteRaw appends b verbatim, with no length prefix. Used for fixed-size
// fields (hashes, public keys, signatures) whose length is implicit.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteUint32 appends a big-endian u32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint64 appends a big-endian u64.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint128 appends a big-endian, zero-padded 16-byte unsigned integer.
// v must be non-negative and fit in 128 bits.
func (w *Writer) WriteUint128(v *big.Int) {
	var b [16]byte
	v.FillBytes(b[:])
	w.buf = append(w.buf, b[:]...)
}

// WriteString appends a u32 length prefix followed by the UTF-8 bytes of s.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytesVector appends a u32 length prefix followed by b verbatim, for
// length-prefixed byte blobs that aren't fixed-size. Amounts and addresses
// are written with WriteString, which produces the same layout.
func (w *Writer) WriteBytesVector(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader consumes a canonical byte encoding produced by Writer.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for sequential decoding.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports how many bytes are left to read.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// ReadRaw reads exactly n bytes verbatim.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ErrEndOfBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUint32 reads a big-endian u32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint64 reads a big-endian u64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadUint128 reads a big-endian 16-byte unsigned integer.
func (r *Reader) ReadUint128() (*big.Int, error) {
	b, err := r.ReadRaw(16)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// ReadString reads a u32-length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadRaw(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytesVector reads a u32-length-prefixed byte blob.
func (r *Reader) ReadBytesVector() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	b, err := r.ReadRaw(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// AtEnd reports whether every byte has been consumed; callers use this to
// detect trailing garbage after decoding a top-level value.
func (r *Reader) AtEnd() bool {
	return r.Remaining() == 0
}
