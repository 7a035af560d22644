// Copyright 2025 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package dngopcode

import (
	"encoding/binary"
	"io"
	"math"
)

func newStreamReader(r io.ReadSeeker, byteOrder binary.ByteOrder) *streamReader {
	length, _ := r.Seek(0, io.SeekEnd)
	r.Seek(0, io.SeekStart)
	return &streamReader{
		r:         r,
		byteOrder: byteOrder,
		length:    length,
	}
}

// streamReader is a wrapper around a ReadSeeker that provides methods to
// read binary primitives. Reads that fail record the error and panic with
// errStop; the panic is recovered at the public API boundary.
// Note that this is not thread safe.
type streamReader struct {
	// The current Reader.
	r         io.ReadSeeker
	byteOrder binary.ByteOrder

	buf []byte

	length  int64
	readErr error
}

func (e *streamReader) pos() int64 {
	n, _ := e.r.Seek(0, io.SeekCurrent)
	return n
}

func (e *streamReader) remaining() int64 {
	return e.length - e.pos()
}

func (e *streamReader) seek(pos int64) {
	if _, err := e.r.Seek(pos, io.SeekStart); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) skip(n int64) {
	e.r.Seek(n, io.SeekCurrent)
}

func (e *streamReader) preservePos(f func() error) error {
	pos := e.pos()
	err := f()
	e.seek(pos)
	return err
}

func (e *streamReader) allocateBuf(length int) {
	if length > cap(e.buf) {
		e.buf = make([]byte, length)
	}
}

func (e *streamReader) readNIntoBuf(n int) {
	e.allocateBuf(n)
	if _, err := io.ReadFull(e.r, e.buf[:n]); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) readBytes(b []byte) {
	if _, err := io.ReadFull(e.r, b); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) read2() uint16 {
	const n = 2
	e.readNIntoBuf(n)
	return e.byteOrder.Uint16(e.buf[:n])
}

func (e *streamReader) read4() uint32 {
	const n = 4
	e.readNIntoBuf(n)
	return e.byteOrder.Uint32(e.buf[:n])
}

func (e *streamReader) read8() uint64 {
	const n = 8
	e.readNIntoBuf(n)
	return e.byteOrder.Uint64(e.buf[:n])
}

func (e *streamReader) readF32() float32 {
	return math.Float32frombits(e.read4())
}

func (e *streamReader) readF64() float64 {
	return math.Float64frombits(e.read8())
}

// elementCount validates a stream-supplied element count (the product of
// counts) against the remaining input before anything is allocated.
// Counts come straight from file bytes and must not be trusted: a crafted
// count could otherwise request excessive memory long before a
// length-consistency check would catch it.
func (e *streamReader) elementCount(elemSize uint64, counts ...uint64) int {
	rem := e.remaining()
	if rem < 0 {
		rem = 0
	}
	limit := uint64(rem) / elemSize
	n := uint64(1)
	for _, c := range counts {
		if c != 0 && n > limit/c {
			e.stop(newTruncatedErrorf("%d*%d elements of %d bytes exceed %d bytes remaining", n, c, elemSize, rem))
		}
		n *= c
	}
	if n > limit {
		e.stop(newTruncatedErrorf("%d elements of %d bytes exceed %d bytes remaining", n, elemSize, rem))
	}
	return int(n)
}

func (e *streamReader) stop(err error) {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = errTruncated
	}
	if e.readErr == nil {
		e.readErr = err
	}
	panic(errStop)
}
