// Copyright 2025 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package dngopcode

import (
	"encoding/binary"
	"io"
)

// The TIFF plumbing needed to locate the opcode list tags inside a DNG.
const (
	byteOrderBigEndian    = 0x4d4d
	byteOrderLittleEndian = 0x4949
	tiffMagic             = 42

	tiffTypeUndefined = 7

	tagSubIFDs     = 0x014a
	tagExifIFD     = 0x8769
	tagOpcodeList1 = 0xc740
	tagOpcodeList2 = 0xc741
	tagOpcodeList3 = 0xc74e
)

// 10 MB should be plenty for an opcode list.
const maxOpcodeListSize = 10 * 1024 * 1024

// Cycle guards for hostile IFD structures.
const (
	maxIFDs    = 64
	maxSubIFDs = 32
)

// OpcodeLists holds the raw, still-encoded opcode list payloads of a DNG,
// one per processing stage: List1 applies to the raw data as read from
// the file, List2 after linearization, List3 after demosaicing.
// A nil slice means the tag is not present.
type OpcodeLists struct {
	List1 []byte
	List2 []byte
	List3 []byte
}

// IsZero reports whether the file carried no opcode lists at all.
func (o OpcodeLists) IsZero() bool {
	return o.List1 == nil && o.List2 == nil && o.List3 == nil
}

// ExtractOpcodeLists walks the IFDs of a TIFF/DNG stream (IFD0 chain,
// SubIFDs and the Exif IFD) and returns the payloads of the OpcodeList1,
// OpcodeList2 and OpcodeList3 tags, still undecoded. The container's byte
// order only affects the directory structures; the payloads handed to
// Decode are big-endian either way.
func ExtractOpcodeLists(r io.ReadSeeker) (lists OpcodeLists, err error) {
	e := &extractor{streamReader: newStreamReader(r, binary.BigEndian)}

	defer func() {
		if r := recover(); r != nil {
			if r != errStop {
				panic(r)
			}
			lists = OpcodeLists{}
			err = e.readErr
			if err == nil {
				err = errInvalidFormat
			}
		}
	}()

	byteOrderTag := e.read2()
	switch byteOrderTag {
	case byteOrderBigEndian:
		e.byteOrder = binary.BigEndian
	case byteOrderLittleEndian:
		e.byteOrder = binary.LittleEndian
	default:
		return lists, errInvalidFormat
	}

	if id := e.read2(); id != tiffMagic {
		return lists, errInvalidFormat
	}

	ifdOffset := e.read4()
	if ifdOffset < 8 {
		return lists, errInvalidFormat
	}
	e.skip(int64(ifdOffset - 8))

	for {
		if err := e.decodeIFD(&lists); err != nil {
			return OpcodeLists{}, err
		}
		next := e.read4()
		if next == 0 {
			break
		}
		e.seek(int64(next))
	}

	return lists, nil
}

type extractor struct {
	*streamReader
	numIFDs int
}

func (e *extractor) decodeIFD(lists *OpcodeLists) error {
	e.numIFDs++
	if e.numIFDs > maxIFDs {
		return newInvalidFormatErrorf("more than %d IFDs", maxIFDs)
	}

	numTags := e.read2()
	for i := 0; i < int(numTags); i++ {
		tagID := e.read2()
		dataType := e.read2()
		count := e.read4()

		switch tagID {
		case tagOpcodeList1, tagOpcodeList2, tagOpcodeList3:
			b, err := e.readTagBytes(dataType, count)
			if err != nil {
				return err
			}
			switch tagID {
			case tagOpcodeList1:
				lists.List1 = b
			case tagOpcodeList2:
				lists.List2 = b
			case tagOpcodeList3:
				lists.List3 = b
			}
		case tagSubIFDs, tagExifIFD:
			for _, off := range e.readIFDOffsets(count) {
				err := e.preservePos(func() error {
					e.seek(int64(off))
					return e.decodeIFD(lists)
				})
				if err != nil {
					return err
				}
			}
		default:
			e.skip(4)
		}
	}

	return nil
}

// readTagBytes reads an opcode list tag value from the current IFD
// entry's value field. The DNG specification stores opcode lists as
// UNDEFINED byte sequences, so count is the byte length.
func (e *extractor) readTagBytes(dataType uint16, count uint32) ([]byte, error) {
	if dataType != tiffTypeUndefined {
		return nil, newInvalidFormatErrorf("opcode list tag has TIFF type %d, want UNDEFINED", dataType)
	}
	if count > maxOpcodeListSize {
		return nil, newInvalidFormatErrorf("opcode list of %d bytes exceeds max %d", count, maxOpcodeListSize)
	}

	b := make([]byte, count)

	if count <= 4 {
		// The value fits in the tag's value field.
		e.readBytes(b)
		e.skip(int64(4 - count))
		return b, nil
	}

	offset := e.read4()
	err := e.preservePos(func() error {
		e.seek(int64(offset))
		e.readBytes(b)
		return nil
	})
	return b, err
}

// readIFDOffsets reads the IFD offsets of a SubIFDs or Exif IFD pointer
// tag. A single offset sits in the value field itself; multiple offsets
// live behind it.
func (e *extractor) readIFDOffsets(count uint32) []uint32 {
	switch {
	case count == 0:
		e.skip(4)
		return nil
	case count == 1:
		return []uint32{e.read4()}
	case count > maxSubIFDs:
		e.stop(newInvalidFormatErrorf("%d sub IFDs exceed max %d", count, maxSubIFDs))
	}

	offsets := make([]uint32, 0, count)
	arrayOffset := e.read4()
	e.preservePos(func() error {
		e.seek(int64(arrayOffset))
		for i := 0; i < int(count); i++ {
			offsets = append(offsets, e.read4())
		}
		return nil
	})
	return offsets
}
