package dngopcode_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/bep/dngopcode"

	qt "github.com/frankban/quicktest"
)

func TestExtractOpcodeLists(t *testing.T) {
	c := qt.New(t)

	list1, err := dngopcode.Encode(dngopcode.OpcodeList{
		dngopcode.TrimBounds{Flags: dngopcode.Flags{Optional: true}, Bottom: 100, Right: 200},
	})
	c.Assert(err, qt.IsNil)
	list2, err := dngopcode.Encode(dngopcode.OpcodeList{sampleGainMap()})
	c.Assert(err, qt.IsNil)
	// An empty opcode list fits in the tag's 4 byte value field.
	list3 := []byte{0, 0, 0, 0}

	for _, bo := range []byteOrder{binary.LittleEndian, binary.BigEndian} {
		c.Run(boName(bo), func(c *qt.C) {
			file := buildDNG(bo, list1, list2, list3)

			lists, err := dngopcode.ExtractOpcodeLists(bytes.NewReader(file))
			c.Assert(err, qt.IsNil)
			c.Assert(lists.IsZero(), qt.IsFalse)
			c.Assert(lists.List1, qt.DeepEquals, list1)
			c.Assert(lists.List2, qt.DeepEquals, list2)
			c.Assert(lists.List3, qt.DeepEquals, list3)

			// The payloads decode regardless of the container byte order.
			ops, err := dngopcode.Decode(lists.List1)
			c.Assert(err, qt.IsNil)
			c.Assert(len(ops), qt.Equals, 1)
			c.Assert(ops[0].ID(), qt.Equals, dngopcode.OpcodeTrimBounds)

			ops, err = dngopcode.Decode(lists.List3)
			c.Assert(err, qt.IsNil)
			c.Assert(len(ops), qt.Equals, 0)
		})
	}
}

func TestExtractNoOpcodeLists(t *testing.T) {
	c := qt.New(t)

	// Minimal TIFF: header, one empty IFD, no next IFD.
	var b []byte
	b = append(b, 'I', 'I')
	b = binary.LittleEndian.AppendUint16(b, 42)
	b = binary.LittleEndian.AppendUint32(b, 8)
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 0)

	lists, err := dngopcode.ExtractOpcodeLists(bytes.NewReader(b))
	c.Assert(err, qt.IsNil)
	c.Assert(lists.IsZero(), qt.IsTrue)
}

func TestExtractErrors(t *testing.T) {
	c := qt.New(t)

	c.Run("not a TIFF", func(c *qt.C) {
		_, err := dngopcode.ExtractOpcodeLists(bytes.NewReader([]byte("JFIF....")))
		c.Assert(dngopcode.IsInvalidFormat(err), qt.IsTrue)
	})

	c.Run("truncated", func(c *qt.C) {
		_, err := dngopcode.ExtractOpcodeLists(bytes.NewReader([]byte{'M', 'M', 0, 42, 0, 0}))
		c.Assert(dngopcode.IsTruncated(err), qt.IsTrue)
	})

	c.Run("bad magic", func(c *qt.C) {
		var b []byte
		b = append(b, 'M', 'M')
		b = binary.BigEndian.AppendUint16(b, 43)
		b = binary.BigEndian.AppendUint32(b, 8)
		_, err := dngopcode.ExtractOpcodeLists(bytes.NewReader(b))
		c.Assert(dngopcode.IsInvalidFormat(err), qt.IsTrue)
	})
}

// byteOrder joins the read and append sides of a byte order; the
// concrete binary.LittleEndian/BigEndian values implement both.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

func boName(bo byteOrder) string {
	if bo == byteOrder(binary.LittleEndian) {
		return "LittleEndian"
	}
	return "BigEndian"
}

// buildDNG assembles a synthetic DNG: IFD0 carries OpcodeList1, an inline
// OpcodeList3 and a SubIFDs pointer; the SubIFD carries OpcodeList2.
func buildDNG(bo byteOrder, list1, list2, list3 []byte) []byte {
	const (
		tagSubIFDs     = 0x014a
		tagOpcodeList1 = 0xc740
		tagOpcodeList2 = 0xc741
		tagOpcodeList3 = 0xc74e

		typeLong      = 4
		typeUndefined = 7
	)

	ifd0Offset := uint32(8)
	// Header(8) + IFD0: count(2) + 3 entries(36) + next(4).
	subIFDOffset := ifd0Offset + 2 + 3*12 + 4
	// SubIFD: count(2) + 1 entry(12) + next(4).
	list1Offset := subIFDOffset + 2 + 12 + 4
	list2Offset := list1Offset + uint32(len(list1))

	var b []byte
	if bo == byteOrder(binary.LittleEndian) {
		b = append(b, 'I', 'I')
	} else {
		b = append(b, 'M', 'M')
	}
	u16 := func(v uint16) { b = bo.AppendUint16(b, v) }
	u32 := func(v uint32) { b = bo.AppendUint32(b, v) }

	u16(42)
	u32(ifd0Offset)

	// IFD0.
	u16(3)
	u16(tagOpcodeList1)
	u16(typeUndefined)
	u32(uint32(len(list1)))
	u32(list1Offset)
	u16(tagSubIFDs)
	u16(typeLong)
	u32(1)
	u32(subIFDOffset)
	u16(tagOpcodeList3)
	u16(typeUndefined)
	u32(uint32(len(list3)))
	b = append(b, list3...) // inline value, must be <= 4 bytes
	u32(0)                  // no next IFD

	// SubIFD.
	u16(1)
	u16(tagOpcodeList2)
	u16(typeUndefined)
	u32(uint32(len(list2)))
	u32(list2Offset)
	u32(0)

	b = append(b, list1...)
	b = append(b, list2...)

	return b
}
