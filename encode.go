package dngopcode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DNG versions stamped into encoded opcode headers. Decoders ignore the
// field; writers record the DNG version that introduced the opcode.
const (
	dngVersion1_3 = 0x01030000
	dngVersion1_6 = 0x01060000
)

// Encode encodes the list as one DNG opcode list payload, the inverse of
// Decode. The result is suitable as the value of an OpcodeList1,
// OpcodeList2 or OpcodeList3 tag.
func Encode(list OpcodeList) ([]byte, error) {
	for i, op := range list {
		if op == nil {
			return nil, fmt.Errorf("dngopcode: nil opcode at index %d", i)
		}
		if err := validateOpcode(op); err != nil {
			return nil, fmt.Errorf("dngopcode: opcode %v at index %d: %w", op.ID(), i, err)
		}
	}

	w := &streamWriter{}
	w.write4(uint32(len(list)))
	for _, op := range list {
		w.write4(uint32(op.ID()))
		w.write4(specVersion(op.ID()))
		w.write4(op.OpcodeFlags().bits())

		// Payload length is backfilled once the payload size is known.
		lenPos := len(w.buf)
		w.write4(0)
		op.encodePayload(w)
		binary.BigEndian.PutUint32(w.buf[lenPos:], uint32(len(w.buf)-lenPos-4))
	}
	return w.buf, nil
}

func specVersion(id OpcodeID) uint32 {
	if id == OpcodeWarpRectilinear2 {
		return dngVersion1_6
	}
	return dngVersion1_3
}

// validateOpcode rejects records whose field values cannot be expressed
// in their schema.
func validateOpcode(op Opcode) error {
	switch op := op.(type) {
	case MapPolynomial:
		// The schema stores degree = len(Coefs)-1.
		if len(op.Coefs) == 0 {
			return fmt.Errorf("requires at least one coefficient")
		}
	case GainMap:
		// The grid product is computed in uint64 with an explicit
		// overflow guard; the dimensions are three untrusted uint32s.
		want := uint64(op.MapPointsV) * uint64(op.MapPointsH)
		if op.MapPlanes != 0 && want > math.MaxUint64/uint64(op.MapPlanes) {
			return fmt.Errorf("gain grid dimensions overflow")
		}
		want *= uint64(op.MapPlanes)
		if uint64(len(op.Gain)) != want {
			return fmt.Errorf("gain grid has %d values, dimensions require %d", len(op.Gain), want)
		}
	}
	return nil
}

// streamWriter is the encode-side counterpart of streamReader, an
// append-only big-endian buffer.
type streamWriter struct {
	buf []byte
}

func (w *streamWriter) write2(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *streamWriter) write4(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *streamWriter) write8(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *streamWriter) writeF32(v float32) {
	w.write4(math.Float32bits(v))
}

func (w *streamWriter) writeF64(v float64) {
	w.write8(math.Float64bits(v))
}

func (r Region) encode(w *streamWriter) {
	w.write4(r.Top)
	w.write4(r.Left)
	w.write4(r.Bottom)
	w.write4(r.Right)
	w.write4(r.Plane)
	w.write4(r.Planes)
	w.write4(r.RowPitch)
	w.write4(r.ColPitch)
}

func (op WarpRectilinear) encodePayload(w *streamWriter) {
	w.write4(uint32(len(op.Coefs)))
	for _, c := range op.Coefs {
		for _, k := range c.KR {
			w.writeF64(k)
		}
		for _, k := range c.KT {
			w.writeF64(k)
		}
	}
	w.writeF64(op.CenterX)
	w.writeF64(op.CenterY)
}

func (op WarpFisheye) encodePayload(w *streamWriter) {
	w.write4(uint32(len(op.Coefs)))
	for _, c := range op.Coefs {
		for _, k := range c.KR {
			w.writeF64(k)
		}
	}
	w.writeF64(op.CenterX)
	w.writeF64(op.CenterY)
}

func (op FixVignetteRadial) encodePayload(w *streamWriter) {
	for _, k := range op.K {
		w.writeF64(k)
	}
	w.writeF64(op.CenterX)
	w.writeF64(op.CenterY)
}

func (op FixBadPixelsConstant) encodePayload(w *streamWriter) {
	w.write4(op.Constant)
	w.write4(op.BayerPhase)
}

func (op FixBadPixelsList) encodePayload(w *streamWriter) {
	w.write4(op.BayerPhase)
	w.write4(uint32(len(op.Points)))
	w.write4(uint32(len(op.Rects)))
	for _, p := range op.Points {
		w.write4(p.Row)
		w.write4(p.Column)
	}
	for _, r := range op.Rects {
		w.write4(r.Top)
		w.write4(r.Left)
		w.write4(r.Bottom)
		w.write4(r.Right)
	}
}

func (op TrimBounds) encodePayload(w *streamWriter) {
	w.write4(op.Top)
	w.write4(op.Left)
	w.write4(op.Bottom)
	w.write4(op.Right)
}

func (op MapTable) encodePayload(w *streamWriter) {
	op.Region.encode(w)
	w.write4(uint32(len(op.Table)))
	for _, v := range op.Table {
		w.write2(v)
	}
}

func (op MapPolynomial) encodePayload(w *streamWriter) {
	op.Region.encode(w)
	w.write4(uint32(len(op.Coefs) - 1))
	for _, c := range op.Coefs {
		w.writeF64(c)
	}
}

func (op GainMap) encodePayload(w *streamWriter) {
	op.Region.encode(w)
	w.write4(op.MapPointsV)
	w.write4(op.MapPointsH)
	w.writeF64(op.MapSpacingV)
	w.writeF64(op.MapSpacingH)
	w.writeF64(op.MapOriginV)
	w.writeF64(op.MapOriginH)
	w.write4(op.MapPlanes)
	for _, g := range op.Gain {
		w.writeF32(g)
	}
}

func (op DeltaPerRow) encodePayload(w *streamWriter) {
	encodeRowColumnValues(w, op.Region, op.Values)
}

func (op DeltaPerColumn) encodePayload(w *streamWriter) {
	encodeRowColumnValues(w, op.Region, op.Values)
}

func (op ScalePerRow) encodePayload(w *streamWriter) {
	encodeRowColumnValues(w, op.Region, op.Values)
}

func (op ScalePerColumn) encodePayload(w *streamWriter) {
	encodeRowColumnValues(w, op.Region, op.Values)
}

func (op WarpRectilinear2) encodePayload(w *streamWriter) {
	w.write4(uint32(len(op.Coefs)))
	for _, c := range op.Coefs {
		for _, k := range c.KR {
			w.writeF64(k)
		}
		for _, k := range c.KT {
			w.writeF64(k)
		}
	}
	w.writeF64(op.CenterX)
	w.writeF64(op.CenterY)
	w.write4(op.ReciprocalRadial)
}

func encodeRowColumnValues(w *streamWriter, region Region, values []float32) {
	region.encode(w)
	w.write4(uint32(len(values)))
	for _, v := range values {
		w.writeF32(v)
	}
}
