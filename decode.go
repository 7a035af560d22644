// Copyright 2025 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package dngopcode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Sizes used to bound stream-supplied counts before allocating.
const (
	opcodeHeaderSize         = 16
	warpRectilinearCoefSize  = 6 * 8
	warpFisheyeCoefSize      = 4 * 8
	warpRectilinear2CoefSize = 17 * 8
	badPointSize             = 2 * 4
	badRectSize              = 4 * 4
)

// Decode decodes one DNG opcode list payload, i.e. the value of an
// OpcodeList1, OpcodeList2 or OpcodeList3 tag. All multi-byte fields are
// big-endian regardless of the byte order of the surrounding container.
//
// The opcodes are returned in file order. Opcode ids outside the set
// defined by the DNG specification are skipped, so lists written against
// a newer DNG version still decode. A malformed list never yields a
// partial result: Decode returns either the complete list or a single
// terminal error.
func Decode(b []byte) (list OpcodeList, err error) {
	d := &listDecoder{
		streamReader: newStreamReader(bytes.NewReader(b), binary.BigEndian),
	}

	defer func() {
		if r := recover(); r != nil {
			if r != errStop {
				panic(r)
			}
			list = nil
			err = d.readErr
			if err == nil {
				err = errInvalidFormat
			}
		}
	}()

	return d.decode()
}

type listDecoder struct {
	*streamReader
}

func (d *listDecoder) decode() (OpcodeList, error) {
	count := d.read4()
	list := OpcodeList{}
	if count == 0 {
		return list, nil
	}

	// Every entry carries at least a header.
	d.elementCount(opcodeHeaderSize, uint64(count))

	for i := 0; i < int(count); i++ {
		id := OpcodeID(d.read4())
		d.read4() // DNG spec version, read but not interpreted.
		flagBits := d.read4()
		payloadLen := int64(d.read4())

		if !id.Known() {
			// Forward compatibility: skip exactly the declared payload
			// and keep the cursor aligned for the next entry.
			if payloadLen > d.remaining() {
				d.stop(newTruncatedErrorf("opcode %v: cannot skip %d bytes with %d remaining", id, payloadLen, d.remaining()))
			}
			d.skip(payloadLen)
			continue
		}

		posStart := d.pos()
		op := d.decodeOpcode(id, decodeFlags(flagBits))
		if consumed := d.pos() - posStart; consumed != payloadLen {
			return nil, fmt.Errorf("%w: opcode %v declared %d bytes, consumed %d", errSizeMismatch, id, payloadLen, consumed)
		}
		list = append(list, op)
	}

	return list, nil
}

func (d *listDecoder) decodeOpcode(id OpcodeID, flags Flags) Opcode {
	switch id {
	case OpcodeWarpRectilinear:
		return d.decodeWarpRectilinear(flags)
	case OpcodeWarpFisheye:
		return d.decodeWarpFisheye(flags)
	case OpcodeFixVignetteRadial:
		return d.decodeFixVignetteRadial(flags)
	case OpcodeFixBadPixelsConstant:
		return d.decodeFixBadPixelsConstant(flags)
	case OpcodeFixBadPixelsList:
		return d.decodeFixBadPixelsList(flags)
	case OpcodeTrimBounds:
		return d.decodeTrimBounds(flags)
	case OpcodeMapTable:
		return d.decodeMapTable(flags)
	case OpcodeMapPolynomial:
		return d.decodeMapPolynomial(flags)
	case OpcodeGainMap:
		return d.decodeGainMap(flags)
	case OpcodeDeltaPerRow:
		region, values := d.decodeRowColumnValues()
		return DeltaPerRow{Flags: flags, Region: region, Values: values}
	case OpcodeDeltaPerColumn:
		region, values := d.decodeRowColumnValues()
		return DeltaPerColumn{Flags: flags, Region: region, Values: values}
	case OpcodeScalePerRow:
		region, values := d.decodeRowColumnValues()
		return ScalePerRow{Flags: flags, Region: region, Values: values}
	case OpcodeScalePerColumn:
		region, values := d.decodeRowColumnValues()
		return ScalePerColumn{Flags: flags, Region: region, Values: values}
	case OpcodeWarpRectilinear2:
		return d.decodeWarpRectilinear2(flags)
	default:
		panic(fmt.Sprintf("unhandled opcode id %d", id))
	}
}

func (d *listDecoder) decodeRegion() Region {
	return Region{
		Top:      d.read4(),
		Left:     d.read4(),
		Bottom:   d.read4(),
		Right:    d.read4(),
		Plane:    d.read4(),
		Planes:   d.read4(),
		RowPitch: d.read4(),
		ColPitch: d.read4(),
	}
}

func (d *listDecoder) decodeWarpRectilinear(flags Flags) WarpRectilinear {
	n := d.elementCount(warpRectilinearCoefSize, uint64(d.read4()))
	coefs := make([]WarpRectilinearCoef, n)
	for i := range coefs {
		for j := range coefs[i].KR {
			coefs[i].KR[j] = d.readF64()
		}
		for j := range coefs[i].KT {
			coefs[i].KT[j] = d.readF64()
		}
	}
	centerX := d.readF64()
	centerY := d.readF64()
	return WarpRectilinear{
		Flags:   flags,
		Coefs:   coefs,
		CenterX: centerX,
		CenterY: centerY,
	}
}

func (d *listDecoder) decodeWarpFisheye(flags Flags) WarpFisheye {
	n := d.elementCount(warpFisheyeCoefSize, uint64(d.read4()))
	coefs := make([]WarpFisheyeCoef, n)
	for i := range coefs {
		for j := range coefs[i].KR {
			coefs[i].KR[j] = d.readF64()
		}
	}
	centerX := d.readF64()
	centerY := d.readF64()
	return WarpFisheye{
		Flags:   flags,
		Coefs:   coefs,
		CenterX: centerX,
		CenterY: centerY,
	}
}

func (d *listDecoder) decodeFixVignetteRadial(flags Flags) FixVignetteRadial {
	op := FixVignetteRadial{Flags: flags}
	for i := range op.K {
		op.K[i] = d.readF64()
	}
	op.CenterX = d.readF64()
	op.CenterY = d.readF64()
	return op
}

func (d *listDecoder) decodeFixBadPixelsConstant(flags Flags) FixBadPixelsConstant {
	return FixBadPixelsConstant{
		Flags:      flags,
		Constant:   d.read4(),
		BayerPhase: d.read4(),
	}
}

func (d *listDecoder) decodeFixBadPixelsList(flags Flags) FixBadPixelsList {
	bayerPhase := d.read4()
	numPoints := d.read4()
	numRects := d.read4()

	np := d.elementCount(badPointSize, uint64(numPoints))
	points := make([]BadPoint, np)
	for i := range points {
		points[i] = BadPoint{
			Row:    d.read4(),
			Column: d.read4(),
		}
	}

	nr := d.elementCount(badRectSize, uint64(numRects))
	rects := make([]BadRect, nr)
	for i := range rects {
		rects[i] = BadRect{
			Top:    d.read4(),
			Left:   d.read4(),
			Bottom: d.read4(),
			Right:  d.read4(),
		}
	}

	return FixBadPixelsList{
		Flags:      flags,
		BayerPhase: bayerPhase,
		Points:     points,
		Rects:      rects,
	}
}

func (d *listDecoder) decodeTrimBounds(flags Flags) TrimBounds {
	return TrimBounds{
		Flags:  flags,
		Top:    d.read4(),
		Left:   d.read4(),
		Bottom: d.read4(),
		Right:  d.read4(),
	}
}

func (d *listDecoder) decodeMapTable(flags Flags) MapTable {
	region := d.decodeRegion()
	n := d.elementCount(2, uint64(d.read4()))
	table := make([]uint16, n)
	for i := range table {
		table[i] = d.read2()
	}
	return MapTable{
		Flags:  flags,
		Region: region,
		Table:  table,
	}
}

func (d *listDecoder) decodeMapPolynomial(flags Flags) MapPolynomial {
	region := d.decodeRegion()
	degree := d.read4()
	n := d.elementCount(8, uint64(degree)+1)
	coefs := make([]float64, n)
	for i := range coefs {
		coefs[i] = d.readF64()
	}
	return MapPolynomial{
		Flags:  flags,
		Region: region,
		Coefs:  coefs,
	}
}

func (d *listDecoder) decodeGainMap(flags Flags) GainMap {
	op := GainMap{Flags: flags}
	op.Region = d.decodeRegion()
	op.MapPointsV = d.read4()
	op.MapPointsH = d.read4()
	op.MapSpacingV = d.readF64()
	op.MapSpacingH = d.readF64()
	op.MapOriginV = d.readF64()
	op.MapOriginH = d.readF64()
	op.MapPlanes = d.read4()

	n := d.elementCount(4, uint64(op.MapPointsV), uint64(op.MapPointsH), uint64(op.MapPlanes))
	op.Gain = make([]float32, n)
	for i := range op.Gain {
		op.Gain[i] = d.readF32()
	}
	return op
}

func (d *listDecoder) decodeWarpRectilinear2(flags Flags) WarpRectilinear2 {
	n := d.elementCount(warpRectilinear2CoefSize, uint64(d.read4()))
	coefs := make([]WarpRectilinear2Coef, n)
	for i := range coefs {
		for j := range coefs[i].KR {
			coefs[i].KR[j] = d.readF64()
		}
		for j := range coefs[i].KT {
			coefs[i].KT[j] = d.readF64()
		}
	}
	centerX := d.readF64()
	centerY := d.readF64()
	reciprocalRadial := d.read4()
	return WarpRectilinear2{
		Flags:            flags,
		Coefs:            coefs,
		CenterX:          centerX,
		CenterY:          centerY,
		ReciprocalRadial: reciprocalRadial,
	}
}

// decodeRowColumnValues reads the schema shared by DeltaPerRow,
// DeltaPerColumn, ScalePerRow and ScalePerColumn: a region followed by a
// count-prefixed float vector. The opcode tag alone decides how the
// renderer interprets the values.
func (d *listDecoder) decodeRowColumnValues() (Region, []float32) {
	region := d.decodeRegion()
	n := d.elementCount(4, uint64(d.read4()))
	values := make([]float32, n)
	for i := range values {
		values[i] = d.readF32()
	}
	return region, values
}
