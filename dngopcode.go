// Copyright 2025 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package dngopcode decodes the opcode lists embedded in Digital
// Negative (DNG) raw files: ordered sequences of post-capture correction
// instructions such as lens warp correction, vignette fixes, bad pixel
// repair, tone and gain maps, and per-row/column deltas and scales.
//
// The main entry point is Decode, which turns one OpcodeList1, OpcodeList2
// or OpcodeList3 tag payload into an OpcodeList. ExtractOpcodeLists locates
// those payloads inside a TIFF/DNG stream, and Encode writes a list back
// out. Applying the decoded corrections to pixel data is left to the
// rendering pipeline.
package dngopcode

import "fmt"

// OpcodeID identifies one opcode kind in a DNG opcode list.
type OpcodeID uint32

const (
	OpcodeWarpRectilinear      OpcodeID = 1
	OpcodeWarpFisheye          OpcodeID = 2
	OpcodeFixVignetteRadial    OpcodeID = 3
	OpcodeFixBadPixelsConstant OpcodeID = 4
	OpcodeFixBadPixelsList     OpcodeID = 5
	OpcodeTrimBounds           OpcodeID = 6
	OpcodeMapTable             OpcodeID = 7
	OpcodeMapPolynomial        OpcodeID = 8
	OpcodeGainMap              OpcodeID = 9
	OpcodeDeltaPerRow          OpcodeID = 10
	OpcodeDeltaPerColumn       OpcodeID = 11
	OpcodeScalePerRow          OpcodeID = 12
	OpcodeScalePerColumn       OpcodeID = 13
	OpcodeWarpRectilinear2     OpcodeID = 14
)

var opcodeIDNames = map[OpcodeID]string{
	OpcodeWarpRectilinear:      "WarpRectilinear",
	OpcodeWarpFisheye:          "WarpFisheye",
	OpcodeFixVignetteRadial:    "FixVignetteRadial",
	OpcodeFixBadPixelsConstant: "FixBadPixelsConstant",
	OpcodeFixBadPixelsList:     "FixBadPixelsList",
	OpcodeTrimBounds:           "TrimBounds",
	OpcodeMapTable:             "MapTable",
	OpcodeMapPolynomial:        "MapPolynomial",
	OpcodeGainMap:              "GainMap",
	OpcodeDeltaPerRow:          "DeltaPerRow",
	OpcodeDeltaPerColumn:       "DeltaPerColumn",
	OpcodeScalePerRow:          "ScalePerRow",
	OpcodeScalePerColumn:       "ScalePerColumn",
	OpcodeWarpRectilinear2:     "WarpRectilinear2",
}

func (id OpcodeID) String() string {
	if s, ok := opcodeIDNames[id]; ok {
		return s
	}
	return fmt.Sprintf("OpcodeID(%d)", uint32(id))
}

// Known reports whether id is one of the opcode kinds defined by the DNG
// specification. Unknown ids are valid input: a decoder must skip them.
func (id OpcodeID) Known() bool {
	return id >= OpcodeWarpRectilinear && id <= OpcodeWarpRectilinear2
}

// Flags carries the flag bits shared by all opcode kinds.
// Only the low two bits of the on-file field are significant.
type Flags struct {
	// Optional means a reader that does not understand the opcode may
	// skip it rather than refuse the file.
	Optional bool
	// PreviewSkip means the opcode may be skipped when rendering previews.
	PreviewSkip bool
}

func decodeFlags(v uint32) Flags {
	return Flags{
		Optional:    v&1 != 0,
		PreviewSkip: v&2 != 0,
	}
}

func (f Flags) bits() uint32 {
	var v uint32
	if f.Optional {
		v |= 1
	}
	if f.PreviewSkip {
		v |= 2
	}
	return v
}

// Region describes the strided sub-rectangle of one or more pixel planes
// an opcode applies to. It is purely descriptive; validation against the
// actual image bounds happens downstream.
type Region struct {
	Top      uint32
	Left     uint32
	Bottom   uint32
	Right    uint32
	Plane    uint32
	Planes   uint32
	RowPitch uint32
	ColPitch uint32
}

// Opcode is one decoded correction instruction. The set of implementations
// is closed: exactly the fourteen kinds defined by the DNG specification.
type Opcode interface {
	ID() OpcodeID
	// OpcodeFlags returns the flag bits shared by all opcode kinds.
	OpcodeFlags() Flags

	encodePayload(w *streamWriter)
}

// OpcodeList is an ordered sequence of opcodes as they appear in the file.
// The order is significant: corrections are meant to be applied in sequence.
type OpcodeList []Opcode

// WarpRectilinearCoef holds the radial and tangential distortion
// coefficients for one plane.
type WarpRectilinearCoef struct {
	KR [4]float64
	KT [2]float64
}

// WarpRectilinear corrects rectilinear lens distortion, with an optional
// tangential component, around an optical center.
type WarpRectilinear struct {
	Flags   Flags
	Coefs   []WarpRectilinearCoef
	CenterX float64
	CenterY float64
}

func (op WarpRectilinear) ID() OpcodeID       { return OpcodeWarpRectilinear }
func (op WarpRectilinear) OpcodeFlags() Flags { return op.Flags }

// WarpFisheyeCoef holds the radial distortion coefficients for one plane.
type WarpFisheyeCoef struct {
	KR [4]float64
}

// WarpFisheye maps a fisheye projection to a perspective projection.
type WarpFisheye struct {
	Flags   Flags
	Coefs   []WarpFisheyeCoef
	CenterX float64
	CenterY float64
}

func (op WarpFisheye) ID() OpcodeID       { return OpcodeWarpFisheye }
func (op WarpFisheye) OpcodeFlags() Flags { return op.Flags }

// FixVignetteRadial corrects vignetting with a radial gain polynomial.
type FixVignetteRadial struct {
	Flags   Flags
	K       [5]float64
	CenterX float64
	CenterY float64
}

func (op FixVignetteRadial) ID() OpcodeID       { return OpcodeFixVignetteRadial }
func (op FixVignetteRadial) OpcodeFlags() Flags { return op.Flags }

// FixBadPixelsConstant marks pixels holding a constant value as defective,
// for one Bayer phase.
type FixBadPixelsConstant struct {
	Flags      Flags
	Constant   uint32
	BayerPhase uint32
}

func (op FixBadPixelsConstant) ID() OpcodeID       { return OpcodeFixBadPixelsConstant }
func (op FixBadPixelsConstant) OpcodeFlags() Flags { return op.Flags }

// BadPoint is one defective pixel position.
type BadPoint struct {
	Row    uint32
	Column uint32
}

// BadRect is one defective rectangular area.
type BadRect struct {
	Top    uint32
	Left   uint32
	Bottom uint32
	Right  uint32
}

// FixBadPixelsList enumerates defective pixels and rectangles to repair.
type FixBadPixelsList struct {
	Flags      Flags
	BayerPhase uint32
	Points     []BadPoint
	Rects      []BadRect
}

func (op FixBadPixelsList) ID() OpcodeID       { return OpcodeFixBadPixelsList }
func (op FixBadPixelsList) OpcodeFlags() Flags { return op.Flags }

// TrimBounds restricts the image to the given area.
type TrimBounds struct {
	Flags  Flags
	Top    uint32
	Left   uint32
	Bottom uint32
	Right  uint32
}

func (op TrimBounds) ID() OpcodeID       { return OpcodeTrimBounds }
func (op TrimBounds) OpcodeFlags() Flags { return op.Flags }

// MapTable maps pixel values through a lookup table.
type MapTable struct {
	Flags  Flags
	Region Region
	Table  []uint16
}

func (op MapTable) ID() OpcodeID       { return OpcodeMapTable }
func (op MapTable) OpcodeFlags() Flags { return op.Flags }

// MapPolynomial maps pixel values through a polynomial. Coefs holds the
// degree+1 coefficients, constant term first.
type MapPolynomial struct {
	Flags  Flags
	Region Region
	Coefs  []float64
}

func (op MapPolynomial) ID() OpcodeID       { return OpcodeMapPolynomial }
func (op MapPolynomial) OpcodeFlags() Flags { return op.Flags }

// GainMap scales pixels by a coarse grid of gain factors meant to be
// interpolated at render time. Gain is the flattened
// MapPointsV × MapPointsH × MapPlanes grid, row-major, plane innermost.
type GainMap struct {
	Flags       Flags
	Region      Region
	MapPointsV  uint32
	MapPointsH  uint32
	MapSpacingV float64
	MapSpacingH float64
	MapOriginV  float64
	MapOriginH  float64
	MapPlanes   uint32
	Gain        []float32
}

func (op GainMap) ID() OpcodeID       { return OpcodeGainMap }
func (op GainMap) OpcodeFlags() Flags { return op.Flags }

// DeltaPerRow adds one value to every pixel of each region row.
type DeltaPerRow struct {
	Flags  Flags
	Region Region
	Values []float32
}

func (op DeltaPerRow) ID() OpcodeID       { return OpcodeDeltaPerRow }
func (op DeltaPerRow) OpcodeFlags() Flags { return op.Flags }

// DeltaPerColumn adds one value to every pixel of each region column.
type DeltaPerColumn struct {
	Flags  Flags
	Region Region
	Values []float32
}

func (op DeltaPerColumn) ID() OpcodeID       { return OpcodeDeltaPerColumn }
func (op DeltaPerColumn) OpcodeFlags() Flags { return op.Flags }

// ScalePerRow multiplies every pixel of each region row by one value.
type ScalePerRow struct {
	Flags  Flags
	Region Region
	Values []float32
}

func (op ScalePerRow) ID() OpcodeID       { return OpcodeScalePerRow }
func (op ScalePerRow) OpcodeFlags() Flags { return op.Flags }

// ScalePerColumn multiplies every pixel of each region column by one value.
type ScalePerColumn struct {
	Flags  Flags
	Region Region
	Values []float32
}

func (op ScalePerColumn) ID() OpcodeID       { return OpcodeScalePerColumn }
func (op ScalePerColumn) OpcodeFlags() Flags { return op.Flags }

// WarpRectilinear2Coef holds the extended radial and tangential
// distortion coefficients for one plane.
type WarpRectilinear2Coef struct {
	KR [15]float64
	KT [2]float64
}

// WarpRectilinear2 is the extended rectilinear warp introduced with
// DNG 1.6, with a higher-order radial model.
type WarpRectilinear2 struct {
	Flags            Flags
	Coefs            []WarpRectilinear2Coef
	CenterX          float64
	CenterY          float64
	ReciprocalRadial uint32
}

func (op WarpRectilinear2) ID() OpcodeID       { return OpcodeWarpRectilinear2 }
func (op WarpRectilinear2) OpcodeFlags() Flags { return op.Flags }
