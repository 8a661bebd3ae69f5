package geotiff

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TIFF field types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

var typeSize = map[uint16]int{
	dtByte: 1, dtASCII: 1, dtShort: 2, dtLong: 4, dtRational: 8,
	dtSByte: 1, dtUndefined: 1, dtSShort: 2, dtSLong: 4, dtSRational: 8,
	dtFloat: 4, dtDouble: 8,
}

// Tags read by the decoder.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

// field is one IFD entry with its value bytes resolved.
type field struct {
	tag   uint16
	typ   uint16
	count uint32
	raw   []byte
}

type ifd map[uint16]field

func readIFD(data []byte, order binary.ByteOrder, offset uint32) (ifd, error) {
	if uint64(offset)+2 > uint64(len(data)) {
		return nil, fmt.Errorf("IFD offset %d beyond end of file", offset)
	}
	n := int(order.Uint16(data[offset:]))
	start := int(offset) + 2
	if start+n*12 > len(data) {
		return nil, fmt.Errorf("IFD with %d entries truncated", n)
	}

	out := make(ifd, n)
	for i := range n {
		e := data[start+i*12 : start+(i+1)*12]
		f := field{
			tag:   order.Uint16(e[0:2]),
			typ:   order.Uint16(e[2:4]),
			count: order.Uint32(e[4:8]),
		}
		size, ok := typeSize[f.typ]
		if !ok {
			// Unknown field types are skipped, as TIFF 6.0 requires.
			continue
		}
		total := uint64(size) * uint64(f.count)
		if total <= 4 {
			f.raw = e[8 : 8+total]
		} else {
			off := uint64(order.Uint32(e[8:12]))
			if off+total > uint64(len(data)) {
				return nil, fmt.Errorf("tag %d value out of bounds", f.tag)
			}
			f.raw = data[off : off+total]
		}
		out[f.tag] = f
	}
	return out, nil
}

// uints returns an integer-typed field's values.
func (f field) uints(order binary.ByteOrder) ([]uint64, error) {
	out := make([]uint64, f.count)
	for i := range out {
		switch f.typ {
		case dtByte, dtUndefined:
			out[i] = uint64(f.raw[i])
		case dtShort:
			out[i] = uint64(order.Uint16(f.raw[i*2:]))
		case dtLong:
			out[i] = uint64(order.Uint32(f.raw[i*4:]))
		default:
			return nil, fmt.Errorf("tag %d: expected unsigned integer type, got %d", f.tag, f.typ)
		}
	}
	return out, nil
}

// floats returns a numeric field's values as float64.
func (f field) floats(order binary.ByteOrder) ([]float64, error) {
	out := make([]float64, f.count)
	for i := range out {
		switch f.typ {
		case dtDouble:
			out[i] = math.Float64frombits(order.Uint64(f.raw[i*8:]))
		case dtFloat:
			out[i] = float64(math.Float32frombits(order.Uint32(f.raw[i*4:])))
		case dtShort:
			out[i] = float64(order.Uint16(f.raw[i*2:]))
		case dtLong:
			out[i] = float64(order.Uint32(f.raw[i*4:]))
		case dtRational:
			num, den := order.Uint32(f.raw[i*8:]), order.Uint32(f.raw[i*8+4:])
			if den == 0 {
				return nil, fmt.Errorf("tag %d: zero denominator", f.tag)
			}
			out[i] = float64(num) / float64(den)
		default:
			return nil, fmt.Errorf("tag %d: expected numeric type, got %d", f.tag, f.typ)
		}
	}
	return out, nil
}

// ascii returns an ASCII field's text without the trailing NUL.
func (f field) ascii() string {
	b := f.raw
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// uint returns the first value of an integer tag, or def when absent.
func (d ifd) uint(order binary.ByteOrder, tag uint16, def uint64) (uint64, error) {
	f, ok := d[tag]
	if !ok || f.count == 0 {
		return def, nil
	}
	v, err := f.uints(order)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}
