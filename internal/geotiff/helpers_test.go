package geotiff

import (
	"bytes"
	"encoding/binary"
	"math"
	"slices"
	"testing"
)

// testTIFF describes a hand-built TIFF for decoder tests.
type testTIFF struct {
	order        binary.ByteOrder
	width        int
	height       int
	bits         int
	format       int
	compression  int
	predictor    int
	rowsPerStrip int
	tileW, tileH int
	chunks       [][]byte
	pixelScale   []float64
	tiepoint     []float64
	geoKeys      []uint16
}

type rawTag struct {
	tag  uint16
	typ  uint16
	data []byte
	n    int
}

func (tt testTIFF) build(t *testing.T) []byte {
	t.Helper()
	o := tt.order
	if o == nil {
		o = binary.LittleEndian
	}
	short := func(tag uint16, vals ...uint16) rawTag {
		b := make([]byte, 2*len(vals))
		for i, v := range vals {
			o.PutUint16(b[i*2:], v)
		}
		return rawTag{tag, dtShort, b, len(vals)}
	}
	long := func(tag uint16, vals ...uint32) rawTag {
		b := make([]byte, 4*len(vals))
		for i, v := range vals {
			o.PutUint32(b[i*4:], v)
		}
		return rawTag{tag, dtLong, b, len(vals)}
	}
	double := func(tag uint16, vals ...float64) rawTag {
		b := make([]byte, 8*len(vals))
		for i, v := range vals {
			o.PutUint64(b[i*8:], math.Float64bits(v))
		}
		return rawTag{tag, dtDouble, b, len(vals)}
	}

	var body bytes.Buffer
	offsets := make([]uint32, len(tt.chunks))
	counts := make([]uint32, len(tt.chunks))
	for i, c := range tt.chunks {
		offsets[i] = uint32(8 + body.Len())
		counts[i] = uint32(len(c))
		body.Write(c)
	}

	tags := []rawTag{
		long(tagImageWidth, uint32(tt.width)),
		long(tagImageLength, uint32(tt.height)),
		short(tagBitsPerSample, uint16(tt.bits)),
		short(tagCompression, uint16(max(1, tt.compression))),
		short(tagSamplesPerPixel, 1),
		short(tagSampleFormat, uint16(max(1, tt.format))),
	}
	if tt.predictor != 0 {
		tags = append(tags, short(tagPredictor, uint16(tt.predictor)))
	}
	if tt.tileW > 0 {
		tags = append(tags,
			long(tagTileWidth, uint32(tt.tileW)),
			long(tagTileLength, uint32(tt.tileH)),
			long(tagTileOffsets, offsets...),
			long(tagTileByteCounts, counts...),
		)
	} else {
		rps := tt.rowsPerStrip
		if rps == 0 {
			rps = tt.height
		}
		tags = append(tags,
			long(tagRowsPerStrip, uint32(rps)),
			long(tagStripOffsets, offsets...),
			long(tagStripByteCounts, counts...),
		)
	}
	if tt.pixelScale != nil {
		tags = append(tags, double(tagModelPixelScale, tt.pixelScale...))
	}
	if tt.tiepoint != nil {
		tags = append(tags, double(tagModelTiepoint, tt.tiepoint...))
	}
	if tt.geoKeys != nil {
		tags = append(tags, short(tagGeoKeyDirectory, tt.geoKeys...))
	}
	slices.SortFunc(tags, func(a, b rawTag) int { return int(a.tag) - int(b.tag) })

	ifdOff := 8 + body.Len()
	extOff := ifdOff + 2 + 12*len(tags) + 4

	out := make([]byte, 8, extOff)
	if o == binary.BigEndian {
		copy(out, "MM")
	} else {
		copy(out, "II")
	}
	o.PutUint16(out[2:], 42)
	o.PutUint32(out[4:], uint32(ifdOff))
	out = append(out, body.Bytes()...)

	var ext []byte
	out = o.AppendUint16(out, uint16(len(tags)))
	for _, tg := range tags {
		out = o.AppendUint16(out, tg.tag)
		out = o.AppendUint16(out, tg.typ)
		out = o.AppendUint32(out, uint32(tg.n))
		if len(tg.data) <= 4 {
			val := make([]byte, 4)
			copy(val, tg.data)
			out = append(out, val...)
			continue
		}
		out = o.AppendUint32(out, uint32(extOff+len(ext)))
		ext = append(ext, tg.data...)
	}
	out = append(out, 0, 0, 0, 0)
	return append(out, ext...)
}
