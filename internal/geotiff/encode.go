package geotiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

// EncodeOptions controls Encode.
type EncodeOptions struct {
	// SampleFormat and BitsPerSample select the stored type: float/32,
	// uint/8, uint/16 or int/16. Zero values mean float/32.
	SampleFormat  int
	BitsPerSample int
	// Compression is CompressionNone or CompressionDeflate.
	Compression int
	// RowsPerStrip defaults to the whole image in one strip.
	RowsPerStrip int
}

// Encode writes img as a little-endian, single-band GeoTIFF. Bounds are
// written as ModelPixelScale/ModelTiepoint when img.Georeferenced is set.
func Encode(w io.Writer, img *Image, opts EncodeOptions) error {
	if img.Width <= 0 || img.Height <= 0 || len(img.Data) != img.Width*img.Height {
		return errors.New("encode: image dimensions do not match data")
	}
	if opts.SampleFormat == 0 {
		opts.SampleFormat, opts.BitsPerSample = SampleFloat, 32
	}
	if opts.Compression == 0 {
		opts.Compression = CompressionNone
	}
	if opts.RowsPerStrip <= 0 || opts.RowsPerStrip > img.Height {
		opts.RowsPerStrip = img.Height
	}
	put, bps, err := samplePutter(opts.SampleFormat, opts.BitsPerSample)
	if err != nil {
		return err
	}

	order := binary.LittleEndian
	var body bytes.Buffer
	var offsets, counts []uint32
	for y0 := 0; y0 < img.Height; y0 += opts.RowsPerStrip {
		rows := min(opts.RowsPerStrip, img.Height-y0)
		raw := make([]byte, rows*img.Width*bps)
		for i, v := range img.Data[y0*img.Width : (y0+rows)*img.Width] {
			put(raw[i*bps:], v)
		}
		strip, err := compressStrip(opts.Compression, raw)
		if err != nil {
			return err
		}
		offsets = append(offsets, uint32(8+body.Len()))
		counts = append(counts, uint32(len(strip)))
		body.Write(strip)
		if body.Len()%2 == 1 {
			body.WriteByte(0)
		}
	}

	entries := []ifdEntry{
		shortEntry(tagImageWidth, uint16(img.Width)),
		shortEntry(tagImageLength, uint16(img.Height)),
		shortEntry(tagBitsPerSample, uint16(bps*8)),
		shortEntry(tagCompression, uint16(opts.Compression)),
		shortEntry(tagPhotometric, 1),
		longEntry(tagStripOffsets, offsets...),
		shortEntry(tagSamplesPerPixel, 1),
		longEntry(tagRowsPerStrip, uint32(opts.RowsPerStrip)),
		longEntry(tagStripByteCounts, counts...),
		shortEntry(tagPlanarConfig, 1),
		shortEntry(tagSampleFormat, uint16(opts.SampleFormat)),
	}
	if img.Width > math.MaxUint16 || img.Height > math.MaxUint16 {
		entries[0] = longEntry(tagImageWidth, uint32(img.Width))
		entries[1] = longEntry(tagImageLength, uint32(img.Height))
	}
	if img.Georeferenced {
		b := img.Bounds
		sx := (b.MaxLon - b.MinLon) / float64(img.Width)
		sy := (b.MaxLat - b.MinLat) / float64(img.Height)
		entries = append(entries,
			doubleEntry(tagModelPixelScale, sx, sy, 0),
			doubleEntry(tagModelTiepoint, 0, 0, 0, b.MinLon, b.MaxLat, 0),
			// Geographic model, PixelIsArea, WGS 84.
			shortEntry(tagGeoKeyDirectory, 1, 1, 0, 3, 1024, 0, 1, 2, 1025, 0, 1, 1, 2048, 0, 1, 4326),
		)
	}
	if img.NoData != nil {
		entries = append(entries, asciiEntry(tagGDALNoData, strconv.FormatFloat(*img.NoData, 'g', -1, 64)))
	}
	slices.SortFunc(entries, func(a, b ifdEntry) int { return int(a.tag) - int(b.tag) })

	ifdOffset := 8 + body.Len()
	extOffset := ifdOffset + 2 + len(entries)*12 + 4

	var header [8]byte
	copy(header[:], "II")
	order.PutUint16(header[2:], 42)
	order.PutUint32(header[4:], uint32(ifdOffset))

	var dir, ext bytes.Buffer
	var n [2]byte
	order.PutUint16(n[:], uint16(len(entries)))
	dir.Write(n[:])
	for _, e := range entries {
		var rec [12]byte
		order.PutUint16(rec[0:], e.tag)
		order.PutUint16(rec[2:], e.typ)
		order.PutUint32(rec[4:], e.count)
		if len(e.data) <= 4 {
			copy(rec[8:], e.data)
		} else {
			order.PutUint32(rec[8:], uint32(extOffset+ext.Len()))
			ext.Write(e.data)
			if ext.Len()%2 == 1 {
				ext.WriteByte(0)
			}
		}
		dir.Write(rec[:])
	}
	dir.Write([]byte{0, 0, 0, 0})

	for _, part := range [][]byte{header[:], body.Bytes(), dir.Bytes(), ext.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	}
	return nil
}

func samplePutter(format, bits int) (func([]byte, float32), int, error) {
	le := binary.LittleEndian
	switch {
	case format == SampleFloat && bits == 32:
		return func(b []byte, v float32) { le.PutUint32(b, math.Float32bits(v)) }, 4, nil
	case format == SampleUint && bits == 8:
		return func(b []byte, v float32) { b[0] = uint8(clampSample(v, 0, math.MaxUint8)) }, 1, nil
	case format == SampleUint && bits == 16:
		return func(b []byte, v float32) { le.PutUint16(b, uint16(clampSample(v, 0, math.MaxUint16))) }, 2, nil
	case format == SampleInt && bits == 16:
		return func(b []byte, v float32) {
			le.PutUint16(b, uint16(int16(clampSample(v, math.MinInt16, math.MaxInt16))))
		}, 2, nil
	default:
		return nil, 0, fmt.Errorf("%w: encoding format %d/%d bits", ErrUnsupported, format, bits)
	}
}

func clampSample(v float32, lo, hi float64) float64 {
	f := math.Round(float64(v))
	if math.IsNaN(f) {
		return lo
	}
	return math.Max(lo, math.Min(hi, f))
}

func compressStrip(scheme int, raw []byte) ([]byte, error) {
	switch scheme {
	case CompressionNone:
		return raw, nil
	case CompressionDeflate:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, fmt.Errorf("deflate strip: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("deflate strip: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: encoding compression %d", ErrUnsupported, scheme)
	}
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shortEntry(tag uint16, vals ...uint16) ifdEntry {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[i*2:], v)
	}
	return ifdEntry{tag: tag, typ: dtShort, count: uint32(len(vals)), data: data}
}

func longEntry(tag uint16, vals ...uint32) ifdEntry {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	return ifdEntry{tag: tag, typ: dtLong, count: uint32(len(vals)), data: data}
}

func doubleEntry(tag uint16, vals ...float64) ifdEntry {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return ifdEntry{tag: tag, typ: dtDouble, count: uint32(len(vals)), data: data}
}

func asciiEntry(tag uint16, s string) ifdEntry {
	data := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: dtASCII, count: uint32(len(data)), data: data}
}
