// Package geotiff decodes the single-band GeoTIFF rasters served by the soil
// and taxonomy coverage endpoints, and validates upstream payloads before
// decoding.
//
// Supported: classic (non-Big) TIFF in either byte order; strips or tiles;
// no compression, LZW, Deflate, or PackBits; horizontal predictor; 8-64 bit
// integer and float samples. Only the first band is kept.
package geotiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrUnsupported marks TIFF features the decoder does not handle.
var ErrUnsupported = errors.New("unsupported TIFF feature")

// Sample formats.
const (
	SampleUint  = 1
	SampleInt   = 2
	SampleFloat = 3
)

// Bounds is a geographic extent in degrees.
type Bounds struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Image is a decoded single-band raster. Data is row-major, row 0 north.
type Image struct {
	Width         int
	Height        int
	BitsPerSample int
	SampleFormat  int
	Compression   int
	Data          []float32

	// Georeferencing, present when the file carries model tags.
	Georeferenced bool
	Bounds        Bounds
	PixelWidth    float64
	PixelHeight   float64

	// NoData is the GDAL nodata value, if declared.
	NoData *float64
}

// At returns the sample at column x, row y.
func (img *Image) At(x, y int) float32 {
	return img.Data[y*img.Width+x]
}

// Decode parses a TIFF byte stream.
func Decode(data []byte) (*Image, error) {
	order, err := byteOrder(data)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, errors.New("TIFF header truncated")
	}
	switch magic := order.Uint16(data[2:4]); magic {
	case 42:
	case 43:
		return nil, fmt.Errorf("%w: BigTIFF", ErrUnsupported)
	default:
		return nil, fmt.Errorf("bad TIFF magic %d", magic)
	}

	d, err := readIFD(data, order, order.Uint32(data[4:8]))
	if err != nil {
		return nil, err
	}

	dec := decoder{data: data, order: order, ifd: d}
	return dec.decode()
}

func byteOrder(data []byte) (binary.ByteOrder, error) {
	if len(data) < 2 {
		return nil, errors.New("TIFF header truncated")
	}
	switch {
	case data[0] == 'I' && data[1] == 'I':
		return binary.LittleEndian, nil
	case data[0] == 'M' && data[1] == 'M':
		return binary.BigEndian, nil
	default:
		return nil, errors.New("missing TIFF byte-order marker")
	}
}

type decoder struct {
	data  []byte
	order binary.ByteOrder
	ifd   ifd

	width, height int
	spp           int
	bps           int // bytes per sample
	format        int
	compression   uint64
	predictor     uint64
	planar        uint64
}

// chunk is a strip or tile placed in image coordinates.
type chunk struct {
	offset, size uint64
	x0, y0       int
	w, h         int // chunk dimensions as stored
}

func (d *decoder) decode() (*Image, error) {
	if err := d.readHeaderTags(); err != nil {
		return nil, err
	}

	chunks, err := d.layout()
	if err != nil {
		return nil, err
	}

	img := &Image{
		Width:         d.width,
		Height:        d.height,
		BitsPerSample: d.bps * 8,
		SampleFormat:  d.format,
		Compression:   int(d.compression),
		Data:          make([]float32, d.width*d.height),
	}
	read := d.sampleReader()
	for _, c := range chunks {
		if err := d.decodeChunk(img, c, read); err != nil {
			return nil, err
		}
	}

	if err := d.readGeo(img); err != nil {
		return nil, err
	}
	return img, nil
}

func (d *decoder) readHeaderTags() error {
	w, err := d.ifd.uint(d.order, tagImageWidth, 0)
	if err != nil {
		return err
	}
	h, err := d.ifd.uint(d.order, tagImageLength, 0)
	if err != nil {
		return err
	}
	if w == 0 || h == 0 {
		return errors.New("missing image dimensions")
	}
	if w*h > 1<<28 {
		return fmt.Errorf("image %dx%d too large", w, h)
	}
	d.width, d.height = int(w), int(h)

	spp, err := d.ifd.uint(d.order, tagSamplesPerPixel, 1)
	if err != nil {
		return err
	}
	d.spp = max(1, int(spp))

	bits, err := d.ifd.uint(d.order, tagBitsPerSample, 1)
	if err != nil {
		return err
	}
	switch bits {
	case 8, 16, 32, 64:
		d.bps = int(bits) / 8
	default:
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bits)
	}

	format, err := d.ifd.uint(d.order, tagSampleFormat, SampleUint)
	if err != nil {
		return err
	}
	d.format = int(format)
	switch {
	case d.format == SampleFloat && d.bps != 4 && d.bps != 8:
		return fmt.Errorf("%w: %d-bit float", ErrUnsupported, bits)
	case d.format != SampleUint && d.format != SampleInt && d.format != SampleFloat:
		return fmt.Errorf("%w: sample format %d", ErrUnsupported, d.format)
	}

	if d.compression, err = d.ifd.uint(d.order, tagCompression, CompressionNone); err != nil {
		return err
	}
	if d.predictor, err = d.ifd.uint(d.order, tagPredictor, predictorNone); err != nil {
		return err
	}
	if d.predictor != predictorNone && d.predictor != predictorHorizontal {
		return fmt.Errorf("%w: predictor %d", ErrUnsupported, d.predictor)
	}
	if d.planar, err = d.ifd.uint(d.order, tagPlanarConfig, 1); err != nil {
		return err
	}
	return nil
}

// layout lists the chunks holding the first band.
func (d *decoder) layout() ([]chunk, error) {
	tiled := false
	if _, ok := d.ifd[tagTileOffsets]; ok {
		tiled = true
	}

	offTag, cntTag := uint16(tagStripOffsets), uint16(tagStripByteCounts)
	if tiled {
		offTag, cntTag = tagTileOffsets, tagTileByteCounts
	}
	offF, ok := d.ifd[offTag]
	if !ok {
		return nil, errors.New("missing strip or tile offsets")
	}
	offsets, err := offF.uints(d.order)
	if err != nil {
		return nil, err
	}
	cntF, ok := d.ifd[cntTag]
	if !ok {
		return nil, errors.New("missing strip or tile byte counts")
	}
	counts, err := cntF.uints(d.order)
	if err != nil {
		return nil, err
	}
	if len(counts) != len(offsets) {
		return nil, fmt.Errorf("%d offsets but %d byte counts", len(offsets), len(counts))
	}

	var cw, ch, across, down int
	if tiled {
		tw, err := d.ifd.uint(d.order, tagTileWidth, 0)
		if err != nil {
			return nil, err
		}
		tl, err := d.ifd.uint(d.order, tagTileLength, 0)
		if err != nil {
			return nil, err
		}
		if tw == 0 || tl == 0 {
			return nil, errors.New("missing tile dimensions")
		}
		cw, ch = int(tw), int(tl)
		across = (d.width + cw - 1) / cw
		down = (d.height + ch - 1) / ch
	} else {
		rps, err := d.ifd.uint(d.order, tagRowsPerStrip, uint64(d.height))
		if err != nil {
			return nil, err
		}
		cw, ch = d.width, min(int(rps), d.height)
		if ch <= 0 {
			ch = d.height
		}
		across = 1
		down = (d.height + ch - 1) / ch
	}

	perPlane := across * down
	if len(offsets) < perPlane {
		return nil, fmt.Errorf("expected %d chunks, found %d", perPlane, len(offsets))
	}

	chunks := make([]chunk, 0, perPlane)
	for i := range perPlane {
		c := chunk{
			offset: offsets[i],
			size:   counts[i],
			x0:     (i % across) * cw,
			y0:     (i / across) * ch,
			w:      cw,
			h:      ch,
		}
		if c.offset+c.size > uint64(len(d.data)) {
			return nil, fmt.Errorf("chunk %d extends past end of file", i)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (d *decoder) decodeChunk(img *Image, c chunk, read func([]byte) float32) error {
	spp := d.spp
	if d.planar == 2 {
		spp = 1
	}
	rowSamples := c.w * spp
	expected := rowSamples * c.h * d.bps

	buf, err := decompress(d.compression, d.data[c.offset:c.offset+c.size], expected)
	if err != nil {
		return err
	}
	if len(buf) < expected {
		// Final strips may be short; pad with zeros.
		padded := make([]byte, expected)
		copy(padded, buf)
		buf = padded
	}
	buf = buf[:expected]

	if d.predictor == predictorHorizontal {
		if d.format == SampleFloat {
			return fmt.Errorf("%w: horizontal predictor on float samples", ErrUnsupported)
		}
		if d.compression == CompressionNone {
			// Uncompressed chunks alias the input buffer.
			buf = slices.Clone(buf)
		}
		if err := undoHorizontalPredictor(buf, d.order, d.bps, rowSamples, spp); err != nil {
			return err
		}
	}

	for y := range c.h {
		iy := c.y0 + y
		if iy >= d.height {
			break
		}
		for x := range c.w {
			ix := c.x0 + x
			if ix >= d.width {
				break
			}
			off := (y*rowSamples + x*spp) * d.bps
			img.Data[iy*d.width+ix] = read(buf[off : off+d.bps])
		}
	}
	return nil
}

func (d *decoder) sampleReader() func([]byte) float32 {
	o := d.order
	switch d.format {
	case SampleFloat:
		if d.bps == 8 {
			return func(b []byte) float32 { return float32(math.Float64frombits(o.Uint64(b))) }
		}
		return func(b []byte) float32 { return math.Float32frombits(o.Uint32(b)) }
	case SampleInt:
		switch d.bps {
		case 1:
			return func(b []byte) float32 { return float32(int8(b[0])) }
		case 2:
			return func(b []byte) float32 { return float32(int16(o.Uint16(b))) }
		case 4:
			return func(b []byte) float32 { return float32(int32(o.Uint32(b))) }
		default:
			return func(b []byte) float32 { return float32(int64(o.Uint64(b))) }
		}
	default:
		switch d.bps {
		case 1:
			return func(b []byte) float32 { return float32(b[0]) }
		case 2:
			return func(b []byte) float32 { return float32(o.Uint16(b)) }
		case 4:
			return func(b []byte) float32 { return float32(o.Uint32(b)) }
		default:
			return func(b []byte) float32 { return float32(o.Uint64(b)) }
		}
	}
}

// GeoKey ids.
const (
	keyRasterType      = 1025
	rasterPixelIsPoint = 2
)

func (d *decoder) readGeo(img *Image) error {
	if f, ok := d.ifd[tagGDALNoData]; ok {
		s := strings.TrimSpace(f.ascii())
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			img.NoData = &v
		}
	}

	scaleF, okScale := d.ifd[tagModelPixelScale]
	tieF, okTie := d.ifd[tagModelTiepoint]
	if !okScale || !okTie {
		return nil
	}
	scale, err := scaleF.floats(d.order)
	if err != nil {
		return err
	}
	tie, err := tieF.floats(d.order)
	if err != nil {
		return err
	}
	if len(scale) < 2 || len(tie) < 6 {
		return errors.New("malformed georeferencing tags")
	}

	sx, sy := scale[0], scale[1]
	minLon := tie[3] - tie[0]*sx
	maxLat := tie[4] + tie[1]*sy
	if d.rasterType() == rasterPixelIsPoint {
		minLon -= sx / 2
		maxLat += sy / 2
	}

	img.Georeferenced = true
	img.PixelWidth = sx
	img.PixelHeight = sy
	img.Bounds = Bounds{
		MinLon: minLon,
		MaxLon: minLon + float64(d.width)*sx,
		MaxLat: maxLat,
		MinLat: maxLat - float64(d.height)*sy,
	}
	return nil
}

// rasterType reads GTRasterTypeGeoKey from the GeoKey directory, defaulting
// to PixelIsArea.
func (d *decoder) rasterType() uint64 {
	f, ok := d.ifd[tagGeoKeyDirectory]
	if !ok {
		return 1
	}
	keys, err := f.uints(d.order)
	if err != nil || len(keys) < 4 {
		return 1
	}
	n := int(keys[3])
	for i := range n {
		base := 4 + i*4
		if base+3 >= len(keys) {
			break
		}
		if keys[base] == keyRasterType && keys[base+1] == 0 {
			return keys[base+3]
		}
	}
	return 1
}
