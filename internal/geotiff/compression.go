package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/tiff/lzw"
)

// Compression schemes.
const (
	CompressionNone       = 1
	CompressionLZW        = 5
	CompressionDeflate    = 8
	CompressionPackBits   = 32773
	compressionDeflateOld = 32946
)

const (
	predictorNone       = 1
	predictorHorizontal = 2
)

func decompress(scheme uint64, chunk []byte, expected int) ([]byte, error) {
	switch scheme {
	case CompressionNone:
		return chunk, nil
	case CompressionLZW:
		r := lzw.NewReader(bytes.NewReader(chunk), lzw.MSB, 8)
		defer r.Close()
		return readUpTo(r, expected)
	case CompressionDeflate, compressionDeflateOld:
		r, err := zlib.NewReader(bytes.NewReader(chunk))
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		defer r.Close()
		return readUpTo(r, expected)
	case CompressionPackBits:
		return unpackBits(chunk, expected)
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, scheme)
	}
}

// readUpTo reads at most n bytes. Short streams are returned as-is so the
// caller can zero-fill a truncated final strip.
func readUpTo(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

func unpackBits(src []byte, expected int) ([]byte, error) {
	out := make([]byte, 0, expected)
	for i := 0; i < len(src) && len(out) < expected; {
		n := int(int8(src[i]))
		i++
		switch {
		case n >= 0:
			end := i + n + 1
			if end > len(src) {
				return nil, fmt.Errorf("packbits: literal run past end of data")
			}
			out = append(out, src[i:end]...)
			i = end
		case n != -128:
			if i >= len(src) {
				return nil, fmt.Errorf("packbits: missing repeat byte")
			}
			for range 1 - n {
				out = append(out, src[i])
			}
			i++
		}
	}
	return out, nil
}

// undoHorizontalPredictor reverses horizontal differencing in place for one
// chunk of rows, each rowSamples samples wide with spp interleaved components.
func undoHorizontalPredictor(buf []byte, order binary.ByteOrder, bytesPerSample, rowSamples, spp int) error {
	rowBytes := rowSamples * bytesPerSample
	if rowBytes == 0 {
		return nil
	}
	for row := 0; row+rowBytes <= len(buf); row += rowBytes {
		r := buf[row : row+rowBytes]
		for i := spp; i < rowSamples; i++ {
			switch bytesPerSample {
			case 1:
				r[i] += r[i-spp]
			case 2:
				prev := order.Uint16(r[(i-spp)*2:])
				order.PutUint16(r[i*2:], order.Uint16(r[i*2:])+prev)
			case 4:
				prev := order.Uint32(r[(i-spp)*4:])
				order.PutUint32(r[i*4:], order.Uint32(r[i*4:])+prev)
			case 8:
				prev := order.Uint64(r[(i-spp)*8:])
				order.PutUint64(r[i*8:], order.Uint64(r[i*8:])+prev)
			default:
				return fmt.Errorf("%w: predictor with %d-byte samples", ErrUnsupported, bytesPerSample)
			}
		}
	}
	return nil
}
