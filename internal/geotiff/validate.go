package geotiff

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Payload error kinds.
var (
	ErrEmptyResponse    = errors.New("empty response")
	ErrNotTIFF          = errors.New("missing TIFF byte-order marker")
	ErrServiceException = errors.New("service exception")
)

const (
	snippetBytes = 2048
	detailRunes  = 280
)

// PayloadError describes an upstream body that is not a GeoTIFF.
type PayloadError struct {
	Source   string
	Coverage string
	Detail   string
	Kind     error
}

func (e *PayloadError) Error() string {
	prefix := e.Source
	if e.Coverage != "" {
		prefix += fmt.Sprintf(" coverage %q", e.Coverage)
	}
	switch e.Kind {
	case ErrEmptyResponse:
		return prefix + " returned an empty response"
	case ErrNotTIFF:
		return prefix + " returned unexpected binary data (missing TIFF byte-order marker)"
	default:
		if e.Detail == "" {
			return prefix + " request failed"
		}
		return prefix + " request failed: " + e.Detail
	}
}

func (e *PayloadError) Unwrap() error { return e.Kind }

var messagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<ows:ExceptionText>(.*?)</ows:ExceptionText>`),
	regexp.MustCompile(`(?is)<ExceptionText>(.*?)</ExceptionText>`),
	regexp.MustCompile(`(?is)<ServiceException(?:Text)?>(.*?)</ServiceException(?:Text)?>`),
	regexp.MustCompile(`(?i)"message"\s*:\s*"([^"]+)"`),
}

// EnsureRaster checks that data starts with a TIFF byte-order marker. Text
// bodies (XML, JSON, HTML) are mined for the service's error message.
func EnsureRaster(source, coverage, contentType string, data []byte) error {
	if len(data) < 4 {
		return &PayloadError{Source: source, Coverage: coverage, Kind: ErrEmptyResponse}
	}
	if _, err := byteOrder(data); err == nil {
		return nil
	}
	if !looksTextual(contentType, data[0]) {
		return &PayloadError{Source: source, Coverage: coverage, Kind: ErrNotTIFF}
	}
	return &PayloadError{
		Source:   source,
		Coverage: coverage,
		Detail:   ServiceMessage(data),
		Kind:     ErrServiceException,
	}
}

func looksTextual(contentType string, first byte) bool {
	ct := strings.ToLower(contentType)
	for _, s := range []string{"xml", "json", "html", "text"} {
		if strings.Contains(ct, s) {
			return true
		}
	}
	return first == '<' || first == '{'
}

// ServiceMessage returns the error text of an OGC exception report or JSON
// error body, or a whitespace-normalised snippet when neither matches.
func ServiceMessage(data []byte) string {
	snippet := string(data[:min(len(data), snippetBytes)])
	for _, re := range messagePatterns {
		if m := re.FindStringSubmatch(snippet); m != nil && m[1] != "" {
			return normaliseSpace(m[1])
		}
	}
	s := normaliseSpace(snippet)
	if utf8.RuneCountInString(s) > detailRunes {
		s = string([]rune(s)[:detailRunes])
	}
	return s
}

func normaliseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DecodeCoverage decodes data, prefixing any failure with the source and
// coverage it came from.
func DecodeCoverage(source, coverage string, data []byte) (*Image, error) {
	img, err := Decode(data)
	if err != nil {
		desc := source
		if coverage != "" {
			desc += fmt.Sprintf(" coverage %q", coverage)
		}
		return nil, fmt.Errorf("%s could not be decoded: %w", desc, err)
	}
	return img, nil
}

// Unwrap returns the TIFF held in a gzip stream or zip archive. Other
// payloads are returned unchanged. From a zip the first .tif/.tiff entry is
// used, or the first file if none matches.
func Unwrap(data []byte) ([]byte, error) {
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
		return out, nil
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04")):
		return unzipFirstRaster(data)
	default:
		return data, nil
	}
}

func unzipFirstRaster(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unzip: %w", err)
	}
	var pick *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(f.Name))
		if ext == ".tif" || ext == ".tiff" {
			pick = f
			break
		}
		if pick == nil {
			pick = f
		}
	}
	if pick == nil {
		return nil, errors.New("unzip: archive contains no files")
	}
	rc, err := pick.Open()
	if err != nil {
		return nil, fmt.Errorf("unzip %s: %w", pick.Name, err)
	}
	defer rc.Close()
	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("unzip %s: %w", pick.Name, err)
	}
	return out, nil
}
