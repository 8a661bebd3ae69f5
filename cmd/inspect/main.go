// Command inspect prints the header, georeferencing and value statistics of
// a GeoTIFF, optionally gzip- or zip-wrapped. With -taxonomy it also prints
// the land-cover codes the service derives from a TAXOUSDA raster.
//
// Usage:
//
//	go run ./cmd/inspect data/soil/phh2o_0-5cm_mean.tif
//	go run ./cmd/inspect -taxonomy data/landcover/TAXOUSDA_T36059.tif
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/habitat-suitability-service/internal/adapter/landcover"
	"github.com/couchcryptid/habitat-suitability-service/internal/geotiff"
)

// stats summarises the finite samples of an image.
type stats struct {
	count, nodata, nonFinite int
	min, max, sum            float64
}

func (s *stats) add(v float64) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.count++
}

func (s *stats) mean() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.sum / float64(s.count)
}

func main() {
	taxonomy := flag.Bool("taxonomy", false, "treat samples as TAXOUSDA classes and print the derived land-cover codes")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *taxonomy); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, taxonomy bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from command line
	if err != nil {
		return err
	}
	data, err = geotiff.Unwrap(data)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	if err := geotiff.EnsureRaster(name, "", "", data); err != nil {
		return err
	}
	img, err := geotiff.DecodeCoverage(name, "", data)
	if err != nil {
		return err
	}

	fmt.Printf("file:          %s\n", path)
	fmt.Printf("size:          %d x %d\n", img.Width, img.Height)
	fmt.Printf("sample:        %s/%d\n", sampleFormatName(img.SampleFormat), img.BitsPerSample)
	fmt.Printf("compression:   %s\n", compressionName(img.Compression))
	if img.Georeferenced {
		b := img.Bounds
		fmt.Printf("bounds:        %g,%g,%g,%g\n", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
		fmt.Printf("pixel size:    %g x %g\n", img.PixelWidth, img.PixelHeight)
	} else {
		fmt.Println("bounds:        none (not georeferenced)")
	}
	if img.NoData != nil {
		fmt.Printf("nodata:        %g\n", *img.NoData)
	}

	var s stats
	for _, v := range img.Data {
		f := float64(v)
		switch {
		case math.IsNaN(f) || math.IsInf(f, 0):
			s.nonFinite++
		case img.NoData != nil && f == *img.NoData:
			s.nodata++
		default:
			s.add(f)
		}
	}
	fmt.Printf("valid samples: %d (nodata %d, non-finite %d)\n", s.count, s.nodata, s.nonFinite)
	if s.count > 0 {
		fmt.Printf("range:         %g .. %g\n", s.min, s.max)
		fmt.Printf("mean:          %.4f\n", s.mean())
	}

	if taxonomy {
		printLandCover(img)
	}
	return nil
}

func printLandCover(img *geotiff.Image) {
	counts := map[uint8]int{}
	for _, v := range img.Data {
		counts[landcover.MapTaxonomy(float64(v))]++
	}
	codes := make([]int, 0, len(counts))
	for c := range counts {
		codes = append(codes, int(c))
	}
	sort.Ints(codes)

	fmt.Println("land cover:")
	total := float64(len(img.Data))
	for _, c := range codes {
		n := counts[uint8(c)]
		fmt.Printf("  %3d  %8d  %5.1f%%\n", c, n, 100*float64(n)/total)
	}
}

func sampleFormatName(format int) string {
	switch format {
	case geotiff.SampleUint:
		return "uint"
	case geotiff.SampleInt:
		return "int"
	case geotiff.SampleFloat:
		return "float"
	default:
		return fmt.Sprintf("format(%d)", format)
	}
}

func compressionName(scheme int) string {
	switch scheme {
	case geotiff.CompressionNone:
		return "none"
	case geotiff.CompressionLZW:
		return "lzw"
	case geotiff.CompressionDeflate:
		return "deflate"
	case geotiff.CompressionPackBits:
		return "packbits"
	default:
		return fmt.Sprintf("scheme(%d)", scheme)
	}
}
