package upstream

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"strings"
)

// DirSource reads bundled files from a filesystem, typically os.DirFS of
// a tile directory.
type DirSource struct {
	name string
	fsys fs.FS
}

// NewDirSource creates a directory source labelled name.
func NewDirSource(name string, fsys fs.FS) *DirSource {
	return &DirSource{name: name, fsys: fsys}
}

// Fetch reads the file called ref.
func (s *DirSource) Fetch(ctx context.Context, ref string) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}
	data, err := fs.ReadFile(s.fsys, ref)
	if err != nil {
		return Payload{}, fmt.Errorf("%s: read bundled file: %w", s.name, err)
	}
	return Payload{Data: data, ContentType: contentType(ref)}, nil
}

func contentType(name string) string {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".tif", ".tiff":
		return "image/tiff"
	case ".zip":
		return "application/zip"
	case ".gz":
		return "application/gzip"
	default:
		return mime.TypeByExtension(ext)
	}
}
