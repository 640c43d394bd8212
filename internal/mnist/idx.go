package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// IDX magic numbers: unsigned byte data, 3 dimensions for images and 1 for
// labels.
const (
	imagesMagic = 2051
	labelsMagic = 2049
)

// openIDX opens an IDX file, transparently decompressing .gz files. The
// returned closer releases both the gzip reader and the file.
func openIDX(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	return &gzipFile{gz: gz, f: f}, nil
}

type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipFile) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}

// readImages decodes an IDX3 image file: big-endian magic, count, rows, cols,
// then count*rows*cols raw pixel bytes.
func readImages(r io.Reader) (pixels []byte, count, rows, cols int, err error) {
	var header struct {
		Magic uint32
		Count uint32
		Rows  uint32
		Cols  uint32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("read image header: %w", err)
	}
	if header.Magic != imagesMagic {
		return nil, 0, 0, 0, fmt.Errorf("bad image magic: got %d, want %d", header.Magic, imagesMagic)
	}

	count = int(header.Count)
	rows = int(header.Rows)
	cols = int(header.Cols)

	pixels = make([]byte, count*rows*cols)
	if _, err := io.ReadFull(r, pixels); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("read %d image bytes: %w", len(pixels), err)
	}
	return pixels, count, rows, cols, nil
}

// readLabels decodes an IDX1 label file: big-endian magic and count, then
// count raw label bytes.
func readLabels(r io.Reader) ([]byte, error) {
	var header struct {
		Magic uint32
		Count uint32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read label header: %w", err)
	}
	if header.Magic != labelsMagic {
		return nil, fmt.Errorf("bad label magic: got %d, want %d", header.Magic, labelsMagic)
	}

	labels := make([]byte, header.Count)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("read %d label bytes: %w", len(labels), err)
	}
	return labels, nil
}
