package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Compression names the zip method and, for deflate, the level. The zero
// value is Deflate.
type Compression string

const (
	Deflate     Compression = "deflate"
	DeflateFast Compression = "deflate-fast"
	DeflateBest Compression = "deflate-best"
	Store       Compression = "store"
)

type compressionSettings struct {
	method uint16
	level  int
}

var compressionTable = map[Compression]compressionSettings{
	Deflate:     {method: zip.Deflate, level: flate.DefaultCompression},
	DeflateFast: {method: zip.Deflate, level: flate.BestSpeed},
	DeflateBest: {method: zip.Deflate, level: flate.BestCompression},
	Store:       {method: zip.Store},
}

// ParseCompression maps a configuration value to a Compression. An empty
// string selects Deflate.
func ParseCompression(name string) (Compression, error) {
	c := Compression(strings.ToLower(strings.TrimSpace(name))).orDefault()
	if _, ok := compressionTable[c]; !ok {
		return "", fmt.Errorf("unknown compression %q (want store, deflate, deflate-fast or deflate-best)", name)
	}
	return c, nil
}

func (c Compression) orDefault() Compression {
	if c == "" {
		return Deflate
	}
	return c
}

func (c Compression) String() string {
	return string(c.orDefault())
}

// Method returns the zip method entries are written with.
func (c Compression) Method() uint16 {
	return compressionTable[c.orDefault()].method
}

func (c Compression) settings() (compressionSettings, error) {
	s, ok := compressionTable[c.orDefault()]
	if !ok {
		return compressionSettings{}, fmt.Errorf("unknown compression %q", string(c))
	}
	return s, nil
}

func (s compressionSettings) register(zw *zip.Writer) {
	if s.method != zip.Deflate {
		return
	}
	level := s.level
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
}
