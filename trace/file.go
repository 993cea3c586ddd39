package trace

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Compression identifies how a trace file is encoded.
type Compression int

const (
	// None is a plain text trace.
	None Compression = iota
	// Gzip is a gzip stream.
	Gzip
	// Zstd is a zstandard stream.
	Zstd
	// LZ4 is an lz4 frame stream.
	LZ4
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

// File is a trace opened from disk.
type File struct {
	*Reader

	Compression Compression

	closers []func() error
}

// Open opens a trace file. Gzip, zstd and lz4 compressed traces are
// recognized by their magic bytes.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	file := &File{closers: []func() error{f.Close}}

	buffered := bufio.NewReader(f)
	r, compression, err := decompress(buffered)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if c, ok := r.(io.Closer); ok {
		file.closers = append(file.closers, c.Close)
	}
	if d, ok := r.(*zstd.Decoder); ok {
		file.closers = append(file.closers, func() error { d.Close(); return nil })
	}

	file.Reader = NewReader(r)
	file.Compression = compression

	return file, nil
}

// Close releases the decoder and the underlying file.
func (f *File) Close() error {
	var first error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	f.closers = nil

	return first
}

func decompress(r *bufio.Reader) (io.Reader, Compression, error) {
	head, err := r.Peek(4)
	if err != nil && err != io.EOF {
		return nil, None, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, Gzip, err
		}
		return zr, Gzip, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, Zstd, err
		}
		return zr, Zstd, nil
	case bytes.HasPrefix(head, lz4Magic):
		return lz4.NewReader(r), LZ4, nil
	default:
		return r, None, nil
	}
}
