package variant

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/luminous-dynamics/hdc/errdefs"
)

// Compression identifies the framing of a VCF stream.
type Compression int

const (
	// CompressionAuto sniffs the stream's magic bytes.
	CompressionAuto Compression = iota
	CompressionNone
	// CompressionGzip also covers BGZF (.vcf.gz / .bgz), which is a
	// series of gzip members.
	CompressionGzip
	CompressionZstd
	CompressionBzip2
	CompressionXz
)

func (c Compression) String() string {
	switch c {
	case CompressionAuto:
		return "auto"
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionBzip2:
		return "bzip2"
	case CompressionXz:
		return "xz"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// CompressionFromPath infers the compression from a file extension.
// Unknown extensions yield CompressionAuto.
func CompressionFromPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".bgz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	case ".bz2":
		return CompressionBzip2
	case ".xz":
		return CompressionXz
	case ".vcf", ".txt":
		return CompressionNone
	default:
		return CompressionAuto
	}
}

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	bzip2Magic = []byte("BZh")
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

func sniff(br *bufio.Reader) Compression {
	head, _ := br.Peek(6)
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, bzip2Magic):
		return CompressionBzip2
	case bytes.HasPrefix(head, xzMagic):
		return CompressionXz
	default:
		return CompressionNone
	}
}

func checkSupported(c Compression) error {
	switch c {
	case CompressionAuto, CompressionNone, CompressionGzip, CompressionZstd:
		return nil
	default:
		return errdefs.Configuration("compression", fmt.Sprintf("%s input is not supported", c))
	}
}

// decompress wraps r according to c, sniffing when c is CompressionAuto.
// Unsupported compression fails before any record is read.
func decompress(r io.Reader, c Compression) (io.ReadCloser, error) {
	if err := checkSupported(c); err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(r, 1<<16)
	if c == CompressionAuto {
		c = sniff(br)
		if err := checkSupported(c); err != nil {
			return nil, err
		}
	}

	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, &errdefs.FormatError{Source: "vcf", Reason: "invalid gzip stream", Err: err}
		}
		return zr, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, &errdefs.FormatError{Source: "vcf", Reason: "invalid zstd stream", Err: err}
		}
		return zr.IOReadCloser(), nil
	default:
		return io.NopCloser(br), nil
	}
}
