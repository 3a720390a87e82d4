package compression

import (
	"fmt"

	"github.com/pierrec/lz4"
)

// NoCompressor is a pass-through used when compression is disabled or a
// payload is below the compression threshold.
type NoCompressor struct{}

func (c *NoCompressor) Name() string { return "none" }

func (c *NoCompressor) Compress(data []byte) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

func (c *NoCompressor) Decompress(data []byte, originalSize int) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// LZ4Compressor implements LZ4 block compression.
type LZ4Compressor struct{}

func (c *LZ4Compressor) Name() string { return "lz4" }

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 {
		// Incompressible input: CompressBlock signals this with n == 0.
		return nil, errIncompressible
	}
	return compressed[:n], nil
}

func (c *LZ4Compressor) Decompress(data []byte, originalSize int) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	decompressed := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(data, decompressed)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	return decompressed[:n], nil
}

var errIncompressible = fmt.Errorf("lz4: input is incompressible")

// IsIncompressible reports whether a Compress error means the input could not
// be shrunk, in which case the caller should store it raw.
func IsIncompressible(err error) bool {
	return err == errIncompressible
}
