package compress

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

type lz4Compressor struct{}

func newLZ4Compressor() *lz4Compressor {
	return &lz4Compressor{}
}

func (c *lz4Compressor) Compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// lz4 reports 0 for incompressible input
	if n == 0 || n >= len(src) {
		return lz4Format.writeBlock(src, src, false), nil
	}
	return lz4Format.writeBlock(src, dst[:n], true), nil
}

type lz4Decompressor struct{}

func newLZ4Decompressor() *lz4Decompressor {
	return &lz4Decompressor{}
}

func (d *lz4Decompressor) OriginalLen(block []byte) (int, error) {
	return lz4Format.originalLen(block)
}

func (d *lz4Decompressor) Decompress(block []byte, dst []byte) (int, error) {
	h, err := lz4Format.readHeader(block)
	if err != nil {
		return 0, err
	}
	if len(dst) < h.originalLen {
		return 0, fmt.Errorf("destination of %d bytes cannot hold %d bytes", len(dst), h.originalLen)
	}
	body := block[h.bodyStart : h.bodyStart+h.compressedLen]
	var n int
	if h.compressed {
		n, err = lz4.UncompressBlock(body, dst[:h.originalLen])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
		}
	} else {
		n = copy(dst, body)
	}
	if err := verify(h, dst[:n]); err != nil {
		return 0, err
	}
	return n, nil
}
