package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

type zstdCompressor struct {
	encoder *zstd.Encoder
}

func newZstdCompressor(level int) (*zstdCompressor, error) {
	if level <= 0 {
		level = 1
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &zstdCompressor{encoder: encoder}, nil
}

func (c *zstdCompressor) Compress(src []byte) ([]byte, error) {
	body := c.encoder.EncodeAll(src, nil)
	if len(body) >= len(src) {
		return zstdFormat.writeBlock(src, src, false), nil
	}
	return zstdFormat.writeBlock(src, body, true), nil
}

type zstdDecompressor struct {
	decoder *zstd.Decoder
}

func newZstdDecompressor() (*zstdDecompressor, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdDecompressor{decoder: decoder}, nil
}

func (d *zstdDecompressor) OriginalLen(block []byte) (int, error) {
	return zstdFormat.originalLen(block)
}

func (d *zstdDecompressor) Decompress(block []byte, dst []byte) (int, error) {
	h, err := zstdFormat.readHeader(block)
	if err != nil {
		return 0, err
	}
	if len(dst) < h.originalLen {
		return 0, fmt.Errorf("destination of %d bytes cannot hold %d bytes", len(dst), h.originalLen)
	}
	body := block[h.bodyStart : h.bodyStart+h.compressedLen]
	var n int
	if h.compressed {
		out, err := d.decoder.DecodeAll(body, dst[:0])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
		}
		n = len(out)
		if n > 0 && &out[0] != &dst[0] {
			// decoder outgrew dst; only possible on a lying header
			return 0, fmt.Errorf("%w: decoded %d bytes, header says %d", ErrCorruptBlock, n, h.originalLen)
		}
	} else {
		n = copy(dst, body)
	}
	if err := verify(h, dst[:n]); err != nil {
		return 0, err
	}
	return n, nil
}
