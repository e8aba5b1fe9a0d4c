// Package compress implements the block codecs used for pushed batch payloads.
//
// Every compressed block starts with a fixed header:
//
//	magic | token(1) | compressed length(4) | original length(4) | checksum(4)
//
// Integers are little-endian. The token says whether the body is compressed or
// stored raw, which happens when compression does not shrink the input. The
// checksum is the low 32 bits of the xxhash64 of the original bytes.
package compress

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Codec names accepted by NewCompressor and NewDecompressor.
const (
	CodecLZ4  = "LZ4"
	CodecZSTD = "ZSTD"
	// CodecNone passes payloads through untouched, without a block header.
	CodecNone = "NONE"
)

const (
	tokenRaw        byte = 0x10
	tokenCompressed byte = 0x20
)

// ErrCorruptBlock is returned for blocks that fail header or checksum checks.
var ErrCorruptBlock = errors.New("corrupt compressed block")

// Compressor turns a payload into a self-describing compressed block.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
}

// Decompressor restores payloads produced by the matching Compressor.
type Decompressor interface {
	// OriginalLen reads the uncompressed length from the block header, so callers
	// can size the destination before decompressing.
	OriginalLen(block []byte) (int, error)
	// Decompress writes the original bytes into dst and returns their count. dst
	// must be at least OriginalLen bytes long.
	Decompress(block []byte, dst []byte) (int, error)
}

// HeaderLength returns the block header size for codec.
func HeaderLength(codec string) (int, error) {
	if strings.EqualFold(codec, CodecNone) {
		return 0, nil
	}
	f, err := lookup(codec)
	if err != nil {
		return 0, err
	}
	return f.headerLen(), nil
}

// NewCompressor returns the compressor for codec. level is only used by ZSTD.
func NewCompressor(codec string, level int) (Compressor, error) {
	switch strings.ToUpper(codec) {
	case CodecLZ4:
		return newLZ4Compressor(), nil
	case CodecZSTD:
		return newZstdCompressor(level)
	case CodecNone:
		return noneCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression codec: %s", codec)
	}
}

// NewDecompressor returns the decompressor for codec.
func NewDecompressor(codec string) (Decompressor, error) {
	switch strings.ToUpper(codec) {
	case CodecLZ4:
		return newLZ4Decompressor(), nil
	case CodecZSTD:
		return newZstdDecompressor()
	case CodecNone:
		return noneCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression codec: %s", codec)
	}
}

type blockFormat struct {
	magic []byte
}

var (
	lz4Format  = blockFormat{magic: []byte("LZ4Block")}
	zstdFormat = blockFormat{magic: []byte("ZSTDBlock")}
)

func lookup(codec string) (blockFormat, error) {
	switch strings.ToUpper(codec) {
	case CodecLZ4:
		return lz4Format, nil
	case CodecZSTD:
		return zstdFormat, nil
	default:
		return blockFormat{}, fmt.Errorf("unknown compression codec: %s", codec)
	}
}

func (f blockFormat) headerLen() int {
	return len(f.magic) + 1 + 4 + 4 + 4
}

func checksum(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}

// writeBlock assembles a block. body is either the compressed bytes or, when
// compression did not help, the original bytes.
func (f blockFormat) writeBlock(original, body []byte, compressed bool) []byte {
	token := tokenRaw
	if compressed {
		token = tokenCompressed
	}
	out := make([]byte, f.headerLen()+len(body))
	n := copy(out, f.magic)
	out[n] = token
	n++
	binary.LittleEndian.PutUint32(out[n:], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[n+4:], uint32(len(original)))
	binary.LittleEndian.PutUint32(out[n+8:], checksum(original))
	copy(out[f.headerLen():], body)
	return out
}

type blockHeader struct {
	compressed    bool
	compressedLen int
	originalLen   int
	checksum      uint32
	bodyStart     int
}

func (f blockFormat) readHeader(block []byte) (blockHeader, error) {
	if len(block) < f.headerLen() {
		return blockHeader{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptBlock, len(block))
	}
	if !bytes.Equal(block[:len(f.magic)], f.magic) {
		return blockHeader{}, fmt.Errorf("%w: bad magic", ErrCorruptBlock)
	}
	n := len(f.magic)
	h := blockHeader{
		compressedLen: int(binary.LittleEndian.Uint32(block[n+1:])),
		originalLen:   int(binary.LittleEndian.Uint32(block[n+5:])),
		checksum:      binary.LittleEndian.Uint32(block[n+9:]),
		bodyStart:     f.headerLen(),
	}
	switch block[n] {
	case tokenRaw:
	case tokenCompressed:
		h.compressed = true
	default:
		return blockHeader{}, fmt.Errorf("%w: unknown token 0x%x", ErrCorruptBlock, block[n])
	}
	if len(block) < h.bodyStart+h.compressedLen {
		return blockHeader{}, fmt.Errorf("%w: body needs %d bytes, have %d",
			ErrCorruptBlock, h.compressedLen, len(block)-h.bodyStart)
	}
	return h, nil
}

func (f blockFormat) originalLen(block []byte) (int, error) {
	h, err := f.readHeader(block)
	if err != nil {
		return 0, err
	}
	return h.originalLen, nil
}

func verify(h blockHeader, out []byte) error {
	if len(out) != h.originalLen {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrCorruptBlock, h.originalLen, len(out))
	}
	if checksum(out) != h.checksum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptBlock)
	}
	return nil
}

type noneCodec struct{}

func (noneCodec) Compress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (noneCodec) OriginalLen(block []byte) (int, error) {
	return len(block), nil
}

func (noneCodec) Decompress(block []byte, dst []byte) (int, error) {
	if len(dst) < len(block) {
		return 0, fmt.Errorf("destination of %d bytes cannot hold %d bytes", len(dst), len(block))
	}
	return copy(dst, block), nil
}
