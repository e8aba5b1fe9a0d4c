// Package protocol defines the binary batch framing shared by the write and
// read paths, and the partition location metadata exchanged with clients.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// BatchHeaderSize is the size of the fixed header preceding every pushed batch:
// producer id, attempt id, batch id and payload size, each a little-endian uint32.
const BatchHeaderSize = 16

// ErrTruncatedBatch is returned when a buffer ends in the middle of a batch.
var ErrTruncatedBatch = errors.New("truncated batch")

// BatchHeader describes one framed batch.
type BatchHeader struct {
	ProducerID  uint32
	AttemptID   uint32
	BatchID     uint32
	PayloadSize uint32
}

// FramedSize is the number of bytes the batch occupies including its header.
func (h BatchHeader) FramedSize() int {
	return BatchHeaderSize + int(h.PayloadSize)
}

func (h BatchHeader) String() string {
	return fmt.Sprintf("{ProducerID:%d, AttemptID:%d, BatchID:%d, PayloadSize:%d}",
		h.ProducerID, h.AttemptID, h.BatchID, h.PayloadSize)
}

// PutBatchHeader writes h into the first BatchHeaderSize bytes of buf.
func PutBatchHeader(buf []byte, h BatchHeader) {
	_ = buf[BatchHeaderSize-1]
	binary.LittleEndian.PutUint32(buf[0:4], h.ProducerID)
	binary.LittleEndian.PutUint32(buf[4:8], h.AttemptID)
	binary.LittleEndian.PutUint32(buf[8:12], h.BatchID)
	binary.LittleEndian.PutUint32(buf[12:16], h.PayloadSize)
}

// DecodeBatchHeader reads a header from the start of buf.
func DecodeBatchHeader(buf []byte) (BatchHeader, error) {
	if len(buf) < BatchHeaderSize {
		return BatchHeader{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncatedBatch, BatchHeaderSize, len(buf))
	}
	return BatchHeader{
		ProducerID:  binary.LittleEndian.Uint32(buf[0:4]),
		AttemptID:   binary.LittleEndian.Uint32(buf[4:8]),
		BatchID:     binary.LittleEndian.Uint32(buf[8:12]),
		PayloadSize: binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// EncodeBatch frames payload behind a header. PayloadSize is taken from the
// payload length.
func EncodeBatch(producerID, attemptID, batchID uint32, payload []byte) []byte {
	out := make([]byte, BatchHeaderSize+len(payload))
	PutBatchHeader(out, BatchHeader{
		ProducerID:  producerID,
		AttemptID:   attemptID,
		BatchID:     batchID,
		PayloadSize: uint32(len(payload)),
	})
	copy(out[BatchHeaderSize:], payload)
	return out
}

// ScanBatches walks every framed batch in data, calling fn with the header and
// the batch bytes (header included). It stops at the first error returned by fn.
func ScanBatches(data []byte, fn func(h BatchHeader, batch []byte) error) error {
	pos := 0
	for pos < len(data) {
		h, err := DecodeBatchHeader(data[pos:])
		if err != nil {
			return fmt.Errorf("batch at offset %d: %w", pos, err)
		}
		end := pos + h.FramedSize()
		if end > len(data) {
			return fmt.Errorf("%w: batch at offset %d needs %d bytes, have %d",
				ErrTruncatedBatch, pos, h.FramedSize(), len(data)-pos)
		}
		if err := fn(h, data[pos:end]); err != nil {
			return err
		}
		pos = end
	}
	return nil
}

// SortBatchesByProducer returns a copy of data with its batches stably ordered
// by producer id.
func SortBatchesByProducer(data []byte) ([]byte, error) {
	type span struct {
		producerID uint32
		batch      []byte
	}
	var spans []span
	err := ScanBatches(data, func(h BatchHeader, batch []byte) error {
		spans = append(spans, span{producerID: h.ProducerID, batch: batch})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].producerID < spans[j].producerID
	})
	out := make([]byte, 0, len(data))
	for _, s := range spans {
		out = append(out, s.batch...)
	}
	return out, nil
}
