package protocol

import (
	"encoding/json"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchHeaderLayout(t *testing.T) {
	batch := EncodeBatch(1, 2, 3, []byte("abcd"))

	require.Len(t, batch, BatchHeaderSize+4)
	// little-endian u32 fields in order: producer, attempt, batch, size
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}, batch[:BatchHeaderSize])

	h, err := DecodeBatchHeader(batch)
	require.NoError(t, err)
	assert.Equal(t, BatchHeader{ProducerID: 1, AttemptID: 2, BatchID: 3, PayloadSize: 4}, h)
	assert.Equal(t, 20, h.FramedSize())
}

func TestScanBatches(t *testing.T) {
	var data []byte
	data = append(data, EncodeBatch(1, 0, 0, []byte("one"))...)
	data = append(data, EncodeBatch(2, 0, 0, []byte("three"))...)

	tests := []struct {
		name      string
		data      []byte
		want      []uint32
		assertion assert.ErrorAssertionFunc
	}{
		{
			name:      "Complete",
			data:      data,
			want:      []uint32{1, 2},
			assertion: assert.NoError,
		},
		{
			name:      "Empty",
			data:      nil,
			assertion: assert.NoError,
		},
		{
			name:      "TruncatedPayload",
			data:      data[:len(data)-1],
			want:      []uint32{1},
			assertion: assert.Error,
		},
		{
			name:      "TruncatedHeader",
			data:      data[:BatchHeaderSize-2],
			assertion: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []uint32
			err := ScanBatches(tt.data, func(h BatchHeader, batch []byte) error {
				got = append(got, h.ProducerID)
				assert.Len(t, batch, h.FramedSize())
				return nil
			})
			tt.assertion(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortBatchesByProducer(t *testing.T) {
	var data []byte
	data = append(data, EncodeBatch(3, 0, 0, []byte("c0"))...)
	data = append(data, EncodeBatch(1, 0, 0, []byte("a0"))...)
	data = append(data, EncodeBatch(3, 0, 1, []byte("c1"))...)
	data = append(data, EncodeBatch(2, 0, 0, []byte("b0"))...)

	sorted, err := SortBatchesByProducer(data)
	require.NoError(t, err)
	require.Len(t, sorted, len(data))

	var order []string
	require.NoError(t, ScanBatches(sorted, func(h BatchHeader, batch []byte) error {
		order = append(order, string(batch[BatchHeaderSize:]))
		return nil
	}))
	assert.Equal(t, []string{"a0", "b0", "c0", "c1"}, order)
}

func TestPartitionLocationJSON(t *testing.T) {
	bitmap := roaring.BitmapOf(1, 5, 9)
	primary := &PartitionLocation{
		ID:             7,
		Epoch:          1,
		Host:           "worker-1",
		FetchPort:      9097,
		PushPort:       9097,
		Mode:           ModePrimary,
		StorageInfo:    StorageInfo{Type: StorageLocalSSD, MountPoint: "/mnt/disk1"},
		ProducerBitmap: bitmap,
	}
	replica := &PartitionLocation{
		ID:          7,
		Epoch:       1,
		Host:        "worker-2",
		FetchPort:   9097,
		Mode:        ModeReplica,
		StorageInfo: StorageInfo{Type: StorageLocalHDD},
		Peer:        primary,
	}
	primary.Peer = replica

	body, err := json.Marshal(primary)
	require.NoError(t, err)

	var decoded PartitionLocation
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "7-1-0", decoded.FileName())
	assert.Equal(t, "worker-1:9097", decoded.HostAndFetchPort())
	require.NotNil(t, decoded.ProducerBitmap)
	assert.True(t, decoded.ProducerBitmap.Equals(bitmap))
	require.NotNil(t, decoded.Peer)
	assert.Equal(t, "worker-2", decoded.Peer.Host)
	assert.Equal(t, "7-1-1", decoded.Peer.FileName())
	assert.Same(t, &decoded, decoded.Peer.Peer)
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     *PartitionLocation
		wantErr  assert.ErrorAssertionFunc
	}{
		{name: "Primary", fileName: "3-1-0", want: &PartitionLocation{ID: 3, Epoch: 1, Mode: ModePrimary}, wantErr: assert.NoError},
		{name: "Replica", fileName: "12-0-1", want: &PartitionLocation{ID: 12, Mode: ModeReplica}, wantErr: assert.NoError},
		{name: "UnknownMode", fileName: "3-1-2", wantErr: assert.Error},
		{name: "Garbage", fileName: "not-a-file", wantErr: assert.Error},
		{name: "TrailingBytes", fileName: "3-1-0.index", wantErr: assert.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFileName(tt.fileName)
			tt.wantErr(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
