package client

import "github.com/pecigonzalo/remote-shuffle/internal/protocol"

// Message is a simpler internal representation of kafka.Message
// Topic, Partition and Offset are the required fields for commiting a message
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

// TopicInfo represents the information stored about a topic.
type TopicInfo struct {
	Name       string                `json:"name"`
	Partitions []PartitionAssignment `json:"partitions"`
}

// PartitionAssignment contains the actual or desired assignment of
// replicas in a topic partition.
type PartitionAssignment struct {
	ID       int   `json:"id"`
	Leader   int   `json:"leader"`
	Replicas []int `json:"replicas"`
}

// BrokerInfo represents the information stored about a broker.
type BrokerInfo struct {
	ID   int    `json:"id"`
	Rack string `json:"rack"`
}

// StreamHandle identifies a fetch stream opened on a worker.
type StreamHandle struct {
	StreamID  string `json:"streamId"`
	NumChunks int    `json:"numChunks"`
}

// CommitResult describes a partition file after its writer was closed.
type CommitResult struct {
	FileLength     int64                `json:"fileLength"`
	NumChunks      int                  `json:"numChunks"`
	StorageInfo    protocol.StorageInfo `json:"storageInfo"`
	ProducerBitmap string               `json:"producerBitmap,omitempty"`
}

// ReserveRequest asks a worker to create a writer for a partition replica.
type ReserveRequest struct {
	PartitionID     int  `json:"partitionId"`
	RangeReadFilter bool `json:"rangeReadFilter"`
	// MemoryAllowed lets the worker start the file in the memory tier.
	MemoryAllowed bool `json:"memoryAllowed"`
}
