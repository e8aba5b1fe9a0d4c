// Package shuffle holds the configuration shared by the worker and the reader.
package shuffle

import "time"

// StorageConfig drives the partition write engine and the storage manager.
type StorageConfig struct {
	Dirs                 []string      `mapstructure:"dirs"`
	DiskType             string        `mapstructure:"disk-type"`
	FlusherBufferSize    int64         `mapstructure:"flusher-buffer-size"`
	DFSFlusherBufferSize int64         `mapstructure:"dfs-flusher-buffer-size"`
	ChunkSize            int64         `mapstructure:"chunk-size"`
	MemoryFileEnabled    bool          `mapstructure:"memory-file-enabled"`
	MemoryFileMaxSize    int64         `mapstructure:"memory-file-max-size"`
	WriterCloseTimeout   time.Duration `mapstructure:"writer-close-timeout"`
	FlushTaskTimeout     time.Duration `mapstructure:"flush-task-timeout"`
	FlusherThreads       int           `mapstructure:"flusher-threads"`
	DFSFlusherThreads    int           `mapstructure:"dfs-flusher-threads"`
	FlusherQueueCapacity int           `mapstructure:"flusher-queue-capacity"`
	GracefulShutdown     bool          `mapstructure:"graceful-shutdown"`
	RangeReadFilter      bool          `mapstructure:"range-read-filter"`
	DFS                  DFSConfig     `mapstructure:"dfs"`
}

// DFSConfig selects the distributed filesystem tier.
type DFSConfig struct {
	// Kind is one of "", "local" or "s3". Empty disables the tier.
	Kind              string `mapstructure:"kind"`
	Root              string `mapstructure:"root"`
	Bucket            string `mapstructure:"bucket"`
	Region            string `mapstructure:"region"`
	Endpoint          string `mapstructure:"endpoint"`
	ForcePathStyle    bool   `mapstructure:"force-path-style"`
	UploadConcurrency int64  `mapstructure:"upload-concurrency"`
}

// Enabled reports whether a distributed filesystem is configured.
func (c DFSConfig) Enabled() bool {
	return c.Kind != ""
}

// MemoryConfig sizes the process-wide memory accountant.
type MemoryConfig struct {
	MaxDirectMemory        int64         `mapstructure:"max-direct-memory"`
	MemoryFileStorageRatio float64       `mapstructure:"memory-file-storage-ratio"`
	PausePushRatio         float64       `mapstructure:"pause-push-ratio"`
	ResumeRatio            float64       `mapstructure:"resume-ratio"`
	CheckInterval          time.Duration `mapstructure:"check-interval"`
}

// DeviceConfig drives the local device monitor.
type DeviceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	CheckInterval  time.Duration `mapstructure:"check-interval"`
	HighUsageRatio float64       `mapstructure:"high-usage-ratio"`
}

// RegistryConfig selects where committed files are recorded for recovery.
type RegistryConfig struct {
	// Kind is "memory" or "kafka".
	Kind        string        `mapstructure:"kind"`
	Topic       string        `mapstructure:"topic"`
	ClientID    string        `mapstructure:"client-id"`
	RecoverIdle time.Duration `mapstructure:"recover-idle"`
}

// WorkerConfig groups everything the worker process needs besides transport.
type WorkerConfig struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Device   DeviceConfig   `mapstructure:"device"`
	Registry RegistryConfig `mapstructure:"registry"`
}

// ClientConfig drives the partition read engine and the push path of producers.
type ClientConfig struct {
	FetchMaxRetriesPerReplica int           `mapstructure:"fetch-max-retries-per-replica"`
	PushReplicateEnabled      bool          `mapstructure:"push-replicate-enabled"`
	FetchExcludeWorkerEnabled bool          `mapstructure:"fetch-exclude-worker-enabled"`
	FetchExcludedWorkerExpire time.Duration `mapstructure:"fetch-excluded-worker-expire"`
	RangeReadFilter           bool          `mapstructure:"range-read-filter"`
	RetryWait                 time.Duration `mapstructure:"retry-wait"`
	PushBufferMaxSize         int           `mapstructure:"push-buffer-max-size"`
	CompressionCodec          string        `mapstructure:"compression-codec"`
	ZstdLevel                 int           `mapstructure:"zstd-level"`
	FetchTimeout              time.Duration `mapstructure:"fetch-timeout"`
	ConnectTimeout            time.Duration `mapstructure:"connect-timeout"`
}

// FetchMaxRetries is the retry budget of one read stream. Replication doubles
// it since there are two replicas to exhaust.
func (c ClientConfig) FetchMaxRetries() int {
	if c.PushReplicateEnabled {
		return c.FetchMaxRetriesPerReplica * 2
	}
	return c.FetchMaxRetriesPerReplica
}

// DefaultWorkerConfig returns the values used when no flag or variable is set.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Storage: StorageConfig{
			DiskType:             "HDD",
			FlusherBufferSize:    256 << 10,
			DFSFlusherBufferSize: 4 << 20,
			ChunkSize:            8 << 20,
			MemoryFileEnabled:    false,
			MemoryFileMaxSize:    8 << 20,
			WriterCloseTimeout:   120 * time.Second,
			FlushTaskTimeout:     120 * time.Second,
			FlusherThreads:       2,
			DFSFlusherThreads:    8,
			FlusherQueueCapacity: 512,
			RangeReadFilter:      false,
			DFS: DFSConfig{
				UploadConcurrency: 16,
			},
		},
		Memory: MemoryConfig{
			MaxDirectMemory:        1 << 30,
			MemoryFileStorageRatio: 0.3,
			PausePushRatio:         0.85,
			ResumeRatio:            0.7,
			CheckInterval:          10 * time.Millisecond,
		},
		Device: DeviceConfig{
			Enabled:        true,
			CheckInterval:  60 * time.Second,
			HighUsageRatio: 0.95,
		},
		Registry: RegistryConfig{
			Kind:        "memory",
			Topic:       "__shuffle_committed_files",
			ClientID:    "shuffle-worker",
			RecoverIdle: 5 * time.Second,
		},
	}
}

// DefaultClientConfig returns the values used when no flag or variable is set.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		FetchMaxRetriesPerReplica: 3,
		PushReplicateEnabled:      false,
		FetchExcludeWorkerEnabled: false,
		FetchExcludedWorkerExpire: 60 * time.Second,
		RangeReadFilter:           false,
		RetryWait:                 5 * time.Second,
		PushBufferMaxSize:         64 << 10,
		CompressionCodec:          "LZ4",
		ZstdLevel:                 1,
		FetchTimeout:              600 * time.Second,
		ConnectTimeout:            10 * time.Second,
	}
}
