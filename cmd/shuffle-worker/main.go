package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pecigonzalo/remote-shuffle/internal/api"
	"github.com/pecigonzalo/remote-shuffle/internal/client"
	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/registry"
	"github.com/pecigonzalo/remote-shuffle/internal/services"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
	"github.com/pecigonzalo/remote-shuffle/internal/signals"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
	"github.com/pecigonzalo/remote-shuffle/internal/workers"
)

var (
	version                = "development"
	metricsNamespace       = "remote_shuffle"
	registryCreationFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "registry_creation_error_total",
		Namespace: metricsNamespace,
		Help:      "Total number of errors while creating the committed files registry",
	}, []string{"kind"})
)

type Config struct {
	Host            string                 `mapstructure:"host"`
	Port            int                    `mapstructure:"port"`
	MetricsPort     int                    `mapstructure:"metrics-port"`
	Level           string                 `mapstructure:"level"`
	Output          string                 `mapstructure:"output"`
	ShutdownTimeout time.Duration          `mapstructure:"shutdown-timeout"`
	Kafka           client.ConnectorConfig `mapstructure:"kafka"`
	Worker          shuffle.WorkerConfig   `mapstructure:",squash"`
}

func main() {
	defaults := shuffle.DefaultWorkerConfig()

	fs := pflag.NewFlagSet("default", pflag.ContinueOnError)
	fs.String("host", "", "Host to bind service to")
	fs.Int("port", 9097, "HTTP port serving push, fetch and probes")
	fs.Int("metrics-port", 0, "Separate port for /metrics and /healthz, 0 disables it")
	fs.String("output", "json", "Output target [console, json]")
	fs.String("level", "info", "Log level [debug, info, warn, error, fatal, panic]")
	fs.Duration("shutdown-timeout", 30*time.Second, "Time allowed for in flight requests on shutdown")

	fs.StringSlice("storage.dirs", nil, "Local directories holding partition files, one per disk")
	fs.String("storage.disk-type", defaults.Storage.DiskType, "Disk type of the local directories [HDD, SSD]")
	fs.Int64("storage.flusher-buffer-size", defaults.Storage.FlusherBufferSize, "Bytes buffered per writer before a local flush")
	fs.Int64("storage.dfs-flusher-buffer-size", defaults.Storage.DFSFlusherBufferSize, "Bytes buffered per writer before a distributed filesystem flush")
	fs.Int64("storage.chunk-size", defaults.Storage.ChunkSize, "Target chunk size served to readers")
	fs.Bool("storage.memory-file-enabled", defaults.Storage.MemoryFileEnabled, "Allow partition files to start in memory")
	fs.Int64("storage.memory-file-max-size", defaults.Storage.MemoryFileMaxSize, "Size above which a memory file moves to disk")
	fs.Duration("storage.writer-close-timeout", defaults.Storage.WriterCloseTimeout, "Time a commit waits for pending writes and flushes")
	fs.Duration("storage.flush-task-timeout", defaults.Storage.FlushTaskTimeout, "Time allowed to queue a flush task")
	fs.Int("storage.flusher-threads", defaults.Storage.FlusherThreads, "Flush workers per local directory")
	fs.Int("storage.dfs-flusher-threads", defaults.Storage.DFSFlusherThreads, "Flush workers for the distributed filesystem")
	fs.Int("storage.flusher-queue-capacity", defaults.Storage.FlusherQueueCapacity, "Queued flush tasks per flush worker")
	fs.Bool("storage.graceful-shutdown", defaults.Storage.GracefulShutdown, "Record committed files so they survive a restart")
	fs.Bool("storage.range-read-filter", defaults.Storage.RangeReadFilter, "Track producer ids of every partition file")
	fs.String("storage.dfs.kind", "", "Distributed filesystem tier [local, s3], empty disables it")
	fs.String("storage.dfs.root", "", "Root path of the distributed filesystem files")
	fs.String("storage.dfs.bucket", "", "S3 bucket of the distributed filesystem")
	fs.String("storage.dfs.region", "", "S3 region")
	fs.String("storage.dfs.endpoint", "", "S3 endpoint override")
	fs.Bool("storage.dfs.force-path-style", false, "Use path style S3 addressing")
	fs.Int64("storage.dfs.upload-concurrency", defaults.Storage.DFS.UploadConcurrency, "Concurrent S3 part uploads")

	fs.Int64("memory.max-direct-memory", defaults.Memory.MaxDirectMemory, "Bytes available to buffers and memory files")
	fs.Float64("memory.memory-file-storage-ratio", defaults.Memory.MemoryFileStorageRatio, "Share of memory usable by memory files")
	fs.Float64("memory.pause-push-ratio", defaults.Memory.PausePushRatio, "Share of memory at which pushes pause")
	fs.Float64("memory.resume-ratio", defaults.Memory.ResumeRatio, "Share of memory below which pushes resume")
	fs.Duration("memory.check-interval", defaults.Memory.CheckInterval, "Interval of the memory pressure check")

	fs.Bool("device.enabled", defaults.Device.Enabled, "Monitor local directories")
	fs.Duration("device.check-interval", defaults.Device.CheckInterval, "Interval of the device check")
	fs.Float64("device.high-usage-ratio", defaults.Device.HighUsageRatio, "Disk usage ratio considered high")

	fs.String("registry.kind", defaults.Registry.Kind, "Committed files registry [memory, kafka]")
	fs.String("registry.topic", defaults.Registry.Topic, "Compacted topic of the kafka registry")
	fs.String("registry.client-id", defaults.Registry.ClientID, "Client id of the kafka registry")
	fs.Duration("registry.recover-idle", defaults.Registry.RecoverIdle, "Idle time ending the registry replay")
	fs.StringSlice("kafka.broker-addrs", []string{}, "Kafka broker address")
	fs.Duration("kafka.dial-timeout", 10*time.Second, "Timeout of a kafka broker connection")
	fs.Bool("kafka.tls.enabled", false, "Connect to kafka over TLS")
	fs.Bool("kafka.sasl.enabled", false, "Authenticate to kafka with SASL")
	fs.String("kafka.sasl.mechanism", string(client.SASLMechanismAWSMSKIAM), "SASL mechanism [aws-msk-iam, plain, scram-sha-256, scram-sha-512]")
	fs.String("kafka.sasl.username", "", "SASL username")
	fs.String("kafka.sasl.password", "", "SASL password")
	versionFlag := fs.BoolP("version", "v", false, "get version number")

	// Bind flags and environment variables
	viper.SetEnvPrefix("SHUFFLE_WORKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.BindPFlags(fs)
	viper.AutomaticEnv()

	// parse flags
	err := fs.Parse(os.Args[1:])
	switch {
	case err == pflag.ErrHelp:
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err.Error())
		fs.PrintDefaults()
		os.Exit(2)
	case *versionFlag:
		fmt.Println(version)
		os.Exit(0)
	}

	// Load config
	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		fmt.Fprintf(os.Stderr, "Config unmarshal failed: %s\n\n", err.Error())
		os.Exit(2)
	}

	// Setup logger
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err.Error())
		os.Exit(2)
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if config.Output == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	logger = logger.With().
		Timestamp().
		Str("version", version).
		Str("service", "shuffle-worker").
		Logger()

	logger.Info().
		Str("config", fmt.Sprintf("%+v", config.Worker)).
		Msg("Starting shuffle worker")

	osFs := afero.NewOsFs()
	dfs, err := storage.NewDFS(config.Worker.Storage.DFS, osFs)
	if err != nil {
		logger.Fatal().Err(err).Msg("Error creating distributed filesystem")
	}

	reg, err := newRegistry(config, &logger)
	if err != nil {
		registryCreationFailed.WithLabelValues(config.Worker.Registry.Kind).Inc()
		logger.Fatal().Err(err).Msg("Error creating committed files registry")
	}

	var deviceMonitor storage.DeviceMonitor = storage.NoopDeviceMonitor{}
	if config.Worker.Device.Enabled && len(config.Worker.Storage.Dirs) > 0 {
		deviceMonitor = storage.NewLocalDeviceMonitor(config.Worker.Device, osFs, config.Worker.Storage.Dirs, storage.StatfsUsage, &logger)
	}

	memoryManager := memory.NewManager(config.Worker.Memory, &logger)
	storageManager := storage.NewManager(config.Worker.Storage, memoryManager, reg, deviceMonitor, osFs, dfs, &logger)

	partitionService := services.NewPartitionService(storageManager, memoryManager, config.Worker.Storage.RangeReadFilter, &logger)
	fetchService := services.NewFetchService(storageManager, &logger)
	statusService := services.NewStatusService(storageManager, memoryManager, fetchService, &logger)
	handler := services.NewHandler(partitionService, fetchService, statusService, &logger)

	// restore committed files before the server accepts requests
	shuffleManager := workers.NewShuffleManager(config.Worker, storageManager, memoryManager, deviceMonitor, fetchService, statusService, nil, &logger)
	shuffleManager.Start()

	// Start HTTP server
	srvCfg := api.Config{
		Host:        config.Host,
		Port:        config.Port,
		MetricsPort: config.MetricsPort,
		Service:     "shuffle-worker",
	}
	srv, _ := api.NewServer(&srvCfg, handler, &logger)
	httpServer, healthy, ready := srv.ListenAndServe()

	// graceful shutdown
	stopCh := signals.SetupSignalHandler()
	sd, _ := signals.NewShutdown(config.ShutdownTimeout, &logger)
	sd.Graceful(stopCh, httpServer, shuffleManager, healthy, ready)
}

func newRegistry(config Config, logger *zerolog.Logger) (registry.Registry, error) {
	switch config.Worker.Registry.Kind {
	case "memory":
		return registry.NewMemoryRegistry(), nil
	case "kafka":
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return registry.NewKafkaRegistry(ctx, config.Worker.Registry, config.Kafka, logger)
	default:
		return nil, fmt.Errorf("unknown registry kind %q", config.Worker.Registry.Kind)
	}
}
