package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/pecigonzalo/remote-shuffle/internal/reader"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

var (
	version = "development"
)

type Config struct {
	Level         string               `mapstructure:"level"`
	Output        string               `mapstructure:"output"`
	ShuffleKey    string               `mapstructure:"shuffle-key"`
	Locations     string               `mapstructure:"locations"`
	Attempts      []int                `mapstructure:"attempts"`
	AttemptNumber int                  `mapstructure:"attempt-number"`
	StartMapIndex int                  `mapstructure:"start-map-index"`
	EndMapIndex   int                  `mapstructure:"end-map-index"`
	Client        shuffle.ClientConfig `mapstructure:",squash"`
	DFS           shuffle.DFSConfig    `mapstructure:"dfs"`
}

func main() {
	defaults := shuffle.DefaultClientConfig()

	fs := pflag.NewFlagSet("default", pflag.ContinueOnError)
	fs.String("output", "json", "Log output [console, json]")
	fs.String("level", "info", "Log level [debug, info, warn, error, fatal, panic]")
	fs.String("shuffle-key", "", "Shuffle to read")
	fs.String("locations", "-", "JSON file with the partition locations, - reads stdin")
	fs.IntSlice("attempts", nil, "Successful attempt id of every producer")
	fs.Int("attempt-number", 0, "Attempt number of the reading task, odd attempts start on the replica")
	fs.Int("start-map-index", 0, "First producer to read")
	fs.Int("end-map-index", -1, "Producer after the last one to read, -1 reads every producer")
	fs.Int("fetch-max-retries-per-replica", defaults.FetchMaxRetriesPerReplica, "Fetch retries per replica")
	fs.Bool("push-replicate-enabled", defaults.PushReplicateEnabled, "Partitions have a replica to fail over to")
	fs.Bool("fetch-exclude-worker-enabled", defaults.FetchExcludeWorkerEnabled, "Exclude workers failing with critical errors")
	fs.Duration("fetch-excluded-worker-expire", defaults.FetchExcludedWorkerExpire, "Time a worker stays excluded")
	fs.Bool("range-read-filter", defaults.RangeReadFilter, "Skip locations without the requested producers")
	fs.Duration("retry-wait", defaults.RetryWait, "Wait between fetch retries")
	fs.Int("push-buffer-max-size", defaults.PushBufferMaxSize, "Largest batch expected, sizes the decode buffer")
	fs.String("compression-codec", defaults.CompressionCodec, "Batch compression codec [LZ4, ZSTD, NONE]")
	fs.Duration("fetch-timeout", defaults.FetchTimeout, "Timeout of one chunk fetch")
	fs.Duration("connect-timeout", defaults.ConnectTimeout, "Timeout of a worker connection")
	fs.String("dfs.kind", "", "Distributed filesystem of DISTRIBUTED_FS locations [local, s3]")
	fs.String("dfs.root", "", "Root path of the distributed filesystem files")
	fs.String("dfs.bucket", "", "S3 bucket of the distributed filesystem")
	fs.String("dfs.region", "", "S3 region")
	fs.String("dfs.endpoint", "", "S3 endpoint override")
	fs.Bool("dfs.force-path-style", false, "Use path style S3 addressing")
	versionFlag := fs.BoolP("version", "v", false, "get version number")

	// Bind flags and environment variables
	viper.SetEnvPrefix("SHUFFLE_READER")
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

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		fmt.Fprintf(os.Stderr, "Config unmarshal failed: %s\n\n", err.Error())
		os.Exit(2)
	}
	if config.EndMapIndex < 0 {
		config.EndMapIndex = math.MaxInt
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
		Str("service", "shuffle-reader").
		Logger()

	locations, err := loadLocations(config.Locations)
	if err != nil {
		logger.Fatal().Err(err).Msg("Error loading locations")
	}
	dfs, err := storage.NewDFS(config.DFS, afero.NewOsFs())
	if err != nil {
		logger.Fatal().Err(err).Msg("Error creating distributed filesystem")
	}

	ctx := context.Background()
	shuffleClient := client.NewHTTPShuffleClient(config.Client.ConnectTimeout, config.Client.FetchTimeout, &logger)
	excluded := reader.NewExcludedWorkers(config.Client.FetchExcludedWorkerExpire, nil)

	start := time.Now()
	stream, err := reader.Open(ctx, config.Client, shuffleClient, dfs, reader.ReadRequest{
		ShuffleKey:    config.ShuffleKey,
		Locations:     locations,
		Attempts:      config.Attempts,
		AttemptNumber: config.AttemptNumber,
		StartMapIndex: config.StartMapIndex,
		EndMapIndex:   config.EndMapIndex,
	}, excluded, reader.WithLogger(&logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("Error opening partition stream")
	}
	stream.SetCallback(reader.PrometheusCallback{})

	out := bufio.NewWriter(os.Stdout)
	n, err := io.Copy(out, stream)
	if err == nil {
		err = out.Flush()
	}
	stream.Close()
	if err != nil {
		logger.Fatal().Err(err).Int64("bytes", n).Msg("Error reading partition")
	}

	logger.Info().
		Int("locations", len(locations)).
		Int64("skipped", stream.SkipCount()).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("Partition read")
}

func loadLocations(path string) ([]*protocol.PartitionLocation, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var locations []*protocol.PartitionLocation
	if err := json.NewDecoder(r).Decode(&locations); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	return locations, nil
}
