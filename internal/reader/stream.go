// Package reader is the consumer side of the shuffle: it turns the replica
// locations of a partition into one deduplicated, decompressed byte stream.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
	"github.com/pecigonzalo/remote-shuffle/internal/compress"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

var (
	// ErrCreateReaderFailed is returned once the retry budget is spent opening
	// a partition reader.
	ErrCreateReaderFailed = errors.New("create partition reader failed")
	// ErrFetchChunkFailed is returned once the retry budget is spent fetching
	// chunks.
	ErrFetchChunkFailed = errors.New("fetch chunk failed")
	// ErrExcludedLocation is the retryable error used for excluded workers.
	ErrExcludedLocation = errors.New("fetch from excluded location")
)

// InputStream is the byte stream of one partition range. It is meant for a
// single consumer goroutine.
type InputStream interface {
	io.Reader
	io.ByteReader
	io.Closer
	// SetCallback must be called before the first read.
	SetCallback(callback MetricsCallback)
	// SkipCount is the number of locations skipped by the range read filter.
	SkipCount() int64
}

type emptyStream struct{}

func (emptyStream) Read([]byte) (int, error)    { return 0, io.EOF }
func (emptyStream) ReadByte() (byte, error)     { return 0, io.EOF }
func (emptyStream) Close() error                { return nil }
func (emptyStream) SetCallback(MetricsCallback) {}
func (emptyStream) SkipCount() int64            { return 0 }

// Empty returns a stream that is at EOF.
func Empty() InputStream {
	return emptyStream{}
}

// Option customizes a stream.
type Option func(*stream)

func WithLogger(logger *zerolog.Logger) Option {
	return func(s *stream) {
		s.logger = logger.With().Str("component", "input-stream").Str("shuffleKey", s.shuffleKey).Logger()
	}
}

// WithSleep replaces the backoff between retries.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *stream) {
		s.sleep = sleep
	}
}

// WithRand sets the source used to shuffle the locations.
func WithRand(r *rand.Rand) Option {
	return func(s *stream) {
		s.rand = r
	}
}

// ReadRequest names the partition range a stream reads.
type ReadRequest struct {
	ShuffleKey string
	Locations  []*protocol.PartitionLocation
	// Attempts holds the successful attempt id of every producer.
	Attempts      []int
	AttemptNumber int
	StartMapIndex int
	// EndMapIndex is exclusive. math.MaxInt reads every producer.
	EndMapIndex int
}

var _ InputStream = (*stream)(nil)

type stream struct {
	ctx      context.Context
	config   shuffle.ClientConfig
	client   client.ShuffleClient
	fs       storage.FileSystem
	excluded *ExcludedWorkers

	shuffleKey    string
	locations     []*protocol.PartitionLocation
	attempts      []int
	attemptNumber int
	startMapIndex int
	endMapIndex   int

	decompressor compress.Decompressor
	decompressed []byte
	position     int
	limit        int
	batchesRead  map[uint32]map[uint32]struct{}

	chunk     []byte
	chunkOpen bool
	reader    PartitionReader
	fileIndex int

	fetchMaxRetry int
	retryCount    int

	callback  MetricsCallback
	skipCount atomic.Int64
	closed    bool

	sleep  func(time.Duration)
	rand   *rand.Rand
	logger zerolog.Logger
}

// Open builds the stream and positions it on the first chunk. Worker
// locations are read through c, distributed filesystem locations through fs,
// which may be nil when none is configured.
func Open(
	ctx context.Context,
	config shuffle.ClientConfig,
	c client.ShuffleClient,
	fs storage.FileSystem,
	req ReadRequest,
	excluded *ExcludedWorkers,
	opts ...Option,
) (InputStream, error) {
	if len(req.Locations) == 0 {
		return Empty(), nil
	}
	decompressor, err := compress.NewDecompressor(config.CompressionCodec)
	if err != nil {
		return nil, err
	}
	if excluded == nil {
		excluded = NewExcludedWorkers(config.FetchExcludedWorkerExpire, nil)
	}

	s := &stream{
		ctx:           ctx,
		config:        config,
		client:        c,
		fs:            fs,
		excluded:      excluded,
		shuffleKey:    req.ShuffleKey,
		locations:     append([]*protocol.PartitionLocation(nil), req.Locations...),
		attempts:      req.Attempts,
		attemptNumber: req.AttemptNumber,
		startMapIndex: req.StartMapIndex,
		endMapIndex:   req.EndMapIndex,
		decompressor:  decompressor,
		decompressed:  make([]byte, config.PushBufferMaxSize),
		batchesRead:   make(map[uint32]map[uint32]struct{}),
		fetchMaxRetry: config.FetchMaxRetries(),
		sleep:         time.Sleep,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	shuffleFn := rand.Shuffle
	if s.rand != nil {
		shuffleFn = s.rand.Shuffle
	}
	shuffleFn(len(s.locations), func(i, j int) {
		s.locations[i], s.locations[j] = s.locations[j], s.locations[i]
	})

	if err := s.moveToNextReader(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *stream) SetCallback(callback MetricsCallback) {
	s.callback = callback
}

func (s *stream) SkipCount() int64 {
	return s.skipCount.Load()
}

// skipLocation reports whether the range read filter proves loc holds no
// batch of the requested producers.
func (s *stream) skipLocation(loc *protocol.PartitionLocation) bool {
	if !s.config.RangeReadFilter || s.endMapIndex == math.MaxInt {
		return false
	}
	bitmap := loc.ProducerBitmap
	if bitmap == nil && loc.Peer != nil {
		bitmap = loc.Peer.ProducerBitmap
	}
	if bitmap == nil {
		return false
	}
	if s.startMapIndex >= s.endMapIndex {
		return true
	}
	below := uint64(0)
	if s.startMapIndex > 0 {
		below = bitmap.Rank(uint32(s.startMapIndex - 1))
	}
	return bitmap.Rank(uint32(s.endMapIndex-1))-below == 0
}

func (s *stream) nextReadableLocation() *protocol.PartitionLocation {
	for s.fileIndex < len(s.locations) {
		loc := s.locations[s.fileIndex]
		if !s.skipLocation(loc) {
			s.retryCount = 0
			return loc
		}
		s.skipCount.Inc()
		skippedLocations.Inc()
		s.fileIndex++
	}
	return nil
}

func (s *stream) closeReader() {
	if s.reader == nil {
		return
	}
	if err := s.reader.Close(); err != nil {
		s.logger.Debug().Err(err).Str("location", s.reader.Location().String()).Msg("Close partition reader failed")
	}
	s.reader = nil
}

// moveToNextReader opens the next location that has chunks and fetches its
// first chunk. It leaves no reader when the locations are exhausted.
func (s *stream) moveToNextReader() error {
	s.closeReader()
	for {
		loc := s.nextReadableLocation()
		if loc == nil {
			return nil
		}
		r, err := s.createReaderWithRetry(loc)
		if err != nil {
			return err
		}
		s.reader = r
		s.fileIndex++
		if r.HasNext() {
			break
		}
		s.closeReader()
	}

	chunk, err := s.nextChunk()
	if err != nil {
		return err
	}
	s.chunk, s.chunkOpen = chunk, true
	return nil
}

func (s *stream) excludeFailedLocation(loc *protocol.PartitionLocation, err error) {
	if s.config.PushReplicateEnabled && s.config.FetchExcludeWorkerEnabled && client.IsCriticalCause(err) {
		s.excluded.Exclude(loc)
	}
}

func (s *stream) createReaderWithRetry(loc *protocol.PartitionLocation) (PartitionReader, error) {
	var lastErr error
	for s.retryCount < s.fetchMaxRetry {
		var err error
		if s.excluded.IsExcluded(loc) {
			err = fmt.Errorf("%w: %s", ErrExcludedLocation, loc)
		} else {
			var r PartitionReader
			if r, err = s.createReader(loc); err == nil {
				return r, nil
			}
		}
		lastErr = err
		s.excludeFailedLocation(loc, err)
		s.retryCount++
		fetchRetries.WithLabelValues("create").Inc()

		if loc.Peer != nil {
			// both replicas were tried
			if s.retryCount%2 == 0 {
				s.sleep(s.config.RetryWait)
			}
			s.logger.Warn().Err(err).
				Int("retry", s.retryCount).
				Int("maxRetry", s.fetchMaxRetry).
				Str("location", loc.String()).
				Msg("Create partition reader failed, trying peer")
			loc = loc.Peer
		} else {
			s.logger.Warn().Err(err).
				Int("retry", s.retryCount).
				Int("maxRetry", s.fetchMaxRetry).
				Str("location", loc.String()).
				Msg("Create partition reader failed, retrying the same location")
			s.sleep(s.config.RetryWait)
		}
	}
	return nil, fmt.Errorf("%w for location %s after %d retries: %w", ErrCreateReaderFailed, loc, s.retryCount, lastErr)
}

func (s *stream) createReader(loc *protocol.PartitionLocation) (PartitionReader, error) {
	if loc.Peer != nil && s.attemptNumber%2 == 1 {
		loc = loc.Peer
		s.logger.Debug().Str("location", loc.String()).Int("attempt", s.attemptNumber).Msg("Reading peer")
	}

	switch loc.StorageInfo.Type {
	case protocol.StorageLocalHDD, protocol.StorageLocalSSD, protocol.StorageMemory:
		return NewWorkerPartitionReader(s.ctx, s.client, s.shuffleKey, loc)
	case protocol.StorageDistributedFS:
		if s.fs == nil {
			return nil, fmt.Errorf("location %s is on the distributed filesystem but none is configured", loc)
		}
		return NewDFSPartitionReader(s.ctx, s.fs, loc)
	default:
		return nil, fmt.Errorf("unknown storage type %q to read location %s", loc.StorageInfo.Type, loc)
	}
}

// nextChunk fetches the next chunk of the current reader, failing over to
// the peer or reopening the same location on errors.
func (s *stream) nextChunk() ([]byte, error) {
	for s.retryCount < s.fetchMaxRetry {
		loc := s.reader.Location()
		var err error
		if s.excluded.IsExcluded(loc) {
			err = fmt.Errorf("%w: %s", ErrExcludedLocation, loc)
		} else {
			var chunk []byte
			if chunk, err = s.reader.Next(s.ctx); err == nil {
				return chunk, nil
			}
		}
		s.excludeFailedLocation(loc, err)
		s.retryCount++
		fetchRetries.WithLabelValues("fetch").Inc()
		s.closeReader()

		if s.retryCount == s.fetchMaxRetry {
			return nil, fmt.Errorf("%w %d times for location %s: %w", ErrFetchChunkFailed, s.retryCount, loc, err)
		}
		next := loc
		if loc.Peer != nil {
			if s.retryCount%2 == 0 {
				s.sleep(s.config.RetryWait)
			}
			next = loc.Peer
			s.logger.Warn().Err(err).
				Int("retry", s.retryCount).
				Int("maxRetry", s.fetchMaxRetry).
				Str("location", loc.String()).
				Msg("Fetch chunk failed, trying peer")
		} else {
			s.logger.Warn().Err(err).
				Int("retry", s.retryCount).
				Int("maxRetry", s.fetchMaxRetry).
				Str("location", loc.String()).
				Msg("Fetch chunk failed, retrying the same location")
			s.sleep(s.config.RetryWait)
		}
		r, err := s.createReaderWithRetry(next)
		if err != nil {
			return nil, err
		}
		s.reader = r
	}
	return nil, fmt.Errorf("%w for location %s", ErrFetchChunkFailed, s.locationName())
}

func (s *stream) locationName() string {
	if s.reader == nil {
		return "<none>"
	}
	return s.reader.Location().String()
}

// moveToNextChunk releases the current chunk and loads the next one, from the
// current reader or the next location. It reports false at the end.
func (s *stream) moveToNextChunk() (bool, error) {
	s.chunk, s.chunkOpen = nil, false
	if s.reader != nil && s.reader.HasNext() {
		chunk, err := s.nextChunk()
		if err != nil {
			return false, err
		}
		s.chunk, s.chunkOpen = chunk, true
		return true, nil
	}
	if s.fileIndex < len(s.locations) {
		if err := s.moveToNextReader(); err != nil {
			return false, err
		}
		return s.reader != nil, nil
	}
	s.closeReader()
	return false, nil
}

// accept applies the dedup rule: only the successful attempt of a producer
// in range is read, and each of its batches once.
func (s *stream) accept(h protocol.BatchHeader) bool {
	producer := int(h.ProducerID)
	if producer < s.startMapIndex || producer >= s.endMapIndex || producer >= len(s.attempts) {
		return false
	}
	if int(h.AttemptID) != s.attempts[producer] {
		return false
	}
	batches, ok := s.batchesRead[h.ProducerID]
	if !ok {
		batches = make(map[uint32]struct{})
		s.batchesRead[h.ProducerID] = batches
	}
	if _, seen := batches[h.BatchID]; seen {
		return false
	}
	batches[h.BatchID] = struct{}{}
	return true
}

// fillBuffer decodes the next accepted batch into the decompressed buffer.
func (s *stream) fillBuffer() (bool, error) {
	if !s.chunkOpen {
		return false, nil
	}
	start := time.Now()

	for {
		if len(s.chunk) == 0 {
			ok, err := s.moveToNextChunk()
			if err != nil || !ok {
				return false, err
			}
			continue
		}

		h, err := protocol.DecodeBatchHeader(s.chunk)
		if err != nil {
			return false, err
		}
		end := protocol.BatchHeaderSize + int(h.PayloadSize)
		if len(s.chunk) < end {
			return false, fmt.Errorf("%w: %s needs %d bytes, chunk has %d", protocol.ErrTruncatedBatch, h, end, len(s.chunk))
		}
		payload := s.chunk[protocol.BatchHeaderSize:end]
		s.chunk = s.chunk[end:]

		if !s.accept(h) {
			duplicateBatches.Inc()
			s.logger.Debug().Str("batch", h.String()).Msg("Skipping batch")
			continue
		}
		if s.callback != nil {
			s.callback.IncBytesRead(int64(end))
		}

		originalLen, err := s.decompressor.OriginalLen(payload)
		if err != nil {
			return false, err
		}
		if len(s.decompressed) < originalLen {
			s.decompressed = make([]byte, originalLen)
		}
		n, err := s.decompressor.Decompress(payload, s.decompressed)
		if err != nil {
			return false, fmt.Errorf("decompress %s: %w", h, err)
		}
		s.position, s.limit = 0, n
		if s.callback != nil {
			s.callback.IncReadTime(time.Since(start))
		}
		return true, nil
	}
}

// Read fills p as far as the stream allows. It returns io.EOF only when no
// byte is left.
func (s *stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 0 {
		return 0, nil
	}
	read := 0
	for read < len(p) {
		for s.position >= s.limit {
			ok, err := s.fillBuffer()
			if err != nil {
				return read, err
			}
			if !ok {
				if read > 0 {
					return read, nil
				}
				return 0, io.EOF
			}
		}
		n := copy(p[read:], s.decompressed[s.position:s.limit])
		s.position += n
		read += n
	}
	return read, nil
}

func (s *stream) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Close releases the current chunk and reader. It is safe to call twice.
func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug().
		Int("locations", len(s.locations)).
		Int64("read", int64(len(s.locations))-s.skipCount.Load()).
		Int64("skipped", s.skipCount.Load()).
		Msg("Closing input stream")
	s.chunk, s.chunkOpen = nil, false
	s.closeReader()
	return nil
}
