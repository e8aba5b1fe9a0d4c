package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

var (
	openStreams   prometheus.Gauge
	fetchedChunks prometheus.Counter
	fetchedBytes  prometheus.Counter
	fetchFailed   prometheus.Counter
)

// stream pins a committed file until the reader closes it.
type stream struct {
	shuffleKey string
	fileName   string
	fileInfo   storage.FileInfo
	release    func()
}

type fetchService struct {
	storage *storage.Manager

	mu      sync.Mutex
	streams map[string]*stream

	logger *zerolog.Logger
}

func NewFetchService(storageManager *storage.Manager, logger *zerolog.Logger) FetchService {
	openStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "fetch_open_streams",
		Namespace: metricsNamespace,
		Help:      "Number of open fetch streams",
	})

	fetchedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "fetched_chunks_total",
		Namespace: metricsNamespace,
		Help:      "Total number of chunks served",
	})

	fetchedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "fetched_bytes_total",
		Namespace: metricsNamespace,
		Help:      "Total number of bytes served",
	})

	fetchFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "fetch_failed_total",
		Namespace: metricsNamespace,
		Help:      "Total number of chunk reads that failed",
	})

	serviceLogger := logger.With().
		Str("shuffleService", "fetch").
		Logger()

	return &fetchService{
		storage: storageManager,
		streams: make(map[string]*stream),
		logger:  &serviceLogger,
	}
}

func (s *fetchService) OpenStream(ctx context.Context, shuffleKey, fileName string) (client.StreamHandle, error) {
	fi, release, err := s.storage.OpenFile(shuffleKey, fileName)
	if err != nil {
		return client.StreamHandle{}, err
	}

	handle := client.StreamHandle{
		StreamID:  uuid.NewString(),
		NumChunks: fi.NumChunks(),
	}
	s.mu.Lock()
	s.streams[handle.StreamID] = &stream{
		shuffleKey: shuffleKey,
		fileName:   fileName,
		fileInfo:   fi,
		release:    release,
	}
	openStreams.Set(float64(len(s.streams)))
	s.mu.Unlock()

	s.logger.Debug().
		Str("streamId", handle.StreamID).
		Str("shuffleKey", shuffleKey).
		Str("fileName", fileName).
		Int("chunks", handle.NumChunks).
		Msg("Stream opened")
	return handle, nil
}

func (s *fetchService) FetchChunk(ctx context.Context, streamID string, index int) ([]byte, error) {
	s.mu.Lock()
	st, ok := s.streams[streamID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}

	chunk, err := s.storage.ReadChunk(ctx, st.fileInfo, index)
	if err != nil {
		fetchFailed.Inc()
		s.logger.Warn().
			Err(err).
			Str("streamId", streamID).
			Str("fileName", st.fileName).
			Int("chunk", index).
			Msg("Error reading chunk")
		return nil, err
	}
	fetchedChunks.Inc()
	fetchedBytes.Add(float64(len(chunk)))
	return chunk, nil
}

func (s *fetchService) CloseStream(streamID string) error {
	s.mu.Lock()
	st, ok := s.streams[streamID]
	delete(s.streams, streamID)
	openStreams.Set(float64(len(s.streams)))
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}
	st.release()
	return nil
}

func (s *fetchService) Streams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

func (s *fetchService) Close() {
	s.logger.Info().Msg("Service closing")
	s.mu.Lock()
	streams := s.streams
	s.streams = make(map[string]*stream)
	openStreams.Set(0)
	s.mu.Unlock()

	for _, st := range streams {
		st.release()
	}
	s.logger.Info().Int("streams", len(streams)).Msg("Service closed")
}
