package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

var (
	pushes         prometheus.Counter
	pushRejected   *prometheus.CounterVec
	committedFiles *prometheus.CounterVec
)

type partitionService struct {
	storage         *storage.Manager
	memory          *memory.Manager
	rangeReadFilter bool
	logger          *zerolog.Logger
}

func NewPartitionService(storageManager *storage.Manager, memoryManager *memory.Manager, rangeReadFilter bool, logger *zerolog.Logger) PartitionService {
	pushes = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "pushes_total",
		Namespace: metricsNamespace,
		Help:      "Total number of pushes accepted from producers",
	})

	pushRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "push_rejected_total",
		Namespace: metricsNamespace,
		Help:      "Total number of rejected pushes",
	}, []string{"reason"})

	committedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "committed_files_total",
		Namespace: metricsNamespace,
		Help:      "Total number of committed partition files",
	}, []string{"storage"})

	serviceLogger := logger.With().
		Str("shuffleService", "partition").
		Logger()

	return &partitionService{
		storage:         storageManager,
		memory:          memoryManager,
		rangeReadFilter: rangeReadFilter,
		logger:          &serviceLogger,
	}
}

func (s *partitionService) Reserve(ctx context.Context, shuffleKey, fileName string, req client.ReserveRequest) error {
	loc, err := protocol.ParseFileName(fileName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if loc.ID != req.PartitionID {
		return fmt.Errorf("%w: file %s does not belong to partition %d", ErrInvalidRequest, fileName, req.PartitionID)
	}

	w, err := s.storage.CreateWriter(storage.WriterContext{
		ShuffleKey:      shuffleKey,
		Location:        loc,
		RangeReadFilter: req.RangeReadFilter || s.rangeReadFilter,
		CanUseMemory:    req.MemoryAllowed,
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("shuffleKey", shuffleKey).
			Str("fileName", fileName).
			Msg("Error reserving partition")
		return err
	}
	s.logger.Debug().
		Str("shuffleKey", shuffleKey).
		Str("fileName", fileName).
		Str("storage", string(w.StorageInfo().Type)).
		Msg("Partition reserved")
	return nil
}

func (s *partitionService) Push(ctx context.Context, shuffleKey, fileName string, data []byte) error {
	w, ok := s.storage.Writer(shuffleKey, fileName)
	if !ok {
		pushRejected.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: %s/%s", storage.ErrFileNotFound, shuffleKey, fileName)
	}
	if len(data) == 0 {
		pushRejected.WithLabelValues("empty").Inc()
		return fmt.Errorf("%w: empty push", ErrInvalidRequest)
	}
	if s.memory.State() == memory.PushPaused {
		pushRejected.WithLabelValues("paused").Inc()
		return client.ErrPushPaused
	}
	if w.NeedHardSplitForMemoryStorage() {
		pushRejected.WithLabelValues("hard_split").Inc()
		return client.ErrHardSplit
	}

	if err := w.Write(data); err != nil {
		reason := "error"
		if errors.Is(err, storage.ErrAlreadyClosed) {
			reason = "closed"
		}
		pushRejected.WithLabelValues(reason).Inc()
		return err
	}
	pushes.Inc()
	return nil
}

func (s *partitionService) Commit(ctx context.Context, shuffleKey, fileName string) (client.CommitResult, error) {
	var result client.CommitResult

	w, ok := s.storage.Writer(shuffleKey, fileName)
	if !ok {
		return result, fmt.Errorf("%w: %s/%s", storage.ErrFileNotFound, shuffleKey, fileName)
	}
	if !w.IsClosed() {
		if _, err := w.Close(); err != nil && !errors.Is(err, storage.ErrAlreadyClosed) {
			s.logger.Error().
				Err(err).
				Str("writer", w.String()).
				Msg("Error committing partition")
			return result, err
		}
	}
	if err := w.Error(); err != nil {
		return result, err
	}

	fi := w.FileInfo()
	result = client.CommitResult{
		FileLength:  fi.FileLength(),
		NumChunks:   fi.NumChunks(),
		StorageInfo: fi.StorageInfo(),
	}
	if bitmap := w.ProducerBitmap(); bitmap != nil {
		encoded, err := bitmap.ToBase64()
		if err != nil {
			return result, fmt.Errorf("encode producer bitmap: %w", err)
		}
		result.ProducerBitmap = encoded
	}
	committedFiles.WithLabelValues(string(result.StorageInfo.Type)).Inc()

	s.logger.Info().
		Str("writer", w.String()).
		Int64("length", result.FileLength).
		Int("chunks", result.NumChunks).
		Msg("Partition committed")
	return result, nil
}

func (s *partitionService) Cleanup(ctx context.Context, shuffleKey string) error {
	return s.storage.CleanupShuffle(ctx, shuffleKey)
}
