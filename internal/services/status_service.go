package services

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

// Status defines useful status related information
type Status struct {
	Memory  MemoryStatus
	Writers WritersStatus
	Streams int
}

// MemoryStatus defines memory accounting related status information
type MemoryStatus struct {
	State             string
	MemoryFileStorage int64
	DiskBuffer        int64
}

// WritersStatus counts the registered partition writers
type WritersStatus struct {
	Total  int
	Memory int
}

type statusService struct {
	storage *storage.Manager
	memory  *memory.Manager
	fetch   FetchService
	logger  *zerolog.Logger
}

func NewStatusService(storageManager *storage.Manager, memoryManager *memory.Manager, fetch FetchService, logger *zerolog.Logger) StatusService {
	serviceLogger := logger.With().
		Str("shuffleService", "status").
		Logger()
	return &statusService{
		storage: storageManager,
		memory:  memoryManager,
		fetch:   fetch,
		logger:  &serviceLogger,
	}
}

func (s *statusService) Open()  {}
func (s *statusService) Close() {}
func (s *statusService) StatusHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		status := Status{
			Memory: MemoryStatus{
				State:             s.memory.State().String(),
				MemoryFileStorage: s.memory.MemoryFileStorage(),
				DiskBuffer:        s.memory.DiskBuffer(),
			},
			Streams: s.fetch.Streams(),
		}
		status.Writers.Total, status.Writers.Memory = s.storage.Stats()

		body, err := json.Marshal(status)
		if err != nil {
			s.logger.Error().Err(err).Msg("Error encoding status")
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
		rw.Header().Add("Content-Type", "application/json")
		rw.Write(body)
	})
}
