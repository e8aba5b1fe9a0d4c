package services

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

// Handler exposes the services on the worker HTTP routes used by
// client.HTTPShuffleClient.
type Handler struct {
	partitions PartitionService
	fetch      FetchService
	status     StatusService
	logger     zerolog.Logger
}

func NewHandler(partitions PartitionService, fetch FetchService, status StatusService, logger *zerolog.Logger) *Handler {
	return &Handler{
		partitions: partitions,
		fetch:      fetch,
		status:     status,
		logger:     logger.With().Str("component", "handler").Logger(),
	}
}

// Register mounts the routes on r.
func (h *Handler) Register(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()

	const partition = "/shuffles/{shuffleKey}/partitions/{fileName}"
	v1.HandleFunc(partition, h.reserve).Methods(http.MethodPut)
	v1.HandleFunc(partition+"/data", h.push).Methods(http.MethodPost)
	v1.HandleFunc(partition+"/commit", h.commit).Methods(http.MethodPost)
	v1.HandleFunc(partition+"/streams", h.openStream).Methods(http.MethodPost)

	v1.HandleFunc("/shuffles/{shuffleKey}", h.cleanup).Methods(http.MethodDelete)
	v1.HandleFunc("/streams/{streamID}/chunks/{index:[0-9]+}", h.fetchChunk).Methods(http.MethodGet)
	v1.HandleFunc("/streams/{streamID}", h.closeStream).Methods(http.MethodDelete)
	v1.Handle("/status", h.status.StatusHandler()).Methods(http.MethodGet)
}

func (h *Handler) reserve(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req client.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(rw, r, errors.Join(ErrInvalidRequest, err))
		return
	}
	if err := h.partitions.Reserve(r.Context(), vars["shuffleKey"], vars["fileName"], req); err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *Handler) push(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(rw, r, errors.Join(ErrInvalidRequest, err))
		return
	}
	if err := h.partitions.Push(r.Context(), vars["shuffleKey"], vars["fileName"], data); err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *Handler) commit(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := h.partitions.Commit(r.Context(), vars["shuffleKey"], vars["fileName"])
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	h.writeJSON(rw, http.StatusOK, result)
}

func (h *Handler) cleanup(rw http.ResponseWriter, r *http.Request) {
	if err := h.partitions.Cleanup(r.Context(), mux.Vars(r)["shuffleKey"]); err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *Handler) openStream(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	handle, err := h.fetch.OpenStream(r.Context(), vars["shuffleKey"], vars["fileName"])
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	h.writeJSON(rw, http.StatusOK, handle)
}

func (h *Handler) fetchChunk(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		h.writeError(rw, r, errors.Join(ErrInvalidRequest, err))
		return
	}
	chunk, err := h.fetch.FetchChunk(r.Context(), vars["streamID"], index)
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.Header().Set("Content-Type", "application/octet-stream")
	rw.Header().Set("Content-Length", strconv.Itoa(len(chunk)))
	rw.Write(chunk)
}

func (h *Handler) closeStream(rw http.ResponseWriter, r *http.Request) {
	if err := h.fetch.CloseStream(mux.Vars(r)["streamID"]); err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(rw http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("Error encoding response")
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	rw.Write(body)
}

func (h *Handler) writeError(rw http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	}
	h.writeJSON(rw, code, client.ErrorResponse{Error: err.Error()})
}

// statusCode maps service errors to the codes client.HTTPShuffleClient
// translates back.
func statusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrFileNotFound),
		errors.Is(err, storage.ErrNotCommitted),
		errors.Is(err, ErrStreamNotFound):
		return http.StatusNotFound
	case errors.Is(err, client.ErrPushPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, client.ErrHardSplit):
		return http.StatusConflict
	case errors.Is(err, storage.ErrAlreadyClosed):
		return http.StatusGone
	case errors.Is(err, storage.ErrNoStorageAvailable):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
