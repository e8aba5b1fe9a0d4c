package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/rs/zerolog"
)

var (
	// ErrPushPaused is returned while the worker rejects pushes on memory pressure.
	ErrPushPaused = errors.New("push paused by worker")
	// ErrWriterClosed is returned when pushing to a committed or destroyed partition.
	ErrWriterClosed = errors.New("partition writer closed")
	// ErrHardSplit is returned when the worker asks the producer to move to a new
	// partition split.
	ErrHardSplit = errors.New("partition requires hard split")
	// ErrNotFound is returned for unknown partitions and streams.
	ErrNotFound = errors.New("not found")
)

// ShuffleClient talks to shuffle workers. Push and commit are used by
// producers, the stream calls by the partition read engine.
//
//go:generate mockery --name ShuffleClient --with-expecter --output ../mocks
type ShuffleClient interface {
	Reserve(ctx context.Context, loc *protocol.PartitionLocation, shuffleKey string, req ReserveRequest) error
	Push(ctx context.Context, loc *protocol.PartitionLocation, shuffleKey string, data []byte) error
	Commit(ctx context.Context, loc *protocol.PartitionLocation, shuffleKey string) (CommitResult, error)
	OpenStream(ctx context.Context, loc *protocol.PartitionLocation, shuffleKey string) (StreamHandle, error)
	FetchChunk(ctx context.Context, loc *protocol.PartitionLocation, streamID string, index int) ([]byte, error)
	CloseStream(ctx context.Context, loc *protocol.PartitionLocation, streamID string) error
}

var _ ShuffleClient = (*HTTPShuffleClient)(nil)

// HTTPShuffleClient implements ShuffleClient over the worker HTTP routes.
type HTTPShuffleClient struct {
	client       *http.Client
	fetchTimeout time.Duration
	logger       zerolog.Logger
}

// ErrorResponse is the body workers send with non 2xx answers.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewHTTPShuffleClient(connectTimeout, fetchTimeout time.Duration, logger *zerolog.Logger) *HTTPShuffleClient {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPShuffleClient{
		client:       &http.Client{Transport: transport},
		fetchTimeout: fetchTimeout,
		logger:       logger.With().Str("component", "shuffle-client").Logger(),
	}
}

func partitionURL(addr, shuffleKey string, loc *protocol.PartitionLocation) string {
	return fmt.Sprintf("http://%s/v1/shuffles/%s/partitions/%s",
		addr, url.PathEscape(shuffleKey), url.PathEscape(loc.FileName()))
}

func streamURL(addr, streamID string) string {
	return fmt.Sprintf("http://%s/v1/streams/%s", addr, url.PathEscape(streamID))
}

func (c *HTTPShuffleClient) Reserve(ctx context.Context, loc *protocol.PartitionLocation, shuffleKey string, req ReserveRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	addr := loc.HostAndPushPort()
	resp, err := c.do(ctx, addr, http.MethodPut, partitionURL(addr, shuffleKey, loc), body)
	if err != nil {
		return err
	}
	return drain(resp)
}

func (c *HTTPShuffleClient) Push(ctx context.Context, loc *protocol.PartitionLocation, shuffleKey string, data []byte) error {
	addr := loc.HostAndPushPort()
	resp, err := c.do(ctx, addr, http.MethodPost, partitionURL(addr, shuffleKey, loc)+"/data", data)
	if err != nil {
		return err
	}
	return drain(resp)
}

func (c *HTTPShuffleClient) Commit(ctx context.Context, loc *protocol.PartitionLocation, shuffleKey string) (CommitResult, error) {
	var result CommitResult
	addr := loc.HostAndPushPort()
	resp, err := c.do(ctx, addr, http.MethodPost, partitionURL(addr, shuffleKey, loc)+"/commit", nil)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode commit response: %w", err)
	}
	return result, nil
}

func (c *HTTPShuffleClient) OpenStream(ctx context.Context, loc *protocol.PartitionLocation, shuffleKey string) (StreamHandle, error) {
	var handle StreamHandle
	addr := loc.HostAndFetchPort()
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	resp, err := c.do(ctx, addr, http.MethodPost, partitionURL(addr, shuffleKey, loc)+"/streams", nil)
	if err != nil {
		return handle, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return handle, classifyTransportError(addr, fmt.Errorf("decode stream handle: %w", err))
	}
	return handle, nil
}

func (c *HTTPShuffleClient) FetchChunk(ctx context.Context, loc *protocol.PartitionLocation, streamID string, index int) ([]byte, error) {
	addr := loc.HostAndFetchPort()
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	resp, err := c.do(ctx, addr, http.MethodGet, streamURL(addr, streamID)+"/chunks/"+strconv.Itoa(index), nil)
	if err != nil {
		var statusErr *StatusError
		if IsDisconnection(err) || errors.As(err, &statusErr) && statusErr.Code >= http.StatusInternalServerError {
			return nil, &FetchChunkError{Addr: addr, Chunk: index, Err: err}
		}
		return nil, err
	}
	defer resp.Body.Close()
	chunk, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchChunkError{Addr: addr, Chunk: index, Err: classifyTransportError(addr, err)}
	}
	return chunk, nil
}

func (c *HTTPShuffleClient) CloseStream(ctx context.Context, loc *protocol.PartitionLocation, streamID string) error {
	addr := loc.HostAndFetchPort()
	resp, err := c.do(ctx, addr, http.MethodDelete, streamURL(addr, streamID), nil)
	if err != nil {
		return err
	}
	return drain(resp)
}

// CleanupShuffle deletes every partition file of the shuffle on the worker
// listening at addr.
func (c *HTTPShuffleClient) CleanupShuffle(ctx context.Context, addr, shuffleKey string) error {
	target := fmt.Sprintf("http://%s/v1/shuffles/%s", addr, url.PathEscape(shuffleKey))
	resp, err := c.do(ctx, addr, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	return drain(resp)
}

// StatusError carries a non 2xx worker answer.
type StatusError struct {
	Code    int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("worker answered %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

func (c *HTTPShuffleClient) do(ctx context.Context, addr, method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(addr, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	statusErr := &StatusError{Code: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
		statusErr.Message = errResp.Error
	}
	switch resp.StatusCode {
	case http.StatusServiceUnavailable:
		statusErr.kind = ErrPushPaused
	case http.StatusGone:
		statusErr.kind = ErrWriterClosed
	case http.StatusConflict:
		statusErr.kind = ErrHardSplit
	case http.StatusNotFound:
		statusErr.kind = ErrNotFound
	}
	c.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Str("error", statusErr.Message).
		Msg("Worker request failed")
	return nil, statusErr
}

func drain(resp *http.Response) error {
	defer resp.Body.Close()
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}
