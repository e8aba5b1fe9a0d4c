package signals

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWorker struct {
	started, stopped int
}

func (w *recordingWorker) Start() { w.started++ }
func (w *recordingWorker) Stop()  { w.stopped++ }

func TestGraceful(t *testing.T) {
	logger := zerolog.Nop()
	s, err := NewShutdown(time.Second, &logger)
	require.NoError(t, err)
	s.drainDelay = 0

	ts := httptest.NewUnstartedServer(http.NotFoundHandler())
	ts.Start()
	srv := ts.Config

	healthy, ready := int32(1), int32(1)
	worker := &recordingWorker{}
	stopCh := make(chan struct{})
	close(stopCh)

	s.Graceful(stopCh, srv, worker, &healthy, &ready)

	assert.Equal(t, int32(0), healthy)
	assert.Equal(t, int32(0), ready)
	assert.Equal(t, 1, worker.stopped)
	_, err = http.Get(ts.URL)
	assert.Error(t, err)
}
