package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
	"github.com/pecigonzalo/remote-shuffle/internal/compress"
	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/pecigonzalo/remote-shuffle/internal/reader"
	"github.com/pecigonzalo/remote-shuffle/internal/registry"
	"github.com/pecigonzalo/remote-shuffle/internal/services"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

func TestServices(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Services Suite")
}

const shuffleKey = "app-1-0"

// testWorker is a worker served over httptest.
type testWorker struct {
	url     string
	host    string
	port    int
	fetch   services.FetchService
	storage *storage.Manager
	client  *client.HTTPShuffleClient
}

func newTestWorker(storageConfig shuffle.StorageConfig, memoryConfig shuffle.MemoryConfig) *testWorker {
	logger := zerolog.Nop()
	memoryManager := memory.NewManager(memoryConfig, &logger)
	storageManager := storage.NewManager(
		storageConfig, memoryManager, registry.NewMemoryRegistry(),
		storage.NoopDeviceMonitor{}, afero.NewMemMapFs(), nil, &logger,
	)
	DeferCleanup(storageManager.Close)

	fetch := services.NewFetchService(storageManager, &logger)
	DeferCleanup(fetch.Close)
	handler := services.NewHandler(
		services.NewPartitionService(storageManager, memoryManager, false, &logger),
		fetch,
		services.NewStatusService(storageManager, memoryManager, fetch, &logger),
		&logger,
	)
	router := mux.NewRouter()
	handler.Register(router)
	srv := httptest.NewServer(router)
	DeferCleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	Expect(err).NotTo(HaveOccurred())
	p, err := strconv.Atoi(port)
	Expect(err).NotTo(HaveOccurred())

	return &testWorker{
		url:     srv.URL,
		host:    host,
		port:    p,
		fetch:   fetch,
		storage: storageManager,
		client:  client.NewHTTPShuffleClient(time.Second, 5*time.Second, &logger),
	}
}

func (w *testWorker) location(id int) *protocol.PartitionLocation {
	return &protocol.PartitionLocation{ID: id, Host: w.host, PushPort: w.port, FetchPort: w.port}
}

func testStorageConfig() shuffle.StorageConfig {
	config := shuffle.DefaultWorkerConfig().Storage
	config.Dirs = []string{"/mnt/disk1"}
	config.FlusherBufferSize = 64
	config.ChunkSize = 64
	config.WriterCloseTimeout = time.Second
	config.FlushTaskTimeout = time.Second
	config.FlusherThreads = 1
	config.FlusherQueueCapacity = 16
	return config
}

func testMemoryConfig() shuffle.MemoryConfig {
	config := shuffle.DefaultWorkerConfig().Memory
	config.MaxDirectMemory = 1 << 20
	return config
}

func compressedBatch(producerID, batchID uint32, payload string) []byte {
	c, err := compress.NewCompressor(compress.CodecLZ4, 0)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	block, err := c.Compress([]byte(payload))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return protocol.EncodeBatch(producerID, 0, batchID, block)
}

// rawBatch is a 36 byte framed batch.
func rawBatch(producerID, batchID uint32) []byte {
	return protocol.EncodeBatch(producerID, 0, batchID, bytes.Repeat([]byte{'x'}, 20))
}

func statusCode(err error) int {
	var statusErr *client.StatusError
	ExpectWithOffset(1, err).To(BeAssignableToTypeOf(statusErr))
	return err.(*client.StatusError).Code
}

var _ = Describe("Internal/Services", func() {
	var (
		ctx    context.Context
		worker *testWorker
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		prometheus.DefaultRegisterer = prometheus.NewRegistry()
	})

	Context("With a local disk", func() {
		BeforeEach(func() {
			worker = newTestWorker(testStorageConfig(), testMemoryConfig())
		})

		It("should serve pushed batches to the partition reader", func() {
			loc := worker.location(7)
			Expect(worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{PartitionID: 7})).To(Succeed())

			payloads := []string{"first record", "second record", "third record"}
			for i, payload := range payloads {
				Expect(worker.client.Push(ctx, loc, shuffleKey, compressedBatch(uint32(i), 0, payload))).To(Succeed())
			}
			// duplicate of an already pushed batch
			Expect(worker.client.Push(ctx, loc, shuffleKey, compressedBatch(1, 0, payloads[1]))).To(Succeed())

			result, err := worker.client.Commit(ctx, loc, shuffleKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.StorageInfo.Type).To(Equal(protocol.StorageLocalHDD))
			Expect(result.NumChunks).To(BeNumerically(">=", 1))
			Expect(result.ProducerBitmap).To(BeEmpty())

			loc.StorageInfo = result.StorageInfo
			stream, err := reader.Open(ctx, shuffle.DefaultClientConfig(), worker.client, nil, reader.ReadRequest{
				ShuffleKey:  shuffleKey,
				Locations:   []*protocol.PartitionLocation{loc},
				Attempts:    []int{0, 0, 0},
				EndMapIndex: math.MaxInt,
			}, reader.NewExcludedWorkers(time.Minute, nil))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(stream.Close)

			got, err := io.ReadAll(stream)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(got)).To(Equal("first recordsecond recordthird record"))

			By("Releasing the stream on close")
			Expect(stream.Close()).To(Succeed())
			Eventually(worker.fetch.Streams).Should(BeZero())
		})

		It("should track producers when asked to", func() {
			loc := worker.location(1)
			Expect(worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{
				PartitionID:     1,
				RangeReadFilter: true,
			})).To(Succeed())
			Expect(worker.client.Push(ctx, loc, shuffleKey, append(rawBatch(2, 0), rawBatch(5, 0)...))).To(Succeed())

			result, err := worker.client.Commit(ctx, loc, shuffleKey)
			Expect(err).NotTo(HaveOccurred())
			bitmap := roaring.New()
			_, err = bitmap.FromBase64(result.ProducerBitmap)
			Expect(err).NotTo(HaveOccurred())
			Expect(bitmap.ToArray()).To(Equal([]uint32{2, 5}))
		})

		It("should commit idempotently and reject late pushes", func() {
			loc := worker.location(2)
			Expect(worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{PartitionID: 2})).To(Succeed())
			Expect(worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 0))).To(Succeed())

			first, err := worker.client.Commit(ctx, loc, shuffleKey)
			Expect(err).NotTo(HaveOccurred())
			second, err := worker.client.Commit(ctx, loc, shuffleKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
			Expect(first.FileLength).To(BeEquivalentTo(36))

			err = worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 1))
			Expect(err).To(MatchError(client.ErrWriterClosed))
		})

		It("should answer not found for unknown partitions and streams", func() {
			loc := worker.location(3)
			Expect(worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 0))).To(MatchError(client.ErrNotFound))
			_, err := worker.client.OpenStream(ctx, loc, shuffleKey)
			Expect(err).To(MatchError(client.ErrNotFound))
			_, err = worker.client.FetchChunk(ctx, loc, "missing", 0)
			Expect(err).To(MatchError(client.ErrNotFound))
			Expect(worker.client.CloseStream(ctx, loc, "missing")).To(MatchError(client.ErrNotFound))
		})

		It("should not open streams on open writers", func() {
			loc := worker.location(4)
			Expect(worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{PartitionID: 4})).To(Succeed())
			_, err := worker.client.OpenStream(ctx, loc, shuffleKey)
			Expect(err).To(MatchError(client.ErrNotFound))
		})

		It("should reject malformed reservations", func() {
			loc := worker.location(5)
			err := worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{PartitionID: 6})
			Expect(statusCode(err)).To(Equal(http.StatusBadRequest))

			req, err := http.NewRequest(http.MethodPut, worker.url+"/v1/shuffles/"+shuffleKey+"/partitions/not-a-file", bytes.NewReader([]byte(`{}`)))
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should delete the shuffle on cleanup", func() {
			loc := worker.location(8)
			Expect(worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{PartitionID: 8})).To(Succeed())
			Expect(worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 0))).To(Succeed())
			_, err := worker.client.Commit(ctx, loc, shuffleKey)
			Expect(err).NotTo(HaveOccurred())

			Expect(worker.client.CleanupShuffle(ctx, loc.HostAndPushPort(), shuffleKey)).To(Succeed())
			_, err = worker.client.OpenStream(ctx, loc, shuffleKey)
			Expect(err).To(MatchError(client.ErrNotFound))
		})

		It("should report the worker status", func() {
			loc := worker.location(9)
			Expect(worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{PartitionID: 9})).To(Succeed())

			resp, err := http.Get(worker.url + "/v1/status")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var status services.Status
			Expect(json.NewDecoder(resp.Body).Decode(&status)).To(Succeed())
			Expect(status.Memory.State).To(Equal("NORMAL"))
			Expect(status.Writers.Total).To(Equal(1))
			Expect(status.Writers.Memory).To(BeZero())
			Expect(status.Streams).To(BeZero())
		})
	})

	Context("Under memory pressure", func() {
		BeforeEach(func() {
			storageConfig := testStorageConfig()
			storageConfig.FlusherBufferSize = 1 << 10
			memoryConfig := testMemoryConfig()
			memoryConfig.MaxDirectMemory = 100
			memoryConfig.PausePushRatio = 0.5
			memoryConfig.ResumeRatio = 0.2
			worker = newTestWorker(storageConfig, memoryConfig)
		})

		It("should pause pushes", func() {
			loc := worker.location(1)
			Expect(worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{PartitionID: 1})).To(Succeed())
			Expect(worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 0))).To(Succeed())
			Expect(worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 1))).To(Succeed())

			err := worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 2))
			Expect(err).To(MatchError(client.ErrPushPaused))
			Expect(statusCode(err)).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Context("With memory files and no disk", func() {
		BeforeEach(func() {
			storageConfig := testStorageConfig()
			storageConfig.Dirs = nil
			storageConfig.MemoryFileEnabled = true
			storageConfig.MemoryFileMaxSize = 50
			worker = newTestWorker(storageConfig, testMemoryConfig())
		})

		It("should ask for a hard split once the file outgrows memory", func() {
			loc := worker.location(1)
			Expect(worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{
				PartitionID:   1,
				MemoryAllowed: true,
			})).To(Succeed())
			Expect(worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 0))).To(Succeed())
			Expect(worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 1))).To(Succeed())

			err := worker.client.Push(ctx, loc, shuffleKey, rawBatch(0, 2))
			Expect(err).To(MatchError(client.ErrHardSplit))

			result, err := worker.client.Commit(ctx, loc, shuffleKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.StorageInfo.Type).To(Equal(protocol.StorageMemory))
			Expect(result.FileLength).To(BeEquivalentTo(72))
		})

		It("should refuse reservations without memory", func() {
			loc := worker.location(2)
			err := worker.client.Reserve(ctx, loc, shuffleKey, client.ReserveRequest{PartitionID: 2})
			Expect(statusCode(err)).To(Equal(http.StatusInsufficientStorage))
		})
	})
})
