package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/pecigonzalo/remote-shuffle/internal/registry"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
)

func TestStorage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Storage Suite")
}

const (
	testShuffleKey = "app-1-0"
	testMountPoint = "/mnt/disk1"
)

// testBatch is a 36 byte framed batch.
func testBatch(producerID, batchID uint32) []byte {
	payload := bytes.Repeat([]byte{byte('a' + batchID%26)}, 20)
	return protocol.EncodeBatch(producerID, 0, batchID, payload)
}

func testStorageConfig() shuffle.StorageConfig {
	config := shuffle.DefaultWorkerConfig().Storage
	config.Dirs = []string{testMountPoint}
	config.FlusherBufferSize = 100
	config.DFSFlusherBufferSize = 100
	config.ChunkSize = 100
	config.WriterCloseTimeout = time.Second
	config.FlushTaskTimeout = time.Second
	config.FlusherThreads = 1
	config.DFSFlusherThreads = 1
	config.FlusherQueueCapacity = 16
	config.DFS.Root = "/dfs"
	return config
}

func testWriterContext(id int) WriterContext {
	return WriterContext{
		ShuffleKey: testShuffleKey,
		Location:   &protocol.PartitionLocation{ID: id, Host: "worker-1", FetchPort: 9097},
	}
}

type testEnv struct {
	fs       afero.Fs
	memory   *memory.Manager
	registry *registry.MemoryRegistry
	manager  *Manager
}

func newTestEnv(config shuffle.StorageConfig, mem *memory.Manager, monitor DeviceMonitor, dfs FileSystem) *testEnv {
	logger := zerolog.Nop()
	env := &testEnv{
		fs:       afero.NewMemMapFs(),
		memory:   mem,
		registry: registry.NewMemoryRegistry(),
	}
	env.manager = NewManager(config, mem, env.registry, monitor, env.fs, dfs, &logger)
	DeferCleanup(env.manager.Close)
	return env
}

func writeBatches(w *PartitionDataWriter, batches ...[]byte) []byte {
	var all []byte
	for _, b := range batches {
		ExpectWithOffset(1, w.Write(b)).To(Succeed())
		all = append(all, b...)
	}
	return all
}

func readAll(m *Manager, fi FileInfo) []byte {
	var out []byte
	for i := 0; i < fi.NumChunks(); i++ {
		chunk, err := m.ReadChunk(context.Background(), fi, i)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		out = append(out, chunk...)
	}
	return out
}

// failingAppendFS fails every append after creating files normally.
type failingAppendFS struct {
	*AferoFileSystem
}

func (f failingAppendFS) Append(context.Context, string, int64, []byte) error {
	return errors.New("dfs unavailable")
}

var _ = Describe("PartitionDataWriter", func() {
	var (
		config shuffle.StorageConfig
		env    *testEnv
	)

	BeforeEach(func() {
		config = testStorageConfig()
	})

	Context("on a local disk", func() {
		BeforeEach(func() {
			env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, nil)
		})

		It("buffers until the flush threshold and commits every byte", func() {
			w, err := env.manager.CreateWriter(testWriterContext(0))
			Expect(err).NotTo(HaveOccurred())
			Expect(w.StorageInfo().Type).To(Equal(protocol.StorageLocalHDD))

			again, err := env.manager.CreateWriter(testWriterContext(0))
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeIdenticalTo(w))

			data := writeBatches(w, testBatch(1, 0), testBatch(1, 1))
			Expect(w.FileInfo().(*DiskFileInfo).BytesFlushed()).To(BeZero())

			data = append(data, writeBatches(w, testBatch(2, 0))...)
			Expect(w.FileInfo().(*DiskFileInfo).BytesFlushed()).To(Equal(int64(72)))

			_, err = env.manager.LookupFileInfo(testShuffleKey, "0-0-0")
			Expect(err).To(MatchError(ErrNotCommitted))

			length, err := w.Close()
			Expect(err).NotTo(HaveOccurred())
			Expect(length).To(Equal(int64(len(data))))
			Expect(env.memory.DiskBuffer()).To(BeZero())

			fi, err := env.manager.LookupFileInfo(testShuffleKey, "0-0-0")
			Expect(err).NotTo(HaveOccurred())
			Expect(fi.ChunkOffsets()).To(Equal([]int64{0, 108}))

			content, err := afero.ReadFile(env.fs, filepath.Join(testMountPoint, testShuffleKey, "0-0-0"))
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal(data))
			Expect(readAll(env.manager, fi)).To(Equal(data))
		})

		It("keeps chunk offsets increasing and ending at the file length", func() {
			w, err := env.manager.CreateWriter(testWriterContext(1))
			Expect(err).NotTo(HaveOccurred())
			var data []byte
			for i := uint32(0); i < 10; i++ {
				data = append(data, writeBatches(w, testBatch(i%3, i))...)
			}
			length, err := w.Close()
			Expect(err).NotTo(HaveOccurred())

			offsets := w.FileInfo().ChunkOffsets()
			Expect(offsets[0]).To(BeZero())
			Expect(offsets[len(offsets)-1]).To(Equal(length))
			for i := 1; i < len(offsets); i++ {
				Expect(offsets[i]).To(BeNumerically(">", offsets[i-1]))
			}
			Expect(readAll(env.manager, w.FileInfo())).To(Equal(data))
		})

		It("rejects writes and a second close once closed", func() {
			w, err := env.manager.CreateWriter(testWriterContext(2))
			Expect(err).NotTo(HaveOccurred())
			writeBatches(w, testBatch(1, 0))
			_, err = w.Close()
			Expect(err).NotTo(HaveOccurred())

			Expect(w.Write(testBatch(1, 1))).To(MatchError(ErrAlreadyClosed))
			_, err = w.Close()
			Expect(err).To(MatchError(ErrAlreadyClosed))
		})

		It("deletes files on destroy and tolerates repeated calls", func() {
			w, err := env.manager.CreateWriter(testWriterContext(3))
			Expect(err).NotTo(HaveOccurred())
			writeBatches(w, testBatch(1, 0), testBatch(1, 1), testBatch(1, 2))

			w.Destroy(errors.New("stage aborted"))
			w.Destroy(errors.New("stage aborted again"))

			Expect(w.IsClosed()).To(BeTrue())
			Expect(w.Error()).To(MatchError("stage aborted"))
			Eventually(func() (bool, error) {
				return afero.Exists(env.fs, filepath.Join(testMountPoint, testShuffleKey, "3-0-0"))
			}).Should(BeFalse())
			Expect(w.Write(testBatch(1, 3))).To(MatchError(ErrAlreadyClosed))
		})

		It("tracks producer ids when range read filtering is on", func() {
			writerContext := testWriterContext(4)
			writerContext.RangeReadFilter = true
			w, err := env.manager.CreateWriter(writerContext)
			Expect(err).NotTo(HaveOccurred())
			writeBatches(w, testBatch(1, 0), testBatch(5, 0), append(testBatch(7, 0), testBatch(9, 1)...))

			bitmap := w.ProducerBitmap()
			Expect(bitmap.ToArray()).To(Equal([]uint32{1, 5, 7, 9}))

			plain, err := env.manager.CreateWriter(testWriterContext(5))
			Expect(err).NotTo(HaveOccurred())
			Expect(plain.ProducerBitmap()).To(BeNil())
		})

		It("flushes open writers on memory pressure", func() {
			w, err := env.manager.CreateWriter(testWriterContext(6))
			Expect(err).NotTo(HaveOccurred())
			writeBatches(w, testBatch(1, 0))
			Expect(env.memory.DiskBuffer()).To(Equal(int64(36)))

			env.manager.FlushOnMemoryPressure()
			Eventually(env.memory.DiskBuffer).Should(BeZero())
			Expect(w.FileInfo().(*DiskFileInfo).BytesFlushed()).To(Equal(int64(36)))
		})
	})

	Context("with a memory file", func() {
		BeforeEach(func() {
			config.MemoryFileEnabled = true
			config.MemoryFileMaxSize = 50
		})

		It("moves to disk once it outgrows its limit", func() {
			env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, nil)
			writerContext := testWriterContext(0)
			writerContext.CanUseMemory = true
			w, err := env.manager.CreateWriter(writerContext)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.StorageInfo().Type).To(Equal(protocol.StorageMemory))

			data := writeBatches(w, testBatch(1, 0), testBatch(1, 1))
			Expect(env.memory.MemoryFileStorage()).To(Equal(int64(72)))

			data = append(data, writeBatches(w, testBatch(1, 2))...)
			Expect(w.MemoryFileInfo()).To(BeNil())
			Expect(w.StorageInfo().Type).To(Equal(protocol.StorageLocalHDD))
			Expect(env.memory.MemoryFileStorage()).To(BeZero())
			Expect(env.manager.memoryWriters).To(BeEmpty())

			length, err := w.Close()
			Expect(err).NotTo(HaveOccurred())
			Expect(length).To(Equal(int64(108)))
			Expect(env.memory.DiskBuffer()).To(BeZero())
			Expect(readAll(env.manager, w.FileInfo())).To(Equal(data))
		})

		It("evicts on write while the manager is read locked", func() {
			env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, nil)
			writerContext := testWriterContext(0)
			writerContext.CanUseMemory = true
			w, err := env.manager.CreateWriter(writerContext)
			Expect(err).NotTo(HaveOccurred())
			writeBatches(w, testBatch(1, 0), testBatch(1, 1))

			env.manager.mu.RLock()
			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				writeBatches(w, testBatch(1, 2))
			}()
			Eventually(done).WithTimeout(2 * time.Second).Should(BeClosed())
			Expect(w.MemoryFileInfo()).To(BeNil())
			env.manager.mu.RUnlock()

			Expect(env.manager.memoryWriters).To(BeEmpty())
		})

		It("pushes while the memory loop evicts", func() {
			logger := zerolog.Nop()
			mem := memory.NewManager(shuffle.MemoryConfig{
				MaxDirectMemory:        400,
				MemoryFileStorageRatio: 0.5,
				PausePushRatio:         1,
				ResumeRatio:            0.9,
			}, &logger)
			env = newTestEnv(config, mem, NoopDeviceMonitor{}, nil)

			writers := make([]*PartitionDataWriter, 4)
			for i := range writers {
				writerContext := testWriterContext(i)
				writerContext.CanUseMemory = true
				w, err := env.manager.CreateWriter(writerContext)
				Expect(err).NotTo(HaveOccurred())
				Expect(w.StorageInfo().Type).To(Equal(protocol.StorageMemory))
				writers[i] = w
			}

			stop := make(chan struct{})
			evictDone := make(chan struct{})
			go func() {
				defer close(evictDone)
				for {
					select {
					case <-stop:
						return
					default:
						env.manager.EvictMemoryWriters()
					}
				}
			}()

			var wg sync.WaitGroup
			written := make([][]byte, len(writers))
			for i, w := range writers {
				wg.Add(1)
				go func(i int, w *PartitionDataWriter) {
					defer GinkgoRecover()
					defer wg.Done()
					for b := uint32(0); b < 5; b++ {
						written[i] = append(written[i], writeBatches(w, testBatch(uint32(i), b))...)
					}
				}(i, w)
			}
			pushed := make(chan struct{})
			go func() {
				wg.Wait()
				close(pushed)
			}()
			Eventually(pushed).WithTimeout(5 * time.Second).Should(BeClosed())
			close(stop)
			Eventually(evictDone).WithTimeout(2 * time.Second).Should(BeClosed())

			for i, w := range writers {
				length, err := w.Close()
				Expect(err).NotTo(HaveOccurred())
				Expect(length).To(Equal(int64(len(written[i]))))
				Expect(readAll(env.manager, w.FileInfo())).To(Equal(written[i]))
			}
		})

		It("serves pinned readers from memory after commit", func() {
			config.MemoryFileMaxSize = 1 << 20
			env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, nil)
			writerContext := testWriterContext(1)
			writerContext.CanUseMemory = true
			w, err := env.manager.CreateWriter(writerContext)
			Expect(err).NotTo(HaveOccurred())
			data := writeBatches(w, testBatch(1, 0), testBatch(2, 0), testBatch(3, 0))

			length, err := w.Close()
			Expect(err).NotTo(HaveOccurred())
			Expect(length).To(Equal(int64(108)))

			fi, release, err := env.manager.OpenFile(testShuffleKey, "1-0-0")
			Expect(err).NotTo(HaveOccurred())
			Expect(fi).To(BeAssignableToTypeOf(&MemoryFileInfo{}))

			// a pinned file stays in memory
			Expect(w.Evict(false)).To(Succeed())
			Expect(w.MemoryFileInfo()).NotTo(BeNil())
			Expect(readAll(env.manager, fi)).To(Equal(data))
			release()

			Expect(w.Evict(false)).To(Succeed())
			Expect(w.MemoryFileInfo()).To(BeNil())
			fi, release, err = env.manager.OpenFile(testShuffleKey, "1-0-0")
			Expect(err).NotTo(HaveOccurred())
			defer release()
			Expect(fi).To(BeAssignableToTypeOf(&DiskFileInfo{}))
			Expect(fi.FileLength()).To(Equal(length))
			Expect(readAll(env.manager, fi)).To(Equal(data))
		})

		It("sorts batches by producer when evicting a range filtered file", func() {
			config.MemoryFileMaxSize = 1 << 20
			env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, nil)
			writerContext := testWriterContext(2)
			writerContext.CanUseMemory = true
			writerContext.RangeReadFilter = true
			w, err := env.manager.CreateWriter(writerContext)
			Expect(err).NotTo(HaveOccurred())
			writeBatches(w, testBatch(3, 0), testBatch(1, 0), testBatch(2, 0))

			Expect(w.Evict(true)).To(Succeed())
			_, err = w.Close()
			Expect(err).NotTo(HaveOccurred())

			var producers []uint32
			Expect(protocol.ScanBatches(readAll(env.manager, w.FileInfo()), func(h protocol.BatchHeader, _ []byte) error {
				producers = append(producers, h.ProducerID)
				return nil
			})).To(Succeed())
			Expect(producers).To(Equal([]uint32{1, 2, 3}))
		})

		It("evicts the largest memory files first", func() {
			config.MemoryFileMaxSize = 1 << 20
			logger := zerolog.Nop()
			mem := memory.NewManager(shuffle.MemoryConfig{
				MaxDirectMemory:        200,
				MemoryFileStorageRatio: 0.5,
				PausePushRatio:         0.9,
				ResumeRatio:            0.7,
			}, &logger)
			env = newTestEnv(config, mem, NoopDeviceMonitor{}, nil)

			var writers []*PartitionDataWriter
			for id := 0; id < 2; id++ {
				writerContext := testWriterContext(id)
				writerContext.CanUseMemory = true
				w, err := env.manager.CreateWriter(writerContext)
				Expect(err).NotTo(HaveOccurred())
				writers = append(writers, w)
			}
			writeBatches(writers[0], testBatch(1, 0), testBatch(1, 1))
			writeBatches(writers[1], testBatch(2, 0))
			Expect(mem.ShouldEvict()).To(BeTrue())

			env.manager.EvictMemoryWriters()
			Expect(writers[0].MemoryFileInfo()).To(BeNil())
			Expect(writers[1].MemoryFileInfo()).NotTo(BeNil())
			Expect(mem.ShouldEvict()).To(BeFalse())
		})

		It("asks for a hard split when memory is full and nothing else is available", func() {
			config.Dirs = nil
			env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, nil)
			writerContext := testWriterContext(0)
			writerContext.CanUseMemory = true
			w, err := env.manager.CreateWriter(writerContext)
			Expect(err).NotTo(HaveOccurred())

			writeBatches(w, testBatch(1, 0))
			Expect(w.NeedHardSplitForMemoryStorage()).To(BeFalse())
			writeBatches(w, testBatch(1, 1), testBatch(1, 2))
			Expect(w.NeedHardSplitForMemoryStorage()).To(BeTrue())
			Expect(w.MemoryFileInfo()).NotTo(BeNil())

			_, err = env.manager.CreateWriter(testWriterContext(1))
			Expect(err).To(MatchError(ErrNoStorageAvailable))
		})

		It("releases memory on destroy", func() {
			config.MemoryFileMaxSize = 1 << 20
			env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, nil)
			writerContext := testWriterContext(0)
			writerContext.CanUseMemory = true
			w, err := env.manager.CreateWriter(writerContext)
			Expect(err).NotTo(HaveOccurred())
			writeBatches(w, testBatch(1, 0))

			w.Destroy(ErrShuffleRemoved)
			Expect(env.memory.MemoryFileStorage()).To(BeZero())
			Expect(env.manager.memoryWriters).To(BeEmpty())
		})
	})

	Context("on the distributed filesystem", func() {
		var dfsBacking afero.Fs

		BeforeEach(func() {
			config.Dirs = nil
			dfsBacking = afero.NewMemMapFs()
		})

		It("writes segments and the chunk index", func() {
			env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, NewAferoFileSystem(dfsBacking))
			w, err := env.manager.CreateWriter(testWriterContext(0))
			Expect(err).NotTo(HaveOccurred())
			Expect(w.StorageInfo().Type).To(Equal(protocol.StorageDistributedFS))

			var data []byte
			for i := uint32(0); i < 6; i++ {
				data = append(data, writeBatches(w, testBatch(1, i))...)
			}
			length, err := w.Close()
			Expect(err).NotTo(HaveOccurred())
			Expect(length).To(Equal(int64(len(data))))

			path := filepath.Join("/dfs", testShuffleKey, "0-0-0")
			content, err := afero.ReadFile(dfsBacking, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal(data))

			index, err := afero.ReadFile(dfsBacking, IndexPath(path))
			Expect(err).NotTo(HaveOccurred())
			offsets, err := DecodeChunkIndex(index)
			Expect(err).NotTo(HaveOccurred())
			Expect(offsets).To(Equal(w.FileInfo().ChunkOffsets()))
			Expect(readAll(env.manager, w.FileInfo())).To(Equal(data))
		})

		It("poisons the writer when a flush fails", func() {
			env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, failingAppendFS{NewAferoFileSystem(dfsBacking)})
			w, err := env.manager.CreateWriter(testWriterContext(0))
			Expect(err).NotTo(HaveOccurred())
			writeBatches(w, testBatch(1, 0), testBatch(1, 1), testBatch(1, 2))

			Eventually(w.Error).Should(MatchError("dfs unavailable"))
			Expect(w.Write(testBatch(1, 3))).To(Succeed(), "writes to a poisoned writer are dropped")

			_, err = w.Close()
			Expect(err).To(HaveOccurred())
			_, err = env.manager.LookupFileInfo(testShuffleKey, "0-0-0")
			Expect(err).To(HaveOccurred())
			Eventually(env.memory.DiskBuffer).Should(BeZero())
		})
	})
})

var _ = Describe("Manager", func() {
	var (
		config shuffle.StorageConfig
		env    *testEnv
	)

	BeforeEach(func() {
		config = testStorageConfig()
		config.GracefulShutdown = true
		env = newTestEnv(config, newTestMemory(), NoopDeviceMonitor{}, nil)
	})

	It("restores committed files after a restart", func() {
		writerContext := testWriterContext(0)
		writerContext.RangeReadFilter = true
		w, err := env.manager.CreateWriter(writerContext)
		Expect(err).NotTo(HaveOccurred())
		data := writeBatches(w, testBatch(1, 0), testBatch(4, 0), testBatch(1, 1))
		_, err = w.Close()
		Expect(err).NotTo(HaveOccurred())

		records, err := env.registry.Recover(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Meta.ChunkOffsets).To(Equal([]int64{0, 108}))
		Expect(records[0].Meta.ProducerBitmap).NotTo(BeEmpty())

		logger := zerolog.Nop()
		restarted := NewManager(config, newTestMemory(), env.registry, NoopDeviceMonitor{}, env.fs, nil, &logger)
		DeferCleanup(restarted.Close)
		n, err := restarted.Restore(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		fi, err := restarted.LookupFileInfo(testShuffleKey, "0-0-0")
		Expect(err).NotTo(HaveOccurred())
		Expect(fi.ChunkOffsets()).To(Equal([]int64{0, 108}))
		Expect(readAll(restarted, fi)).To(Equal(data))
	})

	It("removes every file of a shuffle on cleanup", func() {
		for id := 0; id < 2; id++ {
			w, err := env.manager.CreateWriter(testWriterContext(id))
			Expect(err).NotTo(HaveOccurred())
			writeBatches(w, testBatch(1, uint32(id)))
			if id == 0 {
				_, err = w.Close()
				Expect(err).NotTo(HaveOccurred())
			}
		}

		Expect(env.manager.CleanupShuffle(context.Background(), testShuffleKey)).To(Succeed())

		_, err := env.manager.LookupFileInfo(testShuffleKey, "0-0-0")
		Expect(err).To(MatchError(ErrFileNotFound))
		exists, err := afero.DirExists(env.fs, filepath.Join(testMountPoint, testShuffleKey))
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeFalse())
		records, err := env.registry.Recover(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("destroys writers on a failing device", func() {
		logger := zerolog.Nop()
		monitor := NewLocalDeviceMonitor(shuffle.DeviceConfig{HighUsageRatio: 0.95}, afero.NewMemMapFs(), config.Dirs,
			func(string) (uint64, uint64, error) { return 1, 100, nil }, &logger)
		env = newTestEnv(config, newTestMemory(), monitor, nil)

		w, err := env.manager.CreateWriter(testWriterContext(0))
		Expect(err).NotTo(HaveOccurred())
		writeBatches(w, testBatch(1, 0))

		monitor.fs = afero.NewReadOnlyFs(afero.NewMemMapFs())
		monitor.Check(context.Background())

		Expect(w.IsClosed()).To(BeTrue())
		Expect(w.Error()).To(HaveOccurred())
		exists, err := afero.Exists(env.fs, filepath.Join(testMountPoint, testShuffleKey, "0-0-0"))
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeFalse())

		_, err = env.manager.CreateWriter(testWriterContext(1))
		Expect(err).To(MatchError(ErrNoStorageAvailable))
	})
})
