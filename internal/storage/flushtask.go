package storage

import (
	"context"

	"github.com/spf13/afero"
)

// FlushTask persists one buffer. The flusher releases the buffer once the
// task ran.
type FlushTask interface {
	Flush(ctx context.Context) error
	Buffer() *CompositeBuffer
	Notifier() *FlushNotifier
}

var (
	_ FlushTask = (*LocalFlushTask)(nil)
	_ FlushTask = (*DFSFlushTask)(nil)
)

type flushTask struct {
	buffer   *CompositeBuffer
	notifier *FlushNotifier
}

func (t flushTask) Buffer() *CompositeBuffer {
	return t.buffer
}

func (t flushTask) Notifier() *FlushNotifier {
	return t.notifier
}

// LocalFlushTask appends the buffer to an open local file.
type LocalFlushTask struct {
	flushTask
	file afero.File
}

func NewLocalFlushTask(buffer *CompositeBuffer, file afero.File, notifier *FlushNotifier) *LocalFlushTask {
	return &LocalFlushTask{
		flushTask: flushTask{buffer: buffer, notifier: notifier},
		file:      file,
	}
}

func (t *LocalFlushTask) Flush(_ context.Context) error {
	_, err := t.buffer.WriteTo(t.file)
	return err
}

// DFSFlushTask writes the buffer as the next segment of a distributed
// filesystem file.
type DFSFlushTask struct {
	flushTask
	fs     FileSystem
	path   string
	offset int64
}

func NewDFSFlushTask(buffer *CompositeBuffer, fs FileSystem, path string, offset int64, notifier *FlushNotifier) *DFSFlushTask {
	return &DFSFlushTask{
		flushTask: flushTask{buffer: buffer, notifier: notifier},
		fs:        fs,
		path:      path,
		offset:    offset,
	}
}

func (t *DFSFlushTask) Flush(ctx context.Context) error {
	return t.fs.Append(ctx, t.path, t.offset, t.buffer.Bytes())
}
