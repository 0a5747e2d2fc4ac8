package filescan

import (
	"sync"
)

// Sink consumes fragments of a streaming operation. Consume runs on the
// caller's goroutine, once per fragment, before the operation returns.
// A non-nil error stops the stream and the operation fails with
// KindCancelled. Byte chunks are only valid for the duration of Consume.
type Sink[T any] interface {
	Consume(T) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc[T any] func(T) error

// Consume implements Sink.
func (f SinkFunc[T]) Consume(v T) error {
	return f(v)
}

// Collect returns a sink appending every fragment to dst.
func Collect[T any](dst *[]T) Sink[T] {
	return SinkFunc[T](func(v T) error {
		*dst = append(*dst, v)
		return nil
	})
}

// ProgressFunc observes download progress. total is -1 when the service
// did not send a content length.
type ProgressFunc func(written, total int64)

const defaultChunkSize = 64 * 1024

// chunkPool recycles download buffers of defaultChunkSize.
var chunkPool = sync.Pool{
	New: func() any {
		buf := make([]byte, defaultChunkSize)
		return &buf
	},
}

func getChunk(size int) (*[]byte, func()) {
	if size != defaultChunkSize {
		buf := make([]byte, size)
		return &buf, func() {}
	}
	bufPtr := chunkPool.Get().(*[]byte)
	return bufPtr, func() { chunkPool.Put(bufPtr) }
}
