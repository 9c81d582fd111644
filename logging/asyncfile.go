package logging

import (
	"fmt"
	"os"
	"sync"
)

// AsyncFile provides non-blocking file writing: writes are queued and
// drained by a background goroutine, and Close waits for the queue to
// flush before closing the file.
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates the file and starts the background writer.
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write implements io.Writer. Data is copied before queueing so callers
// may reuse their buffers.
func (af *AsyncFile) Write(data []byte) (int, error) {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return 0, fmt.Errorf("async file is closed")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	af.queue <- cp
	return len(data), nil
}

// Name returns the underlying file path.
func (af *AsyncFile) Name() string {
	return af.file.Name()
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()
	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "error writing to %s: %v\n", af.file.Name(), err)
		}
	}
}

// Close stops the writer, flushes the queue and closes the file.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}
