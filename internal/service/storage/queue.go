package storage

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"scancapture/internal/logger"
	"scancapture/internal/model"
)

const (
	// DefaultIdleDelay is how long the writer sleeps when it finds the queue empty.
	DefaultIdleDelay = 10 * time.Millisecond
)

// QueueStats are cumulative counters since the queue was created.
type QueueStats struct {
	Enqueued uint64
	Written  uint64
	Failed   uint64
}

// PersistenceQueue buffers save requests in memory and writes them to disk on a
// single background goroutine. Enqueue never blocks on I/O.
type PersistenceQueue struct {
	items     []model.SaveRequest
	active    bool
	running   bool
	idleDelay time.Duration
	mu        sync.Mutex
	wg        sync.WaitGroup
	logger    *logger.Logger

	// writeFile is replaced in tests.
	writeFile func(path string, data []byte) error

	enqueued atomic.Uint64
	written  atomic.Uint64
	failed   atomic.Uint64
}

// NewPersistenceQueue creates an idle queue. The writer starts on Begin.
func NewPersistenceQueue(idleDelay time.Duration, logger *logger.Logger) *PersistenceQueue {
	if idleDelay <= 0 {
		idleDelay = DefaultIdleDelay
	}
	return &PersistenceQueue{
		items:     make([]model.SaveRequest, 0, 64),
		idleDelay: idleDelay,
		logger:    logger,
		writeFile: writeFile,
	}
}

// Begin marks a session active and starts the writer if it is not running.
func (q *PersistenceQueue) Begin() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active = true
	if !q.running {
		q.running = true
		q.wg.Add(1)
		go q.run()
	}
}

// SignalDraining tells the writer no more items will arrive; it exits once empty.
func (q *PersistenceQueue) SignalDraining() {
	q.mu.Lock()
	q.active = false
	pending := len(q.items)
	q.mu.Unlock()

	q.logger.Info("Persistence queue draining, %d item(s) pending", pending)
}

// Enqueue hands a request to the writer. Ownership of req.Data moves to the queue.
func (q *PersistenceQueue) Enqueue(req model.SaveRequest) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
	q.enqueued.Add(1)
}

// PendingCount is advisory and only meant for progress reporting.
func (q *PersistenceQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// run is the writer loop. It keeps going while a session is active or items remain.
func (q *PersistenceQueue) run() {
	defer q.wg.Done()

	for {
		req, ok, done := q.next()
		if done {
			q.logger.Info("Persistence queue finished (written=%d failed=%d)", q.written.Load(), q.failed.Load())
			return
		}
		if !ok {
			time.Sleep(q.idleDelay)
			continue
		}
		q.write(req)
	}
}

// Wait blocks until the writer has exited.
func (q *PersistenceQueue) Wait() {
	q.wg.Wait()
}

func (q *PersistenceQueue) Stats() QueueStats {
	return QueueStats{
		Enqueued: q.enqueued.Load(),
		Written:  q.written.Load(),
		Failed:   q.failed.Load(),
	}
}

// next pops the oldest request. done is set, and the writer marked stopped,
// when the session is no longer active and nothing is left.
func (q *PersistenceQueue) next() (req model.SaveRequest, ok bool, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if !q.active {
			q.running = false
			return req, false, true
		}
		return req, false, false
	}

	req = q.items[0]
	q.items[0] = model.SaveRequest{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = q.items[:0:0]
	}
	return req, true, false
}

func (q *PersistenceQueue) write(req model.SaveRequest) {
	if err := q.writeFile(req.Path, req.Data); err != nil {
		q.failed.Add(1)
		q.logger.Error("Error saving %s: %v", req.Path, err)
		return
	}
	q.written.Add(1)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
