package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken
	ErrQueueFull = errors.New("worker queue full")
	// ErrPoolStopped is returned by Submit after Stop
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Task is one unit of work. ctx is cancelled when the pool is forced to stop.
type Task func(ctx context.Context)

type queuedTask struct {
	id  string
	run Task
}

// WorkerPool runs submitted tasks on a fixed number of goroutines fed by a bounded queue
type WorkerPool struct {
	tasks      chan queuedTask
	logger     arbor.ILogger
	numWorkers int
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex // Guards stopped against concurrent Submit and Stop
	started    bool
	stopped    bool
}

func NewWorkerPool(logger arbor.ILogger, numWorkers, queueSize int) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		tasks:      make(chan queuedTask, queueSize),
		logger:     logger,
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started || wp.stopped {
		return
	}
	wp.started = true

	wp.logger.Info().
		Int("num_workers", wp.numWorkers).
		Int("queue_size", cap(wp.tasks)).
		Msg("Starting worker pool")

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit queues a task without blocking
func (wp *WorkerPool) Submit(id string, task Task) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.tasks <- queuedTask{id: id, run: task}:
		return nil
	default:
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(wp.tasks))
	}
}

// Stop refuses new work and waits for queued tasks to drain.
// When ctx expires first the running tasks are cancelled and ctx.Err() is returned.
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return nil
	}
	wp.stopped = true
	close(wp.tasks)
	started := wp.started
	wp.mu.Unlock()

	if !started {
		wp.cancel()
		return nil
	}

	wp.logger.Info().Int("queued", len(wp.tasks)).Msg("Stopping worker pool...")

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		wp.logger.Info().Msg("Worker pool stopped")
		return nil
	case <-ctx.Done():
		wp.cancel()
		<-done
		wp.logger.Warn().Msg("Worker pool stopped before the queue drained")
		return ctx.Err()
	}
}

// worker is the main worker loop
func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	wp.logger.Debug().
		Int("worker_id", workerID).
		Msg("Worker started")

	for t := range wp.tasks {
		wp.run(workerID, t)
	}

	wp.logger.Debug().
		Int("worker_id", workerID).
		Msg("Worker stopping")
}

func (wp *WorkerPool) run(workerID int, t queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Int("worker_id", workerID).
				Str("task_id", t.id).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in worker task")
		}
	}()

	wp.logger.Debug().
		Int("worker_id", workerID).
		Str("task_id", t.id).
		Msg("Processing task")

	t.run(wp.ctx)
}
