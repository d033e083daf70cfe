package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Worker executes pending jobs. It polls the store on a fixed tick,
// atomically claims one job at a time, and runs the registered handler.
// A job whose handler errors or panics is failed, never retried in place;
// retry is an explicit, auditable action on the Queue.
type Worker struct {
	store    Store
	handlers map[Type]Handler
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	pullInterval time.Duration
	taskTimeout  time.Duration
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// WorkerOption configures a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	pullInterval  time.Duration
	taskTimeout   time.Duration
	maxConcurrent int
	logger        *slog.Logger
}

// WithPullInterval sets how often the worker polls for pending jobs.
func WithPullInterval(interval time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if interval > 0 {
			o.pullInterval = interval
		}
	}
}

// WithTaskTimeout bounds single handler executions.
func WithTaskTimeout(timeout time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if timeout > 0 {
			o.taskTimeout = timeout
		}
	}
}

// WithMaxConcurrent sets how many jobs may run simultaneously.
func WithMaxConcurrent(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithWorkerLogger sets the worker's logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewWorker creates a job worker.
func NewWorker(store Store, opts ...WorkerOption) (*Worker, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	options := &workerOptions{
		pullInterval:  5 * time.Second,
		taskTimeout:   5 * time.Minute,
		maxConcurrent: 1,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		store:        store,
		handlers:     make(map[Type]Handler),
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrent),
		pullInterval: options.pullInterval,
		taskTimeout:  options.taskTimeout,
		logger:       options.logger,
	}, nil
}

// RegisterHandler registers a single job handler.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Type()] = handler
	return nil
}

// RegisterHandlers registers multiple job handlers.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("job worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker, waiting for in-flight jobs.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("job worker stopping, waiting for active jobs",
		slog.String("worker_id", w.workerID.String()))

	w.wg.Wait()

	w.logger.Info("job worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// Run returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// RunTick processes at most one eligible job synchronously. Exposed for
// callers that drive execution from an external scheduler instead of the
// internal polling loop; safe to invoke at any frequency.
func (w *Worker) RunTick(ctx context.Context) error {
	w.mu.RLock()
	if len(w.handlers) == 0 {
		w.mu.RUnlock()
		return ErrNoHandlers
	}
	w.mu.RUnlock()

	return w.pullAndProcess(ctx)
}

// run is the main processing loop.
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// Ensure we don't add to the WaitGroup after Stop() starts.
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.pullAndProcess(w.ctx); err != nil && !errors.Is(err, ErrHandlerNotFound) {
						w.logger.Error("failed to process job",
							slog.String("worker_id", w.workerID.String()),
							slog.String("error", err.Error()))
					}
				}()
			default:
				w.logger.Debug("all worker slots busy, skipping tick",
					slog.String("worker_id", w.workerID.String()))
			}
		}
	}
}

// pullAndProcess claims the next eligible job and executes it.
func (w *Worker) pullAndProcess(ctx context.Context) error {
	job, err := w.store.ClaimNextJob(ctx, time.Now())
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return nil
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}

	w.logger.Debug("claimed job",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)))

	return w.processJob(ctx, job)
}

// processJob executes a job with its handler.
func (w *Worker) processJob(ctx context.Context, job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("job_id", job.ID.String()),
				slog.String("job_type", string(job.Type)),
				slog.Any("panic", r))
			_ = w.handleFailure(ctx, job, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.Type]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(ctx, job)
	}

	// Execution context is detached from the worker lifecycle so graceful
	// shutdown lets in-flight jobs finish.
	execCtx, cancel := context.WithTimeout(context.Background(), w.taskTimeout)
	defer cancel()

	err := handler.Handle(execCtx, job.Payload)
	duration := time.Since(start)

	if err != nil {
		return w.handleFailure(ctx, job, err, duration)
	}

	return w.handleSuccess(ctx, job, duration)
}

// handleMissingHandler fails jobs with no registered handler. Retrying
// would fail identically, so the job goes straight to failed where an
// operator can retry it once the handler ships.
func (w *Worker) handleMissingHandler(ctx context.Context, job *Job) error {
	w.logger.Error("no handler registered for job type",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)))

	errorMsg := "no handler registered for job type: " + string(job.Type)
	if err := w.store.FailJob(ctx, job.ID, errorMsg); err != nil {
		return fmt.Errorf("failed to mark job %s as failed: %w", job.ID, err)
	}

	return ErrHandlerNotFound
}

func (w *Worker) handleFailure(ctx context.Context, job *Job, execErr error, duration time.Duration) error {
	w.logger.Error("job failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	if err := w.store.FailJob(ctx, job.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to update job %s status to failed: %w", job.ID, err)
	}

	return nil
}

func (w *Worker) handleSuccess(ctx context.Context, job *Job, duration time.Duration) error {
	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job %s as completed: %w", job.ID, err)
	}

	w.logger.Info("job completed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.Duration("duration", duration))

	return nil
}
