package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow/pkg/jobs"
)

type capturedPayload struct {
	Name string `json:"name"`
}

func enqueuePending(t *testing.T, store *jobs.MemoryStore, jobType jobs.Type, priority jobs.Priority) *jobs.Job {
	t.Helper()

	now := time.Now()
	job := &jobs.Job{
		ID:             uuid.New(),
		Type:           jobType,
		OrganizationID: uuid.New(),
		Payload:        []byte(`{"name":"x"}`),
		Priority:       priority,
		Status:         jobs.StatusPending,
		RunAt:          now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.CreateJob(context.Background(), job))
	return job
}

func TestWorker_RunTick(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("executes the handler and completes the job", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		job := enqueuePending(t, store, "send_digest", jobs.PriorityNormal)

		var handled capturedPayload
		worker, err := jobs.NewWorker(store)
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(jobs.NewHandler("send_digest",
			func(ctx context.Context, p capturedPayload) error {
				handled = p
				return nil
			})))

		require.NoError(t, worker.RunTick(ctx))
		assert.Equal(t, "x", handled.Name)

		done, err := store.GetJob(ctx, job.OrganizationID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusCompleted, done.Status)
		assert.Equal(t, 1, done.AttemptCount)
	})

	t.Run("handler error fails the job with the message", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		job := enqueuePending(t, store, "send_digest", jobs.PriorityNormal)

		worker, err := jobs.NewWorker(store)
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(jobs.NewHandler("send_digest",
			func(ctx context.Context, _ capturedPayload) error {
				return errors.New("smtp unreachable")
			})))

		require.NoError(t, worker.RunTick(ctx))

		failed, err := store.GetJob(ctx, job.OrganizationID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusFailed, failed.Status)
		require.NotNil(t, failed.LastError)
		assert.Equal(t, "smtp unreachable", *failed.LastError)
	})

	t.Run("handler panic fails the job instead of crashing", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		job := enqueuePending(t, store, "send_digest", jobs.PriorityNormal)

		worker, err := jobs.NewWorker(store)
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(jobs.NewHandler("send_digest",
			func(ctx context.Context, _ capturedPayload) error {
				panic("boom")
			})))

		err = worker.RunTick(ctx)
		require.Error(t, err)

		failed, getErr := store.GetJob(ctx, job.OrganizationID, job.ID)
		require.NoError(t, getErr)
		assert.Equal(t, jobs.StatusFailed, failed.Status)
	})

	t.Run("missing handler fails the job", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		job := enqueuePending(t, store, "orphan_type", jobs.PriorityNormal)

		worker, err := jobs.NewWorker(store)
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(jobs.NewHandler("send_digest",
			func(ctx context.Context, _ capturedPayload) error { return nil })))

		assert.ErrorIs(t, worker.RunTick(ctx), jobs.ErrHandlerNotFound)

		failed, getErr := store.GetJob(ctx, job.OrganizationID, job.ID)
		require.NoError(t, getErr)
		assert.Equal(t, jobs.StatusFailed, failed.Status)
	})

	t.Run("no handlers registered", func(t *testing.T) {
		t.Parallel()

		worker, err := jobs.NewWorker(jobs.NewMemoryStore())
		require.NoError(t, err)
		assert.ErrorIs(t, worker.RunTick(ctx), jobs.ErrNoHandlers)
	})

	t.Run("empty queue is not an error", func(t *testing.T) {
		t.Parallel()

		worker, err := jobs.NewWorker(jobs.NewMemoryStore())
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(jobs.NewHandler("send_digest",
			func(ctx context.Context, _ capturedPayload) error { return nil })))

		assert.NoError(t, worker.RunTick(ctx))
	})
}

func TestWorker_ClaimOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := jobs.NewMemoryStore()

	low := enqueuePending(t, store, "send_digest", jobs.PriorityLow)
	normal := enqueuePending(t, store, "send_digest", jobs.PriorityNormal)
	high := enqueuePending(t, store, "send_digest", jobs.PriorityHigh)

	for _, want := range []uuid.UUID{high.ID, normal.ID, low.ID} {
		claimed, err := store.ClaimNextJob(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, want, claimed.ID)
	}

	_, err := store.ClaimNextJob(ctx, time.Now())
	assert.ErrorIs(t, err, jobs.ErrNoJobToClaim)
}

func TestWorker_ScheduledJobsWait(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := jobs.NewMemoryStore()

	now := time.Now()
	job := &jobs.Job{
		ID:             uuid.New(),
		Type:           "send_digest",
		OrganizationID: uuid.New(),
		Payload:        []byte(`{}`),
		Priority:       jobs.PriorityHigh,
		Status:         jobs.StatusPending,
		RunAt:          now.Add(time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.CreateJob(ctx, job))

	_, err := store.ClaimNextJob(ctx, now)
	assert.ErrorIs(t, err, jobs.ErrNoJobToClaim)

	claimed, err := store.ClaimNextJob(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
}

func TestWorker_ConcurrentClaims(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := jobs.NewMemoryStore()

	const jobCount = 50
	for range jobCount {
		enqueuePending(t, store, "send_digest", jobs.PriorityNormal)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[uuid.UUID]int)
		wg      sync.WaitGroup
	)

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := store.ClaimNextJob(ctx, time.Now())
				if errors.Is(err, jobs.ErrNoJobToClaim) {
					return
				}
				if !assert.NoError(t, err) {
					return
				}

				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, jobCount)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestWorker_StartStop(t *testing.T) {
	t.Parallel()

	store := jobs.NewMemoryStore()
	job := enqueuePending(t, store, "send_digest", jobs.PriorityNormal)

	done := make(chan struct{})
	worker, err := jobs.NewWorker(store,
		jobs.WithPullInterval(10*time.Millisecond),
		jobs.WithMaxConcurrent(2))
	require.NoError(t, err)
	require.NoError(t, worker.RegisterHandler(jobs.NewHandler("send_digest",
		func(ctx context.Context, _ capturedPayload) error {
			close(done)
			return nil
		})))

	require.NoError(t, worker.Start(context.Background()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process the job in time")
	}

	require.NoError(t, worker.Stop())

	completed, err := store.GetJob(context.Background(), job.OrganizationID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, completed.Status)
}
