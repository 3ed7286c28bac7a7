package async_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mskarstad/dokutolk/internal/async"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []uuid.UUID
	done chan struct{}
	want int
}

func (r *recordingRunner) Run(_ context.Context, jobID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, jobID)
	if len(r.runs) == r.want {
		close(r.done)
	}
	return nil
}

func TestQueueRunsEnqueuedJobs(t *testing.T) {
	runner := &recordingRunner{done: make(chan struct{}), want: 3}
	q := async.NewQueue(runner, nil, async.WithWorkers(2), async.WithQueueSize(8))

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), async.Task{JobID: id}))
	}

	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs were not processed in time")
	}
	q.Shutdown(context.Background())

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.ElementsMatch(t, ids, runner.runs)
}

func TestQueueShutdownIsIdempotentAndStopsIntake(t *testing.T) {
	runner := &recordingRunner{done: make(chan struct{}), want: 1}
	q := async.NewQueue(runner, nil, async.WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)
	q.Shutdown(ctx)

	require.NoError(t, q.Enqueue(context.Background(), async.Task{JobID: uuid.New()}))
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Empty(t, runner.runs)
}
