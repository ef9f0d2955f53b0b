package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"docunexus/pkg/errors"
)

// MemoryQueue 内存实现（单进程：API 与 Worker 共享同一实例时使用）
type MemoryQueue struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	order []string
	now   func() time.Time
}

// NewMemoryQueue 创建内存队列
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]*Job), now: time.Now}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, kind string, payload []byte) (string, error) {
	if kind == "" {
		return "", errors.Wrap(errors.ErrInvalidArg, "job kind is empty")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	job := &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   append([]byte(nil), payload...),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	return job.ID, nil
}

func (q *MemoryQueue) ClaimOne(ctx context.Context, workerID string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, id := range q.order {
		job := q.jobs[id]
		if job.Status != StatusPending {
			continue
		}
		job.Status = StatusRunning
		job.WorkerID = workerID
		job.UpdatedAt = q.now()
		q.order = append(q.order[:i:i], q.order[i+1:]...)
		cp := *job
		return &cp, nil
	}
	return nil, nil
}

func (q *MemoryQueue) finish(id, status, result, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	job.Status = status
	job.Result = result
	job.Error = errMsg
	job.UpdatedAt = q.now()
	return nil
}

func (q *MemoryQueue) MarkCompleted(ctx context.Context, id, result string) error {
	return q.finish(id, StatusCompleted, result, "")
}

func (q *MemoryQueue) MarkFailed(ctx context.Context, id, errMsg string) error {
	return q.finish(id, StatusFailed, "", errMsg)
}

func (q *MemoryQueue) Get(ctx context.Context, id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	cp := *job
	return &cp, nil
}

func (q *MemoryQueue) Close() error { return nil }
