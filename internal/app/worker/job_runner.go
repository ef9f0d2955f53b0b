// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"context"
	"os"
	"sync"
	"time"

	"docunexus/internal/jobqueue"
	"docunexus/pkg/log"
	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

// RunFunc 按任务类型执行一条任务，返回结果描述（如 Media 任务最终状态）
type RunFunc func(ctx context.Context, kind string, payload []byte) (string, error)

// JobRunner 从队列认领任务并执行，写回完成/失败状态；同时执行的任务数受信号量限制
type JobRunner struct {
	workerID     string
	queue        jobqueue.Queue
	run          RunFunc
	pollInterval time.Duration
	timeout      time.Duration
	limiter      chan struct{}
	logger       *log.Logger
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewJobRunner maxConcurrency<=0 时默认 2；timeout<=0 表示单个任务不设超时
func NewJobRunner(workerID string, queue jobqueue.Queue, run RunFunc, pollInterval, timeout time.Duration, maxConcurrency int, logger *log.Logger) *JobRunner {
	if maxConcurrency <= 0 {
		maxConcurrency = 2
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &JobRunner{
		workerID:     workerID,
		queue:        queue,
		run:          run,
		pollInterval: pollInterval,
		timeout:      timeout,
		limiter:      make(chan struct{}, maxConcurrency),
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Start 启动认领循环；先占并发槽位再 Claim，执行后释放槽位
func (r *JobRunner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			case r.limiter <- struct{}{}:
				j, err := r.queue.ClaimOne(ctx, r.workerID)
				if err != nil || j == nil {
					<-r.limiter
					if err != nil && ctx.Err() == nil {
						r.logger.Error("Claim failed", "error", err)
					}
					select {
					case <-r.stopCh:
						return
					case <-ctx.Done():
						return
					case <-time.After(r.pollInterval):
					}
					continue
				}
				r.wg.Add(1)
				go func(j *jobqueue.Job) {
					defer r.wg.Done()
					defer func() { <-r.limiter }()
					r.executeJob(ctx, j)
				}(j)
			}
		}
	}()
}

// Stop 停止认领并等待执行中的任务结束
func (r *JobRunner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *JobRunner) executeJob(ctx context.Context, j *jobqueue.Job) {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	runCtx, span := tracing.StartJobSpan(runCtx, j.ID, j.Kind)
	r.logger.Info("开始执行任务", "job_id", j.ID, "kind", j.Kind, "worker_id", r.workerID)

	result, err := r.run(runCtx, j.Kind, j.Payload)
	tracing.End(span, err)

	// 写回状态不受任务超时影响
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		r.logger.Error("任务执行failed", "job_id", j.ID, "kind", j.Kind, "error", err)
		metrics.JobsTotal.WithLabelValues(j.Kind, "failed").Inc()
		if mErr := r.queue.MarkFailed(writeCtx, j.ID, err.Error()); mErr != nil {
			r.logger.Error("MarkFailed failed", "job_id", j.ID, "error", mErr)
		}
		return
	}
	metrics.JobsTotal.WithLabelValues(j.Kind, "completed").Inc()
	if mErr := r.queue.MarkCompleted(writeCtx, j.ID, result); mErr != nil {
		r.logger.Error("MarkCompleted failed", "job_id", j.ID, "error", mErr)
		return
	}
	r.logger.Info("任务完成", "job_id", j.ID, "kind", j.Kind, "result", result)
}

// DefaultWorkerID 返回默认 Worker 标识（hostname 或 env）
func DefaultWorkerID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	host, _ := os.Hostname()
	if host != "" {
		return host
	}
	return "worker-unknown"
}
