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

// Package jobqueue 媒体任务队列：API 入队，Worker 认领并执行
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"docunexus/pkg/config"
)

// 任务状态：pending → running → completed | failed
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job 队列中的任务
type Job struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Payload   []byte    `json:"payload"`
	Status    string    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	WorkerID  string    `json:"worker_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Queue 任务队列
type Queue interface {
	// Enqueue 入队，返回任务 ID
	Enqueue(ctx context.Context, kind string, payload []byte) (string, error)
	// ClaimOne 原子认领最早的一条 pending 任务；无任务时返回 nil, nil
	ClaimOne(ctx context.Context, workerID string) (*Job, error)
	// MarkCompleted 标记任务完成
	MarkCompleted(ctx context.Context, id, result string) error
	// MarkFailed 标记任务失败
	MarkFailed(ctx context.Context, id, errMsg string) error
	// Get 查询任务；不存在时返回 errors.ErrNotFound
	Get(ctx context.Context, id string) (*Job, error)
	Close() error
}

// New 根据配置创建队列
func New(ctx context.Context, cfg config.JobQueueConfig) (Queue, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryQueue(), nil
	case "postgres":
		return NewPostgresQueue(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("不支持的任务队列类型: %s", cfg.Type)
	}
}
