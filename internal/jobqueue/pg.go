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

package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dnerrors "docunexus/pkg/errors"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS media_jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload BYTEA NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	result TEXT,
	error TEXT,
	worker_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_media_jobs_pending ON media_jobs (created_at) WHERE status = 'pending'`

// pgQueue PostgreSQL 实现，使用 media_jobs 表
type pgQueue struct {
	pool *pgxpool.Pool
}

// NewPostgresQueue 创建基于 PostgreSQL 的任务队列并确保表存在
func NewPostgresQueue(ctx context.Context, dsn string) (Queue, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("创建 media_jobs 表failed: %w", err)
	}
	return &pgQueue{pool: pool}, nil
}

// Enqueue 实现 Queue
func (q *pgQueue) Enqueue(ctx context.Context, kind string, payload []byte) (string, error) {
	if kind == "" {
		return "", dnerrors.Wrap(dnerrors.ErrInvalidArg, "job kind is empty")
	}
	if payload == nil {
		payload = []byte{}
	}
	id := uuid.New().String()
	_, err := q.pool.Exec(ctx,
		`INSERT INTO media_jobs (id, kind, payload, status) VALUES ($1, $2, $3, 'pending')`,
		id, kind, payload,
	)
	return id, err
}

const jobColumns = `id, kind, payload, status, COALESCE(result, ''), COALESCE(error, ''), COALESCE(worker_id, ''), created_at, updated_at`

// returningColumns 带表名，避免与 CTE 的 id 歧义
const returningColumns = `media_jobs.id, media_jobs.kind, media_jobs.payload, media_jobs.status, COALESCE(media_jobs.result, ''),
  COALESCE(media_jobs.error, ''), COALESCE(media_jobs.worker_id, ''), media_jobs.created_at, media_jobs.updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	if err := row.Scan(&j.ID, &j.Kind, &j.Payload, &j.Status, &j.Result, &j.Error, &j.WorkerID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

// ClaimOne 实现 Queue；FOR UPDATE SKIP LOCKED 保证多 worker 不重复认领
func (q *pgQueue) ClaimOne(ctx context.Context, workerID string) (*Job, error) {
	job, err := scanJob(q.pool.QueryRow(ctx,
		`WITH sel AS (
  SELECT id FROM media_jobs WHERE status = 'pending' ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED
)
UPDATE media_jobs SET status = 'running', worker_id = $1, updated_at = now()
FROM sel WHERE media_jobs.id = sel.id
RETURNING `+returningColumns,
		workerID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (q *pgQueue) finish(ctx context.Context, id, status string, result, errMsg *string) error {
	tag, err := q.pool.Exec(ctx,
		`UPDATE media_jobs SET status = $1, result = $2, error = $3, updated_at = now() WHERE id = $4`,
		status, result, errMsg, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return dnerrors.Wrapf(dnerrors.ErrNotFound, "job %s", id)
	}
	return nil
}

// MarkCompleted 实现 Queue
func (q *pgQueue) MarkCompleted(ctx context.Context, id, result string) error {
	return q.finish(ctx, id, StatusCompleted, &result, nil)
}

// MarkFailed 实现 Queue
func (q *pgQueue) MarkFailed(ctx context.Context, id, errMsg string) error {
	return q.finish(ctx, id, StatusFailed, nil, &errMsg)
}

// Get 实现 Queue
func (q *pgQueue) Get(ctx context.Context, id string) (*Job, error) {
	job, err := scanJob(q.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM media_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dnerrors.Wrapf(dnerrors.ErrNotFound, "job %s", id)
		}
		return nil, err
	}
	return job, nil
}

// Close 关闭连接池
func (q *pgQueue) Close() error {
	q.pool.Close()
	return nil
}
