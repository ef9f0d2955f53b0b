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

package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dnerrors "docunexus/pkg/errors"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	size BIGINT NOT NULL,
	text TEXT NOT NULL,
	path TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}',
	uploaded_at TIMESTAMPTZ NOT NULL
)`

// pgStore PostgreSQL 实现，documents 表
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的文档存储并确保表存在
func NewPostgresStore(ctx context.Context, dsn string) (Store, error) {
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
		return nil, fmt.Errorf("创建 documents 表failed: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Put(ctx context.Context, rec *Record) error {
	if rec == nil {
		return dnerrors.Wrap(dnerrors.ErrInvalidArg, "nil document")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now()
	}
	md, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, owner, name, type, size, text, path, metadata, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET owner = EXCLUDED.owner, name = EXCLUDED.name, type = EXCLUDED.type,
  size = EXCLUDED.size, text = EXCLUDED.text, path = EXCLUDED.path, metadata = EXCLUDED.metadata,
  uploaded_at = EXCLUDED.uploaded_at`,
		rec.ID, rec.Owner, rec.Name, rec.Type, rec.Size, rec.Text, rec.Path, md, rec.UploadedAt)
	return err
}

const selectColumns = `SELECT id, owner, name, type, size, text, path, metadata, uploaded_at FROM documents`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var md []byte
	if err := row.Scan(&rec.ID, &rec.Owner, &rec.Name, &rec.Type, &rec.Size, &rec.Text, &rec.Path, &md, &rec.UploadedAt); err != nil {
		return nil, err
	}
	if len(md) > 0 {
		_ = json.Unmarshal(md, &rec.Metadata)
	}
	return &rec, nil
}

func (s *pgStore) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dnerrors.Wrapf(dnerrors.ErrNotFound, "document %s", id)
		}
		return nil, err
	}
	return rec, nil
}

func (s *pgStore) List(ctx context.Context, filter *Filter) ([]*Record, error) {
	query := selectColumns + ` WHERE ($1 = '' OR owner = $1)
  AND (cardinality($2::text[]) = 0 OR id = ANY($2))
  AND (cardinality($3::text[]) = 0 OR type = ANY($3))
ORDER BY uploaded_at DESC, id`
	var owner string
	ids, types := []string{}, []string{}
	limit := 0
	if filter != nil {
		owner = filter.Owner
		if filter.IDs != nil {
			ids = filter.IDs
		}
		if filter.Types != nil {
			types = filter.Types
		}
		limit = filter.Limit
	}
	args := []interface{}{owner, ids, types}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *pgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return dnerrors.Wrapf(dnerrors.ErrNotFound, "document %s", id)
	}
	return nil
}

// Close 关闭连接池
func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}
