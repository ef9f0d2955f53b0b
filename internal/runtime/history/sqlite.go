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

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	thoughts TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_session ON history(session_id, id);`

// SQLiteStore 单文件 SQLite，一行一个条目
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 打开（或创建）path；":memory:" 用于测试
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}
	// :memory: 每个连接是独立库
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load 实现 Store
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question, answer, thoughts, mode, created_at FROM history WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("读取历史failed: %w", err)
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.Question, &e.Answer, &e.Thoughts, &e.Mode, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Save 在事务中重写会话条目
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("写入历史failed: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (session_id, question, answer, thoughts, mode, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, e.Question, e.Answer, e.Thoughts, e.Mode, e.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("写入历史failed: %w", err)
		}
	}
	return tx.Commit()
}

// Append 实现 Appender，单条 INSERT
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, e Entry) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO history (session_id, question, answer, thoughts, mode, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, e.Question, e.Answer, e.Thoughts, e.Mode, e.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("追加历史failed: %w", err)
	}
	return nil
}

// Delete 实现 Store
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE session_id = ?`, sessionID)
	return err
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
