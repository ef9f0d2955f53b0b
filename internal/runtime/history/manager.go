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
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docunexus/pkg/config"
	"docunexus/pkg/errors"
	"docunexus/pkg/metrics"
	"docunexus/pkg/utils"
)

// Manager 会话历史：Append 追加，List 最新在前，Clear 在登出时调用
type Manager struct {
	store Store
	mu    sync.Mutex
	now   func() time.Time
}

// NewManager 基于 Store 创建 Manager
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Append 追加一条；CreatedAt 为空时取当前时间
func (m *Manager) Append(ctx context.Context, sessionID string, e Entry) error {
	if sessionID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "session id is empty")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	if err := m.append(ctx, sessionID, e); err != nil {
		return err
	}
	metrics.HistoryEntries.WithLabelValues(e.Mode).Inc()
	return nil
}

func (m *Manager) append(ctx context.Context, sessionID string, e Entry) error {
	if a, ok := m.store.(Appender); ok {
		return a.Append(ctx, sessionID, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	return m.store.Save(ctx, sessionID, append(entries, e))
}

// List 返回会话条目，最新在前
func (m *Manager) List(ctx context.Context, sessionID string) ([]Entry, error) {
	entries, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out, nil
}

// Clear 清空会话历史
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(ctx, sessionID)
}

// Close 关闭底层存储
func (m *Manager) Close() error {
	return m.store.Close()
}

// NewStore 根据配置创建历史存储
func NewStore(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		ttl := utils.ParseDuration(cfg.TTL, 24*time.Hour)
		return NewRedisStore(ctx, &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}, ttl)
	case "sqlite":
		return NewSQLiteStore(utils.CoalesceString(cfg.DSN, "data/history.db"))
	default:
		return nil, fmt.Errorf("不支持的历史存储类型: %s", cfg.Type)
	}
}
