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
	"sync"
)

// Store 按会话保存有序条目（插入顺序）
type Store interface {
	// Load 返回会话全部条目，无记录时为空切片
	Load(ctx context.Context, sessionID string) ([]Entry, error)
	// Save 覆盖会话条目
	Save(ctx context.Context, sessionID string, entries []Entry) error
	// Delete 删除会话全部条目
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// Appender 能原子追加单条的存储（redis / sqlite）；多副本共享存储时 Manager 优先使用
type Appender interface {
	Append(ctx context.Context, sessionID string, e Entry) error
}

// MemoryStore 内存实现（map + mutex）
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Entry
}

// NewMemoryStore 创建内存历史存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Entry)}
}

// Load 实现 Store
func (m *MemoryStore) Load(ctx context.Context, sessionID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.sessions[sessionID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// Save 实现 Store
func (m *MemoryStore) Save(ctx context.Context, sessionID string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	m.sessions[sessionID] = cp
	return nil
}

// Delete 实现 Store
func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Close 无需释放资源
func (m *MemoryStore) Close() error { return nil }
