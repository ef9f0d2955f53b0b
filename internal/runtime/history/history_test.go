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
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docunexus/pkg/config"
)

func exerciseManager(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	m := NewManager(store)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, m.Append(ctx, "s1", Entry{Question: "q1", Answer: "a1", Mode: ModeText}))
	require.NoError(t, m.Append(ctx, "s1", Entry{Question: "q2", Answer: "a2", Thoughts: "t2", Mode: ModeVision}))
	require.NoError(t, m.Append(ctx, "s2", Entry{Question: "other", Answer: "x"}))

	got, err := m.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].Question, "newest first")
	assert.Equal(t, "t2", got[0].Thoughts)
	assert.Equal(t, "q1", got[1].Question)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))

	require.NoError(t, m.Clear(ctx, "s1"))
	got, err = m.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = m.List(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, got, 1, "clearing one session keeps the others")

	assert.Error(t, m.Append(ctx, "", Entry{Question: "q"}))
}

func TestManager_Memory(t *testing.T) {
	exerciseManager(t, NewMemoryStore())
}

func TestManager_SQLite(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	exerciseManager(t, store)
}

func TestManager_SQLiteFile(t *testing.T) {
	path := t.TempDir() + "/nested/history.db"
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	m := NewManager(store)
	require.NoError(t, m.Append(context.Background(), "s", Entry{Question: "q", Answer: "a"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := NewManager(reopened).List(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Answer)
}

func TestManager_Redis(t *testing.T) {
	addr := os.Getenv("TEST_HISTORY_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_HISTORY_REDIS_ADDR not set, skipping Redis history tests")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, &redis.Options{Addr: addr}, time.Minute)
	require.NoError(t, err)
	defer store.Close()
	_ = store.Delete(ctx, "s1")
	_ = store.Delete(ctx, "s2")
	exerciseManager(t, store)
}

func TestManager_RedisConcurrentReplicas(t *testing.T) {
	addr := os.Getenv("TEST_HISTORY_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_HISTORY_REDIS_ADDR not set, skipping Redis history tests")
	}
	ctx := context.Background()
	a, err := NewRedisStore(ctx, &redis.Options{Addr: addr}, time.Minute)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisStore(ctx, &redis.Options{Addr: addr}, time.Minute)
	require.NoError(t, err)
	defer b.Close()
	_ = a.Delete(ctx, "replicas")

	// 两个 Manager 模拟两个 API 副本
	managers := []*Manager{NewManager(a), NewManager(b)}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, managers[i%2].Append(ctx, "replicas", Entry{Question: "q", Answer: "a"}))
		}(i)
	}
	wg.Wait()
	got, err := managers[0].List(ctx, "replicas")
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

type countingStore struct {
	*MemoryStore
	appended int
	saved    int
}

func (c *countingStore) Append(ctx context.Context, sessionID string, e Entry) error {
	c.appended++
	entries, _ := c.MemoryStore.Load(ctx, sessionID)
	return c.MemoryStore.Save(ctx, sessionID, append(entries, e))
}

func (c *countingStore) Save(ctx context.Context, sessionID string, entries []Entry) error {
	c.saved++
	return c.MemoryStore.Save(ctx, sessionID, entries)
}

func TestManager_UsesAppender(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	m := NewManager(store)
	require.NoError(t, m.Append(context.Background(), "s", Entry{Question: "q", Answer: "a"}))
	assert.Equal(t, 1, store.appended)
	assert.Equal(t, 0, store.saved, "appending stores skip the load and rewrite path")
	got, err := m.List(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "s", []Entry{{Question: "q"}}))
	got, _ := s.Load(ctx, "s")
	got[0].Question = "mutated"
	again, _ := s.Load(ctx, "s")
	assert.Equal(t, "q", again[0].Question)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), config.HistoryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(context.Background(), config.HistoryConfig{Type: "sqlite", DSN: t.TempDir() + "/h.db"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = NewStore(context.Background(), config.HistoryConfig{Type: "mongo"})
	assert.Error(t, err)
}
