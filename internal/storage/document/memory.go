package document

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docunexus/pkg/errors"
)

// MemoryStore 内存文档存储实现
type MemoryStore struct {
	docs map[string]*Record
	mu   sync.RWMutex
}

// NewMemoryStore 创建新的内存文档存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Record),
	}
}

// Put 保存文档
func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.Wrap(errors.ErrInvalidArg, "nil document")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[rec.ID] = cloneRecord(rec)
	return nil
}

// Get 根据 ID 获取文档
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.docs[id]
	if !exists {
		return nil, errors.Wrapf(errors.ErrNotFound, "document %s", id)
	}
	return cloneRecord(rec), nil
}

// List 列出文档
func (s *MemoryStore) List(ctx context.Context, filter *Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*Record{}
	for _, rec := range s.docs {
		if filter.match(rec) {
			results = append(results, cloneRecord(rec))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].UploadedAt.Equal(results[j].UploadedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].UploadedAt.After(results[j].UploadedAt)
	})
	if filter != nil && filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// Delete 根据 ID 删除文档
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; !exists {
		return errors.Wrapf(errors.ErrNotFound, "document %s", id)
	}
	delete(s.docs, id)
	return nil
}

// Close 关闭存储连接
func (s *MemoryStore) Close() error {
	return nil
}
