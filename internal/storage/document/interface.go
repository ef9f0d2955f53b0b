// Package document 已上传文档（解析后的文本与元数据），供后续提问作为上下文
package document

import (
	"context"
	"time"
)

// Store 文档存储接口
type Store interface {
	// Put 保存文档；ID 为空时分配新 ID，已存在时覆盖
	Put(ctx context.Context, rec *Record) error
	// Get 根据 ID 获取文档，不存在时返回 errors.ErrNotFound
	Get(ctx context.Context, id string) (*Record, error)
	// List 列出文档（上传时间倒序）
	List(ctx context.Context, filter *Filter) ([]*Record, error)
	// Delete 根据 ID 删除文档
	Delete(ctx context.Context, id string) error
	// Close 关闭存储连接
	Close() error
}

// Record 一个上传文档
type Record struct {
	ID         string            `json:"id"`
	Owner      string            `json:"owner"` // 上传用户
	Name       string            `json:"name"`
	Type       string            `json:"type"` // 扩展名，小写无点
	Size       int64             `json:"size"`
	Text       string            `json:"text,omitempty"`
	Path       string            `json:"path,omitempty"` // 对象存储中的原文件
	Metadata   map[string]string `json:"metadata"`
	UploadedAt time.Time         `json:"uploaded_at"`
}

// Filter 过滤条件
type Filter struct {
	Owner string   `json:"owner"`
	IDs   []string `json:"ids"`
	Types []string `json:"types"`
	Limit int      `json:"limit"`
}

func (f *Filter) match(r *Record) bool {
	if f == nil {
		return true
	}
	if f.Owner != "" && r.Owner != f.Owner {
		return false
	}
	if len(f.IDs) > 0 && !contains(f.IDs, r.ID) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, r.Type) {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneRecord(r *Record) *Record {
	cp := *r
	if r.Metadata != nil {
		cp.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
