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

// Package object 上传文件、合成音频与媒体素材的对象存储
package object

import (
	"context"
	"io"
	"strings"
)

// Store 对象存储接口；path 形如 "container/name"，无容器前缀时使用默认容器
type Store interface {
	// Put 上传对象
	Put(ctx context.Context, path string, data io.Reader, size int64, metadata map[string]string) error
	// Get 下载对象，不存在时返回 errors.ErrNotFound
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete 删除对象
	Delete(ctx context.Context, path string) error
	// List 按前缀列出对象（按路径排序）
	List(ctx context.Context, prefix string) ([]*ObjectInfo, error)
	// Exists 检查对象是否存在
	Exists(ctx context.Context, path string) (bool, error)
	// GetMetadata 获取对象元数据
	GetMetadata(ctx context.Context, path string) (map[string]string, error)
	// URL 对象的访问地址（不含凭据）
	URL(path string) string
	// Close 关闭存储连接
	Close() error
}

// ObjectInfo 对象信息
type ObjectInfo struct {
	Path      string            `json:"path"`
	Size      int64             `json:"size"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

// Join 拼接容器与对象名
func Join(container, name string) string {
	return strings.Trim(container, "/") + "/" + strings.TrimLeft(name, "/")
}

// splitPath 拆分 "container/name"；无 "/" 时容器取 defaultContainer
func splitPath(path, defaultContainer string) (container, name string) {
	path = strings.TrimLeft(path, "/")
	if i := strings.IndexByte(path, '/'); i > 0 {
		return path[:i], path[i+1:]
	}
	return defaultContainer, path
}

func copyMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
