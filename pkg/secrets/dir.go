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

package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DirConfig 挂载目录配置：每个 secret 为目录下同名文件（docker/k8s secret mount 形式）
type DirConfig struct {
	Path string `mapstructure:"path"`
}

type dirStore struct {
	path  string
	mu    sync.RWMutex
	cache map[string]string
}

// NewDirStore 创建目录型 secret store，目录不存在时报错
func NewDirStore(config DirConfig) (Store, error) {
	path := config.Path
	if path == "" {
		path = "/etc/secrets"
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("secrets dir not found: %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", path)
	}
	return &dirStore{path: path, cache: make(map[string]string)}, nil
}

func (d *dirStore) Get(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	if v, ok := d.cache[key]; ok {
		d.mu.RUnlock()
		return v, nil
	}
	d.mu.RUnlock()

	data, err := os.ReadFile(d.file(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret not found: %s", key)
		}
		return "", fmt.Errorf("failed to read secret %s: %w", key, err)
	}
	value := strings.TrimRight(string(data), "\r\n")

	d.mu.Lock()
	d.cache[key] = value
	d.mu.Unlock()
	return value, nil
}

func (d *dirStore) Set(ctx context.Context, key string, value string) error {
	if err := os.WriteFile(d.file(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to write secret %s: %w", key, err)
	}
	d.mu.Lock()
	d.cache[key] = value
	d.mu.Unlock()
	return nil
}

func (d *dirStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(d.file(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete secret %s: %w", key, err)
	}
	d.mu.Lock()
	delete(d.cache, key)
	d.mu.Unlock()
	return nil
}

func (d *dirStore) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}

// file 防止 key 中的路径分隔符逃出目录
func (d *dirStore) file(key string) string {
	return filepath.Join(d.path, filepath.Base(key))
}
