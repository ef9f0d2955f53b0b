package object

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docunexus/pkg/errors"
)

const metaSuffix = ".meta.json"

// FileStore 本地目录对象存储；元数据写在同名 .meta.json 旁路文件中
type FileStore struct {
	root string
}

// NewFileStore root 不存在时创建
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("file object store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("创建对象存储目录failed: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) full(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", errors.Wrap(errors.ErrInvalidArg, "empty object path")
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put 写入文件与元数据
func (s *FileStore) Put(ctx context.Context, path string, data io.Reader, size int64, metadata map[string]string) error {
	full, err := s.full(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("创建目录failed: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("创建文件failed: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return fmt.Errorf("写入文件failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		if err := os.WriteFile(full+metaSuffix, b, 0o644); err != nil {
			return fmt.Errorf("写入元数据failed: %w", err)
		}
	}
	return nil
}

// Get 打开文件
func (s *FileStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.full(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(errors.ErrNotFound, "object %s", path)
	}
	return f, err
}

// Delete 删除文件与元数据
func (s *FileStore) Delete(ctx context.Context, path string) error {
	full, err := s.full(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errors.ErrNotFound, "object %s", path)
		}
		return err
	}
	_ = os.Remove(full + metaSuffix)
	return nil
}

// List 遍历 root，返回路径以 prefix 开头的对象
func (s *FileStore) List(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	var out []*ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		md, _ := s.readMetadata(p)
		out = append(out, &ObjectInfo{Path: rel, Size: info.Size(), Metadata: md, CreatedAt: info.ModTime().Unix()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Exists 文件是否存在
func (s *FileStore) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.full(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// GetMetadata 读取旁路元数据；对象存在但无元数据时返回空 map
func (s *FileStore) GetMetadata(ctx context.Context, path string) (map[string]string, error) {
	ok, err := s.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "object %s", path)
	}
	full, _ := s.full(path)
	return s.readMetadata(full)
}

func (s *FileStore) readMetadata(full string) (map[string]string, error) {
	b, err := os.ReadFile(full + metaSuffix)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	md := map[string]string{}
	if err := json.Unmarshal(b, &md); err != nil {
		return nil, fmt.Errorf("解析元数据failed: %w", err)
	}
	return md, nil
}

// URL file:// 绝对路径
func (s *FileStore) URL(path string) string {
	full, err := s.full(path)
	if err != nil {
		return ""
	}
	if abs, err := filepath.Abs(full); err == nil {
		full = abs
	}
	return "file://" + filepath.ToSlash(full)
}

// Close 无需释放资源
func (s *FileStore) Close() error {
	return nil
}
