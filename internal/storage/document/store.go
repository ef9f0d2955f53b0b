package document

import (
	"context"
	"fmt"

	"docunexus/pkg/config"
)

// NewStore 根据配置创建文档存储
func NewStore(ctx context.Context, cfg config.DocStoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("不支持的文档存储类型: %s", cfg.Type)
	}
}
