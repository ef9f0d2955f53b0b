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

// Package warehouse 数据仓库查询（Snowflake SQL API 或本地 Postgres）
package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docunexus/internal/response"
	"docunexus/pkg/config"
	"docunexus/pkg/errors"
)

// Querier 执行只读 SQL，结果以表格返回
type Querier interface {
	Query(ctx context.Context, sql string) (*response.Table, error)
	Close() error
}

// Credentials Snowflake 连接参数，来自 secret 表
type Credentials struct {
	Account   string
	User      string
	Token     string
	Warehouse string
	Database  string
	Schema    string
}

// New 根据配置创建 Querier
func New(ctx context.Context, cfg config.WarehouseConfig, creds Credentials) (Querier, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	switch cfg.Type {
	case "", "snowflake":
		return NewSnowflakeClient(cfg.Endpoint, cfg.Role, creds, timeout)
	case "postgres":
		return NewPostgresQuerier(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("不支持的数据仓库类型: %s", cfg.Type)
	}
}

func validateSQL(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return errors.Wrap(errors.ErrInvalidArg, "query is empty")
	}
	return nil
}
