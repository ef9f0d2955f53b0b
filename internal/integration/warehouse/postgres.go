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

package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docunexus/internal/response"
	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

// txBeginner *pgxpool.Pool 满足该接口
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// PostgresQuerier 本地开发用的 Postgres 仓库；查询在只读事务中执行
type PostgresQuerier struct {
	pool txBeginner
}

// readOnlyTx 查询所用的事务选项
var readOnlyTx = pgx.TxOptions{AccessMode: pgx.ReadOnly}

var _ Querier = (*PostgresQuerier)(nil)

// NewPostgresQuerier 创建连接池并 ping
func NewPostgresQuerier(ctx context.Context, dsn string) (*PostgresQuerier, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresQuerier{pool: pool}, nil
}

// Query 在只读事务中执行语句（写操作由数据库拒绝），单元格统一格式化为字符串，NULL 为空串
func (q *PostgresQuerier) Query(ctx context.Context, sql string) (table *response.Table, err error) {
	if err := validateSQL(sql); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartVendorSpan(ctx, "postgres", "query")
	defer func() {
		metrics.ObserveVendor("postgres", err)
		tracing.End(span, err)
	}()

	tx, err := q.pool.BeginTx(ctx, readOnlyTx)
	if err != nil {
		return nil, fmt.Errorf("开启只读事务failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("执行查询failed: %w", err)
	}
	defer rows.Close()
	table = &response.Table{Columns: []string{}, Rows: [][]string{}}
	for _, fd := range rows.FieldDescriptions() {
		table.Columns = append(table.Columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			if v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		table.Rows = append(table.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("执行查询failed: %w", err)
	}
	return table, nil
}

// Close 关闭连接池
func (q *PostgresQuerier) Close() error {
	q.pool.Close()
	return nil
}
