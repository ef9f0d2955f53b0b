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
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"docunexus/internal/response"
	"docunexus/pkg/errors"
	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

const (
	defaultStatementTimeout = 60 * time.Second
	statementPollInterval   = time.Second
)

// SnowflakeClient Snowflake SQL API v2 客户端
type SnowflakeClient struct {
	endpoint string
	role     string
	creds    Credentials
	timeout  time.Duration
	poll     time.Duration
	client   *resty.Client
}

var _ Querier = (*SnowflakeClient)(nil)

// NewSnowflakeClient endpoint 为空时使用 https://{account}.snowflakecomputing.com
func NewSnowflakeClient(endpoint, role string, creds Credentials, timeout time.Duration) (*SnowflakeClient, error) {
	if creds.Token == "" {
		return nil, errors.Wrap(errors.ErrMissingSecret, "SNOWFLAKE_TOKEN")
	}
	if endpoint == "" {
		if creds.Account == "" {
			return nil, errors.Wrap(errors.ErrMissingSecret, "SNOWFLAKE_ACCOUNT")
		}
		endpoint = fmt.Sprintf("https://%s.snowflakecomputing.com", creds.Account)
	}
	if timeout <= 0 {
		timeout = defaultStatementTimeout
	}
	client := resty.New()
	client.SetTimeout(timeout + 10*time.Second)
	return &SnowflakeClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		role:     role,
		creds:    creds,
		timeout:  timeout,
		poll:     statementPollInterval,
		client:   client,
	}, nil
}

func (c *SnowflakeClient) request(ctx context.Context) *resty.Request {
	return c.client.R().
		SetContext(ctx).
		SetAuthToken(c.creds.Token).
		SetHeader("X-Snowflake-Authorization-Token-Type", "KEYPAIR_JWT").
		SetHeader("Accept", "application/json")
}

// Query 提交语句；返回 202 时轮询 statementStatusUrl 直到完成
func (c *SnowflakeClient) Query(ctx context.Context, sql string) (table *response.Table, err error) {
	if err := validateSQL(sql); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartVendorSpan(ctx, "snowflake", "statement")
	defer func() {
		metrics.ObserveVendor("snowflake", err)
		tracing.End(span, err)
	}()

	body := map[string]interface{}{
		"statement": sql,
		"timeout":   int(c.timeout / time.Second),
	}
	for k, v := range map[string]string{
		"warehouse": c.creds.Warehouse,
		"database":  c.creds.Database,
		"schema":    c.creds.Schema,
		"role":      c.role,
	} {
		if v != "" {
			body[k] = v
		}
	}
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.endpoint + "/api/v2/statements")
	if err != nil {
		return nil, fmt.Errorf("调用 Snowflake SQL API failed: %w", err)
	}
	for resp.StatusCode() == http.StatusAccepted {
		statusURL := gjson.GetBytes(resp.Body(), "statementStatusUrl").String()
		if statusURL == "" {
			return nil, fmt.Errorf("Snowflake 返回 202 但没有 statementStatusUrl")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.poll):
		}
		resp, err = c.request(ctx).Get(c.endpoint + statusURL)
		if err != nil {
			return nil, fmt.Errorf("查询 Snowflake 语句状态failed: %w", err)
		}
	}
	if resp.StatusCode() != http.StatusOK {
		msg := gjson.GetBytes(resp.Body(), "message").String()
		if msg == "" {
			msg = resp.String()
		}
		return nil, fmt.Errorf("Snowflake 返回错误 (%d): %s", resp.StatusCode(), msg)
	}
	return parseResultSet(resp.Body()), nil
}

// parseResultSet resultSetMetaData.rowType 为列，data 为字符串二维数组
func parseResultSet(body []byte) *response.Table {
	t := &response.Table{Columns: []string{}, Rows: [][]string{}}
	gjson.GetBytes(body, "resultSetMetaData.rowType.#.name").ForEach(func(_, v gjson.Result) bool {
		t.Columns = append(t.Columns, v.String())
		return true
	})
	gjson.GetBytes(body, "data").ForEach(func(_, row gjson.Result) bool {
		cells := make([]string, 0, len(t.Columns))
		row.ForEach(func(_, cell gjson.Result) bool {
			cells = append(cells, cell.String())
			return true
		})
		t.Rows = append(t.Rows, cells)
		return true
	})
	return t
}

// Close 无需释放资源
func (c *SnowflakeClient) Close() error {
	return nil
}
