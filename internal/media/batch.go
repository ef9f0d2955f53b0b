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

// Package media 批量媒体处理（Azure Batch）、转码（Azure Media Services）与 MP3 标签
package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"docunexus/internal/storage/object"
	"docunexus/pkg/errors"
	"docunexus/pkg/log"
	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

// BatchAPIVersion Azure Batch 数据面 API 版本
const BatchAPIVersion = "2023-05-01.17.0"

// PoolSpec 计算池参数
type PoolSpec struct {
	ID     string `json:"id"`
	VMSize string `json:"vm_size"`
	Nodes  int    `json:"nodes"`
}

func (p PoolSpec) withDefaults() PoolSpec {
	if p.VMSize == "" {
		p.VMSize = "STANDARD_D2_V2"
	}
	if p.Nodes <= 0 {
		p.Nodes = 1
	}
	return p
}

// BatchClient Azure Batch REST 客户端；token 为 AAD Bearer 令牌
type BatchClient struct {
	endpoint string
	token    string
	store    object.Store
	logger   *log.Logger
	client   *resty.Client
}

// NewBatchClient endpoint 形如 https://{account}.{region}.batch.azure.com
func NewBatchClient(endpoint, token string, store object.Store, logger *log.Logger) (*BatchClient, error) {
	if endpoint == "" {
		return nil, errors.Wrap(errors.ErrNotConfigured, "batch endpoint")
	}
	if token == "" {
		return nil, errors.Wrap(errors.ErrMissingSecret, "AZURE_BATCH_KEY")
	}
	if logger == nil {
		logger = log.Nop()
	}
	client := resty.New()
	client.SetTimeout(60 * time.Second)
	return &BatchClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		store:    store,
		logger:   logger,
		client:   client,
	}, nil
}

// UploadFiles 上传目录下的普通文件（不递归），返回对象地址
func (b *BatchClient) UploadFiles(ctx context.Context, container, dir string) ([]string, error) {
	if b.store == nil {
		return nil, errors.Wrap(errors.ErrNotConfigured, "object store")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取目录failed: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	b.logger.InfoContext(ctx, "uploading files to object store", "dir", dir, "container", container)
	var urls []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return urls, err
		}
		p := object.Join(container, e.Name())
		if err := b.store.Put(ctx, p, bytes.NewReader(data), int64(len(data)), nil); err != nil {
			b.logger.ErrorContext(ctx, "error uploading file", "file", e.Name(), "error", err)
			return urls, err
		}
		urls = append(urls, b.store.URL(p))
	}
	return urls, nil
}

func (b *BatchClient) post(ctx context.Context, op, path string, body interface{}) (err error) {
	ctx, span := tracing.StartVendorSpan(ctx, "batch", op)
	defer func() {
		metrics.ObserveVendor("batch", err)
		tracing.End(span, err)
	}()
	resp, err := b.client.R().
		SetContext(ctx).
		SetAuthToken(b.token).
		SetHeader("Content-Type", "application/json; odata=minimalmetadata").
		SetQueryParam("api-version", BatchAPIVersion).
		SetBody(body).
		Post(b.endpoint + path)
	if err != nil {
		return fmt.Errorf("调用 Batch API failed: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("Batch %s 返回错误 (%d): %s", op, resp.StatusCode(), resp.String())
	}
	return nil
}

// CreatePool 创建 Ubuntu 18.04 计算池
func (b *BatchClient) CreatePool(ctx context.Context, spec PoolSpec) error {
	spec = spec.withDefaults()
	if spec.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "pool id is empty")
	}
	b.logger.InfoContext(ctx, "creating batch pool", "pool", spec.ID, "vm_size", spec.VMSize, "nodes", spec.Nodes)
	body := map[string]interface{}{
		"id":     spec.ID,
		"vmSize": spec.VMSize,
		"virtualMachineConfiguration": map[string]interface{}{
			"imageReference": map[string]string{
				"publisher": "Canonical",
				"offer":     "UbuntuServer",
				"sku":       "18.04-LTS",
			},
			"nodeAgentSKUId": "batch.node.ubuntu 18.04",
		},
		"targetDedicatedNodes": spec.Nodes,
	}
	return b.post(ctx, "create_pool", "/pools", body)
}

// SubmitJob 创建作业并按顺序添加任务 Task0..TaskN
func (b *BatchClient) SubmitJob(ctx context.Context, poolID, jobID string, commands []string) (string, error) {
	if poolID == "" || jobID == "" {
		return "", errors.Wrap(errors.ErrInvalidArg, "pool id and job id are required")
	}
	b.logger.InfoContext(ctx, "submitting batch job", "job", jobID, "pool", poolID)
	if err := b.post(ctx, "add_job", "/jobs", map[string]interface{}{
		"id":       jobID,
		"poolInfo": map[string]string{"poolId": poolID},
	}); err != nil {
		return "", err
	}
	for i, cmd := range commands {
		if err := b.post(ctx, "add_task", "/jobs/"+jobID+"/tasks", map[string]string{
			"id":          fmt.Sprintf("Task%d", i),
			"commandLine": cmd,
		}); err != nil {
			return "", err
		}
	}
	b.logger.InfoContext(ctx, "batch job submitted", "job", jobID, "tasks", len(commands))
	return jobID, nil
}
