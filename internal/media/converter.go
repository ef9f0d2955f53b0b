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

package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"docunexus/internal/storage/object"
	"docunexus/pkg/config"
	"docunexus/pkg/errors"
	"docunexus/pkg/log"
	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
	"docunexus/pkg/utils"
)

// Media Services 默认值
const (
	DefaultManagementEndpoint = "https://management.azure.com"
	DefaultMediaAPIVersion    = "2022-07-01"
	DefaultJobPollInterval    = 10 * time.Second
)

// 作业终态
const (
	JobStateFinished = "Finished"
	JobStateError    = "Error"
	JobStateCanceled = "Canceled"
)

// IsTerminal 是否为终态
func IsTerminal(state string) bool {
	return state == JobStateFinished || state == JobStateError || state == JobStateCanceled
}

// Converter Azure Media Services ARM REST 客户端
type Converter struct {
	base       string
	apiVersion string
	token      string
	store      object.Store
	poll       time.Duration
	logger     *log.Logger
	client     *resty.Client
}

// NewConverter token 为 ARM Bearer 令牌；poll<=0 时用 10s
func NewConverter(cfg config.MediaConfig, token string, store object.Store, poll time.Duration, logger *log.Logger) (*Converter, error) {
	if cfg.Subscription == "" || cfg.ResourceGroup == "" || cfg.Account == "" {
		return nil, errors.Wrap(errors.ErrNotConfigured, "media services subscription, resource group and account")
	}
	if token == "" {
		return nil, errors.Wrap(errors.ErrMissingSecret, "AZURE_MEDIA_TOKEN")
	}
	if poll <= 0 {
		poll = DefaultJobPollInterval
	}
	if logger == nil {
		logger = log.Nop()
	}
	endpoint := strings.TrimRight(utils.CoalesceString(cfg.Endpoint, DefaultManagementEndpoint), "/")
	client := resty.New()
	client.SetTimeout(60 * time.Second)
	return &Converter{
		base: fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Media/mediaServices/%s",
			endpoint, url.PathEscape(cfg.Subscription), url.PathEscape(cfg.ResourceGroup), url.PathEscape(cfg.Account)),
		apiVersion: utils.CoalesceString(cfg.APIVersion, DefaultMediaAPIVersion),
		token:      token,
		store:      store,
		poll:       poll,
		logger:     logger,
		client:     client,
	}, nil
}

func (c *Converter) do(ctx context.Context, op, method, path string, body interface{}) (data []byte, err error) {
	ctx, span := tracing.StartVendorSpan(ctx, "media", op)
	defer func() {
		metrics.ObserveVendor("media", err)
		tracing.End(span, err)
	}()
	req := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetQueryParam("api-version", c.apiVersion)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, c.base+path)
	if err != nil {
		return nil, fmt.Errorf("调用 Media Services API failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		msg := gjson.GetBytes(resp.Body(), "error.message").String()
		if msg == "" {
			msg = resp.String()
		}
		return nil, fmt.Errorf("Media Services %s 返回错误 (%d): %s", op, resp.StatusCode(), msg)
	}
	return resp.Body(), nil
}

// CreateAsset 创建或更新资产
func (c *Converter) CreateAsset(ctx context.Context, name string) error {
	c.logger.InfoContext(ctx, "creating asset", "asset", name)
	_, err := c.do(ctx, "create_asset", http.MethodPut, "/assets/"+url.PathEscape(name), map[string]interface{}{"properties": map[string]string{}})
	return err
}

// AssetContainer 资产对应的存储容器
func AssetContainer(asset string) string {
	return "asset-" + strings.ToLower(asset)
}

// UploadToAsset 写入资产容器，返回对象路径
func (c *Converter) UploadToAsset(ctx context.Context, asset, name string, data []byte) (string, error) {
	if c.store == nil {
		return "", errors.Wrap(errors.ErrNotConfigured, "object store")
	}
	p := object.Join(AssetContainer(asset), name)
	c.logger.InfoContext(ctx, "uploading file to asset", "asset", asset, "path", p)
	if err := c.store.Put(ctx, p, bytes.NewReader(data), int64(len(data)), nil); err != nil {
		return "", err
	}
	return p, nil
}

// CreateTransform 标准编码器预设，输出 format（如 Mp4、Mov 之外的容器按 Media Services 命名）
func (c *Converter) CreateTransform(ctx context.Context, name, format string) error {
	if format == "" {
		format = "Mp4"
	}
	c.logger.InfoContext(ctx, "creating transform", "transform", name, "format", format)
	body := map[string]interface{}{
		"properties": map[string]interface{}{
			"outputs": []map[string]interface{}{{
				"preset": map[string]interface{}{
					"@odata.type": "#Microsoft.Media.StandardEncoderPreset",
					"codecs":      []interface{}{},
					"formats": []map[string]string{{
						"@odata.type":     "#Microsoft.Media." + formatType(format) + "Format",
						"filenamePattern": "{Basename}_{Label}{Extension}",
					}},
				},
				"onError":          "StopProcessingJob",
				"relativePriority": "Normal",
			}},
		},
	}
	_, err := c.do(ctx, "create_transform", http.MethodPut, "/transforms/"+url.PathEscape(name), body)
	return err
}

// formatType "MP4" / "mp4" → "Mp4"
func formatType(format string) string {
	f := strings.ToLower(format)
	return strings.ToUpper(f[:1]) + f[1:]
}

// SubmitJob 以 input 资产为输入、output 资产为输出提交作业
func (c *Converter) SubmitJob(ctx context.Context, transform, input, output, job string) error {
	c.logger.InfoContext(ctx, "submitting media job", "job", job, "transform", transform)
	body := map[string]interface{}{
		"properties": map[string]interface{}{
			"input": map[string]string{
				"@odata.type": "#Microsoft.Media.JobInputAsset",
				"assetName":   input,
			},
			"outputs": []map[string]string{{
				"@odata.type": "#Microsoft.Media.JobOutputAsset",
				"assetName":   output,
			}},
		},
	}
	_, err := c.do(ctx, "submit_job", http.MethodPut, "/transforms/"+url.PathEscape(transform)+"/jobs/"+url.PathEscape(job), body)
	return err
}

// JobState 查询作业状态
func (c *Converter) JobState(ctx context.Context, transform, job string) (string, error) {
	body, err := c.do(ctx, "get_job", http.MethodGet, "/transforms/"+url.PathEscape(transform)+"/jobs/"+url.PathEscape(job), nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "properties.state").String(), nil
}

// WaitForJob 轮询直到 Finished、Error 或 Canceled；ctx 取消时返回 ctx.Err()
func (c *Converter) WaitForJob(ctx context.Context, transform, job string) (string, error) {
	c.logger.InfoContext(ctx, "waiting for job completion", "job", job)
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		state, err := c.JobState(ctx, transform, job)
		if err != nil {
			return "", err
		}
		if IsTerminal(state) {
			c.logger.InfoContext(ctx, "media job completed", "job", job, "state", state)
			return state, nil
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
		}
	}
}
