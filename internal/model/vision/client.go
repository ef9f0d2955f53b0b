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

// Package vision 摄像头与屏幕共享画面的分析与标注（Azure Computer Vision）
package vision

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

// 缺省文案
const (
	NoDescription = "No description available"
	NoTags        = "No tags available"
)

// Analysis 单帧分析结果
type Analysis struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// TagsText 逗号拼接的标签；无标签时为 NoTags
func (a Analysis) TagsText() string {
	if len(a.Tags) == 0 {
		return NoTags
	}
	return strings.Join(a.Tags, ", ")
}

// Client 图像分析接口
type Client interface {
	Analyze(ctx context.Context, image []byte) (Analysis, error)
	Name() string
}

// AzureClient Azure Computer Vision analyze（Description + Tags）
type AzureClient struct {
	endpoint string
	client   *resty.Client
}

var _ Client = (*AzureClient)(nil)

// NewAzureClient endpoint 形如 https://{resource}.cognitiveservices.azure.com
func NewAzureClient(endpoint, apiKey string) (*AzureClient, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("computer vision endpoint 与 key 不能为空")
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Ocp-Apim-Subscription-Key", apiKey)
	return &AzureClient{endpoint: strings.TrimRight(endpoint, "/"), client: client}, nil
}

// Analyze 分析一帧图像
func (c *AzureClient) Analyze(ctx context.Context, image []byte) (a Analysis, err error) {
	ctx, span := tracing.StartVendorSpan(ctx, "computer_vision", "analyze")
	defer func() {
		metrics.ObserveVendor("computer_vision", err)
		tracing.End(span, err)
	}()

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetQueryParam("visualFeatures", "Description,Tags").
		SetBody(image).
		Post(c.endpoint + "/vision/v3.2/analyze")
	if err != nil {
		return Analysis{}, fmt.Errorf("调用 Computer Vision failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		msg := gjson.GetBytes(resp.Body(), "error.message").String()
		if msg == "" {
			msg = resp.String()
		}
		return Analysis{}, fmt.Errorf("Computer Vision 返回错误 (%d): %s", resp.StatusCode(), msg)
	}
	return parseAnalysis(resp.Body()), nil
}

// Name 返回实现名称
func (c *AzureClient) Name() string {
	return "azure_computer_vision"
}

func parseAnalysis(body []byte) Analysis {
	a := Analysis{Description: NoDescription}
	if caption := gjson.GetBytes(body, "description.captions.0.text"); caption.Exists() && caption.String() != "" {
		a.Description = caption.String()
	}
	for _, tag := range gjson.GetBytes(body, "tags.#.name").Array() {
		a.Tags = append(a.Tags, tag.String())
	}
	return a
}
