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

package object

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"docunexus/pkg/errors"
	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

const (
	azureBlobAPIVersion = "2021-08-06"
	azureMetaPrefix     = "X-Ms-Meta-"
)

// AzureBlobStore Azure Blob Storage REST（SAS token 鉴权）
type AzureBlobStore struct {
	endpoint         string
	sas              string
	defaultContainer string
	client           *resty.Client
}

var _ Store = (*AzureBlobStore)(nil)

// NewAzureBlobStore endpoint 形如 https://{account}.blob.core.windows.net；sas 不带前导 "?"
func NewAzureBlobStore(endpoint, sas, defaultContainer string) (*AzureBlobStore, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("azure blob endpoint is empty")
	}
	if sas == "" {
		return nil, errors.Wrap(errors.ErrMissingSecret, "azure blob SAS token")
	}
	client := resty.New()
	client.SetTimeout(2 * time.Minute)
	client.SetHeader("x-ms-version", azureBlobAPIVersion)
	return &AzureBlobStore{
		endpoint:         strings.TrimRight(endpoint, "/"),
		sas:              strings.TrimPrefix(sas, "?"),
		defaultContainer: defaultContainer,
		client:           client,
	}, nil
}

func (s *AzureBlobStore) blobURL(path string) string {
	container, name := splitPath(path, s.defaultContainer)
	return s.endpoint + "/" + url.PathEscape(container) + "/" + escapeBlobName(name)
}

func escapeBlobName(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (s *AzureBlobStore) request(ctx context.Context) *resty.Request {
	return s.client.R().SetContext(ctx).SetQueryString(s.sas)
}

// Put Put Blob（BlockBlob）
func (s *AzureBlobStore) Put(ctx context.Context, path string, data io.Reader, size int64, metadata map[string]string) (err error) {
	ctx, span := tracing.StartVendorSpan(ctx, "blob", "put")
	defer func() {
		metrics.ObserveVendor("blob", err)
		tracing.End(span, err)
	}()

	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read object data: %w", err)
	}
	req := s.request(ctx).
		SetHeader("x-ms-blob-type", "BlockBlob").
		SetHeader("Content-Type", http.DetectContentType(body)).
		SetBody(bytes.NewReader(body))
	for k, v := range metadata {
		req.SetHeader("x-ms-meta-"+k, v)
	}
	resp, err := req.Put(s.blobURL(path))
	if err != nil {
		return fmt.Errorf("上传 blob failed: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("上传 blob 返回错误 (%d): %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Get Get Blob
func (s *AzureBlobStore) Get(ctx context.Context, path string) (rc io.ReadCloser, err error) {
	ctx, span := tracing.StartVendorSpan(ctx, "blob", "get")
	defer func() {
		metrics.ObserveVendor("blob", err)
		tracing.End(span, err)
	}()

	resp, err := s.request(ctx).Get(s.blobURL(path))
	if err != nil {
		return nil, fmt.Errorf("下载 blob failed: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return io.NopCloser(bytes.NewReader(resp.Body())), nil
	case http.StatusNotFound:
		return nil, errors.Wrapf(errors.ErrNotFound, "blob %s", path)
	default:
		return nil, fmt.Errorf("下载 blob 返回错误 (%d): %s", resp.StatusCode(), resp.String())
	}
}

// Delete Delete Blob
func (s *AzureBlobStore) Delete(ctx context.Context, path string) (err error) {
	ctx, span := tracing.StartVendorSpan(ctx, "blob", "delete")
	defer func() {
		metrics.ObserveVendor("blob", err)
		tracing.End(span, err)
	}()

	resp, err := s.request(ctx).Delete(s.blobURL(path))
	if err != nil {
		return fmt.Errorf("删除 blob failed: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusAccepted, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return errors.Wrapf(errors.ErrNotFound, "blob %s", path)
	default:
		return fmt.Errorf("删除 blob 返回错误 (%d): %s", resp.StatusCode(), resp.String())
	}
}

type listBlobsResult struct {
	Blobs []struct {
		Name       string `xml:"Name"`
		Properties struct {
			ContentLength int64  `xml:"Content-Length"`
			CreationTime  string `xml:"Creation-Time"`
		} `xml:"Properties"`
	} `xml:"Blobs>Blob"`
	NextMarker string `xml:"NextMarker"`
}

// List List Blobs；prefix 的第一段为容器名
func (s *AzureBlobStore) List(ctx context.Context, prefix string) (out []*ObjectInfo, err error) {
	ctx, span := tracing.StartVendorSpan(ctx, "blob", "list")
	defer func() {
		metrics.ObserveVendor("blob", err)
		tracing.End(span, err)
	}()

	container, namePrefix := splitPath(prefix, s.defaultContainer)
	marker := ""
	for {
		req := s.request(ctx).
			SetQueryParam("restype", "container").
			SetQueryParam("comp", "list").
			SetQueryParam("include", "metadata")
		if namePrefix != "" {
			req.SetQueryParam("prefix", namePrefix)
		}
		if marker != "" {
			req.SetQueryParam("marker", marker)
		}
		resp, err := req.Get(s.endpoint + "/" + url.PathEscape(container))
		if err != nil {
			return nil, fmt.Errorf("列出 blob failed: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("列出 blob 返回错误 (%d): %s", resp.StatusCode(), resp.String())
		}
		var result listBlobsResult
		if err := xml.Unmarshal(resp.Body(), &result); err != nil {
			return nil, fmt.Errorf("解析 blob 列表failed: %w", err)
		}
		for _, b := range result.Blobs {
			info := &ObjectInfo{Path: Join(container, b.Name), Size: b.Properties.ContentLength}
			if t, err := time.Parse(time.RFC1123, b.Properties.CreationTime); err == nil {
				info.CreatedAt = t.Unix()
			}
			out = append(out, info)
		}
		if result.NextMarker == "" {
			break
		}
		marker = result.NextMarker
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *AzureBlobStore) head(ctx context.Context, path string) (*resty.Response, error) {
	resp, err := s.request(ctx).Head(s.blobURL(path))
	if err != nil {
		return nil, fmt.Errorf("查询 blob 属性failed: %w", err)
	}
	return resp, nil
}

// Exists HEAD 200 为存在，404 为不存在
func (s *AzureBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := s.head(ctx, path)
	if err != nil {
		return false, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("查询 blob 属性返回错误 (%d)", resp.StatusCode())
	}
}

// GetMetadata 读取 x-ms-meta-* 头
func (s *AzureBlobStore) GetMetadata(ctx context.Context, path string) (map[string]string, error) {
	resp, err := s.head(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.Wrapf(errors.ErrNotFound, "blob %s", path)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("查询 blob 属性返回错误 (%d)", resp.StatusCode())
	}
	md := map[string]string{}
	for k, v := range resp.Header() {
		if strings.HasPrefix(k, azureMetaPrefix) && len(v) > 0 {
			md[strings.ToLower(strings.TrimPrefix(k, azureMetaPrefix))] = v[0]
		}
	}
	return md, nil
}

// URL blob 地址（不含 SAS）
func (s *AzureBlobStore) URL(path string) string {
	return s.blobURL(path)
}

// Close 无需释放资源
func (s *AzureBlobStore) Close() error {
	return nil
}
