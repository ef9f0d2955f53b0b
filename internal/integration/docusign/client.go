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

// Package docusign 通过 DocuSign eSignature REST 发送签名信封
package docusign

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"docunexus/internal/storage/object"
	"docunexus/pkg/errors"
	"docunexus/pkg/log"
	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

// DefaultBaseURL DocuSign 演示环境
const DefaultBaseURL = "https://demo.docusign.net/restapi"

// EmailSubject 信封邮件主题
const EmailSubject = "Please sign this document"

// StatusError 调用失败时 Result.Status 的取值
const StatusError = "error"

// EnvelopeRequest 发送信封参数
type EnvelopeRequest struct {
	DocumentName string
	Document     []byte
	SignerEmail  string
	SignerName   string
}

// Result 信封创建结果
type Result struct {
	Status     string `json:"status"`
	EnvelopeID string `json:"envelopeId,omitempty"`
	URI        string `json:"uri,omitempty"`
	Message    string `json:"message,omitempty"`
	// DocumentURL 待签文档在对象存储中的地址
	DocumentURL string `json:"document_url,omitempty"`
}

// Client DocuSign 客户端
type Client struct {
	baseURL   string
	accountID string
	token     string
	store     object.Store
	logger    *log.Logger
	client    *resty.Client
}

// NewClient token 为 Bearer 访问令牌；store 可为 nil（不支持 UploadDocument）
func NewClient(baseURL, accountID, token string, store object.Store, logger *log.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.Wrap(errors.ErrMissingSecret, "DOCUSIGN_API_KEY")
	}
	if accountID == "" {
		return nil, errors.Wrap(errors.ErrMissingSecret, "DOCUSIGN_ACCOUNT_ID")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = log.Nop()
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		token:     token,
		store:     store,
		logger:    logger,
		client:    client,
	}, nil
}

type signHereTab struct {
	DocumentID string `json:"documentId"`
	PageNumber string `json:"pageNumber"`
	XPosition  string `json:"xPosition"`
	YPosition  string `json:"yPosition"`
}

type signer struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	RecipientID string `json:"recipientId"`
	Tabs        struct {
		SignHereTabs []signHereTab `json:"signHereTabs"`
	} `json:"tabs"`
}

type envelopeDocument struct {
	DocumentID     string `json:"documentId"`
	Name           string `json:"name"`
	FileExtension  string `json:"fileExtension"`
	DocumentBase64 string `json:"documentBase64"`
}

// EnvelopeDefinition 信封请求体
type EnvelopeDefinition struct {
	EmailSubject string             `json:"emailSubject"`
	Documents    []envelopeDocument `json:"documents"`
	Recipients   struct {
		Signers []signer `json:"signers"`
	} `json:"recipients"`
	Status string `json:"status"`
}

// NewEnvelopeDefinition 单文档、单签署人、第 1 页 (150,200) 处签名
func NewEnvelopeDefinition(req EnvelopeRequest) EnvelopeDefinition {
	var def EnvelopeDefinition
	def.EmailSubject = EmailSubject
	def.Documents = []envelopeDocument{{
		DocumentID:     "1",
		Name:           path.Base(req.DocumentName),
		FileExtension:  "pdf",
		DocumentBase64: base64.StdEncoding.EncodeToString(req.Document),
	}}
	s := signer{Email: req.SignerEmail, Name: req.SignerName, RecipientID: "1"}
	s.Tabs.SignHereTabs = []signHereTab{{DocumentID: "1", PageNumber: "1", XPosition: "150", YPosition: "200"}}
	def.Recipients.Signers = []signer{s}
	def.Status = "sent"
	return def
}

// SendEnvelope 创建并发送信封；DocuSign 返回非 201 时 Result.Status 为 "error"，Message 为响应体
func (c *Client) SendEnvelope(ctx context.Context, req EnvelopeRequest) (res Result, err error) {
	if req.SignerEmail == "" || req.SignerName == "" {
		return Result{}, errors.Wrap(errors.ErrInvalidArg, "signer email and name are required")
	}
	if len(req.Document) == 0 {
		return Result{}, errors.Wrap(errors.ErrInvalidArg, "document is empty")
	}
	ctx, span := tracing.StartVendorSpan(ctx, "docusign", "create_envelope")
	defer func() {
		metrics.ObserveVendor("docusign", err)
		tracing.End(span, err)
	}()

	c.logger.InfoContext(ctx, "sending document to DocuSign", "recipient", req.SignerEmail)
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetHeader("Content-Type", "application/json").
		SetBody(NewEnvelopeDefinition(req)).
		Post(fmt.Sprintf("%s/v2.1/accounts/%s/envelopes", c.baseURL, c.accountID))
	if err != nil {
		c.logger.ErrorContext(ctx, "error during DocuSign API call", "error", err)
		return Result{Status: StatusError, Message: err.Error()}, fmt.Errorf("调用 DocuSign API failed: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		c.logger.ErrorContext(ctx, "error sending to DocuSign", "status", resp.StatusCode(), "body", resp.String())
		return Result{Status: StatusError, Message: resp.String()},
			fmt.Errorf("DocuSign 返回错误 (%d): %s", resp.StatusCode(), resp.String())
	}
	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return Result{Status: StatusError, Message: resp.String()}, fmt.Errorf("解析 DocuSign 响应failed")
	}
	j := gjson.ParseBytes(body)
	res = Result{
		Status:     j.Get("status").String(),
		EnvelopeID: j.Get("envelopeId").String(),
		URI:        j.Get("uri").String(),
	}
	c.logger.InfoContext(ctx, "document sent to DocuSign", "envelope_id", res.EnvelopeID)
	return res, nil
}

// UploadDocument 将待签文档写入对象存储并返回地址
func (c *Client) UploadDocument(ctx context.Context, container, name string, data []byte) (string, error) {
	if c.store == nil {
		return "", errors.Wrap(errors.ErrNotConfigured, "object store")
	}
	p := object.Join(container, path.Base(name))
	if err := c.store.Put(ctx, p, bytes.NewReader(data), int64(len(data)), map[string]string{"source": "docusign"}); err != nil {
		c.logger.ErrorContext(ctx, "error uploading document", "path", p, "error", err)
		return "", err
	}
	return c.store.URL(p), nil
}

// SignDocument 先把文档存入对象存储（已配置时），再发送签署信封
func (c *Client) SignDocument(ctx context.Context, container string, req EnvelopeRequest) (Result, error) {
	var url string
	if c.store != nil {
		u, err := c.UploadDocument(ctx, container, req.DocumentName, req.Document)
		if err != nil {
			return Result{Status: StatusError, Message: err.Error()}, fmt.Errorf("存储待签文档failed: %w", err)
		}
		url = u
	}
	res, err := c.SendEnvelope(ctx, req)
	res.DocumentURL = url
	return res, err
}
