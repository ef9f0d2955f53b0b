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

// Package speech Azure 文本转语音（REST + SSML）
package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"docunexus/pkg/errors"
	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

// 默认语言、音色与输出格式
const (
	DefaultLanguage     = "en-US"
	DefaultVoice        = "en-US-AriaNeural"
	DefaultOutputFormat = "riff-24khz-16bit-mono-pcm"
)

// Options 合成参数
type Options struct {
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.Voice == "" {
		o.Voice = DefaultVoice
	}
	return o
}

// Synthesizer 文本转语音
type Synthesizer interface {
	TextToSpeech(ctx context.Context, text string, opts Options) ([]byte, error)
}

// AzureSynthesizer Azure Speech REST 客户端
type AzureSynthesizer struct {
	endpoint string
	apiKey   string
	client   *resty.Client
}

var _ Synthesizer = (*AzureSynthesizer)(nil)

// NewAzureSynthesizer endpoint 为空时由 region 推出 https://{region}.tts.speech.microsoft.com
func NewAzureSynthesizer(region, endpoint, apiKey string) (*AzureSynthesizer, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrMissingSecret, "AZURE_SPEECH_KEY")
	}
	if endpoint == "" {
		if region == "" {
			return nil, errors.Wrap(errors.ErrNotConfigured, "speech region")
		}
		endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com", region)
	}
	client := resty.New()
	client.SetTimeout(60 * time.Second)
	return &AzureSynthesizer{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   client,
	}, nil
}

// SSML 构造单 voice 的 SSML 文档
func SSML(text string, opts Options) (string, error) {
	opts = opts.withDefaults()
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", err
	}
	var attr bytes.Buffer
	_ = xml.EscapeText(&attr, []byte(opts.Language))
	lang := attr.String()
	attr.Reset()
	_ = xml.EscapeText(&attr, []byte(opts.Voice))
	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		lang, attr.String(), escaped.String()), nil
}

// TextToSpeech 返回 WAV（RIFF）音频
func (s *AzureSynthesizer) TextToSpeech(ctx context.Context, text string, opts Options) (audio []byte, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "text is empty")
	}
	ctx, span := tracing.StartVendorSpan(ctx, "speech", "synthesize")
	defer func() {
		metrics.ObserveVendor("speech", err)
		tracing.End(span, err)
	}()

	ssml, err := SSML(text, opts)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Ocp-Apim-Subscription-Key", s.apiKey).
		SetHeader("Content-Type", "application/ssml+xml").
		SetHeader("X-Microsoft-OutputFormat", DefaultOutputFormat).
		SetHeader("User-Agent", "docunexus").
		SetBody(ssml).
		Post(s.endpoint + "/cognitiveservices/v1")
	if err != nil {
		return nil, fmt.Errorf("调用 Speech API failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("speech synthesis failed (%d): %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}
