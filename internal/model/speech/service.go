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

package speech

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"docunexus/internal/storage/object"
	"docunexus/pkg/errors"
	"docunexus/pkg/log"
	"docunexus/pkg/utils"
)

// DefaultContainer 上传音频的默认容器
const DefaultContainer = "audio-files"

// Result 合成结果；上传时 URL 非空
type Result struct {
	Audio []byte `json:"-"`
	Path  string `json:"path,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Service 合成并可选上传到对象存储
type Service struct {
	synth  Synthesizer
	store  object.Store
	logger *log.Logger
	now    func() time.Time
}

// NewService store 为 nil 时不支持上传
func NewService(synth Synthesizer, store object.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{synth: synth, store: store, logger: logger, now: time.Now}
}

// Speak 合成 text；upload 为 true 时写入 container 并返回对象地址
func (s *Service) Speak(ctx context.Context, text string, opts Options, upload bool, container string) (Result, error) {
	if s == nil || s.synth == nil {
		return Result{}, errors.Wrap(errors.ErrNotConfigured, "speech service")
	}
	s.logger.DebugContext(ctx, "text to speech", "voice", opts.withDefaults().Voice, "text", utils.Truncate(text, 50))
	audio, err := s.synth.TextToSpeech(ctx, text, opts)
	if err != nil {
		s.logger.ErrorContext(ctx, "text to speech failed", "error", err)
		return Result{}, err
	}
	res := Result{Audio: audio}
	if !upload {
		return res, nil
	}
	if s.store == nil {
		return res, errors.Wrap(errors.ErrNotConfigured, "object store")
	}
	path := object.Join(utils.CoalesceString(container, DefaultContainer), fmt.Sprintf("tts-%d.wav", s.now().UnixNano()))
	if err := s.store.Put(ctx, path, bytes.NewReader(audio), int64(len(audio)), map[string]string{"source": "tts"}); err != nil {
		s.logger.ErrorContext(ctx, "upload audio failed", "path", path, "error", err)
		return res, err
	}
	res.Path = path
	res.URL = s.store.URL(path)
	s.logger.InfoContext(ctx, "audio uploaded", "url", res.URL)
	return res, nil
}
