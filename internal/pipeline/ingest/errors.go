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

package ingest

import (
	"errors"
	"fmt"
)

// 解析相关错误
var (
	ErrEmptyDocument   = errors.New("文档没有可提取的文本")
	ErrAnalysisFailed  = errors.New("文档分析失败")
	ErrAnalysisTimeout = errors.New("文档分析超时")
)

// ParseError 某个文件在某个解析阶段的错误
type ParseError struct {
	Stage string // pdf | form_recognizer | ocr | text
	File  string
	Err   error
}

// Error 实现 error 接口
func (e *ParseError) Error() string {
	return fmt.Sprintf("[ingest] %s 解析 %q 失败: %v", e.Stage, e.File, e.Err)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(stage, file string, err error) *ParseError {
	return &ParseError{Stage: stage, File: file, Err: err}
}

// IsParseError 检查是否为解析错误
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
