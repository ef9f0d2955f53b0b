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
	"context"
	"log/slog"
	"unicode/utf8"

	dnerrors "docunexus/pkg/errors"
	"docunexus/pkg/utils"
)

// ParseFunc 按扩展名注册的解析函数
type ParseFunc func(ctx context.Context, name string, data []byte) (string, error)

// Options 解析器依赖；FormRecognizer 与 OCR 均可为空
type Options struct {
	FormRecognizer *FormRecognizer
	OCR            OCR
	// OCRLanguages tesseract 语言，如 "eng"
	OCRLanguages []string
}

// DocumentParser 按文件扩展名分派的文档解析器
type DocumentParser struct {
	name    string
	parsers map[string]ParseFunc
	fr      *FormRecognizer
	ocr     OCR
	langs   []string
}

// NewDocumentParser 创建文档解析器并注册内置解析函数
func NewDocumentParser(opts Options) *DocumentParser {
	p := &DocumentParser{
		name:    "document_parser",
		parsers: make(map[string]ParseFunc),
		fr:      opts.FormRecognizer,
		ocr:     opts.OCR,
		langs:   opts.OCRLanguages,
	}
	p.registerParsers()
	return p
}

// Name 返回组件名称
func (p *DocumentParser) Name() string {
	return p.name
}

func (p *DocumentParser) registerParsers() {
	p.parsers["pdf"] = p.parsePDF
	p.parsers["jpg"] = p.parseImage
	p.parsers["jpeg"] = p.parseImage
	p.parsers["png"] = p.parseImage
	p.parsers["txt"] = parseText
	p.parsers["md"] = parseText
}

// Supports 文件名的扩展名是否有解析函数
func (p *DocumentParser) Supports(name string) bool {
	_, ok := p.parsers[utils.Ext(name)]
	return ok
}

// Parse 提取文件正文；docx 及未注册的扩展名返回 ErrUnsupported
func (p *DocumentParser) Parse(ctx context.Context, name string, data []byte) (string, error) {
	ext := utils.Ext(name)
	fn, ok := p.parsers[ext]
	if !ok {
		slog.Warn("unsupported document format", "file", name, "ext", ext)
		return "", dnerrors.Wrapf(dnerrors.ErrUnsupported, "document format %q", ext)
	}
	return fn(ctx, name, data)
}

// parsePDF 先用本地文本层；无文本层时若配置了 Form Recognizer 则退回远端识别
func (p *DocumentParser) parsePDF(ctx context.Context, name string, data []byte) (string, error) {
	text, err := ExtractPDFText(data)
	if err == nil && text != "" {
		return text, nil
	}
	if p.fr != nil {
		if err != nil {
			slog.Warn("local pdf extraction failed, falling back to form recognizer", "file", name, "error", err)
		}
		out, frErr := p.fr.Analyze(ctx, data, "application/pdf")
		if frErr != nil {
			return "", newParseError("form_recognizer", name, frErr)
		}
		return out, nil
	}
	if err != nil {
		return "", newParseError("pdf", name, err)
	}
	return "", newParseError("pdf", name, ErrEmptyDocument)
}

// parseImage Form Recognizer prebuilt-read；未配置时走本地 OCR
func (p *DocumentParser) parseImage(ctx context.Context, name string, data []byte) (string, error) {
	if p.fr != nil {
		out, err := p.fr.Analyze(ctx, data, imageContentType(name))
		if err != nil {
			return "", newParseError("form_recognizer", name, err)
		}
		return out, nil
	}
	if p.ocr != nil {
		out, err := p.ocr.Recognize(ctx, data, p.langs...)
		if err != nil {
			return "", newParseError("ocr", name, err)
		}
		return out, nil
	}
	return "", newParseError("ocr", name, dnerrors.Wrap(dnerrors.ErrNotConfigured, "image text recognition"))
}

func parseText(ctx context.Context, name string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", newParseError("text", name, dnerrors.Wrap(dnerrors.ErrInvalidArg, "not valid UTF-8"))
	}
	return string(data), nil
}

func imageContentType(name string) string {
	if utils.Ext(name) == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

// ContentType 按扩展名推断 MIME 类型，用于 Form Recognizer 与对象存储元数据
func ContentType(name string) string {
	switch utils.Ext(name) {
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "txt":
		return "text/plain"
	case "md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}
