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

// Package response 将模型输出整理为展示用结构：拆分思考过程、JSON 转表格、错误文案
package response

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"

	"docunexus/internal/prompt"
	"docunexus/pkg/tracing"
)

// ThoughtsMarker 与 prompt 模板共用同一标记
const ThoughtsMarker = prompt.ThoughtsMarker

// SplitThoughts 去除首尾空白后按 ThoughtsMarker 切分：main 为第一个标记之前的内容，
// thoughts 只取第一、二个标记之间的一段；没有标记时 thoughts 为空
func SplitThoughts(text string) (main, thoughts string) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, ThoughtsMarker, 3)
	if len(parts) == 1 {
		return text, ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// FormatText 与 SplitThoughts 相同，额外记录 format_text_response span
func FormatText(ctx context.Context, text string) (main, thoughts string) {
	_, span := tracing.StartSpan(ctx, "format_text_response")
	defer span.End()
	main, thoughts = SplitThoughts(text)
	span.SetAttributes(
		attribute.Int("formatted_response_length", len(main)),
		attribute.Bool("thoughts_extracted", thoughts != ""),
	)
	return main, thoughts
}

// Data 数据型响应：能转成表格时 Table 非空，否则 Raw 保留原文
type Data struct {
	Table *Table `json:"table,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

// FormatData JSON 数组转为 Table（列按首次出现顺序，缺失单元格为空）；
// JSON 对象或非法 JSON 原样返回
func FormatData(ctx context.Context, body string) Data {
	_, span := tracing.StartSpan(ctx, "format_data_response")
	defer span.End()

	if !gjson.Valid(body) {
		slog.Warn("response body is not valid JSON, returning raw response")
		span.SetAttributes(attribute.Bool("json_decode_error", true))
		return Data{Raw: body}
	}
	parsed := gjson.Parse(body)
	if !parsed.IsArray() {
		span.SetAttributes(attribute.Bool("is_raw_json", true))
		return Data{Raw: body}
	}

	table := tableFromArray(parsed)
	span.SetAttributes(attribute.Int("dataframe_rows", len(table.Rows)))
	return Data{Table: table}
}

func tableFromArray(arr gjson.Result) *Table {
	t := &Table{}
	index := map[string]int{}
	var records []map[string]string

	arr.ForEach(func(_, item gjson.Result) bool {
		rec := map[string]string{}
		if item.IsObject() {
			item.ForEach(func(k, v gjson.Result) bool {
				key := k.String()
				if _, ok := index[key]; !ok {
					index[key] = len(t.Columns)
					t.Columns = append(t.Columns, key)
				}
				rec[key] = cell(v)
				return true
			})
		} else {
			if _, ok := index["value"]; !ok {
				index["value"] = len(t.Columns)
				t.Columns = append(t.Columns, "value")
			}
			rec["value"] = cell(item)
		}
		records = append(records, rec)
		return true
	})

	t.Rows = make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			row[i] = rec[col]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func cell(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.String()
	case gjson.Null:
		return ""
	default:
		return v.Raw
	}
}

// FormatError 生成展示给用户的 Markdown 错误文案
func FormatError(msg string) string {
	return fmt.Sprintf("**Error:** %s. Please check the trace data in the sidebar for details.", msg)
}
