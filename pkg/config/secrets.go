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

package config

import (
	"context"
	"os"
	"sort"
	"strings"

	"docunexus/pkg/errors"
	"docunexus/pkg/secrets"
)

// 必需与可选的 secret 名称
var (
	RequiredSecrets = []string{"PRIMARY_API_KEY", "AZURE_AI_API_KEY"}
	OptionalSecrets = []string{
		"DOCUSIGN_API_KEY", "DOCUSIGN_ACCOUNT_ID",
		"AZURE_SPEECH_KEY", "AZURE_VISION_KEY", "AZURE_FORM_RECOGNIZER_KEY",
		"AZURE_STORAGE_SAS", "AZURE_BATCH_KEY", "AZURE_MEDIA_TOKEN",
		"SNOWFLAKE_USER", "SNOWFLAKE_PASSWORD", "SNOWFLAKE_ACCOUNT",
		"SNOWFLAKE_WAREHOUSE", "SNOWFLAKE_DATABASE", "SNOWFLAKE_SCHEMA", "SNOWFLAKE_TOKEN",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "UNIPDF_LICENSE_KEY",
	}
)

// Secrets 启动时加载一次的扁平 secret 表，加载后只读
type Secrets struct {
	values map[string]string
}

// NewSecrets 以给定键值构造（拷贝），测试常用
func NewSecrets(values map[string]string) Secrets {
	m := make(map[string]string, len(values))
	for k, v := range values {
		m[k] = v
	}
	return Secrets{values: m}
}

// Get 返回 secret 值，不存在时为空串
func (s Secrets) Get(name string) string {
	return s.values[name]
}

// Lookup 返回值及是否存在
func (s Secrets) Lookup(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Names 已加载的 secret 名称（排序），用于启动日志，不输出值
func (s Secrets) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// LoadSecrets 依次从 store 与进程环境读取 required/optional；缺少 required 时返回 ErrMissingSecret
func LoadSecrets(ctx context.Context, store secrets.Store, required, optional []string) (Secrets, error) {
	values := make(map[string]string, len(required)+len(optional))
	var missing []string
	for _, name := range required {
		v := lookupSecret(ctx, store, name)
		if v == "" {
			missing = append(missing, name)
			continue
		}
		values[name] = v
	}
	if len(missing) > 0 {
		return Secrets{}, errors.Wrap(errors.ErrMissingSecret, strings.Join(missing, ", "))
	}
	for _, name := range optional {
		if v := lookupSecret(ctx, store, name); v != "" {
			values[name] = v
		}
	}
	return Secrets{values: values}, nil
}

func lookupSecret(ctx context.Context, store secrets.Store, name string) string {
	if store != nil {
		if v, err := store.Get(ctx, name); err == nil && v != "" {
			return v
		}
	}
	return os.Getenv(name)
}
