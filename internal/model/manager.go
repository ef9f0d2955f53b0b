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

package model

import (
	"fmt"
	"sort"
	"sync"

	"docunexus/internal/model/llm"
)

// 默认生成参数
const (
	DefaultTemperature     = 0.7
	DefaultTopP            = 0.95
	DefaultMaxOutputTokens = 8192
)

// Manager 模型管理器：主模型、备选模型（如 Phi-4）与视觉模型，以及统一的生成参数。
// 另外按名称注册全部已配置的客户端，便于运行时切换与列出。
type Manager struct {
	mu        sync.RWMutex
	primary   llm.Client
	secondary llm.Client
	vision    llm.VisionClient
	options   llm.GenerateOptions
	registry  map[string]llm.Client
}

// NewManager 创建模型管理器；options 中未设置的字段取默认值
func NewManager(primary, secondary llm.Client, vision llm.VisionClient, options llm.GenerateOptions) *Manager {
	if options.Temperature == 0 {
		options.Temperature = DefaultTemperature
	}
	if options.TopP == 0 {
		options.TopP = DefaultTopP
	}
	if options.MaxTokens == 0 {
		options.MaxTokens = DefaultMaxOutputTokens
	}
	if vision == nil && primary != nil && llm.SupportsImages(primary) {
		vision, _ = primary.(llm.VisionClient)
	}
	return &Manager{
		primary:   primary,
		secondary: secondary,
		vision:    vision,
		options:   options,
		registry:  make(map[string]llm.Client),
	}
}

// Model 返回主模型；useSecondary 且备选模型已配置时返回备选模型
func (m *Manager) Model(useSecondary bool) llm.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if useSecondary && m.secondary != nil {
		return m.secondary
	}
	return m.primary
}

// ModelName 返回将被使用的模型名称，未配置时为空串
func (m *Manager) ModelName(useSecondary bool) string {
	c := m.Model(useSecondary)
	if c == nil {
		return ""
	}
	return c.Model()
}

// VisionModel 返回视觉模型，可能为 nil
func (m *Manager) VisionModel() llm.VisionClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vision
}

// Options 返回生成参数的副本
func (m *Manager) Options() llm.GenerateOptions {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opts := m.options
	if len(opts.Stop) > 0 {
		opts.Stop = append([]string(nil), opts.Stop...)
	}
	return opts
}

// Register 按名称注册客户端（名称通常为 "provider.model_key"）
func (m *Manager) Register(name string, c llm.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = c
}

// Get 按名称获取已注册客户端
func (m *Manager) Get(name string) (llm.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.registry[name]
	if !ok {
		return nil, fmt.Errorf("LLM not registered: %s", name)
	}
	return c, nil
}

// Names 已注册的客户端名称（排序）
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.registry))
	for n := range m.registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
