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
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Model        ModelConfig        `mapstructure:"model"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Integrations IntegrationsConfig `mapstructure:"integrations"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
	JobQueue     JobQueueConfig     `mapstructure:"jobqueue"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Document     DocumentConfig     `mapstructure:"document"`
	Log          LogConfig          `mapstructure:"log"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	RateLimits   RateLimitsConfig   `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	MaxUpload  int              `mapstructure:"max_upload_mb"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	// Users 登录用户名 -> bcrypt 哈希
	Users map[string]string `mapstructure:"users"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool    `mapstructure:"auth"`
	RateLimit     bool    `mapstructure:"rate_limit"`
	RateLimitRPS  float64 `mapstructure:"rate_limit_rps"`
	JWTKey        string  `mapstructure:"jwt_key"`
	JWTTimeout    string  `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string  `mapstructure:"jwt_max_refresh"` // 如 "1h"
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM               LLMConfig        `mapstructure:"llm"`
	Vision            VisionConfig     `mapstructure:"vision"`
	Defaults          DefaultsConfig   `mapstructure:"defaults"`
	Generation        GenerationConfig `mapstructure:"generation"`
	SystemInstruction string           `mapstructure:"system_instruction"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// VisionConfig Vision 模型配置
type VisionConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置；APIKey 支持 ${ENV}，SecretName 指向 Secrets 中的键
type ProviderConfig struct {
	APIKey     string               `mapstructure:"api_key"`
	SecretName string               `mapstructure:"secret_name"`
	BaseURL    string               `mapstructure:"base_url"`
	APIVersion string               `mapstructure:"api_version"`
	Models     map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name          string  `mapstructure:"name"`
	ContextWindow int     `mapstructure:"context_window"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型，格式 "provider.model_key"
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Secondary string `mapstructure:"secondary"` // Phi-4 等备选模型
	Vision    string `mapstructure:"vision"`
}

// GenerationConfig 生成参数（temperature/top_p/max_output_tokens）
type GenerationConfig struct {
	Temperature     float64 `mapstructure:"temperature"`
	TopP            float64 `mapstructure:"top_p"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Object   ObjectConfig   `mapstructure:"object"`
	History  HistoryConfig  `mapstructure:"history"`
	Document DocStoreConfig `mapstructure:"document"`
}

// ObjectConfig 对象存储配置
type ObjectConfig struct {
	Type       string `mapstructure:"type"`     // memory | file | azureblob
	Endpoint   string `mapstructure:"endpoint"` // azureblob: https://{account}.blob.core.windows.net
	Bucket     string `mapstructure:"bucket"`   // 默认容器
	Root       string `mapstructure:"root"`     // file 根目录
	SecretName string `mapstructure:"secret_name"`
}

// HistoryConfig 会话历史存储配置
type HistoryConfig struct {
	Type     string `mapstructure:"type"` // memory | redis | sqlite
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	DSN      string `mapstructure:"dsn"` // sqlite 文件路径
	TTL      string `mapstructure:"ttl"` // 如 "24h"
}

// DocStoreConfig 上传文档存储配置
type DocStoreConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`
}

// IntegrationsConfig 各云服务端点
type IntegrationsConfig struct {
	DocuSign       DocuSignConfig  `mapstructure:"docusign"`
	Speech         SpeechConfig    `mapstructure:"speech"`
	Vision         EndpointConfig  `mapstructure:"vision"`
	FormRecognizer EndpointConfig  `mapstructure:"form_recognizer"`
	Warehouse      WarehouseConfig `mapstructure:"warehouse"`
	Batch          EndpointConfig  `mapstructure:"batch"`
	Media          MediaConfig     `mapstructure:"media"`
}

// EndpointConfig 通用 REST 端点
type EndpointConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	SecretName string `mapstructure:"secret_name"`
	Account    string `mapstructure:"account"`
}

// DocuSignConfig DocuSign 配置
type DocuSignConfig struct {
	BaseURL string `mapstructure:"base_url"` // 如 https://demo.docusign.net/restapi
}

// SpeechConfig Azure Speech 配置
type SpeechConfig struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Container string `mapstructure:"container"`
}

// WarehouseConfig 数据仓库配置
type WarehouseConfig struct {
	Type     string `mapstructure:"type"` // snowflake | postgres
	Endpoint string `mapstructure:"endpoint"`
	DSN      string `mapstructure:"dsn"`
	Role     string `mapstructure:"role"`
	Timeout  int    `mapstructure:"timeout_seconds"`
}

// MediaConfig Azure Media Services 配置
type MediaConfig struct {
	Endpoint      string `mapstructure:"endpoint"` // 默认 https://management.azure.com
	Subscription  string `mapstructure:"subscription"`
	ResourceGroup string `mapstructure:"resource_group"`
	Account       string `mapstructure:"account"`
	APIVersion    string `mapstructure:"api_version"`
}

// SecretsConfig secret store 配置
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // vault | dir | env | memory
	Config   map[string]string `mapstructure:"config"`
}

// JobQueueConfig 媒体任务队列配置
type JobQueueConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`
}

// WorkerConfig Worker 服务配置
type WorkerConfig struct {
	Concurrency     int    `mapstructure:"concurrency"`
	PollInterval    string `mapstructure:"poll_interval"`     // 队列轮询间隔，如 "2s"
	JobPollInterval string `mapstructure:"job_poll_interval"` // Media 任务状态轮询，如 "10s"
	Timeout         string `mapstructure:"timeout"`
}

// DocumentConfig 文档解析配置
type DocumentConfig struct {
	OCRFallback  bool   `mapstructure:"ocr_fallback"`
	OCRLanguages string `mapstructure:"ocr_languages"` // 如 "eng"
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// LoadConfig 加载配置文件（每次使用独立 viper 实例，api/model 两份文件互不覆盖）
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// expandEnv 将 "${VAR}" 形式替换为环境变量值；未设置时保持原样
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	if val := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")); val != "" {
		return val
	}
	return s
}

// replaceEnvVars 替换配置中的环境变量
func replaceEnvVars(config *Config) {
	for _, providers := range []map[string]ProviderConfig{config.Model.LLM.Providers, config.Model.Vision.Providers} {
		for name, p := range providers {
			p.APIKey = expandEnv(p.APIKey)
			providers[name] = p
		}
	}
	config.API.Middleware.JWTKey = expandEnv(config.API.Middleware.JWTKey)
	config.Storage.History.Password = expandEnv(config.Storage.History.Password)
	config.Storage.Document.DSN = expandEnv(config.Storage.Document.DSN)
	config.JobQueue.DSN = expandEnv(config.JobQueue.DSN)
	config.Integrations.Warehouse.DSN = expandEnv(config.Integrations.Warehouse.DSN)
	for k, val := range config.Secrets.Config {
		config.Secrets.Config[k] = expandEnv(val)
	}
}

// LoadAPIConfigWithModel 加载 API 配置并合并 model 配置
func LoadAPIConfigWithModel() (*Config, error) {
	return loadWithModel("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置并合并 model 配置（Worker 同样需要 Secrets 与模型默认值）
func LoadWorkerConfig() (*Config, error) {
	return loadWithModel("configs/worker.yaml")
}

// loadWithModel model 路径解析为与主配置同目录，避免 cwd 导致 model.yaml 未加载
func loadWithModel(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(filepath.Dir(path), "model.yaml")
	if abs, errAbs := filepath.Abs(path); errAbs == nil {
		modelPath = filepath.Join(filepath.Dir(abs), "model.yaml")
	}
	modelCfg, err := LoadConfig(modelPath)
	if err != nil {
		log.Printf("[config] 未加载 model 配置 %q: %v", modelPath, err)
		return cfg, nil
	}
	cfg.Model = modelCfg.Model
	return cfg, nil
}
