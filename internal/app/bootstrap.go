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

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docunexus/internal/analysis"
	"docunexus/internal/engine"
	"docunexus/internal/integration/docusign"
	"docunexus/internal/integration/warehouse"
	"docunexus/internal/jobqueue"
	"docunexus/internal/media"
	"docunexus/internal/model"
	"docunexus/internal/model/speech"
	"docunexus/internal/model/vision"
	"docunexus/internal/pipeline/ingest"
	"docunexus/internal/runtime/history"
	"docunexus/internal/storage/document"
	"docunexus/internal/storage/object"
	"docunexus/pkg/config"
	"docunexus/pkg/log"
	"docunexus/pkg/secrets"
	"docunexus/pkg/utils"
)

// Bootstrap 统一初始化：供 api 与 worker 复用，避免在 cmd 内写业务与存储装配。
// 未配置的集成保持 nil，由调用方按 ErrNotConfigured 处理。
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	Secrets config.Secrets

	Objects object.Store
	Jobs    jobqueue.Queue
	Media   *media.Runner

	// 以下仅 InitServices 之后可用（API 进程）
	Documents  document.Store
	History    *history.Manager
	Models     *model.Manager
	Engine     *engine.Engine
	Parser     *ingest.DocumentParser
	Analyzer   *analysis.Analyzer
	Summarizer *analysis.Summarizer
	Vision     vision.Client
	Speech     *speech.Service
	DocuSign   *docusign.Client
	Warehouse  warehouse.Querier
}

// NewBootstrap 创建日志、secret 表、对象存储、任务队列与媒体任务执行器。
// required 为启动必需的 secret，缺失时返回 ErrMissingSecret。
func NewBootstrap(ctx context.Context, cfg *config.Config, required []string) (*Bootstrap, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	store, err := secrets.NewStore(secrets.Config{Provider: cfg.Secrets.Provider, Config: cfg.Secrets.Config})
	if err != nil {
		return nil, fmt.Errorf("初始化 secret store failed: %w", err)
	}
	sec, err := config.LoadSecrets(ctx, store, required, config.OptionalSecrets)
	if err != nil {
		return nil, fmt.Errorf("加载 secrets failed: %w", err)
	}
	logger.Info("secrets loaded", "names", strings.Join(sec.Names(), ","))

	b := &Bootstrap{Config: cfg, Logger: logger, Secrets: sec}

	credential := sec.Get(utils.CoalesceString(cfg.Storage.Object.SecretName, "AZURE_STORAGE_SAS"))
	if b.Objects, err = object.NewStore(cfg.Storage.Object, credential); err != nil {
		return nil, fmt.Errorf("初始化对象存储failed: %w", err)
	}
	if b.Jobs, err = jobqueue.New(ctx, cfg.JobQueue); err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化任务队列failed: %w", err)
	}
	b.Media = b.newMediaRunner()
	return b, nil
}

// InitServices 创建 API 进程使用的模型、文档、历史与各集成客户端
func (b *Bootstrap) InitServices(ctx context.Context) error {
	cfg := b.Config
	var err error

	if b.Documents, err = document.NewStore(ctx, cfg.Storage.Document); err != nil {
		return fmt.Errorf("初始化文档存储failed: %w", err)
	}
	hs, err := history.NewStore(ctx, cfg.Storage.History)
	if err != nil {
		return fmt.Errorf("初始化历史存储failed: %w", err)
	}
	b.History = history.NewManager(hs)

	if b.Models, err = NewModelManager(ctx, cfg, b.Secrets); err != nil {
		return err
	}
	b.Engine = engine.New(b.Models, b.Logger)

	fr := ingest.NewFormRecognizer(ingest.FormRecognizerConfig{
		Endpoint: cfg.Integrations.FormRecognizer.Endpoint,
		APIKey:   b.secret(cfg.Integrations.FormRecognizer.SecretName, "AZURE_FORM_RECOGNIZER_KEY"),
	})
	if key, ok := b.Secrets.Lookup("UNIPDF_LICENSE_KEY"); ok {
		if err := ingest.SetPDFLicense(key); err != nil {
			b.Logger.Warn("unipdf license rejected, pdf extraction runs unlicensed", "error", err)
		}
	}
	var ocr ingest.OCR
	if cfg.Document.OCRFallback {
		ocr = ingest.NewOCR()
	}
	b.Parser = ingest.NewDocumentParser(ingest.Options{
		FormRecognizer: fr,
		OCR:            ocr,
		OCRLanguages:   splitList(cfg.Document.OCRLanguages),
	})
	primary := b.Models.Model(false)
	b.Analyzer = analysis.NewAnalyzer(primary, fr, b.Logger)
	b.Summarizer = analysis.NewSummarizer(primary, b.Logger)

	b.initIntegrations(ctx)
	return nil
}

// initIntegrations 可选集成：缺少端点或凭据时只记录日志
func (b *Bootstrap) initIntegrations(ctx context.Context) {
	cfg := b.Config.Integrations

	if key := b.secret(cfg.Vision.SecretName, "AZURE_VISION_KEY"); cfg.Vision.Endpoint != "" && key != "" {
		if vc, err := vision.NewAzureClient(cfg.Vision.Endpoint, key); err != nil {
			b.Logger.Warn("computer vision disabled", "error", err)
		} else {
			b.Vision = vc
		}
	}

	if key := b.Secrets.Get("AZURE_SPEECH_KEY"); key != "" && (cfg.Speech.Region != "" || cfg.Speech.Endpoint != "") {
		if synth, err := speech.NewAzureSynthesizer(cfg.Speech.Region, cfg.Speech.Endpoint, key); err != nil {
			b.Logger.Warn("speech disabled", "error", err)
		} else {
			b.Speech = speech.NewService(synth, b.Objects, b.Logger)
		}
	}

	if b.Secrets.Get("DOCUSIGN_API_KEY") != "" {
		if ds, err := docusign.NewClient(cfg.DocuSign.BaseURL, b.Secrets.Get("DOCUSIGN_ACCOUNT_ID"), b.Secrets.Get("DOCUSIGN_API_KEY"), b.Objects, b.Logger); err != nil {
			b.Logger.Warn("docusign disabled", "error", err)
		} else {
			b.DocuSign = ds
		}
	}

	if cfg.Warehouse.DSN != "" || b.Secrets.Get("SNOWFLAKE_TOKEN") != "" {
		q, err := warehouse.New(ctx, cfg.Warehouse, warehouse.Credentials{
			Account:   b.Secrets.Get("SNOWFLAKE_ACCOUNT"),
			User:      b.Secrets.Get("SNOWFLAKE_USER"),
			Token:     b.Secrets.Get("SNOWFLAKE_TOKEN"),
			Warehouse: b.Secrets.Get("SNOWFLAKE_WAREHOUSE"),
			Database:  b.Secrets.Get("SNOWFLAKE_DATABASE"),
			Schema:    b.Secrets.Get("SNOWFLAKE_SCHEMA"),
		})
		if err != nil {
			b.Logger.Warn("warehouse disabled", "error", err)
		} else {
			b.Warehouse = q
		}
	}
}

func (b *Bootstrap) newMediaRunner() *media.Runner {
	cfg := b.Config
	r := &media.Runner{Store: b.Objects}
	if batch := cfg.Integrations.Batch; batch.Endpoint != "" {
		bc, err := media.NewBatchClient(batch.Endpoint, b.secret(batch.SecretName, "AZURE_BATCH_KEY"), b.Objects, b.Logger)
		if err != nil {
			b.Logger.Warn("azure batch disabled", "error", err)
		} else {
			r.Batch = bc
		}
	}
	if cfg.Integrations.Media.Subscription != "" {
		poll := utils.ParseDuration(cfg.Worker.JobPollInterval, media.DefaultJobPollInterval)
		conv, err := media.NewConverter(cfg.Integrations.Media, b.Secrets.Get("AZURE_MEDIA_TOKEN"), b.Objects, poll, b.Logger)
		if err != nil {
			b.Logger.Warn("media services disabled", "error", err)
		} else {
			r.Converter = conv
		}
	}
	return r
}

func (b *Bootstrap) secret(name, fallback string) string {
	if name != "" {
		if v := b.Secrets.Get(name); v != "" {
			return v
		}
	}
	return b.Secrets.Get(fallback)
}

// Close 关闭所有已创建的存储与客户端
func (b *Bootstrap) Close() error {
	var errs []error
	if b.Warehouse != nil {
		errs = append(errs, b.Warehouse.Close())
	}
	if b.History != nil {
		errs = append(errs, b.History.Close())
	}
	if b.Documents != nil {
		errs = append(errs, b.Documents.Close())
	}
	if b.Jobs != nil {
		errs = append(errs, b.Jobs.Close())
	}
	if b.Objects != nil {
		errs = append(errs, b.Objects.Close())
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' || r == ' ' }) {
		out = append(out, part)
	}
	return out
}
