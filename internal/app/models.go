package app

import (
	"context"
	"fmt"
	"strings"

	"docunexus/internal/model"
	"docunexus/internal/model/llm"
	"docunexus/pkg/config"
)

// 未配置 defaults 时的主模型与备选模型
const (
	defaultPrimaryProvider   = "gemini"
	defaultSecondaryProvider = "azure_inference"
	primarySecret            = "PRIMARY_API_KEY"
	secondarySecret          = "AZURE_AI_API_KEY"
)

// NewModelManager 根据 config.Model 的 defaults 创建主模型、备选模型与视觉模型，并统一套上限流
func NewModelManager(ctx context.Context, cfg *config.Config, secrets config.Secrets) (*model.Manager, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	limiter := llm.NewLLMRateLimiter(rateLimitConfigs(cfg.RateLimits.LLM), nil)
	wrap := func(c llm.Client) llm.Client {
		return llm.NewRateLimitedClient(c, limiter)
	}

	primaryOpts, err := resolveModel(cfg.Model.LLM.Providers, cfg.Model.Defaults.LLM, defaultPrimaryProvider, secrets, primarySecret)
	if err != nil {
		return nil, fmt.Errorf("主模型配置错误: %w", err)
	}
	primary, err := llm.NewClient(ctx, primaryOpts)
	if err != nil {
		return nil, fmt.Errorf("创建主模型failed: %w", err)
	}
	primary = wrap(primary)

	var secondary llm.Client
	secondaryOpts, err := resolveModel(cfg.Model.LLM.Providers, cfg.Model.Defaults.Secondary, defaultSecondaryProvider, secrets, secondarySecret)
	if err != nil {
		return nil, fmt.Errorf("备选模型配置错误: %w", err)
	}
	if secondaryOpts.Model == "" && secondaryOpts.Provider == defaultSecondaryProvider {
		secondaryOpts.Model = llm.DefaultAzureInferenceModel
	}
	if secondaryOpts.APIKey != "" {
		if secondary, err = llm.NewClient(ctx, secondaryOpts); err != nil {
			return nil, fmt.Errorf("创建备选模型failed: %w", err)
		}
		secondary = wrap(secondary)
	}

	// 视觉模型未单独配置时由 Manager 复用主模型
	var vision llm.VisionClient
	if key := cfg.Model.Defaults.Vision; key != "" {
		providers := cfg.Model.Vision.Providers
		if p, _, _ := parseDefaultKey(key); providers[p].Models == nil {
			providers = cfg.Model.LLM.Providers
		}
		visionOpts, err := resolveModel(providers, key, "", secrets, primarySecret)
		if err != nil {
			return nil, fmt.Errorf("视觉模型配置错误: %w", err)
		}
		vc, err := llm.NewClient(ctx, visionOpts)
		if err != nil {
			return nil, fmt.Errorf("创建视觉模型failed: %w", err)
		}
		rl := llm.NewRateLimitedClient(vc, limiter)
		if !rl.SupportsImages() {
			return nil, fmt.Errorf("视觉模型 %q 不支持图片输入", key)
		}
		vision = rl
	}

	gen := cfg.Model.Generation
	mgr := model.NewManager(primary, secondary, vision, llm.GenerateOptions{
		Temperature:       gen.Temperature,
		TopP:              gen.TopP,
		MaxTokens:         gen.MaxOutputTokens,
		SystemInstruction: cfg.Model.SystemInstruction,
	})
	mgr.Register(modelKey(primaryOpts), primary)
	if secondary != nil {
		mgr.Register(modelKey(secondaryOpts), secondary)
	}
	if vision != nil {
		mgr.Register(cfg.Model.Defaults.Vision, vision)
	}
	return mgr, nil
}

// resolveModel 将 "provider.model_key" 解析为客户端参数。
// key 为空时使用 fallbackProvider 的默认模型；API key 依次取配置、secret_name、fallbackSecret。
func resolveModel(providers map[string]config.ProviderConfig, key, fallbackProvider string, secrets config.Secrets, fallbackSecret string) (llm.ProviderOptions, error) {
	if key == "" {
		return llm.ProviderOptions{
			Provider: fallbackProvider,
			APIKey:   secrets.Get(fallbackSecret),
		}, nil
	}
	provider, mk, err := parseDefaultKey(key)
	if err != nil {
		return llm.ProviderOptions{}, err
	}
	pc, ok := providers[provider]
	if !ok {
		return llm.ProviderOptions{}, fmt.Errorf("LLM provider %q 未配置", provider)
	}
	mi, ok := pc.Models[mk]
	if !ok {
		return llm.ProviderOptions{}, fmt.Errorf("LLM model %q 未在 provider %q 中配置", mk, provider)
	}
	apiKey := pc.APIKey
	if apiKey == "" || strings.HasPrefix(apiKey, "${") {
		apiKey = ""
		if pc.SecretName != "" {
			apiKey = secrets.Get(pc.SecretName)
		}
		if apiKey == "" {
			apiKey = secrets.Get(fallbackSecret)
		}
	}
	return llm.ProviderOptions{
		Provider:   provider,
		Model:      mi.Name,
		APIKey:     apiKey,
		BaseURL:    pc.BaseURL,
		APIVersion: pc.APIVersion,
	}, nil
}

func rateLimitConfigs(in map[string]config.LLMRateLimitConfig) map[string]llm.LLMLimitConfig {
	out := make(map[string]llm.LLMLimitConfig, len(in))
	for provider, c := range in {
		out[provider] = llm.LLMLimitConfig{
			TokensPerMinute:   c.TokensPerMinute,
			RequestsPerMinute: c.RequestsPerMinute,
			MaxConcurrent:     c.MaxConcurrent,
		}
	}
	return out
}

func modelKey(o llm.ProviderOptions) string {
	if o.Model == "" {
		return o.Provider
	}
	return o.Provider + "." + o.Model
}

func parseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 gemini.pro，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
