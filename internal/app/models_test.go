package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docunexus/internal/model/llm"
	"docunexus/pkg/config"
)

func TestParseDefaultKey(t *testing.T) {
	p, m, err := parseDefaultKey("gemini.pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini", p)
	assert.Equal(t, "pro", m)

	for _, bad := range []string{"", "gemini", ".pro", "gemini."} {
		_, _, err := parseDefaultKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestResolveModel_SecretFallback(t *testing.T) {
	providers := map[string]config.ProviderConfig{
		"gemini": {
			APIKey: "${UNSET_KEY}",
			Models: map[string]config.ModelInfo{"pro": {Name: "gemini-1.5-pro"}},
		},
		"azure_inference": {
			SecretName: "CUSTOM_KEY",
			BaseURL:    "https://example.test",
			Models:     map[string]config.ModelInfo{"phi4": {Name: "Phi-4-multimodal-instruct"}},
		},
	}
	sec := config.NewSecrets(map[string]string{"PRIMARY_API_KEY": "p", "CUSTOM_KEY": "c"})

	opts, err := resolveModel(providers, "gemini.pro", "", sec, "PRIMARY_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOptions{Provider: "gemini", Model: "gemini-1.5-pro", APIKey: "p"}, opts)

	opts, err = resolveModel(providers, "azure_inference.phi4", "", sec, "AZURE_AI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "c", opts.APIKey)
	assert.Equal(t, "https://example.test", opts.BaseURL)

	_, err = resolveModel(providers, "claude.sonnet", "", sec, "PRIMARY_API_KEY")
	assert.Error(t, err)
	_, err = resolveModel(providers, "gemini.flash", "", sec, "PRIMARY_API_KEY")
	assert.Error(t, err)

	opts, err = resolveModel(providers, "", "gemini", sec, "PRIMARY_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "gemini", opts.Provider)
	assert.Equal(t, "p", opts.APIKey)
}

func TestNewModelManager_Defaults(t *testing.T) {
	sec := config.NewSecrets(map[string]string{"PRIMARY_API_KEY": "p", "AZURE_AI_API_KEY": "a"})
	mgr, err := NewModelManager(context.Background(), &config.Config{}, sec)
	require.NoError(t, err)

	assert.Equal(t, "gemini", mgr.Model(false).Provider())
	assert.Equal(t, "azure_inference", mgr.Model(true).Provider())
	assert.Equal(t, llm.DefaultAzureInferenceModel, mgr.ModelName(true))
	require.NotNil(t, mgr.VisionModel())
	assert.Equal(t, "gemini", mgr.VisionModel().Provider())
	assert.Equal(t, 0.7, mgr.Options().Temperature)
	assert.Len(t, mgr.Names(), 2)
}

func TestNewModelManager_NoSecondaryKey(t *testing.T) {
	sec := config.NewSecrets(map[string]string{"PRIMARY_API_KEY": "p"})
	mgr, err := NewModelManager(context.Background(), &config.Config{}, sec)
	require.NoError(t, err)
	assert.Equal(t, "gemini", mgr.Model(true).Provider(), "falls back to primary")
}

func TestNewModelManager_MissingPrimaryKey(t *testing.T) {
	_, err := NewModelManager(context.Background(), &config.Config{}, config.NewSecrets(nil))
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"eng", "deu"}, splitList("eng+deu"))
	assert.Equal(t, []string{"eng", "fra"}, splitList("eng, fra"))
	assert.Nil(t, splitList(""))
}
