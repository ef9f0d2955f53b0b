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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dnerrors "docunexus/pkg/errors"
	"docunexus/pkg/secrets"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
  users:
    alice: "$2a$10$abcdefghijklmnopqrstuv"
log:
  level: "debug"
storage:
  history:
    type: "redis"
    addr: "localhost:6379"
integrations:
  docusign:
    base_url: "https://demo.docusign.net/restapi"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host: got %q", cfg.API.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Storage.History.Type != "redis" {
		t.Errorf("Storage.History.Type: got %q", cfg.Storage.History.Type)
	}
	if cfg.Integrations.DocuSign.BaseURL != "https://demo.docusign.net/restapi" {
		t.Errorf("DocuSign.BaseURL: got %q", cfg.Integrations.DocuSign.BaseURL)
	}
	if _, ok := cfg.API.Users["alice"]; !ok {
		t.Errorf("API.Users missing alice: %v", cfg.API.Users)
	}
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("DOCUNEXUS_TEST_GEMINI_KEY", "g-key")
	dir := t.TempDir()
	yaml := `
model:
  llm:
    providers:
      gemini:
        api_key: "${DOCUNEXUS_TEST_GEMINI_KEY}"
      azure_inference:
        api_key: "${DOCUNEXUS_TEST_UNSET}"
`
	path := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.Model.LLM.Providers["gemini"].APIKey; got != "g-key" {
		t.Errorf("gemini api key = %q", got)
	}
	if got := cfg.Model.LLM.Providers["azure_inference"].APIKey; got != "${DOCUNEXUS_TEST_UNSET}" {
		t.Errorf("unset env should keep placeholder, got %q", got)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadSecrets(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewMemoryStoreFrom(map[string]string{
		"PRIMARY_API_KEY":  "p",
		"AZURE_AI_API_KEY": "a",
		"DOCUSIGN_API_KEY": "d",
	})
	s, err := LoadSecrets(ctx, store, RequiredSecrets, OptionalSecrets)
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if s.Get("PRIMARY_API_KEY") != "p" || s.Get("DOCUSIGN_API_KEY") != "d" {
		t.Errorf("unexpected values: %v", s.Names())
	}
	if _, ok := s.Lookup("SNOWFLAKE_USER"); ok {
		t.Error("absent optional secret should not be present")
	}
}

func TestLoadSecrets_EnvFallback(t *testing.T) {
	t.Setenv("PRIMARY_API_KEY", "from-env")
	t.Setenv("AZURE_AI_API_KEY", "from-env-2")
	s, err := LoadSecrets(context.Background(), secrets.NewMemoryStore(), RequiredSecrets, nil)
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if s.Get("PRIMARY_API_KEY") != "from-env" {
		t.Errorf("env fallback: got %q", s.Get("PRIMARY_API_KEY"))
	}
}

func TestLoadSecrets_MissingRequired(t *testing.T) {
	t.Setenv("PRIMARY_API_KEY", "")
	t.Setenv("AZURE_AI_API_KEY", "")
	_, err := LoadSecrets(context.Background(), secrets.NewMemoryStore(), RequiredSecrets, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, dnerrors.ErrMissingSecret) {
		t.Errorf("error should wrap ErrMissingSecret: %v", err)
	}
	if !strings.Contains(err.Error(), "PRIMARY_API_KEY") || !strings.Contains(err.Error(), "AZURE_AI_API_KEY") {
		t.Errorf("error should name missing secrets: %v", err)
	}
}
