package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVaultStore_GetKV2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/v1/kv/data/DOCUSIGN_API_KEY":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"data": map[string]interface{}{"value": "ds-secret"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store, err := NewVaultStore(VaultConfig{Address: srv.URL, Token: "test-token", PathPrefix: "kv"})
	if err != nil {
		t.Fatalf("NewVaultStore: %v", err)
	}
	got, err := store.Get(context.Background(), "DOCUSIGN_API_KEY")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "ds-secret" {
		t.Errorf("Get = %q, want ds-secret", got)
	}
	if _, err := store.Get(context.Background(), "MISSING"); err == nil {
		t.Error("expected error for missing secret")
	}
}
