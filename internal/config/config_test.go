package config

import (
	"testing"
	"time"
)

func TestLoad_StoreBackendSelection(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		backend string
	}{
		{
			name:    "no_credentials_means_memory",
			env:     map[string]string{},
			backend: StoreMemory,
		},
		{
			name: "credentials_select_firestore",
			env: map[string]string{
				"FIRESTORE_PROJECT_ID": "graduacion",
				"FIRESTORE_API_KEY":    "key",
			},
			backend: StoreFirestore,
		},
		{
			name:    "explicit_firestore_without_key_falls_back",
			env:     map[string]string{"STORE_BACKEND": "firestore", "FIRESTORE_PROJECT_ID": "graduacion"},
			backend: StoreMemory,
		},
		{
			name:    "explicit_sqlite",
			env:     map[string]string{"STORE_BACKEND": "SQLite"},
			backend: StoreSQLite,
		},
		{
			name:    "unknown_backend_falls_back",
			env:     map[string]string{"STORE_BACKEND": "mongo"},
			backend: StoreMemory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"STORE_BACKEND", "FIRESTORE_PROJECT_ID", "FIRESTORE_API_KEY"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := Load()
			if cfg.StoreBackend != tt.backend {
				t.Errorf("expected backend %q, got %q", tt.backend, cfg.StoreBackend)
			}
		})
	}
}

func TestLoad_TypedHelpersFallBack(t *testing.T) {
	t.Setenv("STORE_TIMEOUT", "not-a-duration")
	t.Setenv("STORE_RETRIES", "x")
	t.Setenv("QR_SKIP", "maybe")

	cfg := Load()
	if cfg.StoreTimeout != 10*time.Second {
		t.Errorf("expected fallback timeout, got %s", cfg.StoreTimeout)
	}
	if cfg.StoreRetries != 2 {
		t.Errorf("expected fallback retries, got %d", cfg.StoreRetries)
	}
	if cfg.QRSkip {
		t.Error("expected QR_SKIP fallback false")
	}
}

func TestLocation_InvalidZoneUsesUTC(t *testing.T) {
	cfg := App{TimeZone: "Mars/Olympus"}
	if cfg.Location() != time.UTC {
		t.Error("expected UTC for an unknown zone")
	}
}
