package cli

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"dompet/internal/config"
	"dompet/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SQLiteDBPath: filepath.Join(t.TempDir(), "dompet.db"),
		Timezone:     "UTC",
		CurrencyCode: "IDR",
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

func TestOpenStorage(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Component: log.ComponentApp, Handler: slog.NewTextHandler(&buf, nil)})

	repo, err := OpenStorage(testConfig(t), logger)
	if err != nil {
		t.Fatalf("OpenStorage() error = %v", err)
	}
	defer repo.Close()
	if repo.Location().String() != "UTC" {
		t.Errorf("unexpected location %v", repo.Location())
	}

	cfg := testConfig(t)
	cfg.Timezone = "Nowhere/Invalid"
	if _, err := OpenStorage(cfg, logger); err == nil {
		t.Error("expected error for invalid timezone")
	}
}

func TestConnectAMQP_Disabled(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Component: log.ComponentApp, Handler: slog.NewTextHandler(&buf, nil)})

	client, err := ConnectAMQP(testConfig(t), logger)
	if err != nil || client != nil {
		t.Fatalf("ConnectAMQP() = %v, %v; want nil, nil", client, err)
	}
}
