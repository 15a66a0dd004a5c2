package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/raicore/raicore/internal/testutil"
)

func TestLoadReadsDefaultConfigFromSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	data := []byte("network:\n  address: 0.0.0.0\n  port: 7171\nstorage:\n  data_path: /tmp/rai\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network.Port != 7171 {
		t.Fatalf("expected port 7171, got %d", cfg.Network.Port)
	}
	if cfg.Storage.DataPath != "/tmp/rai" {
		t.Fatalf("expected data_path /tmp/rai, got %q", cfg.Storage.DataPath)
	}
}

func TestLoadMergesEnvOverrideOverDefault(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	base := []byte("network:\n  port: 7171\nreward:\n  daily_forward_times: 1\n")
	if err := sb.WriteFile("config/default.yaml", base, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	override := []byte("reward:\n  daily_forward_times: 5\n")
	if err := sb.WriteFile("config/beta.yaml", override, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	cfg, err := Load("beta")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reward.DailyForwardTimes != 5 {
		t.Fatalf("expected the beta override to win, got %d", cfg.Reward.DailyForwardTimes)
	}
	if cfg.Network.Port != 7171 {
		t.Fatalf("expected the default port to survive an unrelated override, got %d", cfg.Network.Port)
	}
}

func TestLoadFromEnvUsesRaiEnvVariable(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	base := []byte("log:\n  level: info\n")
	if err := sb.WriteFile("config/default.yaml", base, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	override := []byte("log:\n  level: debug\n")
	if err := sb.WriteFile("config/dev.yaml", override, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Setenv("RAI_ENV", "dev")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected the dev override log level debug, got %q", cfg.Logging.Level)
	}
}
