package bdbconfig

import (
	"testing"
)

func TestLoadDefaultsWhenNoFilesExist(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dbDir := t.TempDir()

	cfg, err := Load(dbDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if *cfg != *want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestRepoConfigOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dbDir := t.TempDir()

	if err := SaveRepoConfig(dbDir, &Config{ShardCount: 16, PageSize: 500}); err != nil {
		t.Fatalf("SaveRepoConfig: %v", err)
	}

	cfg, err := Load(dbDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ShardCount != 16 {
		t.Fatalf("expected repo-local ShardCount 16, got %d", cfg.ShardCount)
	}
	if cfg.PageSize != 500 {
		t.Fatalf("expected repo-local PageSize 500, got %d", cfg.PageSize)
	}
	if cfg.KeySize != DefaultConfig().KeySize {
		t.Fatalf("expected untouched KeySize to stay at default, got %d", cfg.KeySize)
	}
}

func TestGlobalConfigMergesUnderRepoConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dbDir := t.TempDir()

	if err := SaveGlobalConfig(&Config{ShardCount: 8}); err != nil {
		t.Fatalf("SaveGlobalConfig: %v", err)
	}
	if err := SaveRepoConfig(dbDir, &Config{PageSize: 2000}); err != nil {
		t.Fatalf("SaveRepoConfig: %v", err)
	}

	cfg, err := Load(dbDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ShardCount != 8 {
		t.Fatalf("expected global ShardCount 8, got %d", cfg.ShardCount)
	}
	if cfg.PageSize != 2000 {
		t.Fatalf("expected repo-local PageSize 2000 to win, got %d", cfg.PageSize)
	}
}
