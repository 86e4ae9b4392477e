// Package bdbconfig holds the database-wide tunables that aren't part
// of the core's algorithmic surface: default shard count, sort-index
// page/key sizes, and batch-build thresholds. Config is loaded by
// merging a global file (one per user) with a repo-local file (one per
// database directory), repo-local taking precedence.
package bdbconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the full set of database-wide defaults.
type Config struct {
	ShardCount      uint32 `json:"shardCount"`
	PageSize        int    `json:"pageSize"`
	KeySize         int    `json:"keySize"`
	BatchSize       int    `json:"batchSize"`
	CheckpointEvery int    `json:"checkpointEvery"`
}

// DefaultConfig returns the built-in defaults, matching the core
// package-level constants.
func DefaultConfig() *Config {
	return &Config{
		ShardCount:      100,
		PageSize:        1000,
		KeySize:         100,
		BatchSize:       10000,
		CheckpointEvery: 1000,
	}
}

func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".bdbconfig"), nil
}

func repoConfigPath(dbDir string) string {
	return filepath.Join(dbDir, "config.json")
}

// Load merges the global config (if present) over the built-in
// defaults, then the repo-local config under dbDir (if present) over
// that. Either or both files may be absent; absence is not an error.
func Load(dbDir string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath, err := globalConfigPath(); err == nil {
		if data, err := os.ReadFile(globalPath); err == nil {
			var global Config
			if err := json.Unmarshal(data, &global); err == nil {
				mergeConfig(cfg, &global)
			}
		}
	}

	if data, err := os.ReadFile(repoConfigPath(dbDir)); err == nil {
		var repo Config
		if err := json.Unmarshal(data, &repo); err == nil {
			mergeConfig(cfg, &repo)
		}
	}

	return cfg, nil
}

// SaveRepoConfig writes cfg to dbDir's repo-local config file.
func SaveRepoConfig(dbDir string, cfg *Config) error {
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(repoConfigPath(dbDir), data, 0o644)
}

// SaveGlobalConfig writes cfg to the current user's global config file.
func SaveGlobalConfig(cfg *Config) error {
	path, err := globalConfigPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// mergeConfig overwrites every non-zero field of src onto dst.
func mergeConfig(dst, src *Config) {
	if src.ShardCount != 0 {
		dst.ShardCount = src.ShardCount
	}
	if src.PageSize != 0 {
		dst.PageSize = src.PageSize
	}
	if src.KeySize != 0 {
		dst.KeySize = src.KeySize
	}
	if src.BatchSize != 0 {
		dst.BatchSize = src.BatchSize
	}
	if src.CheckpointEvery != 0 {
		dst.CheckpointEvery = src.CheckpointEvery
	}
}
