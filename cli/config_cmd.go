package cli

import (
	"fmt"
	"log"
	"strconv"

	"github.com/javanhut/bdb/internal/bdbconfig"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get and set database configuration",
	Long: `Get and set bdbctl configuration options.

Configuration is merged from two levels:
- Global (~/.bdbconfig) - applies to every database directory
- Repo-local (<dir>/config.json) - applies to this database only

Keys: shardCount, pageSize, keySize, batchSize, checkpointEvery

Examples:
  bdbctl config --list
  bdbctl config pageSize
  bdbctl config pageSize 2000
  bdbctl config --global shardCount 200`,
	Args: cobra.RangeArgs(0, 2),
	Run:  runConfig,
}

var (
	configGlobal bool
	configList   bool
)

func init() {
	configCmd.Flags().BoolVar(&configGlobal, "global", false, "write to the global config file instead of the repo-local one")
	configCmd.Flags().BoolVar(&configList, "list", false, "list the effective (merged) configuration")
}

func runConfig(cmd *cobra.Command, args []string) {
	if configList || len(args) == 0 {
		cfg, err := bdbconfig.Load(dbDir)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		fmt.Printf("shardCount:      %d\n", cfg.ShardCount)
		fmt.Printf("pageSize:        %d\n", cfg.PageSize)
		fmt.Printf("keySize:         %d\n", cfg.KeySize)
		fmt.Printf("batchSize:       %d\n", cfg.BatchSize)
		fmt.Printf("checkpointEvery: %d\n", cfg.CheckpointEvery)
		return
	}

	cfg, err := bdbconfig.Load(dbDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if len(args) == 1 {
		fmt.Println(configFieldValue(cfg, args[0]))
		return
	}

	setConfigField(cfg, args[0], args[1])
	if configGlobal {
		if err := bdbconfig.SaveGlobalConfig(cfg); err != nil {
			log.Fatalf("save global config: %v", err)
		}
	} else {
		if err := bdbconfig.SaveRepoConfig(dbDir, cfg); err != nil {
			log.Fatalf("save repo config: %v", err)
		}
	}
}

func configFieldValue(cfg *bdbconfig.Config, key string) string {
	switch key {
	case "shardCount":
		return strconv.FormatUint(uint64(cfg.ShardCount), 10)
	case "pageSize":
		return strconv.Itoa(cfg.PageSize)
	case "keySize":
		return strconv.Itoa(cfg.KeySize)
	case "batchSize":
		return strconv.Itoa(cfg.BatchSize)
	case "checkpointEvery":
		return strconv.Itoa(cfg.CheckpointEvery)
	default:
		log.Fatalf("unknown config key %q", key)
		return ""
	}
}

func setConfigField(cfg *bdbconfig.Config, key, value string) {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		log.Fatalf("config value for %q must be a non-negative integer: %v", key, err)
	}
	switch key {
	case "shardCount":
		cfg.ShardCount = uint32(n)
	case "pageSize":
		cfg.PageSize = int(n)
	case "keySize":
		cfg.KeySize = int(n)
	case "batchSize":
		cfg.BatchSize = int(n)
	case "checkpointEvery":
		cfg.CheckpointEvery = int(n)
	default:
		log.Fatalf("unknown config key %q", key)
	}
}
