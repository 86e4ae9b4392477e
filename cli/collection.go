package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every collection in the database",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		db := openDB(ctx)
		names, err := db.ListCollections(ctx)
		if err != nil {
			log.Fatalf("list collections: %v", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
	},
}

var collectionStatsCmd = &cobra.Command{
	Use:   "stats <collection>",
	Short: "Print record/shard/index counts for a collection",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		db := openDB(ctx)
		s, err := db.Stats(ctx, args[0])
		if err != nil {
			log.Fatalf("stats: %v", err)
		}
		fmt.Printf("collection:      %s\n", s.Collection)
		fmt.Printf("shards:          %d (%d non-empty)\n", s.ShardCount, s.NonEmptyShards)
		fmt.Printf("records:         %d\n", s.RecordCount)
		for _, idx := range s.Indexes {
			fmt.Printf("index %s (%s): %d entries, %d pages\n", idx.Field, idx.Direction, idx.TotalEntries, idx.TotalPages)
		}
	},
}

var collectionDropCmd = &cobra.Command{
	Use:   "drop <collection>",
	Short: "Delete a collection and every sort index built on it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		db := openDB(ctx)
		c := mustCollection(ctx, db, args[0])
		if err := c.Drop(ctx); err != nil {
			log.Fatalf("drop: %v", err)
		}
		fmt.Println("dropped")
	},
}
