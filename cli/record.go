package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/shard"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <collection> <json-fields>",
	Short: "Insert a new record",
	Long:  `Insert a new record into a collection, assigning it a fresh id. <json-fields> is a JSON object of the record's fields.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		fields := parseFields(args[1])

		db := openDB(ctx)
		c := mustCollection(ctx, db, args[0])
		rec, err := c.Insert(ctx, fields)
		if err != nil {
			log.Fatalf("insert: %v", err)
		}
		printRecord(rec)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <collection> <id>",
	Short: "Fetch a record by id",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		db := openDB(ctx)
		c := mustCollection(ctx, db, args[0])

		rec, found, err := c.Get(ctx, args[1])
		if err != nil {
			log.Fatalf("get: %v", err)
		}
		if !found {
			fmt.Println("not found")
			return
		}
		printRecord(rec)
	},
}

var updateUpsert bool

var updateCmd = &cobra.Command{
	Use:   "update <collection> <id> <json-updates>",
	Short: "Deep-merge a partial field update into an existing record",
	Long:  `Deep-merges <json-updates> into the existing record's fields, stamping only the leaves that actually changed. Use JSON null to delete a field.`,
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		updates := parseUpdates(args[2])

		db := openDB(ctx)
		c := mustCollection(ctx, db, args[0])
		rec, found, err := c.Update(ctx, args[1], updates, shard.WriteOptions{Upsert: updateUpsert})
		if err != nil {
			log.Fatalf("update: %v", err)
		}
		if !found {
			fmt.Println("not found")
			return
		}
		printRecord(rec)
	},
}

var replaceUpsert bool

var replaceCmd = &cobra.Command{
	Use:   "replace <collection> <id> <json-fields>",
	Short: "Overwrite a record's entire field tree",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		fields := parseFields(args[2])

		db := openDB(ctx)
		c := mustCollection(ctx, db, args[0])
		rec, found, err := c.Replace(ctx, args[1], fields, shard.WriteOptions{Upsert: replaceUpsert})
		if err != nil {
			log.Fatalf("replace: %v", err)
		}
		if !found {
			fmt.Println("not found")
			return
		}
		printRecord(rec)
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateUpsert, "upsert", false, "create the record under <id> if it does not already exist")
	replaceCmd.Flags().BoolVar(&replaceUpsert, "upsert", false, "create the record under <id> if it does not already exist")
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Delete a record by id",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		db := openDB(ctx)
		c := mustCollection(ctx, db, args[0])

		deleted, err := c.Delete(ctx, args[1])
		if err != nil {
			log.Fatalf("delete: %v", err)
		}
		if !deleted {
			fmt.Println("not found")
			return
		}
		fmt.Println("deleted")
	},
}

// parseFields parses a JSON object literal into a field tree, exiting
// on malformed input.
func parseFields(raw string) record.Fields {
	var fields record.Fields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		log.Fatalf("parse fields: %v", err)
	}
	return fields
}

// parseUpdates is parseFields plus one convention: a JSON null leaf
// becomes fieldmerge.Delete, the updates-tree deletion sentinel.
func parseUpdates(raw string) record.Fields {
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		log.Fatalf("parse updates: %v", err)
	}
	return deleteSentinels(generic)
}

func printRecord(rec *record.Record) {
	out, err := json.MarshalIndent(struct {
		ID     string        `json:"_id"`
		Fields record.Fields `json:"fields"`
	}{ID: rec.ID, Fields: rec.Fields}, "", "  ")
	if err != nil {
		log.Fatalf("marshal record: %v", err)
	}
	fmt.Println(string(out))
}
