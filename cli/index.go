package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/javanhut/bdb/internal/sortindex"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage sort indexes",
}

var indexFieldType string

func init() {
	for _, c := range []*cobra.Command{indexEnsureCmd, indexBuildCmd} {
		c.Flags().StringVar(&indexFieldType, "type", "", "date|string|number, inferred if omitted")
	}
}

// indexEnsureCmd and indexBuildCmd are the same operation under two
// names: ensureSortIndex builds an index if one doesn't exist yet, or
// loads the existing one. "build" is the more familiar verb for
// first-time construction; "ensure" matches §4's spec name.
var indexEnsureCmd = &cobra.Command{
	Use:   "ensure <collection> <field> <asc|desc>",
	Short: "Create (or reopen) a sort index over a field",
	Args:  cobra.ExactArgs(3),
	Run:   runIndexEnsure,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build <collection> <field> <asc|desc>",
	Short: "Bulk-build a sort index over a field (resumes an interrupted build from its checkpoint)",
	Args:  cobra.ExactArgs(3),
	Run:   runIndexEnsure,
}

func runIndexEnsure(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	dir := parseDirection(args[2])
	opts := sortindex.Options{FieldType: sortindex.FieldType(indexFieldType)}

	db := openDB(ctx)
	c := mustCollection(ctx, db, args[0])
	idx, err := c.EnsureSortIndex(ctx, args[1], dir, opts)
	if err != nil {
		log.Fatalf("ensure index: %v", err)
	}
	fmt.Printf("index %s_%s ready: %d entries, %d pages\n", args[1], dir, idx.TotalEntries(), idx.TotalPages())
}

var (
	queryEQ          string
	queryMin, queryMax string
	queryMinEx, queryMaxEx bool
)

func init() {
	indexQueryCmd.Flags().StringVar(&queryEQ, "eq", "", "exact-match value")
	indexQueryCmd.Flags().StringVar(&queryMin, "min", "", "range lower bound")
	indexQueryCmd.Flags().StringVar(&queryMax, "max", "", "range upper bound")
	indexQueryCmd.Flags().BoolVar(&queryMinEx, "min-exclusive", false, "exclude --min from the range")
	indexQueryCmd.Flags().BoolVar(&queryMaxEx, "max-exclusive", false, "exclude --max from the range")
}

var indexQueryCmd = &cobra.Command{
	Use:   "query <collection> <field> <asc|desc>",
	Short: "Point or range query over a sort index",
	Long: `Point or range query over a sort index. --eq performs an exact-match
lookup; --min/--max (either or both) performs a range scan.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		dir := parseDirection(args[2])

		db := openDB(ctx)
		c := mustCollection(ctx, db, args[0])
		idx, err := c.FindByIndex(args[1], dir)
		if err != nil {
			log.Fatalf("query: %v", err)
		}

		var entries []sortindex.Entry
		if queryEQ != "" {
			entries, err = idx.FindByValue(ctx, parseQueryValue(queryEQ))
		} else {
			q := sortindex.RangeQuery{MinInclusive: !queryMinEx, MaxInclusive: !queryMaxEx}
			if queryMin != "" {
				q.Min = parseQueryValue(queryMin)
			}
			if queryMax != "" {
				q.Max = parseQueryValue(queryMax)
			}
			entries, err = idx.FindByRange(ctx, q)
		}
		if err != nil {
			log.Fatalf("query: %v", err)
		}
		printEntries(entries)
	},
}

var indexPageCmd = &cobra.Command{
	Use:   "page <collection> <field> <asc|desc> [pageId]",
	Short: "Walk a sort index's leaves in order, one page at a time",
	Args:  cobra.RangeArgs(3, 4),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		dir := parseDirection(args[2])
		pageID := ""
		if len(args) == 4 {
			pageID = args[3]
		}

		db := openDB(ctx)
		c := mustCollection(ctx, db, args[0])
		idx, err := c.FindByIndex(args[1], dir)
		if err != nil {
			log.Fatalf("page: %v", err)
		}
		page, err := idx.GetPage(ctx, pageID)
		if err != nil {
			log.Fatalf("page: %v", err)
		}
		fmt.Printf("page %s of %d, %d total records (next=%q prev=%q)\n",
			page.CurrentPageID, page.TotalPages, page.TotalRecords, page.NextPageID, page.PreviousPageID)
		printEntries(page.Records)
	},
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete <collection> <field> <asc|desc>",
	Short: "Delete a sort index",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		dir := parseDirection(args[2])

		db := openDB(ctx)
		c := mustCollection(ctx, db, args[0])
		if err := c.DeleteSortIndex(ctx, args[1], dir); err != nil {
			log.Fatalf("delete index: %v", err)
		}
		fmt.Println("deleted")
	},
}

func parseDirection(s string) sortindex.Direction {
	switch sortindex.Direction(s) {
	case sortindex.Asc, sortindex.Desc:
		return sortindex.Direction(s)
	default:
		log.Fatalf("direction must be %q or %q, got %q", sortindex.Asc, sortindex.Desc, s)
		return ""
	}
}

// parseQueryValue tries JSON first (so numbers/bools/quoted strings
// parse naturally) and falls back to the raw string for bare date/
// string values typed unquoted on the command line.
func parseQueryValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func printEntries(entries []sortindex.Entry) {
	type row struct {
		ID     string `json:"_id"`
		Value  any    `json:"value"`
		Fields any    `json:"fields"`
	}
	rows := make([]row, len(entries))
	for i, e := range entries {
		rows[i] = row{ID: e.ID, Value: e.Value, Fields: e.Fields}
	}
	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		log.Fatalf("marshal entries: %v", err)
	}
	fmt.Println(string(out))
}
