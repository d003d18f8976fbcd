package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/koopa0/rae/internal/app"
	"github.com/koopa0/rae/internal/config"
	"github.com/koopa0/rae/internal/retrieval"
)

var searchFlags struct {
	tenant     string
	project    string
	topK       int
	tags       []string
	since      string
	until      string
	minImp     float64
	jsonOutput bool
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the memory store",
	Long: `Search runs one hybrid retrieval: the query is classified, fanned out to
the available strategies, and the fused ranking is printed. The observed
ranking quality is reported back to the weight controller before exit.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.tenant, "tenant", "default", "tenant scope")
	searchCmd.Flags().StringVar(&searchFlags.project, "project", "", "project scope (empty searches all projects)")
	searchCmd.Flags().IntVarP(&searchFlags.topK, "top-k", "k", 10, "number of results")
	searchCmd.Flags().StringSliceVar(&searchFlags.tags, "tag", nil, "require tag (repeatable)")
	searchCmd.Flags().StringVar(&searchFlags.since, "since", "", "only memories created at or after this RFC 3339 time")
	searchCmd.Flags().StringVar(&searchFlags.until, "until", "", "only memories created at or before this RFC 3339 time")
	searchCmd.Flags().Float64Var(&searchFlags.minImp, "min-importance", 0, "drop memories below this importance")
	searchCmd.Flags().BoolVar(&searchFlags.jsonOutput, "json", false, "print the full response as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	a, cleanup, err := app.Setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	q := retrieval.SearchQuery{
		Text:    args[0],
		Tenant:  searchFlags.tenant,
		Project: searchFlags.project,
		TopK:    searchFlags.topK,
		Filters: retrieval.Filters{
			Tags:          searchFlags.tags,
			MinImportance: searchFlags.minImp,
		},
	}
	if q.Filters.TimeRange, err = parseTimeRange(searchFlags.since, searchFlags.until); err != nil {
		return err
	}

	resp, err := a.Engine.Search(ctx, q)
	if err != nil {
		return err
	}

	// One-shot runs close their own feedback loop with the quality proxy.
	if !resp.CacheHit {
		a.Engine.ObserveReward(resp.QueryID, retrieval.QualityProxy(resp.Results))
	}

	if searchFlags.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(resp)
	return nil
}

func parseTimeRange(since, until string) (*retrieval.TimeRange, error) {
	if since == "" && until == "" {
		return nil, nil
	}
	var tr retrieval.TimeRange
	var err error
	if since != "" {
		if tr.Start, err = time.Parse(time.RFC3339, since); err != nil {
			return nil, fmt.Errorf("parsing --since: %w", err)
		}
	}
	if until != "" {
		if tr.End, err = time.Parse(time.RFC3339, until); err != nil {
			return nil, fmt.Errorf("parsing --until: %w", err)
		}
	}
	return &tr, nil
}

func printResponse(resp *retrieval.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return
	}

	for i, r := range resp.Results {
		parts := make([]string, 0, len(r.Contributions))
		for _, c := range r.Contributions {
			parts = append(parts, fmt.Sprintf("%s=%.2f", c.Strategy, c.Weighted))
		}
		fmt.Printf("%2d. %-40s %.3f  [%s]\n", i+1, r.ID, r.Score, strings.Join(parts, " "))
	}

	strategies := make([]string, len(resp.StrategiesUsed))
	for i, s := range resp.StrategiesUsed {
		strategies[i] = string(s)
	}
	fmt.Printf("\nstrategies: %s  weights: %s  cache: %v  total: %s\n",
		strings.Join(strategies, ","),
		resp.AppliedWeights,
		resp.CacheHit,
		resp.Timing.Total.Round(time.Millisecond),
	)
}
