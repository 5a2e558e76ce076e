package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	searchK    int
	searchMode string
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Search indexed documents",
	Long: `Returns the passages most relevant to a question, with citations.

Hybrid mode (the default) combines keyword (BM25) and semantic (embedding)
search. Use --mode lexical or --mode semantic to use one index only.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from indexed documents",
	Long: `Retrieves passages like query, then asks the configured LLM to answer
from those passages alone, citing its sources.

Requires llm.provider to be configured (see: sercha-rag settings keys).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	for _, c := range []*cobra.Command{queryCmd, askCmd} {
		c.Flags().IntVarP(&searchK, "limit", "n", 0, "maximum number of passages (0 = configured default)")
		c.Flags().StringVarP(&searchMode, "mode", "m", string(domain.SearchModeHybrid), "search mode: lexical, semantic or hybrid")
		rootCmd.AddCommand(c)
	}
}

func searchOptions() (domain.QueryOptions, error) {
	mode, err := domain.ParseSearchMode(searchMode)
	if err != nil {
		return domain.QueryOptions{}, err
	}
	if searchK < 0 {
		return domain.QueryOptions{}, fmt.Errorf("%w: --limit must not be negative", domain.ErrValidation)
	}
	return domain.QueryOptions{Mode: mode, K: searchK}, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}
	opts, err := searchOptions()
	if err != nil {
		return err
	}

	resp, err := searchService.Query(cmd.Context(), tenant, strings.Join(args, " "), opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if wantJSON(cmd) {
		return printJSON(cmd, resp)
	}
	printResults(cmd.OutOrStdout(), resp.Results)
	for _, w := range resp.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}
	opts, err := searchOptions()
	if err != nil {
		return err
	}

	answer, err := searchService.Ask(cmd.Context(), tenant, strings.Join(args, " "), opts)
	if errors.Is(err, domain.ErrLLMUnavailable) {
		return fmt.Errorf("%w: set llm.provider, or use the query command", err)
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if wantJSON(cmd) {
		return printJSON(cmd, answer)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for i := range answer.Sources {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, answer.Sources[i].Citation)
		}
	}
	return nil
}

func printResults(w io.Writer, results []domain.QueryResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintln(w, "Results:")
	fmt.Fprintln(w)
	for i := range results {
		r := &results[i]
		// Format: [N] citation (score)
		fmt.Fprintf(w, "  [%d] %s (%.2f)\n", i+1, r.Citation, r.Score)
		fmt.Fprintf(w, "      %s\n", truncate(strings.Join(strings.Fields(r.Content), " "), 160))
		fmt.Fprintln(w)
	}
}
