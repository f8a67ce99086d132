package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"shoprag/internal/domain"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the knowledge index",
	Long: `Search the knowledge index for the documents nearest to a question.

Examples:
  shoprag query -q "how long does shipping take"
  shoprag query -q "return policy" --top-k 3 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.store.Count() == 0 {
		return fmt.Errorf("knowledge index is empty. Run 'shoprag rebuild' first")
	}

	results, err := a.knowledge.Query(cmd.Context(), queryText, queryTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		printScoredDocument(i+1, r)
	}
	return nil
}

func printScoredDocument(n int, r domain.ScoredDocument) {
	fmt.Printf("--- [%d] %s (%s, similarity: %.2f) ---\n", n, r.Document.ID, r.Document.Metadata["type"], r.Similarity)
	// Truncate long text for display
	text := r.Document.Text
	if len(text) > 500 {
		text = text[:500] + "..."
	}
	fmt.Println(text)
	fmt.Println()
}
