package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"shoprag/internal/adapter/caption"
	"shoprag/internal/domain"
	"shoprag/internal/usecase"
)

var (
	matchText  string
	matchImage string
	matchLimit int
	matchJSON  bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank catalog items against a description or an image",
	Long: `Rank the catalog against a text description, or against an image that is
captioned first. Image searches compare the upload with the stored product
images; text searches use the weighted composite of the semantic, keyword,
category and visual-text signals.

Examples:
  shoprag match -q "red striped cotton shirt"
  shoprag match --image photo.jpg --limit 3 --json`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().StringVarP(&matchText, "query", "q", "", "product description")
	matchCmd.Flags().StringVar(&matchImage, "image", "", "image file to search with")
	matchCmd.Flags().IntVarP(&matchLimit, "limit", "l", 0, "maximum results (default from config)")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "output as JSON")
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if matchText == "" && matchImage == "" {
		return fmt.Errorf("either --query or --image is required")
	}
	ctx := cmd.Context()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var result usecase.ImageSearchResult
	if matchImage != "" {
		data, err := os.ReadFile(matchImage)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		captioner, err := caption.New(cfg.Caption)
		if err != nil {
			return fmt.Errorf("failed to create captioner: %w", err)
		}
		search := usecase.NewImageSearch(captioner, a.embedder, a.catalog, a.matcher, cfg.Match, cfg.Caption, log, appMetrics)
		res, err := search.Search(ctx, data, matchLimit)
		if err != nil {
			return fmt.Errorf("image search failed: %w", err)
		}
		result = *res
	} else {
		items, err := a.catalog.ListItems(ctx)
		if err != nil {
			return fmt.Errorf("failed to list catalog: %w", err)
		}
		result = usecase.ImageSearchResult{
			Description:      matchText,
			DetectedCategory: a.matcher.DetectCategory(matchText),
			Matches:          a.matcher.Match(ctx, matchText, items, nil, matchLimit),
		}
	}

	if matchJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Description: %s\n", result.Description)
	fmt.Printf("Category:    %s\n", result.DetectedCategory)
	if keywords := a.matcher.ExtractKeywords(result.Description); len(keywords) > 0 {
		fmt.Printf("Keywords:    %s\n", strings.Join(keywords, ", "))
	}
	fmt.Println()

	if len(result.Matches) == 0 {
		fmt.Println("No matching products.")
		return nil
	}
	for i, m := range result.Matches {
		printMatch(i+1, m)
	}
	return nil
}

func printMatch(n int, m domain.MatchResult) {
	marker := ""
	if m.VisualMatch {
		marker = " [visual]"
	}
	fmt.Printf("[%d] %s - %s (%s, $%.2f)%s\n", n, m.ItemID, m.Item.Name, m.Item.Category, m.Item.Price, marker)
	fmt.Printf("    %s\n", m.MatchReason)
	fmt.Printf("    score %.3f  semantic %.2f  keyword %.2f  category %.2f  visual-text %.2f\n",
		m.CompositeScore, m.Signals.Semantic, m.Signals.Keyword, m.Signals.Category, m.Signals.VisualText)
}
