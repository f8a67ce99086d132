package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	packMessage string
	packBudget  int
	packOutput  string
)

var packCmd = &cobra.Command{
	Use:     "pack",
	Aliases: []string{"assemble"},
	Short:   "Assemble the context for a customer message",
	Long: `Classify a customer message and gather what a response needs: knowledge
snippets packed into a token budget, the status of a referenced order, and
product matches for product searches.

Examples:
  shoprag pack -q "where is my order #123"
  shoprag pack -q "looking for a leather handbag" -b 800 -o context.json`,
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().StringVarP(&packMessage, "query", "q", "", "customer message (required)")
	packCmd.Flags().IntVarP(&packBudget, "budget", "b", 0, "token budget (default from config)")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output file (default: stdout)")
	packCmd.MarkFlagRequired("query")
}

func runPack(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if packBudget > 0 {
		cfg.Pack.TokenBudget = packBudget
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	assembled := a.assistant().Assemble(cmd.Context(), packMessage)

	output, err := json.MarshalIndent(assembled, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	if packOutput != "" {
		if err := os.WriteFile(packOutput, output, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Context assembled to: %s\n", packOutput)
		fmt.Printf("  Intent:   %s (%.1f)\n", assembled.Intent.Kind, assembled.Intent.Confidence)
		fmt.Printf("  Snippets: %d\n", len(assembled.Knowledge.Snippets))
		fmt.Printf("  Tokens:   %d / %d\n", assembled.Knowledge.UsedTokens, assembled.Knowledge.BudgetTokens)
		fmt.Printf("  Products: %d\n", len(assembled.Products))
	} else {
		fmt.Println(string(output))
	}

	return nil
}
