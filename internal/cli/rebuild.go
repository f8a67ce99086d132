package cli

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"shoprag/internal/adapter/source"
	"shoprag/internal/usecase"
)

var rebuildNoBuiltin bool

var rebuildCmd = &cobra.Command{
	Use:     "rebuild",
	Aliases: []string{"index"},
	Short:   "Rebuild the knowledge index",
	Long: `Render every knowledge source (built-in storefront pages, features and
policies, knowledge files under index.knowledge_dir, and catalog products and
categories), embed them and replace the knowledge index in one step.
The index is stored in .shoprag/index.db within the root directory.

Examples:
  shoprag rebuild
  shoprag rebuild --no-builtin -d /path/to/shop`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().BoolVar(&rebuildNoBuiltin, "no-builtin", false, "skip the built-in storefront knowledge")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	feed := source.MultiFeed{}
	if !rebuildNoBuiltin {
		feed = append(feed, source.DefaultFeed())
	}
	knowledgeDir := resolvePath(cfg.Index.KnowledgeDir)
	if info, err := os.Stat(knowledgeDir); err == nil && info.IsDir() {
		fmt.Printf("Scanning %s...\n", knowledgeDir)
		feed = append(feed, source.NewFileFeed(knowledgeDir, cfg.Index.Includes, cfg.Index.Excludes))
	}
	feed = append(feed, source.NewCatalogFeed(a.catalog))

	records, err := feed.Sources(ctx)
	if err != nil {
		return fmt.Errorf("failed to read knowledge sources: %w", err)
	}

	fmt.Printf("Embedding %d source records with %s...\n", len(records), a.embedder.ModelName())
	result, err := a.index.Rebuild(ctx, records, usecase.WithProgress(newProgress("Embedding")))
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	printRebuildResult(result)
	fmt.Printf("\nIndex holds %d documents\n", a.store.Count())
	return nil
}

// newProgress returns a progress callback drawing a bar sized on the first call.
func newProgress(label string) usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	return func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", label)),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		_ = bar.Set(done)

		if done > 0 {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			remaining := total - done
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
			}
		}
	}
}

func printRebuildResult(result *usecase.RebuildResult) {
	fmt.Printf("\nRebuild complete in %s:\n", formatDuration(result.Duration))
	fmt.Printf("  Documents:  %d\n", result.Documents)
	fmt.Printf("  Skipped:    %d (malformed)\n", result.Skipped)
	fmt.Printf("  Duplicates: %d (last record kept)\n", result.Duplicates)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
