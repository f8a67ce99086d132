package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"shoprag/internal/adapter/source"
	"shoprag/internal/usecase"
)

var catalogIndex bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the product catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import products and orders from a YAML seed file",
	Long: `Import catalog items, their images and orders from a YAML seed file.
Image paths in the file are relative to the file itself.

With --index the imported products are embedded and upserted into the
knowledge index without a full rebuild.

Examples:
  shoprag catalog import seed.yaml
  shoprag catalog import seed.yaml --index`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogImport,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogImportCmd)
	catalogImportCmd.Flags().BoolVar(&catalogIndex, "index", false, "upsert the catalog into the knowledge index")
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.catalog.ImportFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported into %s:\n", a.catalog.Path())
	fmt.Printf("  Items:  %d\n", stats.Items)
	fmt.Printf("  Images: %d\n", stats.Images)
	fmt.Printf("  Orders: %d\n", stats.Orders)

	if !catalogIndex {
		return nil
	}

	records, err := source.NewCatalogFeed(a.catalog).Sources(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nUpserting %d catalog records...\n", len(records))
	result, err := a.index.Upsert(ctx, records, usecase.WithProgress(newProgress("Upserting")))
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	printRebuildResult(result)
	return nil
}
