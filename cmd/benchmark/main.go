package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shoprag/config"
	"shoprag/internal/adapter/catalog"
	"shoprag/internal/adapter/embedding"
	"shoprag/internal/adapter/memstore"
	"shoprag/internal/adapter/source"
	"shoprag/internal/domain"
	"shoprag/internal/port"
	"shoprag/internal/usecase"
)

func main() {
	rootPath := flag.String("dir", ".", "Shop root directory (config, knowledge files, catalog)")
	provider := flag.String("provider", "", "Override the embedding provider (e.g. hash)")
	query := flag.String("q", "", "Optional query to inspect after the check")
	topK := flag.Int("k", 5, "Number of results for -q")
	flag.Parse()

	cfg, err := config.LoadFromDir(*rootPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *provider != "" {
		cfg.Embedding.Provider = *provider
	}

	embedder, err := embedding.New(cfg.Embedding, nil, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	records, err := loadSources(*rootPath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading sources: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	ix := usecase.NewKnowledgeIndex(memstore.NewVectorCollection(), embedder, nil, cfg.Index, nil, nil)

	fmt.Println("SELF-RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())

	start := time.Now()
	result, err := ix.Rebuild(ctx, records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rebuild error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Documents indexed: %d (skipped %d) in %s\n", result.Documents, result.Skipped, time.Since(start).Round(time.Millisecond))
	fmt.Println(strings.Repeat("-", 70))

	hits, total := 0, 0
	totalSim := 0.0
	for _, rec := range records {
		doc, err := source.Render(rec)
		if err != nil {
			continue
		}
		total++

		results, err := ix.Query(ctx, doc.Text, 1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query error: %v\n", err)
			os.Exit(1)
		}
		if len(results) > 0 && results[0].Document.ID == doc.ID {
			hits++
			totalSim += results[0].Similarity
			continue
		}
		got := "<none>"
		if len(results) > 0 {
			got = results[0].Document.ID
		}
		fmt.Printf("MISS %s -> %s\n", doc.ID, got)
	}

	if total == 0 {
		fmt.Println("No documents to check.")
		return
	}

	rate := float64(hits) / float64(total)
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Self-retrieval:     %d / %d (%.1f%%)\n", hits, total, rate*100)
	if hits > 0 {
		fmt.Printf("  Average similarity: %.3f\n", totalSim/float64(hits))
	}

	if rate == 1 {
		fmt.Println("  Status: GOOD - every document is its own nearest neighbour")
	} else if rate > 0.9 {
		fmt.Println("  Status: OK - a few documents collide")
	} else {
		fmt.Println("  Status: POOR - check the embedding model or duplicate texts")
	}

	if *query != "" {
		inspect(ctx, ix, *query, *topK)
	}
}

func loadSources(root string, cfg *config.Config) ([]domain.SourceRecord, error) {
	feed := source.MultiFeed{source.DefaultFeed()}

	dir := cfg.Index.KnowledgeDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		feed = append(feed, source.NewFileFeed(dir, cfg.Index.Includes, cfg.Index.Excludes))
	}

	catPath := cfg.Catalog.Path
	if !filepath.IsAbs(catPath) {
		catPath = filepath.Join(root, catPath)
	}
	if _, err := os.Stat(catPath); err == nil {
		cat, err := catalog.Open(catPath)
		if err != nil {
			return nil, err
		}
		defer cat.Close()
		feed = append(feed, source.NewCatalogFeed(cat))
	}

	return feed.Sources(context.Background())
}

func inspect(ctx context.Context, r port.KnowledgeRetriever, query string, k int) {
	fmt.Println()
	fmt.Printf("Query: \"%s\"\n", query)
	fmt.Println(strings.Repeat("-", 70))

	results, err := r.Query(ctx, query, k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}

	for i, res := range results {
		preview := res.Document.Text
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		rating := "LOW"
		if res.Similarity > 0.7 {
			rating = "HIGH"
		} else if res.Similarity > 0.5 {
			rating = "GOOD"
		} else if res.Similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating, res.Similarity, res.Document.ID)
		fmt.Printf("   %s\n\n", preview)
	}
}
