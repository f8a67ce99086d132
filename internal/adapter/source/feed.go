package source

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"shoprag/internal/domain"
	"shoprag/internal/port"
)

//go:embed knowledge.yaml
var builtinKnowledge []byte

// StaticFeed serves a fixed record list.
type StaticFeed []domain.SourceRecord

func (f StaticFeed) Sources(ctx context.Context) ([]domain.SourceRecord, error) {
	return append([]domain.SourceRecord(nil), f...), nil
}

// DefaultFeed returns the built-in storefront pages, features and policies.
func DefaultFeed() StaticFeed {
	records, err := parseKnowledge(builtinKnowledge, "")
	if err != nil {
		panic(fmt.Sprintf("builtin knowledge: %v", err))
	}
	return StaticFeed(records)
}

// FileFeed reads knowledge files under a directory, selected by
// doublestar include and exclude patterns relative to the root.
type FileFeed struct {
	root     string
	includes []string
	excludes []string
}

func NewFileFeed(root string, includes, excludes []string) *FileFeed {
	if len(includes) == 0 {
		includes = []string{"**/*.yaml", "**/*.yml"}
	}
	return &FileFeed{
		root:     root,
		includes: includes,
		excludes: excludes,
	}
}

// Walk lists matching files in lexical order.
func (w *FileFeed) Walk() ([]string, error) {
	var files []string

	root, err := filepath.Abs(w.root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (w *FileFeed) Sources(ctx context.Context) ([]domain.SourceRecord, error) {
	files, err := w.Walk()
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", w.root, err)
	}

	root, err := filepath.Abs(w.root)
	if err != nil {
		return nil, err
	}

	var records []domain.SourceRecord
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		prefix, err := featurePrefix(root, path)
		if err != nil {
			return nil, err
		}
		recs, err := parseKnowledge(data, prefix)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}

// featurePrefix keys a file's features by its path under root, so
// "sub/extras.yaml" numbers them sub_extras_0, sub_extras_1 and so on.
// Built-in features use bare numbers and never collide with these.
func featurePrefix(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	return strings.ReplaceAll(rel, "/", "_") + "_", nil
}

func (w *FileFeed) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *FileFeed) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// CatalogFeed yields one product record per catalog item and one category
// record per distinct category.
type CatalogFeed struct {
	store port.CatalogStore
}

func NewCatalogFeed(store port.CatalogStore) *CatalogFeed {
	return &CatalogFeed{store: store}
}

func (f *CatalogFeed) Sources(ctx context.Context) ([]domain.SourceRecord, error) {
	items, err := f.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	categories, err := f.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	records := make([]domain.SourceRecord, 0, len(items)+len(categories))
	for i := range items {
		item := items[i]
		records = append(records, domain.SourceRecord{
			Kind: domain.SourceProduct,
			Key:  item.ID,
			Item: &item,
		})
	}
	for _, c := range categories {
		records = append(records, domain.SourceRecord{Kind: domain.SourceCategory, Key: c})
	}
	return records, nil
}

// MultiFeed concatenates feeds in order.
type MultiFeed []port.SourceFeed

func (m MultiFeed) Sources(ctx context.Context) ([]domain.SourceRecord, error) {
	var all []domain.SourceRecord
	for _, f := range m {
		recs, err := f.Sources(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, recs...)
	}
	return all, nil
}
