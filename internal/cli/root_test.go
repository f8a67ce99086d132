package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shoprag/config"
	"shoprag/internal/adapter/memstore"
	"shoprag/internal/adapter/store"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("metrics-addr", "", "")
	return cmd
}

func TestApplyOverrides_Env(t *testing.T) {
	t.Setenv("SHOPRAG_EMBEDDING_PROVIDER", "hash")
	t.Setenv("SHOPRAG_MATCH_VISUAL_THRESHOLD", "0.25")

	c := config.DefaultConfig()
	if err := applyOverrides(newFlagCommand(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Embedding.Provider != "hash" {
		t.Errorf("expected provider hash, got %s", c.Embedding.Provider)
	}
	if c.Match.VisualThreshold != 0.25 {
		t.Errorf("expected VisualThreshold=0.25, got %f", c.Match.VisualThreshold)
	}
	if c.Embedding.Timeout != 30*time.Second {
		t.Errorf("expected untouched Timeout=30s, got %v", c.Embedding.Timeout)
	}
	if len(c.Index.Includes) != 2 {
		t.Errorf("expected 2 include patterns, got %v", c.Index.Includes)
	}
	if c.Match.KeywordWeight != 0.3 {
		t.Errorf("expected untouched KeywordWeight=0.3, got %f", c.Match.KeywordWeight)
	}
}

func TestApplyOverrides_Flags(t *testing.T) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Set("log-level", "debug"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("metrics-addr", ":9100"); err != nil {
		t.Fatal(err)
	}

	c := config.DefaultConfig()
	if err := applyOverrides(cmd, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %s", c.Logging.Level)
	}
	if c.Metrics.Addr != ":9100" {
		t.Errorf("expected metrics addr :9100, got %s", c.Metrics.Addr)
	}
}

func TestApplyOverrides_Invalid(t *testing.T) {
	t.Setenv("SHOPRAG_MATCH_KEYWORD_WEIGHT", "-1")

	c := config.DefaultConfig()
	if err := applyOverrides(newFlagCommand(), c); err == nil {
		t.Error("expected validation error for negative weight")
	}
	if c.Match.KeywordWeight != 0.3 {
		t.Errorf("config should be unchanged on error, got KeywordWeight=%f", c.Match.KeywordWeight)
	}
}

func TestResolvePath(t *testing.T) {
	old := rootDir
	defer func() { rootDir = old }()
	rootDir = "/srv/shop"

	if got := resolvePath("knowledge"); got != filepath.Join("/srv/shop", "knowledge") {
		t.Errorf("unexpected relative resolution: %s", got)
	}
	if got := resolvePath("/data/catalog.db"); got != "/data/catalog.db" {
		t.Errorf("absolute path should be kept, got %s", got)
	}
}

func TestOpenVectorStore_FollowsLoadedConfig(t *testing.T) {
	oldCfg, oldDir, oldLog := cfg, rootDir, log
	defer func() { cfg, rootDir, log = oldCfg, oldDir, oldLog }()

	cfg = config.DefaultConfig()
	rootDir = t.TempDir()
	log = zap.NewNop()

	if GetConfig() != cfg || GetRootDir() != rootDir {
		t.Fatal("accessors should return the loaded config and root directory")
	}

	cfg.Index.Store = "memory"
	st, err := openVectorStore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.(*memstore.VectorCollection); !ok {
		t.Errorf("expected in-memory store, got %T", st)
	}
	st.Close()

	cfg.Index.Store = "bolt"
	st, err = openVectorStore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*store.BoltVectorStore); !ok {
		t.Errorf("expected bolt store, got %T", st)
	}
	if _, err := os.Stat(config.IndexDBPath(rootDir)); err != nil {
		t.Errorf("expected index db under the root directory: %v", err)
	}

	cfg.Index.Store = "qdrant"
	if _, err := openVectorStore(); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		500 * time.Millisecond:      "<1s",
		42 * time.Second:            "42s",
		125 * time.Second:           "2m5s",
		3*time.Hour + 7*time.Minute: "3h7m",
	}
	for d, want := range cases {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %s, want %s", d, got, want)
		}
	}
}
