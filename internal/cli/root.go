package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"shoprag/config"
	"shoprag/internal/logger"
	"shoprag/internal/metrics"
)

var (
	cfgFile     string
	cfg         *config.Config
	rootDir     string
	logLevel    string
	metricsAddr string

	log           *zap.Logger
	appMetrics    *metrics.Metrics
	metricsServer *http.Server
)

var rootCmd = &cobra.Command{
	Use:   "shoprag",
	Short: "Shop retrieval core - knowledge index, product matcher and order status",
	Long: `shoprag maintains the store's knowledge index, ranks catalog items against
text or image descriptions, and derives order shipping status.

Example usage:
  shoprag rebuild                          # Rebuild the knowledge index
  shoprag query -q "return policy"         # Search the knowledge index
  shoprag match -q "red striped shirt"     # Rank catalog items
  shoprag order 123                        # Show order status
  shoprag pack -q "where is order #123"    # Assemble context for a message`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := applyOverrides(cmd, cfg); err != nil {
			return fmt.Errorf("failed to apply config overrides: %w", err)
		}

		log, err = logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		appMetrics = metrics.New(nil)
		if cfg.Metrics.Addr != "" {
			startMetricsServer(cfg.Metrics.Addr)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(ctx)
		}
		if log != nil {
			_ = log.Sync()
		}
		return nil
	},
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./shoprag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
}

// applyOverrides layers SHOPRAG_* environment variables and the global
// flags over the loaded file config, e.g. SHOPRAG_EMBEDDING_PROVIDER=hash.
func applyOverrides(cmd *cobra.Command, c *config.Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return err
	}
	v.SetEnvPrefix("SHOPRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		v.Set("logging.level", f.Value.String())
	}
	if f := flags.Lookup("metrics-addr"); f != nil && f.Changed {
		v.Set("metrics.addr", f.Value.String())
	}

	merged := &config.Config{}
	if err := v.Unmarshal(merged); err != nil {
		return err
	}
	if err := merged.Validate(); err != nil {
		return err
	}
	*c = *merged
	return nil
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", appMetrics.Handler())
	metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
