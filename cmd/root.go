package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"filedex/internal/config"
)

var (
	flagDB      string
	flagOllama  string
	flagEmbed   string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "filedex",
	Short: "Local file indexing and hybrid search",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default <config dir>/filedex/index.db)")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "", "ollama base URL (default http://localhost:11434)")
	rootCmd.PersistentFlags().StringVar(&flagEmbed, "embed-model", "", "embedding model (default nomic-embed-text)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
}

// loadConfig reads the environment and applies flag overrides. Flags
// win over environment, environment wins over defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagOllama != "" {
		cfg.OllamaURL = flagOllama
	}
	if flagEmbed != "" {
		cfg.EmbedModel = flagEmbed
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return cfg, nil
}
