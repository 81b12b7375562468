package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"filedex/internal/embedder"
	"filedex/internal/index"
	"filedex/internal/search"
	"filedex/internal/store"
	"filedex/internal/tui"
)

var (
	flagClear       bool
	flagSearchAfter string
	flagRecursive   bool
	flagIndexTUI    bool
)

var indexCmd = &cobra.Command{
	Use:   "index <directory>",
	Short: "Index a directory of files",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveIndexDir(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(2)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer st.Close()

		if flagClear {
			if !st.ClearIndex() {
				return fmt.Errorf("clear index failed")
			}
			fmt.Println("Index cleared.")
		}

		pipe := index.NewFromConfig(cfg, st)

		if flagIndexTUI {
			return tui.RunIndexing(pipe, dir, flagRecursive)
		}

		fmt.Printf("Indexing %s...\n", dir)
		start := time.Now()

		res, err := pipe.IndexDirectory(cmd.Context(), dir, flagRecursive, func(done, total int, msg string) {
			fmt.Printf("\r[%d/%d] %-60.60s", done, total, msg)
		})
		fmt.Println()
		if err != nil {
			return err
		}

		fmt.Printf("Done in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Files:    %d found, %d indexed, %d with OCR\n",
			res.TotalFiles, res.IndexedFiles, res.FilesWithOCR)
		if res.Truncated {
			fmt.Printf("  Scan stopped at the %d file ceiling.\n", cfg.MaxScanFiles)
		}

		stats := st.Statistics()
		fmt.Printf("  Index:    %d files, %s total\n",
			stats.TotalFiles, search.FormatSize(stats.TotalSize))

		if flagSearchAfter != "" {
			eng := search.NewEngine(st, embedder.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbedModel), nil, cfg)
			results := eng.Search(cmd.Context(), flagSearchAfter, 10)
			fmt.Printf("\nTop matches for %q:\n", flagSearchAfter)
			if len(results) == 0 {
				fmt.Println("  (none)")
			}
			for _, r := range results {
				fmt.Printf("  %s | %s | ocr=%v\n", r.Name, r.Label, r.HasOCR)
			}
		}

		return nil
	},
}

// resolveIndexDir validates the positional argument. Any failure here
// exits with status 2, including a missing argument.
func resolveIndexDir(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one directory argument")
	}
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	return dir, nil
}

func init() {
	indexCmd.Flags().BoolVar(&flagClear, "clear", false, "clear the index before indexing")
	indexCmd.Flags().StringVar(&flagSearchAfter, "search", "", "run a search after indexing and print top matches")
	indexCmd.Flags().BoolVar(&flagRecursive, "recursive", true, "descend into subdirectories")
	indexCmd.Flags().BoolVar(&flagIndexTUI, "tui", false, "show indexing progress in the TUI")
	rootCmd.AddCommand(indexCmd)
}
