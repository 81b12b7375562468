package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"filedex/internal/embedder"
	"filedex/internal/search"
	"filedex/internal/store"
)

var flagLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer st.Close()

		var rr search.Reranker
		if cfg.UseOpenAIRerank && cfg.OpenAIKey != "" {
			if r, err := search.NewOpenAIReranker(cfg.OpenAIKey, cfg.OpenAIModel); err == nil {
				rr = r
			}
		}

		eng := search.NewEngine(st, embedder.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbedModel), rr, cfg)
		query := strings.Join(args, " ")
		results := eng.Search(cmd.Context(), query, flagLimit)

		if len(results) == 0 {
			fmt.Printf("No results for %q\n", query)
			return nil
		}

		fmt.Printf("%d results for %q:\n\n", len(results), query)
		for i, r := range results {
			marker := " "
			if !r.Exists {
				marker = "!"
			}
			fmt.Printf("%2d.%s %s  (%.0f%%)\n", i+1, marker, r.Name, r.Relevance*100)
			fmt.Printf("     %s | %s | %s\n", r.Category, r.SizeFormatted, r.Path)
			if r.Label != "" {
				fmt.Printf("     label: %s\n", r.Label)
			}
			if r.OCRPreview != "" {
				fmt.Printf("     ocr: %s\n", r.OCRPreview)
			}
		}

		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum results")
	rootCmd.AddCommand(searchCmd)
}
