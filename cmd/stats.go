package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"filedex/internal/search"
	"filedex/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
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

		stats := st.Statistics()
		fmt.Printf("Indexed files:  %d\n", stats.TotalFiles)
		fmt.Printf("Files with OCR: %d\n", stats.FilesWithOCR)
		fmt.Printf("Total size:     %s\n", search.FormatSize(stats.TotalSize))

		if len(stats.Categories) > 0 {
			fmt.Println("\nBy category:")
			cats := make([]string, 0, len(stats.Categories))
			for c := range stats.Categories {
				cats = append(cats, c)
			}
			sort.Strings(cats)
			for _, c := range cats {
				fmt.Printf("  %-24s %d\n", c, stats.Categories[c])
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
