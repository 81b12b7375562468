package cmd

import (
	"fmt"

	"filedex/internal/embedder"
	"filedex/internal/search"
	"filedex/internal/store"
	"filedex/internal/tui"
)

func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer st.Close()

	eng := search.NewEngine(st, embedder.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbedModel), nil, cfg)
	return tui.Run(eng)
}
