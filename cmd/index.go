package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/app"
)

var indexCmd = &cobra.Command{
	Use:   "index [corpus.json]",
	Short: "Index a JSON document corpus into the knowledge base",
	Long: `Index loads a JSON corpus of the form [{"url", "section", "text"}],
splits long texts into sentence-aligned chunks, embeds each chunk, and
stores it in the knowledge base for retrieval.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context, path string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	res, err := a.Ingestor.IngestReader(ctx, f)
	if err != nil {
		return fmt.Errorf("indexing corpus: %w", err)
	}

	fmt.Printf("Indexed %d chunks from %d entries", res.Chunks, res.Entries)
	if res.Failed > 0 {
		fmt.Printf(" (%d failed)", res.Failed)
	}
	fmt.Println()

	return nil
}
