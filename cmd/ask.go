package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/app"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question from the command line",
	Long: `Ask sends one question through the conversation graph and prints the
answer with its sources. Pass --session to continue an existing
conversation; without it each invocation starts a fresh session.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), args)
	},
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "",
		"session ID (UUID) to continue a conversation")
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sessionID := askSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	question := strings.Join(args, " ")
	result, err := a.Dispatcher.Process(ctx, question, sessionID)
	if err != nil {
		return fmt.Errorf("processing question: %w", err)
	}

	fmt.Println(result.Answer)
	if len(result.SourceDocuments) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.SourceDocuments {
			fmt.Printf("  %s: %s\n", src.Source, src.Snippet)
		}
	}
	fmt.Printf("\nSession: %s\n", result.SessionID)

	return nil
}
