package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tadevos/newsrange/internal/checkpoint"
	"github.com/tadevos/newsrange/internal/sentiment"
)

func newSentimentCmd() *cobra.Command {
	var (
		inPath  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "sentiment",
		Short: "Score a checkpoint snapshot with VADER sentiment.",
		Long: `sentiment reads an acquisition snapshot, scores each article's text,
and writes the enriched records as JSON. Articles without body text are
scored on their title.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if inPath == "" {
				inPath = e.cfg.Checkpoint.Path
			}

			results, err := checkpoint.Load(inPath)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			scored := sentiment.NewAnalyzer().ScoreAll(results)

			data, err := json.MarshalIndent(scored, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal scored articles: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}

			e.logger.Info("scored snapshot",
				zap.String("in", inPath),
				zap.String("out", outPath),
				zap.Int("articles", len(scored)),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "", "snapshot JSON to score (default: configured checkpoint path)")
	cmd.Flags().StringVar(&outPath, "out", "data/scored_articles.json", "output JSON path")

	return cmd
}
