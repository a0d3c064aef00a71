package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tadevos/newsrange/internal/checkpoint"
	"github.com/tadevos/newsrange/internal/convert"
	"github.com/tadevos/newsrange/internal/sentiment"
)

func newConvertCmd() *cobra.Command {
	var (
		inPath  string
		outPath string
		scored  bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a JSON snapshot to CSV.",
		Long: `convert renders a snapshot as CSV for spreadsheet analysis. With
--scored the input is a sentiment-enriched file and the output carries one
score row per day; otherwise the raw article fields are written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if inPath == "" {
				inPath = e.cfg.Checkpoint.Path
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			out, err := os.Create(outPath) // #nosec G304 -- operator-supplied path
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			defer out.Close()

			var rows int
			if scored {
				data, err := os.ReadFile(inPath) // #nosec G304 -- operator-supplied path
				if err != nil {
					return fmt.Errorf("read %s: %w", inPath, err)
				}
				var articles []sentiment.ScoredArticle
				if err := json.Unmarshal(data, &articles); err != nil {
					return fmt.Errorf("parse scored articles: %w", err)
				}
				if err := convert.SentimentCSV(out, articles); err != nil {
					return err
				}
				rows = len(articles)
			} else {
				results, err := checkpoint.Load(inPath)
				if err != nil {
					return fmt.Errorf("load snapshot: %w", err)
				}
				if err := convert.ArticlesCSV(out, results); err != nil {
					return err
				}
				rows = len(results)
			}

			e.logger.Info("wrote csv",
				zap.String("in", inPath),
				zap.String("out", outPath),
				zap.Int("rows", rows),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "", "input JSON (default: configured checkpoint path)")
	cmd.Flags().StringVar(&outPath, "out", "data/articles.csv", "output CSV path")
	cmd.Flags().BoolVar(&scored, "scored", false, "input is a sentiment-scored file")

	return cmd
}
