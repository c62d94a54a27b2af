package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tendly/social-pipeline/internal/fetcher"
	"github.com/tendly/social-pipeline/internal/generator"
	"github.com/tendly/social-pipeline/internal/summarizer"
	anthropicpkg "github.com/tendly/social-pipeline/pkg/anthropic"
)

var (
	generateURL    string
	generateDays   int
	generateLimit  int
	generateDryRun bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate social media drafts from tender notices",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if !generateDryRun && cfg.Anthropic.Key == "" {
			return eris.New("anthropic key is required (SOCO_ANTHROPIC_KEY)")
		}

		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
		summ := summarizer.New(anthropicClient, cfg.Anthropic.Model)
		fetch := fetcher.NewTendly(
			time.Duration(cfg.Fetch.TimeoutSecs)*time.Second,
			cfg.Fetch.RatePerSec,
		)

		gen := generator.New(st, summ, fetch)

		days := generateDays
		if days <= 0 {
			days = cfg.Generate.LookbackDays
		}
		limit := generateLimit
		if limit <= 0 {
			limit = cfg.Generate.Limit
		}

		result, err := gen.Run(ctx, generator.Params{
			URL:    generateURL,
			Days:   days,
			Limit:  limit,
			DryRun: generateDryRun,
		})
		if err != nil {
			return eris.Wrap(err, "generate run")
		}

		zap.L().Info("generation complete",
			zap.Int("generated", result.Generated),
			zap.Int("errors", result.Errors),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateURL, "url", "", "single tender page URL (skips catalog batch)")
	generateCmd.Flags().IntVar(&generateDays, "days", 0, "lookback window for new tenders (default from config)")
	generateCmd.Flags().IntVar(&generateLimit, "limit", 0, "max tenders to process (default from config)")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "store placeholder drafts without calling the completion API")
	rootCmd.AddCommand(generateCmd)
}
