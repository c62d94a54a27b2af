package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tendly/social-pipeline/internal/fetcher"
	"github.com/tendly/social-pipeline/internal/generator"
	"github.com/tendly/social-pipeline/internal/pipeline"
	"github.com/tendly/social-pipeline/internal/publisher"
	"github.com/tendly/social-pipeline/internal/review"
	"github.com/tendly/social-pipeline/internal/summarizer"
	anthropicpkg "github.com/tendly/social-pipeline/pkg/anthropic"
	"github.com/tendly/social-pipeline/pkg/arcade"
)

var (
	pipelineDays         int
	pipelineLimit        int
	pipelinePlatform     string
	pipelineDelay        int
	pipelineDryRun       bool
	pipelineHeadless     bool
	pipelineSkipGenerate bool
	pipelineSkipReview   bool
	pipelineSkipPost     bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run generate, review, and post in sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if !pipelineSkipGenerate && !pipelineDryRun && cfg.Anthropic.Key == "" {
			return eris.New("anthropic key is required (SOCO_ANTHROPIC_KEY)")
		}
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
		summ := summarizer.New(anthropicClient, cfg.Anthropic.Model)
		fetch := fetcher.NewTendly(
			time.Duration(cfg.Fetch.TimeoutSecs)*time.Second,
			cfg.Fetch.RatePerSec,
		)
		gen := generator.New(st, summ, fetch)

		session := review.New(st, os.Stdin, os.Stdout)

		var arcadeClient arcade.Client
		if !pipelineSkipPost && !pipelineDryRun {
			if cfg.Arcade.Key == "" {
				return eris.New("arcade key is required (SOCO_ARCADE_KEY)")
			}
			arcadeClient = arcade.NewClient(cfg.Arcade.Key, cfg.Arcade.UserID,
				arcade.WithBaseURL(cfg.Arcade.BaseURL))
		}
		pub := publisher.New(st, arcadeClient, cfg.Post.LinkedInPage)

		days := pipelineDays
		if days <= 0 {
			days = cfg.Generate.LookbackDays
		}
		limit := pipelineLimit
		if limit <= 0 {
			limit = cfg.Generate.Limit
		}
		delay := pipelineDelay
		if delay < 0 {
			delay = cfg.Post.DelaySecs
		}

		runner := pipeline.NewRunner(gen, session, pub)
		results, ok := runner.Run(ctx, pipeline.Options{
			Generate: generator.Params{
				Days:   days,
				Limit:  limit,
				DryRun: pipelineDryRun,
			},
			Post: publisher.Params{
				Platform: pipelinePlatform,
				Limit:    cfg.Post.Limit,
				Delay:    time.Duration(delay) * time.Second,
				DryRun:   pipelineDryRun,
			},
			SkipGenerate: pipelineSkipGenerate,
			SkipReview:   pipelineSkipReview,
			SkipPost:     pipelineSkipPost,
			Headless:     pipelineHeadless,
		})

		for _, res := range results {
			if res.Err != nil {
				zap.L().Warn("stage failed",
					zap.String("stage", res.Name),
					zap.Error(res.Err),
				)
			}
		}
		if !ok {
			return eris.New("pipeline finished with failed stages")
		}
		return nil
	},
}

func init() {
	pipelineCmd.Flags().IntVar(&pipelineDays, "days", 0, "lookback window for new tenders (default from config)")
	pipelineCmd.Flags().IntVar(&pipelineLimit, "limit", 0, "max tenders to process (default from config)")
	pipelineCmd.Flags().StringVar(&pipelinePlatform, "platform", "", "restrict posting to one platform")
	pipelineCmd.Flags().IntVar(&pipelineDelay, "delay", -1, "seconds between posts (default from config)")
	pipelineCmd.Flags().BoolVar(&pipelineDryRun, "dry-run", false, "simulate every stage without external calls")
	pipelineCmd.Flags().BoolVar(&pipelineHeadless, "headless", false, "unattended run: skip the interactive review gate")
	pipelineCmd.Flags().BoolVar(&pipelineSkipGenerate, "skip-generate", false, "skip the generate stage")
	pipelineCmd.Flags().BoolVar(&pipelineSkipReview, "skip-review", false, "skip the review stage")
	pipelineCmd.Flags().BoolVar(&pipelineSkipPost, "skip-post", false, "skip the post stage")
	rootCmd.AddCommand(pipelineCmd)
}
