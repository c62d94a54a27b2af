package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tendly/social-pipeline/internal/publisher"
	"github.com/tendly/social-pipeline/pkg/arcade"
)

var (
	postPlatform string
	postLimit    int
	postDelay    int
	postDryRun   bool
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post approved drafts to their platforms",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var arcadeClient arcade.Client
		if !postDryRun {
			if cfg.Arcade.Key == "" {
				return eris.New("arcade key is required (SOCO_ARCADE_KEY)")
			}
			arcadeClient = arcade.NewClient(cfg.Arcade.Key, cfg.Arcade.UserID,
				arcade.WithBaseURL(cfg.Arcade.BaseURL))
		}

		pub := publisher.New(st, arcadeClient, cfg.Post.LinkedInPage)

		if !postDryRun {
			if err := pub.CheckAuth(ctx, postPlatform); err != nil {
				return err
			}
		}

		limit := postLimit
		if limit <= 0 {
			limit = cfg.Post.Limit
		}
		delay := postDelay
		if delay < 0 {
			delay = cfg.Post.DelaySecs
		}

		result, err := pub.Run(ctx, publisher.Params{
			Platform: postPlatform,
			Limit:    limit,
			Delay:    time.Duration(delay) * time.Second,
			DryRun:   postDryRun,
		})
		if err != nil {
			return eris.Wrap(err, "post run")
		}

		zap.L().Info("posting complete",
			zap.Int("posted", result.Posted),
			zap.Int("failed", result.Failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	postCmd.Flags().StringVar(&postPlatform, "platform", "", "restrict to one platform (twitter or linkedin)")
	postCmd.Flags().IntVar(&postLimit, "limit", 0, "max posts per run (default from config)")
	postCmd.Flags().IntVar(&postDelay, "delay", -1, "seconds between posts (default from config)")
	postCmd.Flags().BoolVar(&postDryRun, "dry-run", false, "mark drafts posted without calling the posting API")
	rootCmd.AddCommand(postCmd)
}
