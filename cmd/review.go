package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tendly/social-pipeline/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively review pending drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		session := review.New(st, os.Stdin, os.Stdout)
		summary, err := session.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "review run")
		}

		zap.L().Info("review complete",
			zap.Int("approved", summary.Approved),
			zap.Int("rejected", summary.Rejected),
			zap.Int("skipped", summary.Skipped),
			zap.Int("remaining", summary.Remaining),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}
