package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tendly/social-pipeline/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show draft counts by platform and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.CountByStatus(ctx)
		if err != nil {
			return eris.Wrap(err, "count by status")
		}
		if len(counts) == 0 {
			fmt.Println("No drafts yet.")
			return nil
		}

		totals := map[model.DraftStatus]int{}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PLATFORM\tSTATUS\tCOUNT")
		for _, c := range counts {
			fmt.Fprintf(w, "%s\t%s\t%d\n", c.Platform, c.Status, c.Count)
			totals[c.Status] += c.Count
		}
		fmt.Fprintln(w, "\t\t")
		for _, status := range []model.DraftStatus{
			model.StatusDraft, model.StatusApproved, model.StatusPosted,
			model.StatusRejected, model.StatusFailed,
		} {
			if n, ok := totals[status]; ok {
				fmt.Fprintf(w, "total\t%s\t%d\n", status, n)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
