package main

import (
	"fmt"

	"github.com/aretw0/tapestry/internal/cli"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal [session-id]",
	Short: "Inspect recorded session journals",
	Long:  `Without arguments, lists the sessions with a journal. With a session ID, prints its committed, undone and redone transactions.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		del, _ := cmd.Flags().GetBool("delete")

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()

		if len(args) == 0 {
			return cli.PrintSessions(ctx, rt.Journal, cmd.OutOrStdout())
		}
		if del {
			if err := rt.Journal.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted journal for %s\n", args[0])
			return nil
		}
		return cli.PrintJournal(ctx, rt.Journal, args[0], asJSON, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().Bool("json", false, "Print records as JSON")
	journalCmd.Flags().Bool("delete", false, "Delete the session's journal")
}
