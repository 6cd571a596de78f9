package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/tapestry/internal/cli"
	"github.com/aretw0/tapestry/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Replay a headless script and print a report",
	Long: `Replays a YAML script of steps (flow, preload, click, motion, select,
answer, cancel, undo, redo, await) against the network it names, through the
same entry points an interactive host uses. Steps may carry expectations; the
command fails on the first one that does not hold.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tty := tui.IsTerminal(os.Stdout)
		return cli.RunScript(ctx, rt, cli.RunOptions{
			ScriptPath: args[0],
			JSON:       asJSON,
			Styled:     tty,
			Banner:     tty,
		}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("json", false, "Print the report as JSON")
}
