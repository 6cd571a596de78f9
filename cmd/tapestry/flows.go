package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/tapestry/pkg/flows"
	"github.com/spf13/cobra"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List the registered flows",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := flows.NewRegistry()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tNAME")
		for _, f := range reg.All() {
			fmt.Fprintf(tw, "%s\t%s\n", f.Key(), f.Name())
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)
}
