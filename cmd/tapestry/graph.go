package main

import (
	"fmt"

	"github.com/aretw0/tapestry/internal/cli"
	"github.com/aretw0/tapestry/internal/presentation/graph"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print a model of the network as a Mermaid flowchart",
	RunE: func(cmd *cobra.Command, args []string) error {
		networkPath, _ := cmd.Flags().GetString("network")
		modelID, _ := cmd.Flags().GetString("model")

		spec, err := cli.LoadNetwork(networkPath)
		if err != nil {
			return err
		}
		net, err := model.Build(spec)
		if err != nil {
			return err
		}
		if modelID == "" {
			modelID = net.RootID()
		}
		m, ok := net.Model(modelID)
		if !ok {
			return fmt.Errorf("unknown model %q", modelID)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(m, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("network", "", "YAML network spec (default: built-in demo network)")
	graphCmd.Flags().String("model", "", "Model to draw (default: root)")
}
