package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hnp-sim/internal/topology"
)

var scaleCmd = &cobra.Command{
	Use:   "scale <topology> <factor>",
	Short: "Stretch a topology along y",
	Example: `  hnp-sim scale "[0,0,0] [0,10,0] [0,20,0]" 3
  [0,0,0] [0,20,0] [0,40,0]`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("factor %q: %w", args[1], err)
		}
		out, err := topology.Scale(args[0], factor)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}
