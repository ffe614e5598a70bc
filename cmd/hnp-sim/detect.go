package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hnp-sim/internal/detect"
)

var detectCmd = &cobra.Command{
	Use:   "detect <event-log>...",
	Short: "Scan simulator event logs for hidden node drops",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := detect.NewDetector("", nil)
		for _, path := range args {
			found, err := d.Detect(path)
			if err != nil {
				return err
			}
			verdict := "clear"
			if found {
				verdict = "detected"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, verdict)
		}
		return nil
	},
}
