package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/middle-housing/internal/report"
)

var (
	explainProject string
	explainAddress string
	explainJSON    bool
)

var explainCmd = &cobra.Command{
	Use:   "explain <description>",
	Short: "Show how a permit description is classified",
	Long:  "Prints the normalized inputs, the signal families that fired, the unit count, and the resulting category.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := initClassifier()
		if err != nil {
			return err
		}
		e := c.Explain(strings.Join(args, " "), explainProject, explainAddress)
		out := cmd.OutOrStdout()
		if explainJSON {
			return report.WriteJSON(out, e)
		}

		signals := e.Signals()
		if len(signals) == 0 {
			signals = []string{"(none)"}
		}
		var b strings.Builder
		fmt.Fprintf(&b, "description:  %q\n", e.Description)
		fmt.Fprintf(&b, "project name: %q\n", e.ProjectName)
		fmt.Fprintf(&b, "address:      %q\n", e.Address)
		fmt.Fprintf(&b, "signals:      %s\n", strings.Join(signals, ", "))
		fmt.Fprintf(&b, "unit count:   %d\n", e.UnitCount)
		fmt.Fprintf(&b, "category:     %s (%s)\n", e.Category, e.Category.Label())
		_, err = fmt.Fprint(out, b.String())
		return err
	},
}

func init() {
	explainCmd.Flags().StringVar(&explainProject, "project", "", "project name field")
	explainCmd.Flags().StringVar(&explainAddress, "address", "", "address field")
	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "print the explanation as JSON")
	rootCmd.AddCommand(explainCmd)
}
