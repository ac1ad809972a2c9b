package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/middle-housing/internal/model"
	"github.com/sells-group/middle-housing/internal/pipeline"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Manage stored datasets",
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "classify", envOptions{store: true})
		if err != nil {
			return err
		}
		defer env.Close()

		infos, err := env.Store.ListDatasets(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(infos) == 0 {
			fmt.Fprintln(out, "No datasets.") //nolint:errcheck
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCREATED\tPERMITS\tMIDDLE HOUSING") //nolint:errcheck
		for _, d := range infos {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", d.ID, d.Name, d.CreatedAt.Format("2006-01-02 15:04"), d.Total, d.MiddleHousing) //nolint:errcheck
		}
		return tw.Flush()
	},
}

var (
	showFilter string
	showFormat string
	showOutput string
	showLimit  int
)

var datasetsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "classify", envOptions{store: true})
		if err != nil {
			return err
		}
		defer env.Close()

		ds, err := env.Store.GetDataset(ctx, args[0])
		if err != nil {
			return err
		}
		res := &pipeline.Result{Dataset: ds, Summary: model.Summarize(ds.Records)}
		return writeResult(cmd, res, showFormat, model.ParseFilterStatus(showFilter), showOutput, showLimit)
	},
}

var datasetsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm", "reset"},
	Short:   "Delete a stored dataset",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "classify", envOptions{store: true})
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.DeleteDataset(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0]) //nolint:errcheck
		return nil
	},
}

func init() {
	datasetsShowCmd.Flags().StringVar(&showFilter, "filter", "all", "records to show: all, middle_housing_only, excluded")
	datasetsShowCmd.Flags().StringVar(&showFormat, "format", "table", "output format: table, json, csv, xlsx")
	datasetsShowCmd.Flags().StringVarP(&showOutput, "output", "o", "", "output file (default stdout)")
	datasetsShowCmd.Flags().IntVar(&showLimit, "limit", 0, "max table rows (0 = all)")

	datasetsCmd.AddCommand(datasetsListCmd, datasetsShowCmd, datasetsDeleteCmd)
	rootCmd.AddCommand(datasetsCmd)
}
