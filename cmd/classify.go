package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/middle-housing/internal/model"
	"github.com/sells-group/middle-housing/internal/pipeline"
	"github.com/sells-group/middle-housing/internal/report"
)

var (
	classifyInput    inputFlags
	classifyFormat   string
	classifyFilter   string
	classifyOutput   string
	classifyLimit    int
	classifyGeocode  string
	classifySave     bool
	classifyProgress bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a permit export",
	Long: "Classifies every permit in an export and prints a table with a summary, " +
		"or writes the records as JSON, CSV or XLSX.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		scope := pipeline.ParseGeocodeScope(classifyGeocode)
		env, err := initEnv(ctx, "classify", envOptions{store: classifySave, scope: scope})
		if err != nil {
			return err
		}
		defer env.Close()

		in, err := classifyInput.load(ctx, env.Loader)
		if err != nil {
			return err
		}
		if classifyProgress {
			env.Pipeline.OnProgress(newProgressReporter(cmd.ErrOrStderr()).Update)
		}

		res, err := env.Pipeline.Run(ctx, in)
		if err != nil {
			return err
		}
		return writeResult(cmd, res, classifyFormat, model.ParseFilterStatus(classifyFilter), classifyOutput, classifyLimit)
	},
}

// writeResult renders a pipeline result in the requested format.
func writeResult(cmd *cobra.Command, res *pipeline.Result, format string, filter model.FilterStatus, output string, limit int) error {
	out, err := openOutput(cmd, output)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	ds := res.Dataset
	switch format {
	case "", "table":
		if _, err := report.RenderTable(out, ds.Records, report.TableOptions{Filter: filter, Limit: limit}); err != nil {
			return err
		}
		title := ds.Name
		if ds.ID != "" {
			title += " (" + ds.ID + ")"
		}
		err = report.RenderSummary(out, title, res.Summary)
	case "json":
		err = report.WriteJSON(out, struct {
			Dataset *model.Dataset `json:"dataset"`
			Summary model.Summary  `json:"summary"`
		}{
			Dataset: &model.Dataset{
				ID:        ds.ID,
				Name:      ds.Name,
				Header:    ds.Header,
				Columns:   ds.Columns,
				CreatedAt: ds.CreatedAt,
				Records:   model.FilterRecords(ds.Records, filter),
			},
			Summary: res.Summary,
		})
	case "csv":
		_, err = report.WriteCSV(out, ds, filter)
	case "xlsx":
		if output == "" || output == "-" {
			return eris.New("xlsx output requires --output")
		}
		_, err = report.WriteXLSX(out, ds, filter)
	default:
		return eris.Errorf("unknown format %q (table, json, csv, xlsx)", format)
	}
	if err != nil {
		return err
	}
	return out.Close()
}

func init() {
	classifyInput.register(classifyCmd)
	classifyCmd.Flags().StringVar(&classifyFormat, "format", "table", "output format: table, json, csv, xlsx")
	classifyCmd.Flags().StringVar(&classifyFilter, "filter", "all", "records to show: all, middle_housing_only, excluded")
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "", "output file (default stdout)")
	classifyCmd.Flags().IntVar(&classifyLimit, "limit", 0, "max table rows (0 = all)")
	classifyCmd.Flags().StringVar(&classifyGeocode, "geocode", "none", "geocode addresses: none, all, middle_housing")
	classifyCmd.Flags().BoolVar(&classifySave, "save", false, "persist the classified dataset to the store")
	classifyCmd.Flags().BoolVar(&classifyProgress, "progress", false, "show a progress bar on stderr")
	rootCmd.AddCommand(classifyCmd)
}
