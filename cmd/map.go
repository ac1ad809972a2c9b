package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/middle-housing/internal/geo"
	"github.com/sells-group/middle-housing/internal/model"
	"github.com/sells-group/middle-housing/internal/pipeline"
)

var (
	mapInput      inputFlags
	mapDataset    string
	mapGeoJSON    string
	mapShapefile  string
	mapMiddleOnly bool
	mapGeocode    string
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Geocode permits and write map layers",
	Long: "Geocodes classified permits and writes them as a GeoJSON FeatureCollection " +
		"and/or an ESRI shapefile. Reads an export (--file) or a stored dataset (--dataset).",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mapGeoJSON == "" && mapShapefile == "" {
			return eris.New("one of --geojson or --shapefile is required")
		}
		ctx := cmd.Context()

		filter := model.FilterAll
		if mapMiddleOnly {
			filter = model.FilterMiddleHousingOnly
		}

		var records []model.Record
		if mapDataset != "" {
			env, err := initEnv(ctx, "map", envOptions{store: true})
			if err != nil {
				return err
			}
			defer env.Close()
			ds, err := env.Store.GetDataset(ctx, mapDataset)
			if err != nil {
				return err
			}
			records = ds.Records
		} else {
			scope := pipeline.ParseGeocodeScope(mapGeocode)
			env, err := initEnv(ctx, "map", envOptions{scope: scope})
			if err != nil {
				return err
			}
			defer env.Close()

			in, err := mapInput.load(ctx, env.Loader)
			if err != nil {
				return err
			}
			env.Pipeline.OnProgress(newProgressReporter(cmd.ErrOrStderr()).Update)
			res, err := env.Pipeline.Run(ctx, in)
			if err != nil {
				return err
			}
			records = res.Dataset.Records
		}

		return writeMapLayers(cmd, records, filter)
	},
}

func writeMapLayers(cmd *cobra.Command, records []model.Record, filter model.FilterStatus) error {
	out := cmd.OutOrStdout()
	if mapGeoJSON != "" {
		f, err := openOutput(cmd, mapGeoJSON)
		if err != nil {
			return err
		}
		n, err := geo.WriteGeoJSON(f, records, filter)
		if err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", mapGeoJSON)
		}
		if mapGeoJSON != "-" {
			fmt.Fprintf(out, "Wrote %d features to %s\n", n, mapGeoJSON) //nolint:errcheck
		}
	}

	if mapShapefile != "" {
		n, err := geo.WriteShapefile(mapShapefile, records, filter)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %d points to %s\n", n, mapShapefile) //nolint:errcheck
	}

	if b, ok := geo.Bounds(records, filter); ok {
		zap.L().Info("map extent",
			zap.Float64("min_lon", b.Min(0)), zap.Float64("min_lat", b.Min(1)),
			zap.Float64("max_lon", b.Max(0)), zap.Float64("max_lat", b.Max(1)),
		)
	} else {
		zap.L().Warn("no geocoded records to map")
	}
	return nil
}

func init() {
	mapInput.register(mapCmd)
	mapCmd.Flags().StringVar(&mapDataset, "dataset", "", "map a stored dataset instead of reading --file")
	mapCmd.Flags().StringVar(&mapGeoJSON, "geojson", "", "GeoJSON output path (- for stdout)")
	mapCmd.Flags().StringVar(&mapShapefile, "shapefile", "", "shapefile output path (.shp)")
	mapCmd.Flags().BoolVar(&mapMiddleOnly, "middle-only", false, "only map middle-housing permits")
	mapCmd.Flags().StringVar(&mapGeocode, "geocode", "middle_housing", "geocode addresses: none, all, middle_housing")
	rootCmd.AddCommand(mapCmd)
}
