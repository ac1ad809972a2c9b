package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/middle-housing/internal/fetcher"
	"github.com/sells-group/middle-housing/internal/model"
	"github.com/sells-group/middle-housing/internal/pipeline"
)

// inputFlags are shared by the commands that read a permit export.
type inputFlags struct {
	file           string
	descriptionCol string
	projectCol     string
	addressCol     string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "permit export: path, http(s):// or ftp:// URL (default: ingest.default_file)")
	cmd.Flags().StringVar(&f.descriptionCol, "description-col", "", "override the description column")
	cmd.Flags().StringVar(&f.projectCol, "project-col", "", "override the project name column")
	cmd.Flags().StringVar(&f.addressCol, "address-col", "", "override the address column")
}

// load reads the export named by --file, falling back to the configured
// default file.
func (f *inputFlags) load(ctx context.Context, loader *fetcher.Loader) (pipeline.Input, error) {
	var (
		t   *fetcher.Table
		err error
	)
	if f.file != "" {
		t, err = loader.Load(ctx, f.file)
	} else {
		t, err = loader.LoadDefault(ctx, cfg.Ingest.DefaultFile)
		if errors.Is(err, fetcher.ErrNoDefault) {
			return pipeline.Input{}, eris.Errorf("no --file given and default file %q not found", cfg.Ingest.DefaultFile)
		}
	}
	if err != nil {
		return pipeline.Input{}, err
	}

	in := pipeline.Input{Name: filepath.Base(t.Source), Header: t.Header, Rows: t.Rows}
	if cols, ok := f.override(t.Columns); ok {
		in.Columns = &cols
	}
	return in, nil
}

// override applies the column flags on top of the resolved columns.
func (f *inputFlags) override(resolved model.ColumnMap) (model.ColumnMap, bool) {
	if f.descriptionCol == "" && f.projectCol == "" && f.addressCol == "" {
		return resolved, false
	}
	cols := resolved
	if f.descriptionCol != "" {
		cols.Description = f.descriptionCol
	}
	if f.projectCol != "" {
		cols.ProjectName = f.projectCol
	}
	if f.addressCol != "" {
		cols.Address = f.addressCol
	}
	return cols, true
}

// openOutput returns stdout for "" or "-", else a created file.
func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create %s", path)
	}
	zap.L().Debug("writing output", zap.String("path", path))
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
