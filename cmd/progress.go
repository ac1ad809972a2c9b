package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/sells-group/middle-housing/internal/pipeline"
)

var stageDescriptions = map[string]string{
	pipeline.StageClassify: "[cyan][bold]Classifying permits...[reset]",
	pipeline.StageGeocode:  "[cyan][bold]Geocoding addresses...[reset]",
}

// progressReporter draws one bar per pipeline stage.
type progressReporter struct {
	w    io.Writer
	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w, bars: make(map[string]*progressbar.ProgressBar)}
}

// Update satisfies pipeline.ProgressFunc.
func (p *progressReporter) Update(stage string, done, total int) {
	if total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	bar, ok := p.bars[stage]
	if !ok {
		bar = p.newBar(stage, total)
		p.bars[stage] = bar
	}
	if err := bar.Set(done); err != nil {
		zap.L().Warn("failed to update progress bar", zap.Error(err))
	}
}

func (p *progressReporter) newBar(stage string, total int) *progressbar.ProgressBar {
	desc, ok := stageDescriptions[stage]
	if !ok {
		desc = stage
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(p.w)
		}),
	)
}
