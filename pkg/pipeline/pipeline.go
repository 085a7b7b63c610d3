package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"stegoscope/pkg/analyzer"
	"stegoscope/pkg/analyzer/adapter"
	"stegoscope/pkg/dispatch"
	"stegoscope/pkg/extract"
	"stegoscope/pkg/format"
	"stegoscope/pkg/models"
	"stegoscope/pkg/report"
)

// Options configure one submission's analysis run.
type Options struct {
	// Deep enables the deep-only analyzers (transform-domain tools).
	Deep bool
	// Password is forwarded to passphrase-aware tools.
	Password string
	// FormatHint is the caller's declared format. It is recorded on the
	// submission but magic-byte detection always wins.
	FormatHint models.Format
	// Filename is the original upload name, for the record only.
	Filename string

	// Workers bounds concurrent analyzer invocations.
	Workers int
	// DefaultTimeout bounds each analyzer invocation unless its descriptor
	// overrides it.
	DefaultTimeout time.Duration
	// ArtifactDir, when set, hosts the submission workspace and the
	// workspace is retained after the run. Otherwise a temp dir is used and
	// removed once the report is built.
	ArtifactDir string

	// Registry overrides the stock analyzer battery.
	Registry *analyzer.Registry
	// AdapterFor overrides adapter resolution. Tests inject stubs here.
	AdapterFor func(analyzer.Descriptor) adapter.Adapter
}

// Analyze runs the full pipeline for one carrier: format detection, the
// concurrent analyzer battery, the selector search for plane-addressable
// formats, and aggregation. The only error path is a submission the format
// detector cannot process at all; every per-analyzer and per-selector
// failure is captured inside the report.
func Analyze(ctx context.Context, data []byte, opts Options) (*models.Report, error) {
	detected, err := format.Detect(data)
	if err != nil {
		return nil, fmt.Errorf("submission rejected: %w", err)
	}

	sub := models.NewSubmission(data, detected, opts.FormatHint, opts.Filename)
	l := log.WithFields(log.Fields{
		"submission": sub.Hash[:12],
		"format":     sub.Format,
	})
	l.Info("analysis started")

	workspace, cleanup, err := makeWorkspace(opts.ArtifactDir, sub.Hash)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	carrierPath := filepath.Join(workspace, "carrier"+extensionFor(sub.Format))
	if err := os.WriteFile(carrierPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("stage carrier: %w", err)
	}

	registry := opts.Registry
	if registry == nil {
		registry = analyzer.Default()
	}
	run, skip := registry.Compatible(sub.Format, opts.Deep)

	pool := &dispatch.Pool{
		Workers:        opts.Workers,
		DefaultTimeout: opts.DefaultTimeout,
		AdapterFor:     opts.AdapterFor,
	}

	// The analyzer battery and the selector search are unrelated; they run
	// concurrently, not sequentially.
	var (
		wg       sync.WaitGroup
		jobs     []models.AnalyzerJob
		attempts []models.ExtractionAttempt
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		jobs = pool.Run(ctx, sub, run, skip, dispatch.Env{
			FilePath:  carrierPath,
			Workspace: workspace,
			Data:      data,
			Password:  opts.Password,
		})
	}()
	if sub.Format.PlaneAddressable() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var engineErr error
			attempts, engineErr = extract.New().Run(data)
			if engineErr != nil {
				l.WithError(engineErr).Warn("selector search unavailable for carrier")
			}
		}()
	}
	wg.Wait()

	rep := report.Build(sub, jobs, attempts)
	l.WithFields(log.Fields{
		"ok":      rep.Summary.OKCount,
		"skipped": rep.Summary.SkippedCount,
		"error":   rep.Summary.ErrorCount,
	}).Info("analysis finished")
	return rep, nil
}

func makeWorkspace(artifactDir, hash string) (string, func(), error) {
	if artifactDir != "" {
		dir := filepath.Join(artifactDir, hash)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create workspace: %w", err)
		}
		return dir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "stegoscope-")
	if err != nil {
		return "", nil, fmt.Errorf("create workspace: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func extensionFor(f models.Format) string {
	switch f {
	case models.FormatPNG:
		return ".png"
	case models.FormatJPEG:
		return ".jpg"
	case models.FormatBMP:
		return ".bmp"
	case models.FormatGIF:
		return ".gif"
	case models.FormatTIFF:
		return ".tiff"
	case models.FormatWEBP:
		return ".webp"
	}
	return ".bin"
}
