package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"stegoscope/pkg/analyzer"
	"stegoscope/pkg/analyzer/adapter"
	"stegoscope/pkg/models"
)

// DefaultWorkers caps concurrent analyzer invocations independently of the
// registry size.
const DefaultWorkers = 4

// DefaultTimeout bounds one analyzer invocation unless the descriptor
// overrides it.
const DefaultTimeout = 30 * time.Second

// Pool runs every compatible analyzer for a submission as an isolated unit
// of work. One analyzer's failure never aborts another; the pool always
// drains to completion before returning.
type Pool struct {
	Workers        int
	DefaultTimeout time.Duration

	// AdapterFor resolves a descriptor to its adapter. Nil means the stock
	// resolution; tests inject stubs here.
	AdapterFor func(analyzer.Descriptor) adapter.Adapter
}

// Env carries the submission-scoped invocation inputs shared by all jobs.
type Env struct {
	FilePath  string
	Workspace string
	Data      []byte
	Password  string
}

// Run executes the runnable descriptors concurrently and materializes one
// terminal job per registered descriptor: every runnable one ends OK or
// ERROR, every inapplicable one is recorded SKIPPED, never omitted.
// Cancelling ctx propagates to all in-flight tool processes.
func (p *Pool) Run(ctx context.Context, sub *models.ImageSubmission, run, skip []analyzer.Descriptor, env Env) []models.AnalyzerJob {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	resolve := p.AdapterFor
	if resolve == nil {
		resolve = adapter.For
	}

	jobs := make([]models.AnalyzerJob, 0, len(run)+len(skip))
	for _, d := range skip {
		jobs = append(jobs, models.Skipped(d.Name, d.SkipReason(sub.Format)))
	}

	results := make([]models.AnalyzerJob, len(run))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, d := range run {
		i, d := i, d
		g.Go(func() error {
			results[i] = p.runOne(ctx, d, resolve(d), sub, env)
			return nil
		})
	}
	g.Wait()

	return append(jobs, results...)
}

func (p *Pool) runOne(ctx context.Context, d analyzer.Descriptor, a adapter.Adapter, sub *models.ImageSubmission, env Env) models.AnalyzerJob {
	job := models.AnalyzerJob{Analyzer: d.Name, Status: models.StatusPending}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = p.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outDir := filepath.Join(env.Workspace, d.Name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		job.Status = models.StatusError
		job.Code = models.ReasonCrash
		job.Reason = "workspace setup failed: " + err.Error()
		return job
	}

	l := log.WithFields(log.Fields{
		"analyzer":   d.Name,
		"submission": sub.Hash[:12],
	})
	job.Status = models.StatusRunning
	l.Debug("analyzer started")

	start := time.Now()
	outcome := a.Run(jobCtx, adapter.Env{
		FilePath: env.FilePath,
		OutDir:   outDir,
		Data:     env.Data,
		Password: env.Password,
	})
	job.Duration = time.Since(start)
	job.Elapsed = job.Duration.Milliseconds()

	job.Status = outcome.Status
	job.Code = outcome.Code
	job.Reason = outcome.Reason
	job.Stdout = outcome.Stdout
	job.Stderr = outcome.Stderr
	job.ExitCode = outcome.ExitCode
	job.Artifacts = outcome.Artifacts

	if job.Status == models.StatusError {
		l.WithFields(log.Fields{"code": job.Code, "reason": job.Reason}).Warn("analyzer failed")
	} else {
		l.WithField("duration", job.Duration).Debug("analyzer finished")
	}
	return job
}
