package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"stegoscope/pkg/analyzer"
	"stegoscope/pkg/models"
)

// maxCapture bounds captured stdout/stderr per invocation.
const maxCapture = 64 * 1024

// killGrace bounds how long Wait may keep reading output pipes after the
// process group has been signalled.
const killGrace = 2 * time.Second

// ExecAdapter invokes one external detection binary built from the
// descriptor's invocation template and maps its exit semantics into the
// shared status vocabulary.
type ExecAdapter struct {
	Descriptor analyzer.Descriptor
}

// Run executes the tool under the caller's context. The context deadline is
// the hard cancellation bound: on expiry the process is killed and the
// outcome is ERROR/timeout.
func (a *ExecAdapter) Run(ctx context.Context, env Env) Outcome {
	argv := expandArgv(a.Descriptor.Argv, env)
	if len(argv) == 0 {
		return errOutcome(models.ReasonCrash, "empty invocation template")
	}

	if _, err := exec.LookPath(argv[0]); err != nil {
		return errOutcome(models.ReasonUnavailable,
			fmt.Sprintf("dependency missing: %s not found on host", argv[0]))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = env.OutDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Carvers fork; killing only the direct child would leave a grandchild
	// holding the output pipes and Wait blocked past the deadline. Run the
	// tool in its own process group, take the whole group down on cancel,
	// and let WaitDelay abandon the pipes if anything still survives.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = killGrace

	err := cmd.Run()

	out := Outcome{
		Status: models.StatusOK,
		Stdout: clip(stdout.String()),
		Stderr: clip(stderr.String()),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		out.Status = models.StatusError
		out.Code = models.ReasonTimeout
		out.Reason = fmt.Sprintf("%s exceeded its time budget", a.Descriptor.Name)
	case err != nil:
		out.Status = models.StatusError
		out.Code = models.ReasonCrash
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.Reason = fmt.Sprintf("%s exited with status %d", a.Descriptor.Name, exitErr.ExitCode())
		} else {
			out.Reason = err.Error()
		}
	}

	out.Artifacts = collectArtifacts(env.OutDir)
	return out
}

// expandArgv substitutes the {file}, {outdir} and {password} placeholders.
func expandArgv(template []string, env Env) []string {
	argv := make([]string, len(template))
	replacer := strings.NewReplacer(
		"{file}", env.FilePath,
		"{outdir}", env.OutDir,
		"{password}", env.Password,
	)
	for i, arg := range template {
		argv[i] = replacer.Replace(arg)
	}
	return argv
}

// collectArtifacts lists files the tool left in its output directory,
// relative to it, in lexical walk order.
func collectArtifacts(dir string) []string {
	if dir == "" {
		return nil
	}
	var names []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		names = append(names, rel)
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("dir", dir).Warn("artifact scan failed")
	}
	return names
}

func clip(s string) string {
	if len(s) > maxCapture {
		return s[:maxCapture]
	}
	return s
}
