package adapter

import (
	"context"

	"stegoscope/pkg/analyzer"
	"stegoscope/pkg/models"
)

// Env is the per-job execution environment handed to an adapter: the carrier
// written into the submission's private workspace plus invocation inputs.
type Env struct {
	// FilePath is the carrier image inside the submission workspace.
	FilePath string
	// OutDir is a per-analyzer directory for artifact output. The adapter
	// owns it; produced files are captured into the outcome by name.
	OutDir string
	// Data is the raw submission, for builtin analyzers that work on bytes
	// or pixels directly.
	Data []byte
	// Password is forwarded to tools that take a passphrase.
	Password string
}

// Outcome is an adapter's normalized result. Adapters report OK or ERROR
// only; SKIPPED is decided upstream by the registry and never by a tool.
type Outcome struct {
	Status    models.JobStatus
	Code      models.ReasonCode
	Reason    string
	Stdout    string
	Stderr    string
	ExitCode  int
	Artifacts []string
}

// Adapter wraps one detection tool behind a uniform contract.
type Adapter interface {
	Run(ctx context.Context, env Env) Outcome
}

// For returns the adapter implementing the given descriptor. Builtin
// analyzers resolve by name; everything else shells out.
func For(d analyzer.Descriptor) Adapter {
	if d.Kind == analyzer.KindBuiltin {
		switch d.Name {
		case "strings":
			return stringsAdapter{}
		case "lsbstats":
			return lsbStatsAdapter{}
		}
	}
	return &ExecAdapter{Descriptor: d}
}

func errOutcome(code models.ReasonCode, reason string) Outcome {
	return Outcome{Status: models.StatusError, Code: code, Reason: reason}
}
