package adapter

import (
	"context"
	"fmt"
	"strings"

	"stegoscope/pkg/models"
)

// stringsAdapter extracts printable ASCII runs from the raw submission
// bytes. It is format-agnostic and runs in-process, so it succeeds even on
// hosts with no external tooling installed.
type stringsAdapter struct{}

const (
	minRunLen = 4
	maxRuns   = 256
)

func (stringsAdapter) Run(ctx context.Context, env Env) Outcome {
	if err := ctx.Err(); err != nil {
		return errOutcome(models.ReasonTimeout, "cancelled before start")
	}

	var (
		runs []string
		cur  strings.Builder
	)
	flush := func() {
		if cur.Len() >= minRunLen && len(runs) < maxRuns {
			runs = append(runs, cur.String())
		}
		cur.Reset()
	}
	for _, b := range env.Data {
		if b >= 0x20 && b <= 0x7e {
			cur.WriteByte(b)
			continue
		}
		flush()
	}
	flush()

	return Outcome{
		Status: models.StatusOK,
		Stdout: clip(strings.Join(runs, "\n")),
		Reason: fmt.Sprintf("%d printable runs", len(runs)),
	}
}
