package analyzer

import (
	"fmt"
	"strings"
	"time"

	"stegoscope/pkg/models"
)

// Kind separates analyzers that shell out to an external binary from the
// ones compiled into the scanner.
type Kind string

const (
	KindExternal Kind = "external"
	KindBuiltin  Kind = "builtin"
)

// Descriptor is the static configuration of one analyzer: its identity, the
// formats it can meaningfully process, and how to invoke it. Descriptors are
// loaded once and never mutated at runtime.
type Descriptor struct {
	Name string
	Kind Kind

	// Formats the tool can meaningfully process. Nil means format-agnostic:
	// the analyzer runs on every submission, unknown formats included.
	Formats []models.Format

	// Argv is the invocation template for external tools. The placeholders
	// {file} and {outdir} are substituted at dispatch time; {password} is
	// substituted when a password was supplied and the whole argument is
	// dropped otherwise.
	Argv []string

	// Timeout bounds one invocation. Zero means the dispatcher default.
	Timeout time.Duration

	// DeepOnly analyzers are registered only when deep analysis is requested.
	DeepOnly bool
}

// Applicable reports whether the descriptor can meaningfully process the
// given format. Inapplicable descriptors yield SKIPPED jobs, never errors.
func (d *Descriptor) Applicable(f models.Format) bool {
	if len(d.Formats) == 0 {
		return true
	}
	for _, supported := range d.Formats {
		if supported == f {
			return true
		}
	}
	return false
}

// SkipReason renders the structural-incompatibility reason recorded on
// SKIPPED jobs.
func (d *Descriptor) SkipReason(f models.Format) string {
	names := make([]string, len(d.Formats))
	for i, supported := range d.Formats {
		names[i] = strings.ToUpper(string(supported))
	}
	return fmt.Sprintf("%s not supported by %s (%s only)",
		strings.ToUpper(string(f)), d.Name, strings.Join(names, "/"))
}

// Registry is the fixed analyzer set for one process. It is immutable after
// construction and safe to share across concurrent submissions.
type Registry struct {
	descriptors []Descriptor
}

// NewRegistry builds a registry from the given descriptors, preserving order.
func NewRegistry(descriptors ...Descriptor) *Registry {
	return &Registry{descriptors: descriptors}
}

// Registered returns the descriptors visible for a run. Deep-only analyzers
// are not registered at all unless deep mode is on, which keeps the
// ok+skipped+error count equal to the registered analyzer count.
func (r *Registry) Registered(deep bool) []Descriptor {
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		if d.DeepOnly && !deep {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Compatible partitions the registered set for a format into analyzers to
// run and analyzers to skip. Every registered descriptor lands in exactly
// one of the two sets.
func (r *Registry) Compatible(f models.Format, deep bool) (run, skip []Descriptor) {
	for _, d := range r.Registered(deep) {
		if d.Applicable(f) {
			run = append(run, d)
		} else {
			skip = append(skip, d)
		}
	}
	return run, skip
}

// Default returns the stock analyzer battery.
func Default() *Registry {
	raster := []models.Format{
		models.FormatPNG, models.FormatJPEG, models.FormatBMP,
		models.FormatGIF, models.FormatTIFF, models.FormatWEBP,
	}
	return NewRegistry(
		Descriptor{
			Name: "strings",
			Kind: KindBuiltin,
		},
		Descriptor{
			Name:    "lsbstats",
			Kind:    KindBuiltin,
			Formats: []models.Format{models.FormatPNG, models.FormatBMP},
		},
		Descriptor{
			Name: "exiftool",
			Kind: KindExternal,
			Argv: []string{"exiftool", "{file}"},
		},
		Descriptor{
			Name:    "binwalk",
			Kind:    KindExternal,
			Formats: raster,
			Argv:    []string{"binwalk", "--directory", "{outdir}", "{file}"},
		},
		Descriptor{
			Name:    "foremost",
			Kind:    KindExternal,
			Formats: raster,
			Argv:    []string{"foremost", "-o", "{outdir}", "{file}"},
		},
		Descriptor{
			Name:    "zsteg",
			Kind:    KindExternal,
			Formats: []models.Format{models.FormatPNG, models.FormatBMP},
			Argv:    []string{"zsteg", "--all", "{file}"},
		},
		Descriptor{
			Name:    "steghide",
			Kind:    KindExternal,
			Formats: []models.Format{models.FormatJPEG, models.FormatBMP},
			Argv:    []string{"steghide", "info", "-p", "{password}", "{file}"},
		},
		Descriptor{
			Name:     "outguess",
			Kind:     KindExternal,
			Formats:  []models.Format{models.FormatJPEG},
			Argv:     []string{"outguess", "-k", "{password}", "-r", "{file}", "{outdir}/outguess.bin"},
			DeepOnly: true,
		},
	)
}
