package adapter

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stegoscope/pkg/analyzer"
	"stegoscope/pkg/models"
)

func TestExecAdapterCapturesOutput(t *testing.T) {
	a := &ExecAdapter{Descriptor: analyzer.Descriptor{
		Name: "echo",
		Argv: []string{"sh", "-c", "echo stdout line; echo stderr line >&2"},
	}}
	out := a.Run(context.Background(), Env{OutDir: t.TempDir()})

	assert.Equal(t, models.StatusOK, out.Status)
	assert.Equal(t, "stdout line\n", out.Stdout)
	assert.Equal(t, "stderr line\n", out.Stderr)
	assert.Equal(t, 0, out.ExitCode)
}

func TestExecAdapterNonZeroExitIsCrash(t *testing.T) {
	a := &ExecAdapter{Descriptor: analyzer.Descriptor{
		Name: "fail",
		Argv: []string{"sh", "-c", "echo partial output; exit 3"},
	}}
	out := a.Run(context.Background(), Env{OutDir: t.TempDir()})

	assert.Equal(t, models.StatusError, out.Status)
	assert.Equal(t, models.ReasonCrash, out.Code)
	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, out.Reason, "status 3")
	assert.Equal(t, "partial output\n", out.Stdout, "output before the crash is kept")
}

func TestExecAdapterTimeout(t *testing.T) {
	a := &ExecAdapter{Descriptor: analyzer.Descriptor{
		Name: "sleeper",
		Argv: []string{"sh", "-c", "sleep 10"},
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := a.Run(ctx, Env{OutDir: t.TempDir()})

	assert.Less(t, time.Since(start), 5*time.Second, "process must be killed at the deadline")
	assert.Equal(t, models.StatusError, out.Status)
	assert.Equal(t, models.ReasonTimeout, out.Code)
}

func TestExecAdapterTimeoutReapsDescendants(t *testing.T) {
	// The shell forks a background child that inherits the output pipes; if
	// only the shell were killed at the deadline, Wait would block on the
	// orphan until its full sleep elapsed.
	a := &ExecAdapter{Descriptor: analyzer.Descriptor{
		Name: "forker",
		Argv: []string{"sh", "-c", "sleep 10 & wait"},
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := a.Run(ctx, Env{OutDir: t.TempDir()})

	assert.Less(t, time.Since(start), 5*time.Second,
		"the whole process tree must be reclaimed at the deadline")
	assert.Equal(t, models.StatusError, out.Status)
	assert.Equal(t, models.ReasonTimeout, out.Code)
}

func TestExecAdapterMissingBinaryIsUnavailable(t *testing.T) {
	a := &ExecAdapter{Descriptor: analyzer.Descriptor{
		Name: "ghost",
		Argv: []string{"stegoscope-no-such-binary-xyzzy", "{file}"},
	}}
	out := a.Run(context.Background(), Env{OutDir: t.TempDir()})

	assert.Equal(t, models.StatusError, out.Status)
	assert.Equal(t, models.ReasonUnavailable, out.Code)
	assert.Contains(t, out.Reason, "dependency missing")
}

func TestExecAdapterCollectsArtifacts(t *testing.T) {
	outdir := t.TempDir()
	a := &ExecAdapter{Descriptor: analyzer.Descriptor{
		Name: "carver",
		Argv: []string{"sh", "-c", "mkdir -p {outdir}/carved && echo x > {outdir}/carved/0001.bin && echo y > {outdir}/report.txt"},
	}}
	out := a.Run(context.Background(), Env{OutDir: outdir})

	require.Equal(t, models.StatusOK, out.Status)
	assert.ElementsMatch(t, []string{filepath.Join("carved", "0001.bin"), "report.txt"}, out.Artifacts)
}

func TestExpandArgv(t *testing.T) {
	env := Env{FilePath: "/ws/carrier.png", OutDir: "/ws/out", Password: "hunter2"}
	argv := expandArgv([]string{"tool", "-p", "{password}", "-o", "{outdir}", "{file}"}, env)
	assert.Equal(t, []string{"tool", "-p", "hunter2", "-o", "/ws/out", "/ws/carrier.png"}, argv)
}

func TestClipBoundsCapture(t *testing.T) {
	long := string(bytes.Repeat([]byte("a"), maxCapture+500))
	assert.Len(t, clip(long), maxCapture)
	assert.Equal(t, "short", clip("short"))
}

func TestForResolvesBuiltins(t *testing.T) {
	assert.IsType(t, stringsAdapter{}, For(analyzer.Descriptor{Name: "strings", Kind: analyzer.KindBuiltin}))
	assert.IsType(t, lsbStatsAdapter{}, For(analyzer.Descriptor{Name: "lsbstats", Kind: analyzer.KindBuiltin}))
	assert.IsType(t, &ExecAdapter{}, For(analyzer.Descriptor{Name: "exiftool", Kind: analyzer.KindExternal}))
}

func TestStringsAdapterFindsPrintableRuns(t *testing.T) {
	data := append([]byte{0x00, 0x01}, []byte("hidden message")...)
	data = append(data, 0xff, 0xfe)
	data = append(data, []byte("ok!")...) // below the minimum run length
	data = append(data, 0x00)
	data = append(data, []byte("second run")...)

	out := stringsAdapter{}.Run(context.Background(), Env{Data: data})

	require.Equal(t, models.StatusOK, out.Status)
	assert.Equal(t, "hidden message\nsecond run", out.Stdout)
	assert.Contains(t, out.Reason, "2 printable runs")
}

func TestStringsAdapterEmptyInput(t *testing.T) {
	out := stringsAdapter{}.Run(context.Background(), Env{Data: nil})
	assert.Equal(t, models.StatusOK, out.Status)
	assert.Empty(t, out.Stdout)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLSBStatsFlatImageScoresLow(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 120, G: 60, B: 200, A: 255})
		}
	}
	out := lsbStatsAdapter{}.Run(context.Background(), Env{Data: encodePNG(t, img)})

	require.Equal(t, models.StatusOK, out.Status)
	assert.Contains(t, out.Stdout, "anomaly_score: 0.00")
}

func TestLSBStatsRandomLSBsScoreHigh(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 120 | byte(rng.Intn(2)),
				G: 60 | byte(rng.Intn(2)),
				B: 200 | byte(rng.Intn(2)),
				A: 255,
			})
		}
	}
	out := lsbStatsAdapter{}.Run(context.Background(), Env{Data: encodePNG(t, img)})

	require.Equal(t, models.StatusOK, out.Status)
	stats := lsbDistribution(img)
	assert.Greater(t, stats.anomaly, 0.5, "uniform random LSBs are the embedding footprint")
}

func TestLSBStatsRejectsNonImage(t *testing.T) {
	out := lsbStatsAdapter{}.Run(context.Background(), Env{Data: []byte("not pixels")})
	assert.Equal(t, models.StatusError, out.Status)
	assert.Equal(t, models.ReasonCrash, out.Code)
}

func TestCollectArtifactsEmptyDir(t *testing.T) {
	assert.Nil(t, collectArtifacts(""))
	dir := t.TempDir()
	assert.Nil(t, collectArtifacts(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	assert.Equal(t, []string{"a.txt"}, collectArtifacts(dir))
}
