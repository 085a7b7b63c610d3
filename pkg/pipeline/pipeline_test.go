package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stegoscope/pkg/analyzer"
	"stegoscope/pkg/analyzer/adapter"
	"stegoscope/pkg/format"
	"stegoscope/pkg/models"
)

type stubAdapter struct {
	outcome adapter.Outcome
}

func (s stubAdapter) Run(ctx context.Context, env adapter.Env) adapter.Outcome {
	return s.outcome
}

func stubResolver(outcomes map[string]adapter.Outcome) func(analyzer.Descriptor) adapter.Adapter {
	return func(d analyzer.Descriptor) adapter.Adapter {
		out, ok := outcomes[d.Name]
		if !ok {
			out = adapter.Outcome{Status: models.StatusOK}
		}
		return stubAdapter{outcome: out}
	}
}

// carrierPNG builds a solid PNG with "HELLO" embedded in the red LSB plane,
// terminated by eight zero bits.
func carrierPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 73, G: 109, B: 137, A: 255})
		}
	}
	bits := func(payload []byte) []byte {
		var out []byte
		for _, b := range payload {
			for shift := 7; shift >= 0; shift-- {
				out = append(out, byte(b>>uint(shift))&1)
			}
		}
		return append(out, 0, 0, 0, 0, 0, 0, 0, 0)
	}
	for i, bit := range bits([]byte("HELLO")) {
		x, y := i%32, i/32
		px := img.NRGBAAt(x, y)
		px.R = px.R&0xfe | bit
		img.SetNRGBA(x, y, px)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testRegistry() *analyzer.Registry {
	return analyzer.NewRegistry(
		analyzer.Descriptor{Name: "alpha"},
		analyzer.Descriptor{Name: "bravo", Formats: []models.Format{models.FormatPNG}},
		analyzer.Descriptor{Name: "charlie", Formats: []models.Format{models.FormatJPEG}},
		analyzer.Descriptor{Name: "delta", Formats: []models.Format{models.FormatJPEG}, DeepOnly: true},
	)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	rep, err := Analyze(context.Background(), carrierPNG(t), Options{
		Registry: testRegistry(),
		AdapterFor: stubResolver(map[string]adapter.Outcome{
			"alpha": {Status: models.StatusOK, Stdout: "nothing notable"},
			"bravo": {Status: models.StatusError, Code: models.ReasonCrash, Reason: "exit 1"},
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, models.FormatPNG, rep.DetectedFormat)
	require.Len(t, rep.Analyzers, 3, "deep-only analyzers stay out of a shallow run")

	byName := map[string]models.AnalyzerJob{}
	for _, j := range rep.Analyzers {
		byName[j.Analyzer] = j
	}
	assert.Equal(t, models.StatusOK, byName["alpha"].Status)
	assert.Equal(t, models.StatusError, byName["bravo"].Status)
	assert.Equal(t, models.StatusSkipped, byName["charlie"].Status)
	assert.Contains(t, byName["charlie"].Reason, "not supported by charlie")

	assert.Equal(t, 1, rep.Summary.OKCount)
	assert.Equal(t, 1, rep.Summary.SkippedCount)
	assert.Equal(t, 1, rep.Summary.ErrorCount)

	require.NotEmpty(t, rep.ExtractionAttempts, "PNG is plane-addressable")
	assert.Equal(t, "HELLO", rep.HeadlineRecoveredText)
}

func TestAnalyzeDeepIncludesDeepOnly(t *testing.T) {
	jpeg := append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 32)...)
	rep, err := Analyze(context.Background(), jpeg, Options{
		Deep:       true,
		Registry:   testRegistry(),
		AdapterFor: stubResolver(nil),
	})
	require.NoError(t, err)
	require.Len(t, rep.Analyzers, 4)
	assert.Empty(t, rep.ExtractionAttempts, "JPEG has no addressable planes")
}

func TestAnalyzeRejectsUnprocessableInput(t *testing.T) {
	_, err := Analyze(context.Background(), nil, Options{Registry: testRegistry()})
	assert.ErrorIs(t, err, format.ErrEmptySubmission)

	_, err = Analyze(context.Background(), []byte("tiny"), Options{Registry: testRegistry()})
	assert.ErrorIs(t, err, format.ErrUnreadableSubmission)
}

func TestAnalyzeUnknownFormatStillReports(t *testing.T) {
	data := []byte("this is long enough to sniff but is no image format")
	rep, err := Analyze(context.Background(), data, Options{
		Registry:   testRegistry(),
		AdapterFor: stubResolver(nil),
	})
	require.NoError(t, err)

	assert.Equal(t, models.FormatUnknown, rep.DetectedFormat)
	require.Len(t, rep.Analyzers, 3)
	assert.Equal(t, 1, rep.Summary.OKCount, "only the format-agnostic analyzer runs")
	assert.Equal(t, 2, rep.Summary.SkippedCount)
	assert.Empty(t, rep.ExtractionAttempts)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	carrier := carrierPNG(t)
	opts := Options{
		Registry:   testRegistry(),
		AdapterFor: stubResolver(nil),
	}

	normalize := func(rep *models.Report) string {
		for i := range rep.Analyzers {
			rep.Analyzers[i].Duration = 0
			rep.Analyzers[i].Elapsed = 0
		}
		data, err := json.Marshal(rep)
		require.NoError(t, err)
		return string(data)
	}

	first, err := Analyze(context.Background(), carrier, opts)
	require.NoError(t, err)
	second, err := Analyze(context.Background(), carrier, opts)
	require.NoError(t, err)
	assert.Equal(t, normalize(first), normalize(second))
}

func TestAnalyzeRetainsArtifactWorkspace(t *testing.T) {
	artifactDir := t.TempDir()
	carrier := carrierPNG(t)
	rep, err := Analyze(context.Background(), carrier, Options{
		ArtifactDir: artifactDir,
		Registry:    testRegistry(),
		AdapterFor:  stubResolver(nil),
	})
	require.NoError(t, err)

	staged := filepath.Join(artifactDir, rep.SubmissionHash, "carrier.png")
	data, err := os.ReadFile(staged)
	require.NoError(t, err, "workspace must survive the run when an artifact dir is set")
	assert.Equal(t, carrier, data)
}
