package extract

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"unicode/utf8"

	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"stegoscope/pkg/models"
)

// DefaultWindow bounds the packed byte stream inspected per selector.
const DefaultWindow = 64 * 1024

// printableThreshold is the minimum printable-character ratio for a payload
// to validate as text.
const printableThreshold = 0.7

// Engine enumerates the fixed selector set against a plane-addressable
// carrier and classifies every candidate payload. Attempts are pure
// functions of (carrier bytes, selector): re-running the engine on the same
// input yields byte-identical attempts in the same order.
type Engine struct {
	Window int
}

// New returns an engine with the default scan window.
func New() *Engine {
	return &Engine{Window: DefaultWindow}
}

// Run decodes the carrier's pixel data and tries every selector in priority
// order. A carrier that cannot be decoded to pixels yields an error; the
// analyzer battery still covers it.
func (e *Engine) Run(data []byte) ([]models.ExtractionAttempt, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode carrier pixels: %w", err)
	}

	window := e.Window
	if window <= 0 {
		window = DefaultWindow
	}

	attempts := make([]models.ExtractionAttempt, 0, len(Priority))
	for _, sel := range Priority {
		stream := packBits(img, sel, window)
		attempts = append(attempts, classify(sel.String(), stream))
	}
	return attempts, nil
}

// packBits walks the image row-major, reads the selector's bit plane from
// each selected channel, and packs the bits MSB-first into bytes, stopping
// at the window bound.
func packBits(img image.Image, sel Selector, window int) []byte {
	bounds := img.Bounds()
	plane := sel.Plane()

	out := make([]byte, 0, window)
	var cur byte
	nbits := 0

	push := func(sample uint32) bool {
		bit := byte(sample>>8) >> plane & 1
		cur = cur<<1 | bit
		nbits++
		if nbits == 8 {
			out = append(out, cur)
			cur, nbits = 0, 0
			if len(out) >= window {
				return false
			}
		}
		return true
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			for _, ch := range sel.Channels {
				var sample uint32
				switch ch {
				case 'r':
					sample = r
				case 'g':
					sample = g
				case 'b':
					sample = b
				case 'a':
					sample = a
				}
				if !push(sample) {
					return out
				}
			}
		}
	}
	return out
}

// classify locates a validity signal in the packed stream and grades the
// attempt. Probe order is fixed policy: length prefix, then terminator scan
// with an inflate step for zlib payloads, then plain-text validation.
func classify(selector string, stream []byte) models.ExtractionAttempt {
	attempt := models.ExtractionAttempt{Selector: selector, Outcome: models.OutcomeEmpty}

	// Length-prefixed payload: a plausible 32-bit big-endian length
	// followed by that many bytes of valid text.
	if len(stream) >= 4 {
		n := binary.BigEndian.Uint32(stream)
		if n > 0 && int64(n) <= int64(len(stream)-4) {
			body := stream[4 : 4+n]
			if isText(body) {
				attempt.Outcome = models.OutcomeRecovered
				attempt.Recovered = body
				attempt.PreviewHex = preview(body)
				return attempt
			}
		}
	}

	// Terminator scan: the embedder ends its payload with eight zero bits.
	idx := bytes.IndexByte(stream, 0)
	if idx <= 0 {
		return attempt // no payload signal in the window
	}
	payload := stream[:idx]

	// A zlib header means a compressed payload. A terminator byte occurring
	// inside the compressed stream cuts it short; the partial inflate is a
	// soft failure, recorded as TRUNCATED rather than dropped.
	if payload[0] == 0x78 {
		return classifyZlib(attempt, payload)
	}

	if isText(payload) {
		attempt.Outcome = models.OutcomeRecovered
		attempt.Recovered = payload
		attempt.PreviewHex = preview(payload)
		return attempt
	}

	attempt.Outcome = models.OutcomeInvalid
	attempt.PreviewHex = preview(payload)
	attempt.Note = "payload fails text validation"
	return attempt
}

func classifyZlib(attempt models.ExtractionAttempt, payload []byte) models.ExtractionAttempt {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		// 0x78 is also ASCII 'x'; fall back to plain-text validation when
		// the stream does not actually carry a zlib header.
		if isText(payload) {
			attempt.Outcome = models.OutcomeRecovered
			attempt.Recovered = payload
			attempt.PreviewHex = preview(payload)
			return attempt
		}
		attempt.Outcome = models.OutcomeInvalid
		attempt.PreviewHex = preview(payload)
		attempt.Note = "zlib header present but stream invalid"
		return attempt
	}
	defer zr.Close()

	inflated, err := io.ReadAll(zr)
	switch {
	case err == nil:
		attempt.Outcome = models.OutcomeRecovered
		attempt.Recovered = inflated
		attempt.PreviewHex = preview(inflated)
	case err == io.ErrUnexpectedEOF && len(inflated) > 0:
		attempt.Outcome = models.OutcomeTruncated
		attempt.Recovered = inflated
		attempt.PreviewHex = preview(inflated)
		attempt.Note = "terminator cut the compressed stream short"
	default:
		attempt.Outcome = models.OutcomeInvalid
		attempt.PreviewHex = preview(payload)
		attempt.Note = "compressed stream does not inflate"
	}
	return attempt
}

// isText validates a candidate payload as recoverable text: valid UTF-8
// with a printable ratio above the threshold.
func isText(data []byte) bool {
	if len(data) == 0 || !utf8.Valid(data) {
		return false
	}
	printable := 0
	for _, b := range data {
		if b >= 0x20 && b <= 0x7e || b == '\n' || b == '\r' || b == '\t' {
			printable++
		}
	}
	return float64(printable)/float64(len(data)) > printableThreshold
}

func preview(data []byte) string {
	if len(data) > 64 {
		data = data[:64]
	}
	return hex.EncodeToString(data)
}
