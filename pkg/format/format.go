package format

import (
	"bytes"
	"errors"

	"stegoscope/pkg/models"
)

// Detection reads leading magic bytes only; file extensions and declared
// hints are never trusted.

var (
	// ErrEmptySubmission rejects zero-length input.
	ErrEmptySubmission = errors.New("empty submission")
	// ErrUnreadableSubmission rejects input too short to carry any image
	// signature. This is the only other fatal path; everything longer gets
	// a report, unknown formats included.
	ErrUnreadableSubmission = errors.New("submission too short to identify")
)

// SniffLen is the minimum number of bytes required to attempt detection.
// WEBP needs the first 12 bytes (RIFF....WEBP).
const SniffLen = 12

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	gifMagic  = []byte("GIF8")
	bmpMagic  = []byte("BM")
	tiffLE    = []byte{'I', 'I', 0x2a, 0x00}
	tiffBE    = []byte{'M', 'M', 0x00, 0x2a}
	riffMagic = []byte("RIFF")
	webpTag   = []byte("WEBP")
)

// Detect classifies raw image bytes by signature. It fails closed to
// FormatUnknown when no signature matches and returns an error only for
// input the detector cannot process at all.
func Detect(data []byte) (models.Format, error) {
	if len(data) == 0 {
		return models.FormatUnknown, ErrEmptySubmission
	}
	if len(data) < SniffLen {
		return models.FormatUnknown, ErrUnreadableSubmission
	}

	switch {
	case bytes.HasPrefix(data, pngMagic):
		return models.FormatPNG, nil
	case bytes.HasPrefix(data, jpegMagic):
		return models.FormatJPEG, nil
	case bytes.HasPrefix(data, gifMagic):
		return models.FormatGIF, nil
	case bytes.HasPrefix(data, bmpMagic):
		return models.FormatBMP, nil
	case bytes.HasPrefix(data, tiffLE), bytes.HasPrefix(data, tiffBE):
		return models.FormatTIFF, nil
	case bytes.HasPrefix(data, riffMagic) && bytes.Equal(data[8:12], webpTag):
		return models.FormatWEBP, nil
	}
	return models.FormatUnknown, nil
}
