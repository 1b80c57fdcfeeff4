package diagnosis

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder for DecodeConfig
	_ "image/png"  // register decoder for DecodeConfig
	"net/http"
	"strings"
	"unicode/utf8"
)

// Accepted image MIME types.
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEWebP = "image/webp"
)

var acceptedMIME = map[string]bool{
	MIMEPNG:  true,
	MIMEJPEG: true,
	MIMEWebP: true,
}

// AcceptedMIMETypes lists the upload types in display order.
func AcceptedMIMETypes() []string {
	return []string{MIMEPNG, MIMEJPEG, MIMEWebP}
}

// maxImageSide rejects decompression bombs with absurd declared dimensions.
const maxImageSide = 16384

// ValidateInput checks in against limits without touching the network and
// returns the normalized input to send. In image mode MIMEType is replaced by
// the type sniffed from the bytes; the declared type must still be present.
func ValidateInput(in Input, limits Limits) (Input, error) {
	switch in.Mode {
	case ModeText:
		return validateText(in, limits)
	case ModeImage:
		return validateImage(in, limits)
	default:
		return Input{}, fmt.Errorf("%w: %q", ErrInvalidMode, in.Mode)
	}
}

func validateText(in Input, limits Limits) (Input, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Input{}, ErrEmptyDescription
	}
	if limits.MaxTextRunes > 0 && utf8.RuneCountInString(text) > limits.MaxTextRunes {
		return Input{}, fmt.Errorf("%w: limit is %d characters", ErrDescriptionTooLong, limits.MaxTextRunes)
	}
	return Input{Mode: ModeText, Text: text}, nil
}

func validateImage(in Input, limits Limits) (Input, error) {
	if len(in.Image) == 0 {
		return Input{}, ErrImageRequired
	}
	if limits.MaxImageBytes > 0 && int64(len(in.Image)) > limits.MaxImageBytes {
		return Input{}, fmt.Errorf("%w: %d bytes, limit is %d", ErrImageTooLarge, len(in.Image), limits.MaxImageBytes)
	}
	declared := NormalizeMIMEType(in.MIMEType)
	if declared == "" {
		return Input{}, ErrMissingMIMEType
	}

	sniffed := NormalizeMIMEType(http.DetectContentType(in.Image))
	if !acceptedMIME[sniffed] {
		return Input{}, fmt.Errorf("%w: detected %s", ErrUnsupportedImage, sniffed)
	}
	if sniffed == MIMEPNG || sniffed == MIMEJPEG {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Image))
		if err != nil {
			return Input{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxImageSide || cfg.Height > maxImageSide {
			return Input{}, fmt.Errorf("%w: dimensions %dx%d", ErrUnsupportedImage, cfg.Width, cfg.Height)
		}
	}

	return Input{Mode: ModeImage, Image: in.Image, MIMEType: sniffed}, nil
}

// NormalizeMIMEType lowercases t, strips parameters and maps image/jpg to
// image/jpeg.
func NormalizeMIMEType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if t == "image/jpg" || t == "image/pjpeg" {
		return MIMEJPEG
	}
	return t
}
