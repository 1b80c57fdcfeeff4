package diagnosis

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// webpBytes is a RIFF/WEBP header followed by padding; enough for sniffing.
func webpBytes() []byte {
	b := []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
	return append(b, make([]byte, 32)...)
}

const validResponse = `{
  "crop": "Tomato",
  "issueName": "Early Blight",
  "cause": "Fungus (Alternaria solani)",
  "organicTreatment": ["Remove infected leaves", "Spray neem oil weekly"],
  "preventionTips": ["Rotate crops", "Water at the base"],
  "expertHelp": "Consult an extension officer if more than half the plant is affected."
}`
