package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(64, 48), &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, gradient(64, 48)))
	return buf.Bytes()
}

func TestImageOptimizerShrinksJPEG(t *testing.T) {
	orig := encodeJPEG(t, 100)
	a := &Asset{Path: "assets/images/photo.jpg", Data: orig}

	require.NoError(t, (&ImageOptimizer{JPEGQuality: 60}).Apply(context.Background(), a))
	assert.Less(t, len(a.Data), len(orig))
	_, err := jpeg.Decode(bytes.NewReader(a.Data))
	assert.NoError(t, err)
}

func TestImageOptimizerShrinksPNG(t *testing.T) {
	orig := encodePNG(t)
	a := &Asset{Path: "assets/images/logo.png", Data: orig}

	require.NoError(t, (&ImageOptimizer{JPEGQuality: 82}).Apply(context.Background(), a))
	assert.Less(t, len(a.Data), len(orig))
}

func TestImageOptimizerKeepsUnknownFormats(t *testing.T) {
	a := &Asset{Path: "assets/images/anim.gif", Data: []byte("GIF89a")}
	require.NoError(t, (&ImageOptimizer{}).Apply(context.Background(), a))
	assert.Equal(t, "GIF89a", string(a.Data))
}

func TestImageOptimizerRejectsCorruptJPEG(t *testing.T) {
	a := &Asset{Path: "assets/images/bad.jpg", Data: []byte("not a jpeg")}
	assert.Error(t, (&ImageOptimizer{JPEGQuality: 80}).Apply(context.Background(), a))
}

func TestImageOptimizerMinifiesSVG(t *testing.T) {
	src := `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10">
  <!-- square -->
  <rect x="0" y="0" width="10" height="10" fill="#ff0000"/>
</svg>`
	a := &Asset{Path: "assets/images/icon.svg", Data: []byte(src)}
	require.NoError(t, (&ImageOptimizer{SVG: NewMinifier()}).Apply(context.Background(), a))
	assert.NotContains(t, string(a.Data), "square")
	assert.Less(t, len(a.Data), len(src))
}

func TestWebPConverter(t *testing.T) {
	c := WebPConverter{}
	assert.True(t, c.Accept("photos/photo.JPG"))
	assert.True(t, c.Accept("logo.png"))
	assert.False(t, c.Accept("icon.svg"))

	a := &Asset{Path: "assets/images/photo.jpg", Data: encodeJPEG(t, 90)}
	require.NoError(t, c.Apply(context.Background(), a))
	assert.Equal(t, "assets/images/photo.webp", a.Path)
	require.Greater(t, len(a.Data), 12)
	assert.Equal(t, "RIFF", string(a.Data[:4]))
	assert.Equal(t, "WEBP", string(a.Data[8:12]))
}
