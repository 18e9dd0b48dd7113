package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/tdewolff/minify/v2"
)

// ImageOptimizer recompresses JPEG and PNG images and minifies SVG. The
// result replaces the original only when it is smaller. Other formats pass
// through untouched.
type ImageOptimizer struct {
	JPEGQuality int
	SVG         *minify.M
}

func (o *ImageOptimizer) Name() string { return "optimize-image" }

func (o *ImageOptimizer) Apply(ctx context.Context, a *Asset) error {
	var (
		out []byte
		err error
	)
	switch a.Ext() {
	case ".jpg", ".jpeg":
		out, err = o.jpeg(a.Data)
	case ".png":
		out, err = recompressPNG(a.Data)
	case ".svg":
		if o.SVG == nil {
			return nil
		}
		svgAsset := &Asset{Path: a.Path, Source: a.Source, Data: a.Data}
		if err := SVGMinifier(o.SVG).Apply(ctx, svgAsset); err != nil {
			return err
		}
		out = svgAsset.Data
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if len(out) > 0 && len(out) < len(a.Data) {
		a.Data = out
	}
	return nil
}

func (o *ImageOptimizer) jpeg(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func recompressPNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WebPConverter re-encodes PNG and JPEG images as WebP and renames the output
// to the .webp extension. Callers write the result next to the original.
type WebPConverter struct{}

func (WebPConverter) Name() string { return "webp" }

// Accept implements Filter.
func (WebPConverter) Accept(rel string) bool {
	a := Asset{Path: rel}
	switch a.Ext() {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func (WebPConverter) Apply(_ context.Context, a *Asset) error {
	img, _, err := image.Decode(bytes.NewReader(a.Data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return fmt.Errorf("encode webp: %w", err)
	}
	a.Data = buf.Bytes()
	a.SwapExt(".webp")
	return nil
}
