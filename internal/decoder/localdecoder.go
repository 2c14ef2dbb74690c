package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// EditState is the opaque, JSON-serialized edit payload this
// implementation understands. The core (pipeline/coordinator) never
// looks inside it — only this decoder does, mirroring the teacher's
// CropConfig living entirely inside the imaging package.
type EditState struct {
	Brightness float64    `json:"brightness"` // -1..1, 0 = no change
	Contrast   float64    `json:"contrast"`   // -1..1
	Saturation float64    `json:"saturation"` // -1..1
	Rotation   int        `json:"rotation"`   // degrees, one of 0/90/180/270
	Crop       *CropRect  `json:"crop,omitempty"`
}

// CropRect is a relative crop in 0..1 coordinates, same shape as the
// teacher's imaging.CropConfig.
type CropRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LocalDecoder renders derivatives in-process using disintegration/imaging,
// generalizing the teacher's internal/imaging/processor.go resize/crop
// helpers from a fixed rendition ladder to the two fixed target sizes this
// engine's pipelines ask for (§4.3).
type LocalDecoder struct {
	JPEGQuality int // encoder quality, 0-100; defaults to 85
}

// NewLocalDecoder returns a ready-to-use in-process decoder.
func NewLocalDecoder() *LocalDecoder {
	return &LocalDecoder{JPEGQuality: 85}
}

func (d *LocalDecoder) quality() int {
	if d.JPEGQuality <= 0 {
		return 85
	}
	return d.JPEGQuality
}

func (d *LocalDecoder) RenderDerivative(ctx context.Context, source []byte, target TargetSize) ([]byte, error) {
	return d.render(ctx, source, nil, target)
}

func (d *LocalDecoder) RenderEditedDerivative(ctx context.Context, source []byte, editState []byte, target TargetSize) ([]byte, error) {
	var es EditState
	if len(editState) > 0 {
		if err := json.Unmarshal(editState, &es); err != nil {
			return nil, fmt.Errorf("decode edit state: %w", err)
		}
	}
	return d.render(ctx, source, &es, target)
}

func (d *LocalDecoder) render(_ context.Context, source []byte, edits *EditState, target TargetSize) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	img := src
	if edits != nil {
		img = applyEdits(img, edits)
	}

	img = fitLongEdge(img, target.LongEdge)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.quality()}); err != nil {
		return nil, fmt.Errorf("encode derivative: %w", err)
	}
	return buf.Bytes(), nil
}

// applyEdits applies crop, rotation, and tone adjustments before resizing,
// mirroring the order the teacher's resizeAndCrop/processRendition pair
// applies geometry before encoding.
func applyEdits(img image.Image, edits *EditState) image.Image {
	out := img

	if edits.Crop != nil {
		b := out.Bounds()
		w, h := b.Dx(), b.Dy()
		cx := int(edits.Crop.X * float64(w))
		cy := int(edits.Crop.Y * float64(h))
		cw := int(edits.Crop.Width * float64(w))
		ch := int(edits.Crop.Height * float64(h))
		if cw > 0 && ch > 0 {
			out = imaging.Crop(out, image.Rect(cx, cy, cx+cw, cy+ch))
		}
	}

	switch edits.Rotation {
	case 90:
		out = imaging.Rotate90(out)
	case 180:
		out = imaging.Rotate180(out)
	case 270:
		out = imaging.Rotate270(out)
	}

	if edits.Brightness != 0 {
		out = imaging.AdjustBrightness(out, edits.Brightness*100)
	}
	if edits.Contrast != 0 {
		out = imaging.AdjustContrast(out, edits.Contrast*100)
	}
	if edits.Saturation != 0 {
		out = imaging.AdjustSaturation(out, edits.Saturation*100)
	}

	return out
}

// fitLongEdge scales img so its longest edge equals longEdge, preserving
// aspect ratio — the same imaging.Fit/Resize behavior the teacher's
// resizeAndCrop uses for its CropNone/CropFitWidth rendition configs.
func fitLongEdge(img image.Image, longEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || (w <= longEdge && h <= longEdge) {
		return img
	}
	if w >= h {
		return imaging.Resize(img, longEdge, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, longEdge, imaging.Lanczos)
}

// Thumbnail and Preview are the two fixed pipeline-wide target sizes
// referenced by §4.3; exact numbers are policy, tunable per platform.
var (
	Thumbnail = TargetSize{Kind: "thumbnail", LongEdge: 512}
	Preview   = TargetSize{Kind: "preview", LongEdge: 2560}
)
