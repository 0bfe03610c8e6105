package colors

import (
	"cmp"
	"fmt"
	"image"
	"image/draw"
	"math"
	"slices"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	// DefaultPixelStep samples every Nth pixel.
	DefaultPixelStep = 20
	// DefaultSaturationFraction keeps the most saturated tenth of the samples.
	DefaultSaturationFraction = 0.1
)

type sample struct {
	r, g, b uint8
	s       float64
}

// Rasterize draws img into an NRGBA raster whose Pix holds non-premultiplied RGBA bytes.
func Rasterize(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return n
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// FromImage rasterizes img and returns its dominant color.
func FromImage(img image.Image, step int, fraction float64) (models.RGB, error) {
	if img == nil || img.Bounds().Empty() {
		return models.RGB{}, &shared.WorkerError{Stage: shared.StagePixels, Err: fmt.Errorf("image has no pixels")}
	}
	return Dominant(Rasterize(img).Pix, step, fraction)
}

// Dominant picks a representative color from RGBA pixel data.
//
// Every step-th pixel is sampled and ranked by HSL saturation. The top fraction (at least one
// pixel) is averaged as a whole, neutral samples included. When even the most saturated sample
// is neutral the average of all samples is returned. Channels are rounded to the nearest integer.
func Dominant(pix []uint8, step int, fraction float64) (models.RGB, error) {
	if step <= 0 {
		step = DefaultPixelStep
	}
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultSaturationFraction
	}
	if len(pix) < 4 {
		return models.RGB{}, &shared.WorkerError{Stage: shared.StagePixels, Err: fmt.Errorf("no pixel data")}
	}

	samples := make([]sample, 0, len(pix)/(4*step)+1)
	for i := 0; i+2 < len(pix); i += 4 * step {
		r, g, b := pix[i], pix[i+1], pix[i+2]
		c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
		_, s, _ := c.Hsl()
		samples = append(samples, sample{r: r, g: g, b: b, s: s})
	}

	slices.SortStableFunc(samples, func(a, b sample) int {
		return cmp.Compare(b.s, a.s)
	})

	if samples[0].s == 0 {
		return average(samples), nil
	}

	keep := max(1, int(math.Floor(float64(len(samples))*fraction)))
	return average(samples[:keep]), nil
}

func average(samples []sample) models.RGB {
	var r, g, b float64
	for _, px := range samples {
		r += float64(px.r)
		g += float64(px.g)
		b += float64(px.b)
	}
	n := float64(len(samples))
	return models.RGB{
		uint8(math.Round(r / n)),
		uint8(math.Round(g / n)),
		uint8(math.Round(b / n)),
	}
}
