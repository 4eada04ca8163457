// Package visual compares two screenshots pixel by pixel and renders the
// amplified difference and a side-by-side comparison image.
package visual

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// ResizePolicy decides how images of different sizes are compared.
type ResizePolicy string

const (
	// ResizeStretch resamples current to the baseline's exact size.
	ResizeStretch ResizePolicy = "stretch"
	// ResizePad places both images on the union canvas; pixels outside
	// either image count as changed.
	ResizePad ResizePolicy = "pad"
	// ResizeReject refuses to compare images of different sizes.
	ResizeReject ResizePolicy = "reject"
)

// ParseResizePolicy parses a policy name; empty means stretch.
func ParseResizePolicy(s string) (ResizePolicy, error) {
	switch p := ResizePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ResizeStretch, nil
	case ResizeStretch, ResizePad, ResizeReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown resize policy %q", s)
	}
}

// Options configures a comparison.
type Options struct {
	Threshold float64
	Gain      int
	Policy    ResizePolicy
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{Threshold: 0.05, Gain: 10, Policy: ResizeStretch}
}

// ErrDimensionMismatch is wrapped by the ComparisonError returned under
// ResizeReject.
var ErrDimensionMismatch = errors.New("image dimensions differ")

// ComparisonError reports a comparison that could not be made.
type ComparisonError struct {
	Op  string
	Err error
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("compare: %s: %v", e.Op, e.Err)
}

func (e *ComparisonError) Unwrap() error {
	return e.Err
}

// DimensionMismatch records the sizes of two images that had to be
// normalized before comparison.
type DimensionMismatch struct {
	Baseline image.Point
	Current  image.Point
	Policy   ResizePolicy
}

func (d DimensionMismatch) String() string {
	return fmt.Sprintf("baseline %dx%d, current %dx%d (%s)",
		d.Baseline.X, d.Baseline.Y, d.Current.X, d.Current.Y, d.Policy)
}

// Comparison is the outcome of Compare. Baseline and Current are the
// normalized images the ratio was computed over.
type Comparison struct {
	Ratio         float64
	Threshold     float64
	Passed        bool
	ChangedPixels int
	TotalPixels   int
	Resized       bool
	Mismatch      *DimensionMismatch

	Baseline *image.RGBA
	Current  *image.RGBA
	Diff     *image.RGBA
}

// CompareBytes decodes two PNG payloads and compares them.
func CompareBytes(baseline, current []byte, opts Options) (*Comparison, error) {
	b, err := png.Decode(bytes.NewReader(baseline))
	if err != nil {
		return nil, &ComparisonError{Op: "decode baseline", Err: err}
	}
	c, err := png.Decode(bytes.NewReader(current))
	if err != nil {
		return nil, &ComparisonError{Op: "decode current", Err: err}
	}
	return Compare(b, c, opts)
}

// Compare measures the fraction of pixels whose RGB value differs between
// baseline and current. The result is deterministic for equal inputs.
func Compare(baseline, current image.Image, opts Options) (*Comparison, error) {
	if opts.Gain < 1 {
		opts.Gain = 1
	}
	if opts.Policy == "" {
		opts.Policy = ResizeStretch
	}

	bSize := baseline.Bounds().Size()
	cSize := current.Bounds().Size()
	if bSize.X <= 0 || bSize.Y <= 0 || cSize.X <= 0 || cSize.Y <= 0 {
		return nil, &ComparisonError{Op: "normalize", Err: errors.New("empty image")}
	}

	cmp := &Comparison{Threshold: opts.Threshold}
	w, h := bSize.X, bSize.Y

	if bSize != cSize {
		cmp.Mismatch = &DimensionMismatch{Baseline: bSize, Current: cSize, Policy: opts.Policy}
		switch opts.Policy {
		case ResizeReject:
			return nil, &ComparisonError{
				Op:  "normalize",
				Err: fmt.Errorf("%w: %s", ErrDimensionMismatch, cmp.Mismatch),
			}
		case ResizePad:
			w, h = max(bSize.X, cSize.X), max(bSize.Y, cSize.Y)
		case ResizeStretch:
			cmp.Resized = true
		default:
			return nil, &ComparisonError{Op: "normalize", Err: fmt.Errorf("unknown resize policy %q", opts.Policy)}
		}
	}

	base, cur := opaque(baseline), opaque(current)
	cmp.Baseline = onCanvas(base, w, h)
	if cmp.Resized {
		cmp.Current = stretch(cur, w, h)
	} else {
		cmp.Current = onCanvas(cur, w, h)
	}

	cmp.Diff = image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := cmp.Diff.PixOffset(x, y)
			bp := cmp.Baseline.Pix[i : i+4 : i+4]
			cp := cmp.Current.Pix[i : i+4 : i+4]

			dr, dg, db := absDiff(bp[0], cp[0]), absDiff(bp[1], cp[1]), absDiff(bp[2], cp[2])
			outside := x >= bSize.X || y >= bSize.Y || (!cmp.Resized && (x >= cSize.X || y >= cSize.Y))
			if outside || dr != 0 || dg != 0 || db != 0 {
				cmp.ChangedPixels++
			}

			dp := cmp.Diff.Pix[i : i+4 : i+4]
			dp[0] = amplify(dr, opts.Gain)
			dp[1] = amplify(dg, opts.Gain)
			dp[2] = amplify(db, opts.Gain)
			dp[3] = 0xff
		}
	}

	cmp.TotalPixels = w * h
	cmp.Ratio = float64(cmp.ChangedPixels) / float64(cmp.TotalPixels)
	cmp.Passed = cmp.Ratio <= cmp.Threshold
	return cmp, nil
}

// opaque returns img's straight (non-premultiplied) RGB values with alpha
// forced to 0xff, rebased to the origin. Alpha never influences the
// comparison.
func opaque(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	nrgba, straight := img.(*image.NRGBA)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var c color.NRGBA
			if straight {
				c = nrgba.NRGBAAt(x, y)
			} else {
				c = color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			}
			i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

// onCanvas copies img to the top-left of a w x h RGBA canvas. Uncovered
// canvas pixels stay transparent black.
func onCanvas(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, img.Bounds().Sub(img.Bounds().Min), img, img.Bounds().Min, draw.Src)
	return dst
}

// stretch resamples img to exactly w x h with Catmull-Rom.
func stretch(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func amplify(d uint8, gain int) uint8 {
	v := int(d) * gain
	if v > 0xff {
		return 0xff
	}
	return uint8(v)
}
