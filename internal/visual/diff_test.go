package visual

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompare_Identical(t *testing.T) {
	img := solid(40, 30, color.RGBA{10, 20, 30, 255})
	cmp, err := Compare(img, img, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, cmp.Ratio)
	assert.True(t, cmp.Passed)
	assert.False(t, cmp.Resized)
	assert.Nil(t, cmp.Mismatch)
	assert.Equal(t, 1200, cmp.TotalPixels)
}

func TestCompare_WhiteVersusBlack(t *testing.T) {
	cmp, err := Compare(solid(20, 20, color.White), solid(20, 20, color.Black), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1.0, cmp.Ratio)
	assert.False(t, cmp.Passed)
	assert.Equal(t, cmp.TotalPixels, cmp.ChangedPixels)
}

func TestCompare_ThresholdBoundary(t *testing.T) {
	base := solid(10, 10, color.White)
	cur := solid(10, 10, color.White)
	for x := 0; x < 5; x++ {
		cur.Set(x, 0, color.Black)
	}

	opts := DefaultOptions()
	cmp, err := Compare(base, cur, opts)
	require.NoError(t, err)
	assert.Equal(t, 0.05, cmp.Ratio)
	assert.True(t, cmp.Passed, "ratio equal to threshold passes")

	opts.Threshold = 0.04
	cmp, err = Compare(base, cur, opts)
	require.NoError(t, err)
	assert.False(t, cmp.Passed)
}

func TestCompare_AnyChannelCountsOnce(t *testing.T) {
	base := solid(2, 1, color.RGBA{100, 100, 100, 255})
	cur := solid(2, 1, color.RGBA{100, 100, 100, 255})
	cur.Set(0, 0, color.RGBA{101, 99, 100, 255})

	cmp, err := Compare(base, cur, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, cmp.ChangedPixels)
	assert.Equal(t, 0.5, cmp.Ratio)
}

func TestCompare_AmplifiedDiffClips(t *testing.T) {
	base := solid(1, 1, color.RGBA{0, 0, 0, 255})
	cur := solid(1, 1, color.RGBA{5, 30, 200, 255})

	cmp, err := Compare(base, cur, Options{Threshold: 0.05, Gain: 10})
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{50, 255, 255, 255}, cmp.Diff.RGBAAt(0, 0))
}

func TestCompare_StretchMismatchedSizes(t *testing.T) {
	base := solid(1920, 1080, color.White)
	cur := solid(1366, 768, color.White)

	cmp, err := Compare(base, cur, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, cmp.Resized)
	require.NotNil(t, cmp.Mismatch)
	assert.Equal(t, image.Pt(1366, 768), cmp.Mismatch.Current)
	assert.Equal(t, image.Pt(1920, 1080), cmp.Current.Bounds().Size())
	assert.GreaterOrEqual(t, cmp.Ratio, 0.0)
	assert.LessOrEqual(t, cmp.Ratio, 1.0)
	assert.Equal(t, 1920*1080, cmp.TotalPixels)
}

func TestCompare_PadCountsUncoveredPixels(t *testing.T) {
	base := solid(10, 10, color.White)
	cur := solid(10, 5, color.White)

	cmp, err := Compare(base, cur, Options{Threshold: 0.05, Gain: 10, Policy: ResizePad})
	require.NoError(t, err)
	assert.False(t, cmp.Resized)
	require.NotNil(t, cmp.Mismatch)
	assert.Equal(t, 100, cmp.TotalPixels)
	assert.Equal(t, 50, cmp.ChangedPixels)
	assert.Equal(t, 0.5, cmp.Ratio)
}

func TestCompare_PadUnionCanvas(t *testing.T) {
	cmp, err := Compare(solid(4, 2, color.White), solid(2, 4, color.White), Options{Policy: ResizePad})
	require.NoError(t, err)
	assert.Equal(t, 16, cmp.TotalPixels)
	// 4 pixels are covered by both images.
	assert.Equal(t, 12, cmp.ChangedPixels)
}

func TestCompare_Reject(t *testing.T) {
	_, err := Compare(solid(10, 10, color.White), solid(8, 8, color.White), Options{Policy: ResizeReject})
	var ce *ComparisonError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "baseline 10x10, current 8x8")
}

func TestCompare_EmptyImage(t *testing.T) {
	_, err := Compare(image.NewRGBA(image.Rect(0, 0, 0, 0)), solid(1, 1, color.White), DefaultOptions())
	var ce *ComparisonError
	assert.ErrorAs(t, err, &ce)
}

func TestCompare_NonZeroOrigin(t *testing.T) {
	base := solid(4, 4, color.White)
	sub := base.SubImage(image.Rect(2, 2, 4, 4))
	cmp, err := Compare(sub, solid(2, 2, color.White), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, cmp.Ratio)
}

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestCompare_AlphaIsIgnored(t *testing.T) {
	tests := []struct {
		name      string
		base, cur color.NRGBA
		ratio     float64
		passed    bool
	}{
		{"alpha-only change", color.NRGBA{200, 100, 50, 255}, color.NRGBA{200, 100, 50, 128}, 0, true},
		{"rgb change under zero alpha", color.NRGBA{255, 255, 255, 0}, color.NRGBA{0, 0, 0, 0}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp, err := Compare(solidNRGBA(10, 10, tt.base), solidNRGBA(10, 10, tt.cur), DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.ratio, cmp.Ratio)
			assert.Equal(t, tt.passed, cmp.Passed)
		})
	}
}

func TestCompare_StretchKeepsColorUnderZeroAlpha(t *testing.T) {
	base := solidNRGBA(10, 10, color.NRGBA{255, 255, 255, 0})
	cur := solidNRGBA(5, 5, color.NRGBA{0, 0, 0, 0})
	cmp, err := Compare(base, cur, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, cmp.Resized)
	assert.Equal(t, 1.0, cmp.Ratio)
	assert.False(t, cmp.Passed)
}

func TestCompareBytes_AlphaPNG(t *testing.T) {
	base := encode(t, solidNRGBA(6, 6, color.NRGBA{10, 20, 30, 255}))
	cur := encode(t, solidNRGBA(6, 6, color.NRGBA{10, 20, 30, 40}))
	cmp, err := CompareBytes(base, cur, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, cmp.Ratio)
	assert.Equal(t, uint8(0xff), cmp.Current.Pix[3])
}

func TestCompareBytes(t *testing.T) {
	white := encode(t, solid(8, 8, color.White))
	cmp, err := CompareBytes(white, white, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, cmp.Passed)

	_, err = CompareBytes([]byte("garbage"), white, DefaultOptions())
	var ce *ComparisonError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "decode baseline", ce.Op)

	_, err = CompareBytes(white, []byte{0x89, 'P', 'N', 'G'}, DefaultOptions())
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "decode current", ce.Op)
}

func TestParseResizePolicy(t *testing.T) {
	p, err := ParseResizePolicy("")
	require.NoError(t, err)
	assert.Equal(t, ResizeStretch, p)

	p, err = ParseResizePolicy(" PAD ")
	require.NoError(t, err)
	assert.Equal(t, ResizePad, p)

	_, err = ParseResizePolicy("crop")
	assert.Error(t, err)
}

func TestComposite_Layout(t *testing.T) {
	cmp, err := Compare(solid(100, 50, color.White), solid(100, 50, color.Black), DefaultOptions())
	require.NoError(t, err)

	out := cmp.Composite()
	assert.Equal(t, image.Pt(300, 90), out.Bounds().Size())

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(0, LabelHeight), "baseline panel")
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, out.RGBAAt(100, LabelHeight), "current panel")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(200, LabelHeight), "diff panel amplified and clipped")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(0, 0), "label strip background")
}

func TestComposite_DiffLabelIsRed(t *testing.T) {
	cmp, err := Compare(solid(200, 20, color.White), solid(200, 20, color.White), DefaultOptions())
	require.NoError(t, err)
	out := cmp.Composite()

	// The diff label starts at 2w + w/2 - 40 = 460.
	var red, black int
	for y := 0; y < LabelHeight; y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			switch out.RGBAAt(x, y) {
			case color.RGBA{255, 0, 0, 255}:
				red++
				assert.GreaterOrEqual(t, x, 460)
			case color.RGBA{0, 0, 0, 255}:
				black++
				assert.Less(t, x, 400)
			}
		}
	}
	assert.Positive(t, red)
	assert.Positive(t, black)
}
