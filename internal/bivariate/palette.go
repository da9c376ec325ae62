package bivariate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrPaletteMismatch is returned when palette dimensions do not match the
// cutoff dimensions they are looked up with.
var ErrPaletteMismatch = eris.New("palette does not match cutoffs")

// Color is an opaque 8-bit sRGB color.
type Color struct {
	R, G, B uint8
}

// ParseHex parses "#rrggbb" (the leading '#' is optional, case-insensitive).
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return Color{}, eris.Errorf("bivariate: invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, eris.Wrapf(err, "bivariate: invalid hex color %q", s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ParseHexes parses every entry of ss.
func ParseHexes(ss []string) ([]Color, error) {
	out := make([]Color, len(ss))
	for i, s := range ss {
		c, err := ParseHex(s)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Hex returns the lower-case "#rrggbb" form of c.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string { return c.Hex() }

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	return r, g, b, 0xffff
}

// Blend linearly interpolates x toward y by ratio, rounding each channel
// half-to-even. A ratio of 0 yields x and 1 yields y; ratios outside [0, 1]
// are clamped.
func Blend(x, y Color, ratio float64) Color {
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	return Color{
		R: blendChannel(x.R, y.R, ratio),
		G: blendChannel(x.G, y.G, ratio),
		B: blendChannel(x.B, y.B, ratio),
	}
}

func blendChannel(x, y uint8, ratio float64) uint8 {
	v := math.RoundToEven(float64(x)*(1-ratio) + float64(y)*ratio)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// Palette is a flat row-major grid of colors. Rows follow axis B and columns
// follow axis A, so a Class.Index addresses it directly.
type Palette struct {
	colors     []Color
	cols, rows int
}

// BuildPalette blends every axis-A base color with every axis-B base color.
// Rows (axis B) are the outer loop and columns (axis A) the inner loop, the
// same order Combine uses.
func BuildPalette(aScale, bScale []Color, ratio float64) (Palette, error) {
	if len(aScale) == 0 {
		return Palette{}, eris.New("bivariate: axis A color scale is empty")
	}
	if len(bScale) == 0 {
		return Palette{}, eris.New("bivariate: axis B color scale is empty")
	}
	colors := make([]Color, 0, len(aScale)*len(bScale))
	for _, bc := range bScale {
		for _, ac := range aScale {
			colors = append(colors, Blend(ac, bc, ratio))
		}
	}
	return Palette{colors: colors, cols: len(aScale), rows: len(bScale)}, nil
}

// Len returns the number of colors.
func (p Palette) Len() int { return len(p.colors) }

// Dims returns the number of columns (axis A) and rows (axis B).
func (p Palette) Dims() (cols, rows int) { return p.cols, p.rows }

// At returns the color for a combined class index. The index is clamped.
func (p Palette) At(index int) Color {
	if len(p.colors) == 0 {
		return Color{}
	}
	if index < 0 {
		index = 0
	} else if index >= len(p.colors) {
		index = len(p.colors) - 1
	}
	return p.colors[index]
}

// Cell returns the color at column a and row b.
func (p Palette) Cell(a, b int) Color {
	return p.At(Combine(a, b, p.cols))
}

// Lookup treats the palette as a listed colormap over [0, 1] and returns the
// entry at position t, so that Lookup(Normalize(i, Len())) == At(i).
func (p Palette) Lookup(t float64) Color {
	n := len(p.colors)
	if n == 0 {
		return Color{}
	}
	if math.IsNaN(t) || t <= 0 {
		return p.colors[0]
	}
	i := int(math.Floor(t * float64(n)))
	if i >= n {
		i = n - 1
	}
	return p.colors[i]
}

// Colors returns a copy of the palette entries in index order.
func (p Palette) Colors() []Color {
	return append([]Color(nil), p.colors...)
}

// Hex returns the palette entries as "#rrggbb" strings in index order.
func (p Palette) Hex() []string {
	out := make([]string, len(p.colors))
	for i, c := range p.colors {
		out[i] = c.Hex()
	}
	return out
}

// Check fails when the palette grid does not have one entry per class of bd.
func (p Palette) Check(bd Binding) error {
	cols, rows := bd.Dims()
	if cols != p.cols || rows != p.rows {
		return eris.Wrapf(ErrPaletteMismatch, "bivariate: palette is %dx%d, cutoffs define %dx%d", p.cols, p.rows, cols, rows)
	}
	return nil
}
