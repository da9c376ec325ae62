package render

import (
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"
)

// ErrUnsupportedFormat is returned for output extensions with no encoder.
var ErrUnsupportedFormat = eris.New("render: unsupported output format")

// Format is an output encoding.
type Format string

// Supported formats. Raster formats honor the configured DPI.
const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	TIFF Format = "tiff"
	SVG  Format = "svg"
	PDF  Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{PNG, JPEG, TIFF, SVG, PDF}

// ParseFormat accepts a format name or file extension, with or without the
// leading dot.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "svg":
		return SVG, nil
	case "pdf":
		return PDF, nil
	}
	return "", eris.Wrapf(ErrUnsupportedFormat, "%q", s)
}

// FormatFromPath picks the format from path's extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Raster reports whether f is a pixel format.
func (f Format) Raster() bool {
	return f == PNG || f == JPEG || f == TIFF
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case TIFF:
		return "image/tiff"
	case SVG:
		return "image/svg+xml"
	case PDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// canvasWriter is a canvas that can encode itself.
type canvasWriter interface {
	vg.CanvasSizer
	io.WriterTo
}

func newCanvas(f Format, w, h vg.Length, dpi int, bg color.Color) (canvasWriter, error) {
	if f.Raster() {
		img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi), vgimg.UseBackgroundColor(bg))
		switch f {
		case PNG:
			return vgimg.PngCanvas{Canvas: img}, nil
		case JPEG:
			return vgimg.JpegCanvas{Canvas: img}, nil
		case TIFF:
			return vgimg.TiffCanvas{Canvas: img}, nil
		}
	}
	switch f {
	case SVG:
		return vgsvg.New(w, h), nil
	case PDF:
		return vgpdf.New(w, h), nil
	}
	return nil, eris.Wrapf(ErrUnsupportedFormat, "%q", string(f))
}
