package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"video-calib/internal/logging"
	"video-calib/internal/metrics"
)

const (
	// DefaultWidth is the width of a composed preview.
	DefaultWidth = 1280
	// DefaultQuality is the JPEG quality of written previews.
	DefaultQuality = 90

	gap         = 8
	labelHeight = 20
)

var (
	background = color.RGBA{R: 24, G: 24, B: 24, A: 255}
	labelColor = color.RGBA{R: 230, G: 230, B: 230, A: 255}
)

// Compose places before and after side by side, each fitted into half of
// width and labelled. Both images keep their aspect ratio.
func Compose(before, after image.Image, width int) (*image.RGBA, error) {
	if before == nil || after == nil {
		return nil, fmt.Errorf("preview needs two images")
	}
	if width < 2*gap+2 {
		return nil, fmt.Errorf("preview width %d is too small", width)
	}

	b := before.Bounds()
	if b.Empty() || after.Bounds().Empty() {
		return nil, fmt.Errorf("preview images must not be empty")
	}

	half := (width - gap) / 2
	// Height follows the first frame; both frames have the same size in
	// practice.
	height := b.Dy() * half / b.Dx()
	if height < 1 {
		height = 1
	}

	left := imaging.Fit(before, half, height, imaging.Lanczos)
	right := imaging.Fit(after, half, height, imaging.Lanczos)

	canvas := image.NewRGBA(image.Rect(0, 0, 2*half+gap, height+labelHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	place(canvas, left, image.Pt(0, labelHeight), half, height)
	place(canvas, right, image.Pt(half+gap, labelHeight), half, height)

	label(canvas, "original", 4)
	label(canvas, "undistorted", half+gap+4)
	return canvas, nil
}

// place centers img inside the w by h cell at origin.
func place(dst *image.RGBA, img image.Image, origin image.Point, w, h int) {
	ib := img.Bounds()
	offset := image.Pt((w-ib.Dx())/2, (h-ib.Dy())/2)
	r := image.Rectangle{Min: origin.Add(offset), Max: origin.Add(offset).Add(ib.Size())}
	draw.Draw(dst, r, img, ib.Min, draw.Src)
}

func label(dst *image.RGBA, text string, x int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, labelHeight-6),
	}
	d.DrawString(text)
}

// Encode writes img as JPEG, through libvips when it is initialized and
// with the pure Go encoder otherwise. It returns the encoder used.
func Encode(w io.Writer, img image.Image, quality int) (string, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	if IsVipsAvailable() {
		data, err := encodeJPEGWithVips(img, quality)
		if err == nil {
			metrics.PreviewGenerationsTotal.WithLabelValues("vips", "success").Inc()
			_, err = io.Copy(w, bytes.NewReader(data))
			return "vips", err
		}
		metrics.PreviewGenerationsTotal.WithLabelValues("vips", "error").Inc()
		logging.Warn("libvips preview encoding failed, falling back: %v", err)
	}

	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		metrics.PreviewGenerationsTotal.WithLabelValues("imaging", "error").Inc()
		return "imaging", fmt.Errorf("failed to encode preview: %w", err)
	}
	metrics.PreviewGenerationsTotal.WithLabelValues("imaging", "success").Inc()
	return "imaging", nil
}

// WriteFile composes a before/after preview and writes it to path.
func WriteFile(path string, before, after image.Image) error {
	img, err := Compose(before, after, DefaultWidth)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create preview file: %w", err)
	}
	encoder, err := Encode(f, img, DefaultQuality)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close preview file: %w", closeErr)
	}
	if err != nil {
		return err
	}

	logging.Info("Preview written to %s (%s, %dx%d)", path, encoder, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}
