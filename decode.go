package fastimage

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"

	// Registers WebP decoding for imaging.Decode.
	_ "golang.org/x/image/webp"

	"github.com/fastimage/fastimage/cache"
)

// imageLoader materializes cached files into decoded images. It implements
// cache.Loader and runs on the disk cache's read worker.
type imageLoader struct {
	logger *slog.Logger
}

// Load decodes the cached file behind req and attaches the result to the
// request. Failures are recorded on the request and logged, never
// propagated: a corrupt entry looks like a failed load to the caller and
// is eventually evicted by the scan.
func (l *imageLoader) Load(req cache.Request) {
	ir, ok := req.(*ImageRequest)
	if !ok {
		return
	}

	f, err := os.Open(ir.Path())
	if err != nil {
		ir.setResult(nil, fmt.Errorf("open cached image: %w", err))
		return
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		l.log().Warn("failed to decode cached image", "url", ir.URL(), "path", ir.Path(), "error", err)
		ir.setResult(nil, fmt.Errorf("decode %s: %w", ir.URL(), err))
		return
	}

	if spec := ir.Spec(); spec.MaxWidth > 0 || spec.MaxHeight > 0 {
		w, h := spec.MaxWidth, spec.MaxHeight
		bounds := img.Bounds()
		if w <= 0 {
			w = bounds.Dx()
		}
		if h <= 0 {
			h = bounds.Dy()
		}
		img = imaging.Fit(img, w, h, imaging.Lanczos)
	}
	ir.setResult(img, nil)
}

func (l *imageLoader) log() *slog.Logger {
	if l.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.logger
}
