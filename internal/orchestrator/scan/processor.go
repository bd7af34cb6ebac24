// Package scan runs the camera loop: it pulls frames, skips near-duplicates
// by perceptual hash and keeps a live preview of the strip color.
package scan

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/stripscan/internal/analysis"
	"github.com/GriffinCanCode/stripscan/internal/colorspace"
	"github.com/GriffinCanCode/stripscan/internal/dominant"
	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
	"github.com/GriffinCanCode/stripscan/internal/frame"
	"github.com/GriffinCanCode/stripscan/internal/resilience"
	"github.com/GriffinCanCode/stripscan/internal/sampler"
	"github.com/GriffinCanCode/stripscan/internal/syncx"
	"github.com/GriffinCanCode/stripscan/internal/trace"
)

// Config controls how frames are analyzed.
type Config struct {
	Analysis        analysis.Config
	CropFraction    float64
	MaxHashDistance int
	Retry           resilience.RetryConfig
}

// PreviewHandler receives every fresh live preview.
type PreviewHandler func(ctx context.Context, p analysis.PreviewReading)

// Processor handles the frame loop and on-demand captures.
type Processor struct {
	source    frame.Source
	cfg       Config
	onPreview PreviewHandler

	frame   syncx.Latest[[]byte]
	preview syncx.Latest[analysis.PreviewReading]

	mu       sync.RWMutex
	scanning bool
	lastHash *goimagehash.ImageHash
	lastMean colorspace.RGB
}

// NewProcessor creates a scan processor. onPreview may be nil.
func NewProcessor(source frame.Source, cfg Config, onPreview PreviewHandler) *Processor {
	if cfg.MaxHashDistance < 0 {
		cfg.MaxHashDistance = DefaultMaxHashDistance
	}
	if cfg.CropFraction <= 0 {
		cfg.CropFraction = DefaultCropFraction
	}
	return &Processor{
		source:    source,
		cfg:       cfg,
		onPreview: onPreview,
		scanning:  true,
	}
}

// Run starts the preview loop at rate Hz.
func (p *Processor) Run(ctx context.Context, rate float64, stopCh <-chan struct{}) {
	interval := time.Duration(float64(time.Second) / rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick processes one frame from the source.
func (p *Processor) tick(ctx context.Context) {
	if !p.Scanning() {
		return
	}
	data, changed := p.source.Capture()
	if !changed || data == nil {
		return
	}

	p.frame.Store(data)

	img, _, err := frame.Decode(data)
	if err != nil {
		trace.Logger(ctx).Debug("frame decode error", "error", err)
		return
	}
	crop := sampler.CenterCrop(sampler.FromImage(img), p.cfg.CropFraction)
	if p.isSimilar(ctx, img, dominant.Average(sampler.Sample(crop, similaritySamples))) {
		return
	}

	preview, err := analysis.Preview(crop, p.cfg.Analysis)
	if err != nil {
		trace.Logger(ctx).Debug("preview error", "error", err)
		return
	}

	p.preview.Store(preview)

	if p.onPreview != nil {
		p.onPreview(ctx, preview)
	}
}

// isSimilar reports whether img matches the last analyzed frame: its pHash
// is within MaxHashDistance and the guide-box mean color has barely moved.
// pHash is luminance structure only, so a strip changing color in place
// would otherwise be missed.
func (p *Processor) isSimilar(ctx context.Context, img image.Image, mean colorspace.RGB) bool {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	last, lastMean := p.lastHash, p.lastMean
	p.lastHash, p.lastMean = hash, mean
	if last == nil {
		return false
	}

	dist, err := last.Distance(hash)
	if err != nil {
		return false
	}

	if dist <= p.cfg.MaxHashDistance && colorspace.Distance(mean, lastMean) < colorTolerance {
		p.lastHash, p.lastMean = last, lastMean
		trace.Logger(ctx).Debug("skipping similar frame", "distance", dist)
		return true
	}
	return false
}

// Capture grabs the current frame, retrying briefly if the source has none,
// and classifies the guide-box region.
func (p *Processor) Capture(ctx context.Context) (analysis.Reading, error) {
	ctx, span := trace.StartSpan(ctx, "scan_capture")
	defer span.End()

	data, err := resilience.RetryWithResult(ctx, p.cfg.Retry, func() ([]byte, error) {
		d := p.source.CaptureAlways()
		if d == nil {
			return nil, apperrors.New(apperrors.CodeFrameUnavailable, "no frame from source")
		}
		return d, nil
	})
	if err != nil {
		span.SetAttr("error", err.Error())
		return analysis.Reading{}, err
	}
	span.SetAttr("bytes", len(data))

	p.frame.Store(data)

	r, err := ClassifyBytes(data, p.cfg.CropFraction, p.cfg.Analysis)
	if err != nil {
		span.SetAttr("error", err.Error())
		return analysis.Reading{}, err
	}
	span.SetAttr("zone", r.Zone.String())
	return r, nil
}

// ClassifyBytes decodes an encoded image, crops the centered cropFraction
// region (values outside (0,1) keep the whole image) and classifies it.
func ClassifyBytes(data []byte, cropFraction float64, cfg analysis.Config) (analysis.Reading, error) {
	img, _, err := frame.Decode(data)
	if err != nil {
		return analysis.Reading{}, err
	}
	return analysis.Classify(sampler.CenterCrop(sampler.FromImage(img), cropFraction), cfg)
}

// Preview returns the latest live preview.
func (p *Processor) Preview() (analysis.PreviewReading, bool) {
	return p.preview.Load()
}

// Frame returns the latest encoded frame.
func (p *Processor) Frame() []byte {
	f, _ := p.frame.Load()
	return f
}

// SetScanning pauses or resumes the preview loop.
func (p *Processor) SetScanning(enabled bool) {
	p.mu.Lock()
	p.scanning = enabled
	p.mu.Unlock()
}

// Scanning reports whether the preview loop is active.
func (p *Processor) Scanning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scanning
}
