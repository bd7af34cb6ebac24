// Package orchestrator coordinates frame scanning, classification, history and alerts.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/stripscan/internal/alert"
	"github.com/GriffinCanCode/stripscan/internal/analysis"
	"github.com/GriffinCanCode/stripscan/internal/config"
	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
	"github.com/GriffinCanCode/stripscan/internal/frame"
	"github.com/GriffinCanCode/stripscan/internal/history"
	"github.com/GriffinCanCode/stripscan/internal/orchestrator/alertgate"
	"github.com/GriffinCanCode/stripscan/internal/orchestrator/scan"
	"github.com/GriffinCanCode/stripscan/internal/resilience"
	"github.com/GriffinCanCode/stripscan/internal/syncx"
	"github.com/GriffinCanCode/stripscan/internal/trace"
)

// HistoryEvent re-exported for API compatibility
type HistoryEvent = history.Event

// ReadingEvent is a completed classification.
type ReadingEvent struct {
	TraceID   string           `json:"traceId,omitempty" msgpack:"traceId,omitempty"`
	Source    string           `json:"source" msgpack:"source"`
	Timestamp time.Time        `json:"timestamp" msgpack:"timestamp"`
	Reading   analysis.Reading `json:"reading" msgpack:"reading"`
}

// Manager coordinates all services
type Manager struct {
	cfg         *config.Config
	analysisCfg analysis.Config

	source    frame.Source
	scanProc  *scan.Processor
	history   *history.MemoryStore
	alerts    *alertgate.Gate
	readingCh chan ReadingEvent
	previewCh chan analysis.PreviewReading

	latest   syncx.Latest[ReadingEvent]
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new manager. source may be nil, in which case there is no
// scan loop and only uploaded images are classified.
func New(cfg *config.Config, source frame.Source, player alert.Player) *Manager {
	if player == nil {
		player = alert.NopPlayer{}
	}

	m := &Manager{
		cfg:         cfg,
		analysisCfg: cfg.Analysis(),
		source:      source,
		history:     history.NewStore(cfg.HistoryMaxEntries, HistoryEventBuffer),
		alerts:      alertgate.NewGate(player, cfg.AlertCooldown, cfg.AlertsEnabled),
		readingCh:   make(chan ReadingEvent, ReadingEventBuffer),
		previewCh:   make(chan analysis.PreviewReading, PreviewEventBuffer),
		stopCh:      make(chan struct{}),
	}

	if source != nil {
		m.scanProc = scan.NewProcessor(source, scan.Config{
			Analysis:        m.analysisCfg,
			CropFraction:    cfg.CropFraction,
			MaxHashDistance: cfg.MaxHashDistance,
			Retry:           resilience.FrameRetryConfig(),
		}, m.handlePreview)
	}

	return m
}

// handlePreview forwards live previews without blocking the scan loop.
func (m *Manager) handlePreview(ctx context.Context, p analysis.PreviewReading) {
	select {
	case m.previewCh <- p:
	default:
		trace.Logger(ctx).Debug("preview channel full, dropping")
	}
}

// Start begins the scan loop if a frame source is configured.
func (m *Manager) Start(ctx context.Context) error {
	if m.scanProc == nil {
		trace.Logger(ctx).Info("no frame source configured, scan loop disabled")
		return nil
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.scanProc.Run(ctx, m.cfg.ScanRate, m.stopCh)
	}()
	return nil
}

// Stop stops orchestration and waits for pending alerts. The frame source is
// closed only after the scan loop has exited. Safe to call twice.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
		if m.source != nil {
			m.source.Close()
		}
		m.alerts.Wait()
	})
}

// Classify classifies an uploaded image. Uploads are already framed by the
// user, so the whole image is used.
func (m *Manager) Classify(ctx context.Context, data []byte) (analysis.Reading, error) {
	ctx, span := trace.StartSpan(ctx, "classify_upload")
	defer span.End()
	span.SetAttr("bytes", len(data))

	r, err := scan.ClassifyBytes(data, 0, m.analysisCfg)
	if err != nil {
		span.SetAttr("error", err.Error())
		return analysis.Reading{}, err
	}
	m.record(ctx, r, SourceUpload)
	return r, nil
}

// Capture classifies the guide-box region of the current camera frame.
func (m *Manager) Capture(ctx context.Context) (analysis.Reading, error) {
	if m.scanProc == nil {
		return analysis.Reading{}, apperrors.New(apperrors.CodeFrameUnavailable, "no frame source configured")
	}
	r, err := m.scanProc.Capture(ctx)
	if err != nil {
		return analysis.Reading{}, err
	}
	m.record(ctx, r, SourceCapture)
	return r, nil
}

// record stores r as the latest reading, publishes it and sounds an alert.
func (m *Manager) record(ctx context.Context, r analysis.Reading, source string) {
	ev := ReadingEvent{Source: source, Timestamp: time.Now().UTC(), Reading: r}
	if tc, ok := trace.FromContext(ctx); ok {
		ev.TraceID = tc.TraceID
	}

	m.latest.Store(ev)

	trace.Logger(ctx).Info("classified",
		"source", source,
		"zone", r.Zone.String(),
		"rule", r.Rule,
		"germination", r.GerminationPercent,
	)

	select {
	case m.readingCh <- ev:
	default:
		trace.Logger(ctx).Debug("reading channel full, dropping")
	}

	m.alerts.Notify(ctx, r.Zone)
}

// Latest returns the most recent reading.
func (m *Manager) Latest() (ReadingEvent, bool) {
	return m.latest.Load()
}

// SaveLatest stores the most recent reading in history.
func (m *Manager) SaveLatest(seed, lang string) (history.Entry, error) {
	ev, ok := m.Latest()
	if !ok {
		return history.Entry{}, apperrors.New(apperrors.CodeNotFound, "no reading to save")
	}
	return m.Save(seed, lang, ev.Reading), nil
}

// Save stores r in history.
func (m *Manager) Save(seed, lang string, r analysis.Reading) history.Entry {
	return m.history.Add(seed, lang, r)
}

// History returns the reading history.
func (m *Manager) History() history.Store {
	return m.history
}

// SetAlerts enables/disables audible alerts
func (m *Manager) SetAlerts(ctx context.Context, enabled bool) {
	m.alerts.SetEnabled(ctx, enabled)
}

// AlertsEnabled returns whether alerts are on
func (m *Manager) AlertsEnabled() bool {
	return m.alerts.IsEnabled()
}

// SetScanning pauses or resumes the live preview
func (m *Manager) SetScanning(enabled bool) {
	if m.scanProc == nil {
		return
	}
	m.scanProc.SetScanning(enabled)
	trace.Logger(context.Background()).Info("scanning state changed", "enabled", enabled)
}

// Scanning reports whether the live preview is running
func (m *Manager) Scanning() bool {
	return m.scanProc != nil && m.scanProc.Scanning()
}

// Preview returns the latest live preview
func (m *Manager) Preview() (analysis.PreviewReading, bool) {
	if m.scanProc == nil {
		return analysis.PreviewReading{}, false
	}
	return m.scanProc.Preview()
}

// Frame returns the latest camera frame
func (m *Manager) Frame() []byte {
	if m.scanProc == nil {
		return nil
	}
	return m.scanProc.Frame()
}

// AnalysisConfig returns the classifier settings in use
func (m *Manager) AnalysisConfig() analysis.Config {
	return m.analysisCfg
}

// ReadingEvents returns channel for reading events
func (m *Manager) ReadingEvents() <-chan ReadingEvent {
	return m.readingCh
}

// PreviewEvents returns channel for live preview events
func (m *Manager) PreviewEvents() <-chan analysis.PreviewReading {
	return m.previewCh
}

// HistoryEvents returns channel for history events
func (m *Manager) HistoryEvents() <-chan HistoryEvent {
	return m.history.Events()
}
