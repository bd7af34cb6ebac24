package orchestrator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/stripscan/internal/alert"
	"github.com/GriffinCanCode/stripscan/internal/analysis"
	"github.com/GriffinCanCode/stripscan/internal/colorspace"
	"github.com/GriffinCanCode/stripscan/internal/config"
	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
	"github.com/GriffinCanCode/stripscan/internal/history"
	"github.com/GriffinCanCode/stripscan/internal/trace"
	"github.com/GriffinCanCode/stripscan/internal/zone"
)

type mockSource struct {
	data   []byte
	closed bool
}

func (m *mockSource) Capture() ([]byte, bool) { return m.data, true }
func (m *mockSource) CaptureAlways() []byte   { return m.data }
func (m *mockSource) Close()                  { m.closed = true }

// blockingSource holds Capture until release is closed.
type blockingSource struct {
	data    []byte
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu                  sync.Mutex
	closed              bool
	closedDuringCapture bool
}

func (b *blockingSource) Capture() ([]byte, bool) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.closedDuringCapture = true
	}
	return b.data, true
}

func (b *blockingSource) CaptureAlways() []byte { return b.data }

func (b *blockingSource) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *blockingSource) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type mockPlayer struct {
	mu     sync.Mutex
	played []alert.Pattern
}

func (m *mockPlayer) Play(_ context.Context, p alert.Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, p)
	return nil
}

func (m *mockPlayer) Close() error { return nil }

func (m *mockPlayer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.played)
}

func solidPNG(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func testConfig() *config.Config {
	return &config.Config{
		ReferenceColor:    analysis.DefaultReference,
		MaxSampleCount:    analysis.DefaultMaxSampleCount,
		ClusterCount:      3,
		ClusterIterations: 8,
		CropFraction:      0.28,
		ScanRate:          50,
		MaxHashDistance:   4,
		HistoryMaxEntries: 5,
		AlertsEnabled:     true,
		AlertCooldown:     0,
	}
}

var (
	pink  = color.RGBA{R: 200, G: 100, B: 140, A: 255}
	green = color.RGBA{R: 60, G: 180, B: 60, A: 255}
)

func TestClassifyUpload(t *testing.T) {
	player := &mockPlayer{}
	m := New(testConfig(), nil, player)
	defer m.Stop()

	ctx, tc := trace.EnsureContext(context.Background())
	r, err := m.Classify(ctx, solidPNG(green))
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if r.Zone != zone.Wet || r.RGB != (colorspace.RGB{R: 60, G: 180, B: 60}) {
		t.Errorf("Classify() = %+v", r)
	}

	select {
	case ev := <-m.ReadingEvents():
		if ev.Source != SourceUpload || ev.TraceID != tc.TraceID || ev.Reading != r {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no reading event")
	}

	latest, ok := m.Latest()
	if !ok || latest.Reading != r {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}

	m.Stop()
	if player.count() != 1 {
		t.Errorf("wet reading played %d alerts, want 1", player.count())
	}
}

func TestClassifyGoodDoesNotAlert(t *testing.T) {
	player := &mockPlayer{}
	m := New(testConfig(), nil, player)

	if _, err := m.Classify(context.Background(), solidPNG(pink)); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	m.Stop()
	if player.count() != 0 {
		t.Errorf("good reading played %d alerts", player.count())
	}
}

func TestClassifyBadImage(t *testing.T) {
	m := New(testConfig(), nil, nil)
	defer m.Stop()

	_, err := m.Classify(context.Background(), []byte("not an image"))
	if !apperrors.IsCode(err, apperrors.CodeFrameDecodeFailed) {
		t.Errorf("Classify() error = %v, want FrameDecodeFailed", err)
	}
	if _, ok := m.Latest(); ok {
		t.Error("failed classification should not set latest")
	}
}

func TestCaptureWithoutSource(t *testing.T) {
	m := New(testConfig(), nil, nil)
	defer m.Stop()

	_, err := m.Capture(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeFrameUnavailable) {
		t.Errorf("Capture() error = %v, want FrameUnavailable", err)
	}
	if m.Scanning() {
		t.Error("no source means no scanning")
	}
	if _, ok := m.Preview(); ok {
		t.Error("no source means no preview")
	}
	if m.Frame() != nil {
		t.Error("no source means no frame")
	}
}

func TestCaptureFromSource(t *testing.T) {
	src := &mockSource{data: solidPNG(pink)}
	m := New(testConfig(), src, nil)

	r, err := m.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if r.Zone != zone.Good || r.GerminationPercent != 98 {
		t.Errorf("Capture() = %+v", r)
	}
	ev := <-m.ReadingEvents()
	if ev.Source != SourceCapture {
		t.Errorf("source = %q, want %q", ev.Source, SourceCapture)
	}
	if len(m.Frame()) == 0 {
		t.Error("Frame() should hold the captured frame")
	}

	m.Stop()
	m.Stop()
	if !src.closed {
		t.Error("Stop should close the source")
	}
}

func TestStartPublishesPreviews(t *testing.T) {
	src := &mockSource{data: solidPNG(pink)}
	m := New(testConfig(), src, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer m.Stop()

	select {
	case p := <-m.PreviewEvents():
		if p.QuickScore != 80 {
			t.Errorf("QuickScore = %d, want 80", p.QuickScore)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no preview event")
	}
	if _, ok := m.Preview(); !ok {
		t.Error("Preview() should be set")
	}
}

func TestStopWaitsForScanLoop(t *testing.T) {
	src := &blockingSource{
		data:    solidPNG(pink),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := New(testConfig(), src, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("scan loop never captured")
	}

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop() returned while a capture was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	if src.isClosed() {
		t.Fatal("source closed before the scan loop exited")
	}

	close(src.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
	if !src.isClosed() {
		t.Error("source should be closed after Stop()")
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.closedDuringCapture {
		t.Error("source was closed during a capture")
	}
}

func TestSaveLatest(t *testing.T) {
	m := New(testConfig(), nil, nil)
	defer m.Stop()

	if _, err := m.SaveLatest("wheat", "en"); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("SaveLatest() with nothing = %v, want NotFound", err)
	}

	r, _ := m.Classify(context.Background(), solidPNG(pink))
	e, err := m.SaveLatest("wheat", "fr")
	if err != nil {
		t.Fatalf("SaveLatest() error: %v", err)
	}
	if e.Seed != "wheat" || e.Lang != "fr" || e.Reading != r {
		t.Errorf("entry = %+v", e)
	}

	got, err := m.History().Get(e.ID)
	if err != nil || got.ID != e.ID {
		t.Errorf("History().Get() = %+v, %v", got, err)
	}

	select {
	case ev := <-m.HistoryEvents():
		if ev.Kind != history.EventAdded {
			t.Errorf("event kind = %q", ev.Kind)
		}
	default:
		t.Error("expected a history event")
	}
}

func TestHistoryCap(t *testing.T) {
	m := New(testConfig(), nil, nil)
	defer m.Stop()

	for i := 0; i < 8; i++ {
		m.Save("corn", "", analysis.Reading{})
	}
	if n := len(m.History().List(0)); n != 5 {
		t.Errorf("history size = %d, want 5", n)
	}
}

func TestSetAlerts(t *testing.T) {
	player := &mockPlayer{}
	cfg := testConfig()
	cfg.AlertsEnabled = false
	m := New(cfg, nil, player)

	if m.AlertsEnabled() {
		t.Fatal("alerts should start disabled")
	}
	m.SetAlerts(context.Background(), true)
	if !m.AlertsEnabled() {
		t.Error("alerts should be enabled")
	}
	m.Stop()
	if player.count() != 1 {
		t.Errorf("enabling alerts played %d patterns, want confirmation only", player.count())
	}
}

func TestSetScanning(t *testing.T) {
	m := New(testConfig(), &mockSource{}, nil)
	defer m.Stop()

	if !m.Scanning() {
		t.Error("scanning should be on by default")
	}
	m.SetScanning(false)
	if m.Scanning() {
		t.Error("scanning should be off")
	}
}

func TestAnalysisConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ClusterSeed = 9
	m := New(cfg, nil, nil)
	defer m.Stop()

	if got := m.AnalysisConfig(); got.Seed != 9 || got.Reference != analysis.DefaultReference {
		t.Errorf("AnalysisConfig() = %+v", got)
	}
}
