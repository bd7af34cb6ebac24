package alert

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
	"github.com/GriffinCanCode/stripscan/internal/resilience"
)

// Player plays beep patterns.
type Player interface {
	Play(ctx context.Context, p Pattern) error
	Close() error
}

// PortAudioPlayer writes synthesized patterns to an output device.
type PortAudioPlayer struct {
	mu           sync.Mutex
	sampleRate   int
	framesPerBuf int
	device       *portaudio.DeviceInfo
}

// NewPortAudioPlayer initializes PortAudio and picks an output device. An
// empty deviceName uses the host default; otherwise the first output device
// whose name contains it (case-insensitive) wins.
func NewPortAudioPlayer(sampleRate int, deviceName string) (*PortAudioPlayer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeAlertUnavailable, "initialize portaudio")
	}

	dev, err := pickOutput(deviceName)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	slog.Info("alert audio ready", "device", dev.Name, "sample_rate", sampleRate)

	return &PortAudioPlayer{
		sampleRate:   sampleRate,
		framesPerBuf: 512,
		device:       dev,
	}, nil
}

func pickOutput(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeAlertUnavailable, "no default output device")
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeAlertUnavailable, "list audio devices")
	}
	names := make([]string, len(devices))
	outputs := make([]bool, len(devices))
	for i, d := range devices {
		names[i], outputs[i] = d.Name, d.MaxOutputChannels > 0
	}
	if i := matchDevice(names, outputs, name); i >= 0 {
		return devices[i], nil
	}
	return nil, apperrors.Newf(apperrors.CodeAlertUnavailable, "no output device matching %q", name)
}

// matchDevice returns the index of the first output-capable name containing want.
func matchDevice(names []string, outputs []bool, want string) int {
	want = strings.ToLower(want)
	for i, n := range names {
		if outputs[i] && strings.Contains(strings.ToLower(n), want) {
			return i
		}
	}
	return -1
}

// Play renders p and blocks until it has been written or ctx is cancelled.
func (pl *PortAudioPlayer) Play(ctx context.Context, p Pattern) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	samples := p.Synthesize(pl.sampleRate)
	buf := make([]float32, pl.framesPerBuf)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   pl.device,
			Channels: 1,
			Latency:  pl.device.DefaultLowOutputLatency,
		},
		SampleRate:      float64(pl.sampleRate),
		FramesPerBuffer: pl.framesPerBuf,
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeAlertUnavailable, "open output stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeAlertUnavailable, "start output stream")
	}
	defer stream.Stop()

	for off := 0; off < len(samples); off += len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, samples[off:])
		clear(buf[n:])
		if err := stream.Write(); err != nil {
			return apperrors.Wrap(err, apperrors.CodeAlertUnavailable, "write output stream")
		}
	}
	return nil
}

// Close releases PortAudio.
func (pl *PortAudioPlayer) Close() error {
	return portaudio.Terminate()
}

// GuardedPlayer stops calling a failing device once its breaker opens.
type GuardedPlayer struct {
	inner   Player
	breaker *resilience.Breaker
}

// Guard wraps p with a circuit breaker.
func Guard(p Player, b *resilience.Breaker) *GuardedPlayer {
	return &GuardedPlayer{inner: p, breaker: b}
}

func (g *GuardedPlayer) Play(ctx context.Context, p Pattern) error {
	return g.breaker.Execute(func() error {
		return g.inner.Play(ctx, p)
	})
}

func (g *GuardedPlayer) Close() error {
	return g.inner.Close()
}

// NopPlayer discards every pattern. It stands in when no audio device is available.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, Pattern) error { return nil }
func (NopPlayer) Close() error                        { return nil }
