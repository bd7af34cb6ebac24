package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
)

func fastBreaker(threshold, halfOpen int) *Breaker {
	return New(Config{Name: "test", Threshold: threshold, ResetTimeout: time.Millisecond, HalfOpenSuccesses: halfOpen})
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(Config{Threshold: 3, ResetTimeout: time.Hour, HalfOpenSuccesses: 2})
	if b.State() != Closed {
		t.Fatalf("initial state = %v, want Closed", b.State())
	}

	for i := 0; i < 3; i++ {
		b.Failure()
	}
	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}

	err := b.Allow()
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() = %v, want ErrOpen", err)
	}
	if !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("ErrOpen should carry CodeUnavailable, got %v", err)
	}
}

func TestBreakerRecovery(t *testing.T) {
	b := fastBreaker(1, 2)
	b.Failure()
	time.Sleep(5 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("state = %v, want HalfOpen", b.State())
	}

	b.Success()
	b.Success()
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := fastBreaker(1, 3)
	b.Failure()
	time.Sleep(5 * time.Millisecond)
	_ = b.Allow()

	b.Failure()
	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
}

func TestBreakerExecute(t *testing.T) {
	b := New(Config{Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	deviceErr := apperrors.New(apperrors.CodeAlertUnavailable, "no output device")

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Errorf("Execute success = %v, want nil", err)
	}
	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return deviceErr }); err != deviceErr {
			t.Errorf("Execute failure = %v, want %v", err, deviceErr)
		}
	}

	calls := 0
	if err := b.Execute(func() error { calls++; return nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("Execute on open breaker = %v, want ErrOpen", err)
	}
	if calls != 0 {
		t.Error("open breaker should not invoke fn")
	}
}

func TestBreakerExecuteWithResult(t *testing.T) {
	b := New(DefaultConfig())

	result, err := ExecuteWithResult(b, func() (int, error) {
		return 42, nil
	})
	if err != nil || result != 42 {
		t.Errorf("ExecuteWithResult = (%d, %v), want (42, nil)", result, err)
	}
}

func TestBreakerHook(t *testing.T) {
	var transitions []State
	b := fastBreaker(1, 1)
	b.WithHook(func(_, to State) {
		transitions = append(transitions, to)
	})

	b.Failure()
	time.Sleep(5 * time.Millisecond)
	_ = b.Allow()
	b.Success()

	want := []State{Open, HalfOpen, Closed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestBreakerConcurrentSafety(t *testing.T) {
	b := New(Config{Threshold: 100, ResetTimeout: time.Second, HalfOpenSuccesses: 10})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Allow()
			if i%2 == 0 {
				b.Success()
			} else {
				b.Failure()
			}
		}()
	}
	wg.Wait()

	if s := b.State(); s > HalfOpen {
		t.Errorf("invalid state %d", s)
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	b := New(Config{Threshold: 3, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestConfigs(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Threshold != 5 || cfg.ResetTimeout != 30*time.Second || cfg.HalfOpenSuccesses != 3 || cfg.Name != "default" {
		t.Errorf("defaults = %+v", cfg)
	}

	audio := AudioConfig()
	if audio.Threshold != AudioThreshold || audio.HalfOpenSuccesses != 1 || audio.Name != "alert-audio" {
		t.Errorf("AudioConfig() = %+v", audio)
	}

	for s, want := range map[State]string{Closed: "closed", Open: "open", HalfOpen: "half-open"} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
