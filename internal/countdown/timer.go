package countdown

import (
	"context"
	"sync"
	"time"
)

// Threshold is an urgency boundary in seconds remaining.
type Threshold int

const (
	ThresholdWarning Threshold = 300
	ThresholdDanger  Threshold = 60
)

func (t Threshold) String() string {
	switch t {
	case ThresholdWarning:
		return "warning"
	case ThresholdDanger:
		return "danger"
	default:
		return ""
	}
}

// Level is the urgency styling for a remaining-seconds value.
func Level(remaining int) string {
	switch {
	case remaining < int(ThresholdDanger):
		return ThresholdDanger.String()
	case remaining < int(ThresholdWarning):
		return ThresholdWarning.String()
	default:
		return ""
	}
}

// Hooks run on the ticking goroutine, outside the timer's lock.
type Hooks struct {
	OnTick      func(remaining int)
	OnThreshold func(t Threshold, remaining int)
	OnExpire    func()
}

// Timer is a one-shot countdown with one-second resolution.
type Timer struct {
	mu         sync.Mutex
	remaining  int
	warned     bool
	endangered bool
	expired    bool
	stopped    bool
	hooks      Hooks

	stop     chan struct{}
	stopOnce sync.Once
}

func New(total time.Duration, hooks Hooks) *Timer {
	secs := int(total / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &Timer{remaining: secs, hooks: hooks, stop: make(chan struct{})}
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Tick advances the countdown by one second. It reports whether the timer is
// still running afterwards; a stopped or expired timer ignores ticks.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if t.stopped || t.expired {
		t.mu.Unlock()
		return false
	}
	t.remaining--
	if t.remaining < 0 {
		t.remaining = 0
	}
	r := t.remaining
	var crossed []Threshold
	if r < int(ThresholdWarning) && !t.warned {
		t.warned = true
		crossed = append(crossed, ThresholdWarning)
	}
	if r < int(ThresholdDanger) && !t.endangered {
		t.endangered = true
		crossed = append(crossed, ThresholdDanger)
	}
	expire := r == 0
	if expire {
		t.expired = true
	}
	t.mu.Unlock()

	if t.hooks.OnTick != nil {
		t.hooks.OnTick(r)
	}
	if t.hooks.OnThreshold != nil {
		for _, th := range crossed {
			t.hooks.OnThreshold(th, r)
		}
	}
	if expire && t.hooks.OnExpire != nil {
		t.hooks.OnExpire()
	}
	return !expire
}

// Start drives Tick once per second until expiry, Stop or ctx cancellation.
func (t *Timer) Start(ctx context.Context, clock Clock) {
	if clock == nil {
		clock = RealClock
	}
	tk := clock.NewTicker(time.Second)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case <-tk.C():
				if ctx.Err() != nil || !t.Tick() {
					return
				}
			}
		}
	}()
}

// Stop is idempotent and does not wait for the ticking goroutine, so it is
// safe to call from inside a hook.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		close(t.stop)
	})
}
