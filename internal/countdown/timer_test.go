package countdown

import (
	"context"
	"testing"
	"time"
)

func TestTimer_ThresholdsAndExpiry(t *testing.T) {
	var (
		crossed []Threshold
		expired int
		ticks   int
	)
	tm := New(302*time.Second, Hooks{
		OnTick:      func(int) { ticks++ },
		OnThreshold: func(th Threshold, _ int) { crossed = append(crossed, th) },
		OnExpire:    func() { expired++ },
	})

	tm.Tick() // 301
	tm.Tick() // 300
	if len(crossed) != 0 {
		t.Fatalf("no threshold expected at 300s, got %v", crossed)
	}
	tm.Tick() // 299
	if len(crossed) != 1 || crossed[0] != ThresholdWarning {
		t.Fatalf("expected warning crossing, got %v", crossed)
	}
	for tm.Remaining() > 60 {
		tm.Tick()
	}
	tm.Tick() // 59
	if len(crossed) != 2 || crossed[1] != ThresholdDanger {
		t.Fatalf("expected danger crossing, got %v", crossed)
	}
	for tm.Tick() {
	}
	if expired != 1 || !tm.Expired() || tm.Remaining() != 0 {
		t.Fatalf("expected single expiry at 0, got expired=%d remaining=%d", expired, tm.Remaining())
	}
	if tm.Tick() {
		t.Fatalf("expired timer must ignore ticks")
	}
	if expired != 1 {
		t.Fatalf("expire hook ran %d times", expired)
	}
	if ticks != 302 {
		t.Errorf("expected 302 ticks, got %d", ticks)
	}
}

func TestTimer_StopIgnoresTicks(t *testing.T) {
	expired := false
	tm := New(2*time.Second, Hooks{OnExpire: func() { expired = true }})
	tm.Stop()
	tm.Stop()
	if tm.Tick() || tm.Tick() {
		t.Fatalf("stopped timer must not run")
	}
	if expired || tm.Remaining() != 2 {
		t.Fatalf("stopped timer changed state: expired=%v remaining=%d", expired, tm.Remaining())
	}
}

func TestTimer_StartWithManualClock(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ticked := make(chan int, 8)
	done := make(chan struct{})
	tm := New(3*time.Second, Hooks{
		OnTick:   func(r int) { ticked <- r },
		OnExpire: func() { close(done) },
	})
	tm.Start(context.Background(), clock)

	clock.Advance(2 * time.Second)
	for _, want := range []int{2, 1} {
		select {
		case got := <-ticked:
			if got != want {
				t.Fatalf("expected %d left, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("tick %d not delivered", want)
		}
	}
	clock.Advance(1500 * time.Millisecond)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timer did not expire")
	}
	// loop has exited; further advances must not block
	clock.Advance(5 * time.Second)
}

func TestTimer_StopFromHook(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var tm *Timer
	tm = New(time.Hour, Hooks{OnTick: func(int) { tm.Stop() }})
	tm.Start(context.Background(), clock)
	clock.Advance(3 * time.Second)
	if got := tm.Remaining(); got != 3599 {
		t.Fatalf("expected exactly one tick before stop, got remaining %d", got)
	}
}

func TestTimer_ContextCancel(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	tm := New(time.Minute, Hooks{})
	tm.Start(ctx, clock)
	cancel()
	clock.Advance(10 * time.Second)
	if got := tm.Remaining(); got != 60 {
		t.Fatalf("cancelled timer kept ticking: %d", got)
	}
}

func TestLevel(t *testing.T) {
	cases := map[int]string{3600: "", 300: "", 299: "warning", 60: "warning", 59: "danger", 0: "danger"}
	for in, want := range cases {
		if got := Level(in); got != want {
			t.Errorf("Level(%d) = %q, want %q", in, got, want)
		}
	}
}
