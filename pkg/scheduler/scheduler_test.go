package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/observability"
)

type recorder struct {
	mu    sync.Mutex
	times []time.Time
}

func (r *recorder) reconcile(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, time.Now())
	return nil
}

func (r *recorder) calls() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.times...)
}

func TestZeroDelayIsSynchronous(t *testing.T) {
	var n int
	s := New(0, func(context.Context) error { n++; return nil }, nil)
	for i := 0; i < 3; i++ {
		if err := s.Request(context.Background()); err != nil {
			t.Fatalf("Request: %v", err)
		}
		if n != i+1 {
			t.Fatalf("after request %d: %d reconciliations", i+1, n)
		}
	}
}

func TestZeroDelayReturnsError(t *testing.T) {
	boom := fmt.Errorf("widget gone")
	s := New(0, func(context.Context) error { return boom }, nil)
	if err := s.Request(context.Background()); err == nil || !strings.Contains(err.Error(), "widget gone") {
		t.Errorf("Request = %v, want wrapped widget error", err)
	}
}

func TestBurstCoalesces(t *testing.T) {
	rec := &recorder{}
	s := New(200*time.Millisecond, rec.reconcile, nil)
	defer s.Close()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := s.Request(context.Background()); err != nil {
			t.Fatalf("Request: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !s.Pending() {
		t.Error("expected an armed timer")
	}

	time.Sleep(500 * time.Millisecond)
	calls := rec.calls()
	if len(calls) != 1 {
		t.Fatalf("reconciliations = %d, want 1", len(calls))
	}
	if d := calls[0].Sub(start); d < 200*time.Millisecond {
		t.Errorf("reconciled after %v, want at least 200ms", d)
	}
	if s.Pending() {
		t.Error("scheduler should be idle after firing")
	}
}

func TestSeparatedRequestsReconcileTwice(t *testing.T) {
	rec := &recorder{}
	s := New(200*time.Millisecond, rec.reconcile, nil)
	defer s.Close()

	_ = s.Request(context.Background())
	time.Sleep(300 * time.Millisecond)
	_ = s.Request(context.Background())
	time.Sleep(400 * time.Millisecond)

	if n := len(rec.calls()); n != 2 {
		t.Errorf("reconciliations = %d, want 2", n)
	}
}

func TestRequestDuringReconcileArmsAgain(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var n atomic.Int32
	s := New(50*time.Millisecond, func(context.Context) error {
		if n.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	}, nil)

	_ = s.Request(context.Background())
	<-entered
	// The first reconciliation is running, so the scheduler is idle again.
	if s.Pending() {
		t.Fatal("armed flag should be cleared before reconciling")
	}
	_ = s.Request(context.Background())
	close(release)

	s.Close()
	if got := n.Load(); got != 2 {
		t.Errorf("reconciliations = %d, want 2", got)
	}
}

func TestDeferredErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	hooks := &fireHooks{}
	observability.SetSchedulerHooks(hooks)
	defer observability.Reset()

	s := New(20*time.Millisecond, func(context.Context) error { return fmt.Errorf("widget gone") }, logger)
	if err := s.Request(context.Background()); err != nil {
		t.Fatalf("deferred request should not fail: %v", err)
	}
	s.Close()

	if !strings.Contains(buf.String(), "Layer update failed") {
		t.Errorf("log output = %q", buf.String())
	}
	if hooks.err() == nil {
		t.Error("OnFire should receive the error")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	s := New(0, func(context.Context) error { panic("bad layer") }, nil)
	err := s.Request(context.Background())
	if !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("Request = %v, want INTERNAL", err)
	}

	d := New(10*time.Millisecond, func(context.Context) error { panic("bad layer") }, nil)
	_ = d.Request(context.Background())
	d.Close()
}

func TestClose(t *testing.T) {
	rec := &recorder{}
	s := New(50*time.Millisecond, rec.reconcile, nil)
	_ = s.Request(context.Background())
	s.Close()

	if n := len(rec.calls()); n != 1 {
		t.Errorf("Close should wait for the armed timer: %d reconciliations", n)
	}
	if err := s.Request(context.Background()); !errors.Is(err, errors.ErrCodePrecondition) {
		t.Errorf("Request after Close = %v", err)
	}

	z := New(0, rec.reconcile, nil)
	z.Close()
	if err := z.Request(context.Background()); !errors.Is(err, errors.ErrCodePrecondition) {
		t.Errorf("sync Request after Close = %v", err)
	}
}

func TestCancelledRequestStillFires(t *testing.T) {
	rec := &recorder{}
	s := New(20*time.Millisecond, rec.reconcile, nil)
	ctx, cancel := context.WithCancel(context.Background())
	_ = s.Request(ctx)
	cancel()
	s.Close()
	if n := len(rec.calls()); n != 1 {
		t.Errorf("reconciliations = %d, want 1", n)
	}
}

type fireHooks struct {
	observability.NoopSchedulerHooks
	mu      sync.Mutex
	lastErr error
}

func (h *fireHooks) OnFire(_ context.Context, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErr = err
}

func (h *fireHooks) err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}
