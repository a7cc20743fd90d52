package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerStages(t *testing.T) {
	buf := &syncBuffer{}
	s := newSpinnerWithContext(context.Background(), "Reading landscape.json")
	s.w = buf
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stage(2, 3, "Forest")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	out := buf.String()
	for _, want := range []string{"Reading landscape.json", "Adding graph 2 of 3: Forest", "s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("spinner output missing %q: %q", want, out)
		}
	}
	if s.Interrupted() {
		t.Error("Stop alone is not an interruption")
	}
}

func TestSpinnerInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Reading landscape.json")
	s.w = &syncBuffer{}
	s.Start()
	cancel()
	s.Stop()

	if !s.Interrupted() {
		t.Error("spinner should report the interruption")
	}
}

func TestSpinnerStop(t *testing.T) {
	tests := []struct {
		name  string
		start bool
	}{
		{"after start", true},
		{"without start", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSpinnerWithContext(context.Background(), "Reading")
			s.w = &syncBuffer{}
			if tt.start {
				s.Start()
			}
			s.Stop()
			s.Stop()
		})
	}
}

func TestSpinnerStopWithError(t *testing.T) {
	tests := []struct {
		name      string
		interrupt bool
		want      bool
	}{
		{"failure", false, true},
		{"interrupted", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status bytes.Buffer
			prev := out
			out = &status
			defer func() { out = prev }()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			s := newSpinnerWithContext(ctx, "Reading")
			s.w = &syncBuffer{}
			s.Start()
			if tt.interrupt {
				cancel()
			}
			s.StopWithError("Adding graph failed")

			if got := strings.Contains(status.String(), "Adding graph failed"); got != tt.want {
				t.Errorf("error printed = %v, want %v (%q)", got, tt.want, status.String())
			}
		})
	}
}
