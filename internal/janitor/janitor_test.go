package janitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubReaper struct {
	calls   int
	maxIdle time.Duration
	err     error
}

func (s *stubReaper) ReapStale(_ context.Context, maxIdle time.Duration) (int, error) {
	s.calls++
	s.maxIdle = maxIdle
	return 2, s.err
}

func TestNewRejectsBadSchedule(t *testing.T) {
	if _, err := New(&stubReaper{}, "not a schedule", time.Hour, zap.NewNop()); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestReapInvokesReaper(t *testing.T) {
	reaper := &stubReaper{}
	j, err := New(reaper, "@hourly", 30*time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	j.reap()
	if reaper.calls != 1 {
		t.Fatalf("expected 1 call, got %d", reaper.calls)
	}
	if reaper.maxIdle != 30*time.Minute {
		t.Fatalf("expected maxIdle passed through, got %v", reaper.maxIdle)
	}
}

func TestReapSurvivesErrors(t *testing.T) {
	reaper := &stubReaper{err: errors.New("db down")}
	j, err := New(reaper, "@hourly", time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	j.reap()
	j.reap()
	if reaper.calls != 2 {
		t.Fatalf("expected sweeps to continue after errors, got %d calls", reaper.calls)
	}
}
