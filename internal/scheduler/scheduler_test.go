package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAlignsToLocalMidnightPlusOffset(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	s := New(Options{Interval: 24 * time.Hour, AlignToStart: true, Offset: time.Hour, Location: loc}, zerolog.Nop())

	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 4, 0, 30, 0, 0, loc), time.Date(2024, 3, 4, 1, 0, 0, 0, loc)},
		{time.Date(2024, 3, 4, 1, 0, 0, 0, loc), time.Date(2024, 3, 5, 1, 0, 0, 0, loc)},
		{time.Date(2024, 3, 4, 23, 59, 0, 0, loc), time.Date(2024, 3, 5, 1, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		if got := s.nextTick(tc.now); !got.Equal(tc.want) {
			t.Errorf("nextTick(%s) = %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestNextTickSubDailyInterval(t *testing.T) {
	s := New(Options{Interval: 6 * time.Hour, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2024, 3, 4, 13, 10, 0, 0, time.UTC)
	if got, want := s.nextTick(now), time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("nextTick = %s, want %s", got, want)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Minute}, zerolog.Nop())
	now := time.Date(2024, 3, 4, 13, 10, 7, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("nextTick = %s", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, func(context.Context, time.Time) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunOnStartFiresImmediately(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true, RunOnStart: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan time.Time, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(_ context.Context, at time.Time) error {
			fired <- at
			cancel()
			return errors.New("tick errors are logged, not returned")
		})
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not fire on start")
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
