package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/riverqueue/river"
)

type stubSweeper struct {
	n     int
	err   error
	calls int
}

func (s *stubSweeper) SweepExpiredOffers(context.Context) (int, error) {
	s.calls++
	return s.n, s.err
}

func TestSweepWorker(t *testing.T) {
	sweeper := &stubSweeper{n: 3}
	w := NewSweepWorker(sweeper, slog.Default())

	if err := w.Work(context.Background(), &river.Job[SweepOffersArgs]{}); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("sweeper calls = %d, want 1", sweeper.calls)
	}
}

func TestSweepWorkerPropagatesError(t *testing.T) {
	// A returned error makes river retry the job.
	sweeper := &stubSweeper{err: errors.New("db down")}
	w := NewSweepWorker(sweeper, slog.Default())

	if err := w.Work(context.Background(), &river.Job[SweepOffersArgs]{}); err == nil {
		t.Fatal("expected sweep error to propagate")
	}
}
