package jobs

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// SweepOffersArgs is the periodic expiry-sweep job. Inserted on a schedule by
// the river client's periodic job config in main.
type SweepOffersArgs struct{}

func (SweepOffersArgs) Kind() string { return "sweep_expired_offers" }

// Sweeper is the contract the sweep worker needs from the assignment engine.
type Sweeper interface {
	SweepExpiredOffers(ctx context.Context) (int, error)
}

// SweepWorker runs the expiry sweep: expired direct offers re-enter the
// offer cascade, closed broadcast windows escalate to admin.
type SweepWorker struct {
	river.WorkerDefaults[SweepOffersArgs]
	sweeper Sweeper
	logger  *slog.Logger
}

// NewSweepWorker returns a worker driving the given sweeper.
func NewSweepWorker(sweeper Sweeper, logger *slog.Logger) *SweepWorker {
	return &SweepWorker{sweeper: sweeper, logger: logger}
}

func (w *SweepWorker) Work(ctx context.Context, _ *river.Job[SweepOffersArgs]) error {
	n, err := w.sweeper.SweepExpiredOffers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.logger.Info("expiry sweep processed tasks", "count", n)
	}
	return nil
}
