package position

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deriv-core/pkg/deriv"
)

// PortfolioSource lists the contracts open on the account.
type PortfolioSource interface {
	Portfolio(ctx context.Context) ([]deriv.PortfolioContract, error)
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Adopted   int       `json:"adopted"`
	Missing   []int64   `json:"missing,omitempty"`
	Dropped   int       `json:"dropped"`
	HasDiffs  bool      `json:"has_diffs"`
}

// Reconciler periodically compares the book with the broker portfolio. It
// adopts contracts the book does not know and, with auto sync, drops local
// records the broker no longer lists once they are older than the grace
// period.
type Reconciler struct {
	source   PortfolioSource
	book     *Book
	interval time.Duration
	grace    time.Duration
	autoSync bool
	log      zerolog.Logger
	mu       sync.Mutex
}

func NewReconciler(source PortfolioSource, book *Book, interval time.Duration, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		source:   source,
		book:     book,
		interval: interval,
		grace:    30 * time.Second,
		autoSync: true,
		log:      log.With().Str("component", "reconciliation").Logger(),
	}
}

// SetAutoSync enables or disables dropping stale local records.
func (r *Reconciler) SetAutoSync(enabled bool) {
	r.mu.Lock()
	r.autoSync = enabled
	r.mu.Unlock()
}

// Start begins periodic reconciliation
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report, err := r.Reconcile(ctx)
				if err != nil {
					r.log.Warn().Err(err).Msg("reconciliation failed")
					continue
				}
				if report.HasDiffs {
					r.log.Warn().Int("adopted", report.Adopted).Ints64("missing", report.Missing).Int("dropped", report.Dropped).Msg("portfolio differences found")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	r.log.Info().Dur("interval", r.interval).Msg("reconciliation started")
}

// Reconcile performs one pass.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.book.now()
	report := Report{Timestamp: now}
	contracts, err := r.source.Portfolio(ctx)
	if err != nil {
		return report, err
	}

	listed := make(map[int64]bool, len(contracts))
	for _, c := range contracts {
		listed[c.ContractID] = true
	}
	report.Adopted = r.book.Adopt(contracts)

	for _, p := range r.book.All() {
		if listed[p.ContractID] || now.Sub(p.OpenedAt) < r.grace {
			continue
		}
		report.Missing = append(report.Missing, p.ContractID)
		if r.autoSync {
			r.book.Drop(p.ContractID)
			report.Dropped++
		}
	}
	report.HasDiffs = report.Adopted > 0 || len(report.Missing) > 0
	return report, nil
}
