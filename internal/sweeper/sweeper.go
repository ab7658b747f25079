package sweeper

//go:generate mockgen -destination=mock_settler.go -package=sweeper auction-engine/internal/sweeper Settler

import (
	"context"
	"sync"
	"time"

	"auction-engine/internal/metrics"
	"auction-engine/internal/models"
	"auction-engine/utils"
)

// DefaultInterval is the period between two sweep passes
const DefaultInterval = 60 * time.Second

// Settler is the part of the bidding service the sweep drives
type Settler interface {
	ExpiredAuctions(ctx context.Context, now time.Time) ([]models.Auction, error)
	SettleAuction(ctx context.Context, auctionID string, now time.Time) (models.Auction, bool, error)
}

// Sweeper periodically settles auctions whose deadline has passed. It keeps no cursor: every pass
// rescans the store.
type Sweeper struct {
	settler  Settler
	interval time.Duration
	clock    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sweeper running every interval; non-positive intervals use DefaultInterval
func New(settler Settler, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		settler:  settler,
		interval: interval,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, for tests
func (s *Sweeper) WithClock(clock func() time.Time) *Sweeper {
	s.clock = clock
	return s
}

// Start launches the background loop. Calling Start on a running sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	utils.Info("expiry sweep started", map[string]any{"interval": s.interval.String()})
}

// Stop ends the background loop and waits for an in-flight pass to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	utils.Info("expiry sweep stopped", nil)
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single synchronous pass. A failure on one auction is logged and the pass
// moves on to the next candidate.
func (s *Sweeper) RunOnce(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := s.clock()
	candidates, err := s.settler.ExpiredAuctions(ctx, now)
	if err != nil {
		metrics.SweepFailuresTotal.Inc()
		utils.Error("sweep: failed to load expired auctions", map[string]any{"error": err.Error()})
		return
	}

	settled := 0
	for _, auction := range candidates {
		if ctx.Err() != nil {
			return
		}
		if auction.Status != models.StatusActive {
			continue
		}

		_, ok, err := s.settler.SettleAuction(ctx, auction.AuctionID, now)
		if err != nil {
			metrics.SweepFailuresTotal.Inc()
			utils.Error("sweep: failed to settle auction", map[string]any{
				"auction_id": auction.AuctionID,
				"error":      err.Error(),
			})
			continue
		}
		if ok {
			settled++
		}
	}

	if len(candidates) > 0 {
		utils.Info("sweep: pass complete", map[string]any{
			"candidates": len(candidates),
			"settled":    settled,
		})
	}
}
