package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/steffenmax/arbbot/internal/domain"
)

// CycleFollower keeps the latest cycle published on the bus, so a process
// that does not scan can still serve the current candidates.
type CycleFollower struct {
	bus    domain.SignalBus
	logger *slog.Logger

	mu     sync.RWMutex
	last   *domain.CycleReport
	cycles int64
}

// NewCycleFollower creates a follower on bus.
func NewCycleFollower(bus domain.SignalBus, logger *slog.Logger) *CycleFollower {
	return &CycleFollower{
		bus:    bus,
		logger: logger.With(slog.String("component", "follower")),
	}
}

// Run consumes cycle snapshots until ctx is cancelled.
func (f *CycleFollower) Run(ctx context.Context) error {
	msgs, err := f.bus.Subscribe(ctx, domain.ChannelCandidates)
	if err != nil {
		return fmt.Errorf("follower: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				return fmt.Errorf("follower: subscription closed")
			}
			f.apply(payload)
		}
	}
}

func (f *CycleFollower) apply(payload []byte) {
	var snap CycleSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		f.logger.Warn("follower: bad snapshot", slog.String("error", err.Error()))
		return
	}

	report := domain.CycleReport{
		ID:         snap.CycleID,
		At:         snap.At,
		Candidates: snap.Candidates,
		Sizing:     snap.Sizing,
	}

	f.mu.Lock()
	f.last = &report
	f.cycles++
	f.mu.Unlock()
}

// LastReport returns the most recently received cycle. Only candidates and
// sizing are carried over the bus.
func (f *CycleFollower) LastReport() (domain.CycleReport, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.last == nil {
		return domain.CycleReport{}, false
	}
	return *f.last, true
}

// Cycles returns how many snapshots have been received.
func (f *CycleFollower) Cycles() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cycles
}
