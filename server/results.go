package main

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	resultBufSize = 1024
	drainTimeout  = 5 * time.Second
)

// MatchStore persists finished matches
type MatchStore interface {
	RecordMatch(ctx context.Context, m MatchResult) error
}

// ResultRecorder persists match results off the tick path
type ResultRecorder struct {
	store   MatchStore
	results chan MatchResult
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewResultRecorder creates a recorder; call Run to start writing
func NewResultRecorder(store MatchStore, logger *slog.Logger) *ResultRecorder {
	return &ResultRecorder{
		store:   store,
		results: make(chan MatchResult, resultBufSize),
		logger:  logger,
	}
}

// Track enqueues a result (non-blocking). It is called with a room lock held.
func (r *ResultRecorder) Track(m MatchResult) {
	select {
	case r.results <- m:
	default:
		// Channel full, drop rather than stall the room
		r.dropped.Add(1)
	}
}

// Dropped returns how many results were discarded because the queue was full
func (r *ResultRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run writes results until ctx is cancelled, then drains what is queued
func (r *ResultRecorder) Run(ctx context.Context) error {
	for {
		select {
		case m := <-r.results:
			r.write(ctx, m)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			for {
				select {
				case m := <-r.results:
					r.write(drainCtx, m)
				default:
					if n := r.Dropped(); n > 0 {
						r.logger.Warn("match results dropped", "count", n)
					}
					return nil
				}
			}
		}
	}
}

func (r *ResultRecorder) write(ctx context.Context, m MatchResult) {
	if err := r.store.RecordMatch(ctx, m); err != nil {
		r.logger.Error("record match failed", "room_id", m.RoomID, "error", err)
		return
	}
	r.logger.Debug("match recorded", "room_id", m.RoomID, "winner", m.WinnerName)
}
