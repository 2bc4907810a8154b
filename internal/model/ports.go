package model

import "context"

// ── Collaborator ports ──
// These interfaces decouple the trading core from concrete data sources and
// stores (CSV, SQLite, Redis, in-memory).

// HistoryProvider serves daily price history.
type HistoryProvider interface {
	// Symbols lists every symbol with history, sorted.
	Symbols(ctx context.Context) ([]string, error)

	// History returns a symbol's bars ascending by date. Fails with
	// ErrNoData when the symbol is unknown and ErrMalformedData when its
	// rows could not be parsed.
	History(ctx context.Context, symbol string) ([]PriceBar, error)

	// Universe returns every bar of every symbol in source order, including
	// malformed rows, for turnover ranking.
	Universe(ctx context.Context) ([]PriceBar, error)
}

// SettingsProvider resolves a user's settings with global fallback.
type SettingsProvider interface {
	GetSettings(ctx context.Context, userID int64) (Settings, error)
}

// CycleStore persists trade cycles. Every mutating call is a single atomic
// read-modify-write transaction; at most one OPEN cycle may exist per
// (user, symbol).
type CycleStore interface {
	// GetOpenCycle returns the OPEN cycle, or nil, nil when there is none.
	GetOpenCycle(ctx context.Context, userID int64, symbol string) (*TradeCycle, error)

	// CreateCycle opens cycle max(cycle_number)+1. Fails with
	// ErrCycleAlreadyOpen when one is already open.
	CreateCycle(ctx context.Context, req OpenRequest) (*TradeCycle, error)

	// UpdateTSL evaluates the OPEN cycle against each point and appends one
	// tracking record per point date. Fails with ErrNoOpenCycle.
	UpdateTSL(ctx context.Context, req TrackRequest) (*TrackResult, error)

	// CloseCycle closes the OPEN cycle. Fails with ErrNoOpenCycle.
	CloseCycle(ctx context.Context, req CloseRequest) (*TradeCycle, error)

	// ListCycles returns a user's cycles newest first; symbol "" means all.
	ListCycles(ctx context.Context, userID int64, symbol string) ([]TradeCycle, error)

	// ListTracking returns a cycle's tracking records in date order.
	ListTracking(ctx context.Context, userID, cycleID int64) ([]PriceTrackingRecord, error)

	// Close releases underlying resources.
	Close() error
}

// EventPublisher fans cycle events out to interested consumers.
type EventPublisher interface {
	PublishCycleEvent(ctx context.Context, evt CycleEvent) error
}
