// Package memory is an in-process CycleStore. A single mutex serializes every
// read-modify-write, which gives the same one-OPEN-cycle guarantee the SQLite
// store gets from its unique index.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/cycle"
	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Store holds cycles and their tracking records in maps.
type Store struct {
	mu sync.Mutex

	nextCycleID int64
	nextTrackID int64

	cycles    map[int64]*model.TradeCycle
	open      map[string]int64 // "user:symbol" → id of the OPEN cycle
	maxNumber map[string]int   // "user:symbol" → highest cycle_number ever issued
	tracking  map[int64][]model.PriceTrackingRecord

	global map[string]string
	user   map[int64]map[string]string

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		cycles:    make(map[int64]*model.TradeCycle),
		open:      make(map[string]int64),
		maxNumber: make(map[string]int),
		tracking:  make(map[int64][]model.PriceTrackingRecord),
		global:    make(map[string]string),
		user:      make(map[int64]map[string]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var _ model.CycleStore = (*Store)(nil)

// GetOpenCycle returns a copy of the OPEN cycle, or nil when there is none.
func (s *Store) GetOpenCycle(ctx context.Context, userID int64, symbol string) (*model.TradeCycle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.open[model.CycleKey(userID, symbol)]
	if !ok {
		return nil, nil
	}
	c := *s.cycles[id]
	return &c, nil
}

// CreateCycle opens the next cycle for (user, symbol).
func (s *Store) CreateCycle(ctx context.Context, req model.OpenRequest) (*model.TradeCycle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.CycleKey(req.UserID, req.Symbol)
	if id, ok := s.open[key]; ok {
		return nil, model.NewError(model.CodeCycleAlreadyOpen, req.Symbol, "cycle #%d is still open", s.cycles[id].CycleNumber)
	}

	now := s.now()
	c, rec, err := cycle.Open(req, s.maxNumber[key]+1, now)
	if err != nil {
		return nil, err
	}

	s.nextCycleID++
	c.ID = s.nextCycleID
	s.cycles[c.ID] = &c
	s.open[key] = c.ID
	s.maxNumber[key] = c.CycleNumber
	s.appendTracking(c.ID, rec)

	out := c
	return &out, nil
}

// UpdateTSL replays req.Points against the OPEN cycle.
func (s *Store) UpdateTSL(ctx context.Context, req model.TrackRequest) (*model.TrackResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.open[model.CycleKey(req.UserID, req.Symbol)]
	if !ok {
		return nil, model.NewError(model.CodeNoOpenCycle, req.Symbol, "no open cycle to track")
	}

	// Mutate a copy; commit only on success.
	working := *s.cycles[id]
	res, err := cycle.Apply(&working, req, s.now())
	if err != nil {
		return nil, err
	}

	*s.cycles[id] = working
	for i := range res.Records {
		res.Records[i] = s.appendTracking(id, res.Records[i])
	}
	return res, nil
}

// CloseCycle closes the OPEN cycle for (user, symbol).
func (s *Store) CloseCycle(ctx context.Context, req model.CloseRequest) (*model.TradeCycle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.CycleKey(req.UserID, req.Symbol)
	id, ok := s.open[key]
	if !ok {
		return nil, model.NewError(model.CodeNoOpenCycle, req.Symbol, "no open cycle to sell")
	}

	working := *s.cycles[id]
	if err := cycle.Close(&working, req, s.now()); err != nil {
		return nil, err
	}

	*s.cycles[id] = working
	delete(s.open, key)
	out := working
	return &out, nil
}

// ListCycles returns a user's cycles newest first.
func (s *Store) ListCycles(ctx context.Context, userID int64, symbol string) ([]model.TradeCycle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.TradeCycle{}
	for _, c := range s.cycles {
		if c.UserID != userID || (symbol != "" && c.Symbol != symbol) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ListTracking returns the tracking records of one of the user's cycles.
func (s *Store) ListTracking(ctx context.Context, userID, cycleID int64) ([]model.PriceTrackingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cycles[cycleID]
	if !ok || c.UserID != userID {
		return nil, model.NewError(model.CodeNoData, "", "cycle %d not found", cycleID)
	}
	return append([]model.PriceTrackingRecord{}, s.tracking[cycleID]...), nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// appendTracking stores rec and returns the stored record. When the cycle
// already has a record for that date, a new high overwrites its prices and
// anything else leaves it unchanged.
func (s *Store) appendTracking(cycleID int64, rec model.PriceTrackingRecord) model.PriceTrackingRecord {
	for i, existing := range s.tracking[cycleID] {
		if !existing.Date.Equal(rec.Date) {
			continue
		}
		if rec.IsNewHigh {
			existing.ClosePrice = rec.ClosePrice
			existing.TSLPrice = rec.TSLPrice
			existing.IsNewHigh = true
			s.tracking[cycleID][i] = existing
		}
		return existing
	}
	s.nextTrackID++
	rec.ID = s.nextTrackID
	rec.CycleID = cycleID
	recs := append(s.tracking[cycleID], rec)
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	s.tracking[cycleID] = recs
	return rec
}
