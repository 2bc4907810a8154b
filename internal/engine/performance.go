package engine

import (
	"errors"
	"context"
	"log/slog"

	"github.com/BibekSapkota1/Share-Project/internal/logger"
	"github.com/BibekSapkota1/Share-Project/internal/model"
	"github.com/BibekSapkota1/Share-Project/internal/portfolio"
)

// Performance summarises every cycle of userID, pricing OPEN cycles at the
// latest close of their symbol.
func (s *Service) Performance(ctx context.Context, userID int64) (*portfolio.Summary, error) {
	cycles, err := s.Cycles(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	latest := make(map[string]float64)
	for _, sym := range portfolio.OpenSymbols(cycles) {
		bars, err := s.bars(ctx, sym)
		if err != nil {
			if errors.Is(err, model.ErrNoData) {
				slog.Warn("open cycle without history", logger.Attrs(ctx, "user_id", userID, "symbol", sym)...)
				continue
			}
			return nil, err
		}
		latest[sym] = bars[len(bars)-1].Close
	}

	sum := portfolio.Summarize(cycles, latest)
	return &sum, nil
}
