package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// CSVConfig configures a CSVProvider.
type CSVConfig struct {
	Path    string
	Timeout time.Duration // bound on one load; 0 means 10s
}

// CSVProvider serves history from a CSV file. The parsed file is cached and
// reloaded when its size or modification time changes. Concurrent reloads
// collapse into one.
type CSVProvider struct {
	path    string
	timeout time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	cached  *Dataset
	modTime time.Time
	size    int64
}

// NewCSVProvider creates a provider for cfg.Path. The file is read lazily.
func NewCSVProvider(cfg CSVConfig) *CSVProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &CSVProvider{path: cfg.Path, timeout: cfg.Timeout}
}

var _ model.HistoryProvider = (*CSVProvider)(nil)

// Symbols lists every symbol in the file, sorted.
func (p *CSVProvider) Symbols(ctx context.Context) ([]string, error) {
	ds, err := p.dataset(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Symbols(), nil
}

// History returns symbol's bars ascending by date.
func (p *CSVProvider) History(ctx context.Context, symbol string) ([]model.PriceBar, error) {
	ds, err := p.dataset(ctx)
	if err != nil {
		return nil, err
	}
	return ds.History(symbol)
}

// Universe returns every bar in file order.
func (p *CSVProvider) Universe(ctx context.Context) ([]model.PriceBar, error) {
	ds, err := p.dataset(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Universe(), nil
}

func (p *CSVProvider) dataset(ctx context.Context) (*Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ch := p.group.DoChan(p.path, func() (any, error) { return p.load() })
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("load price history %s: %w", p.path, ctx.Err())
	}
}

func (p *CSVProvider) load() (*Dataset, error) {
	st, err := os.Stat(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.NewError(model.CodeNoData, "", "data file not found at %s", p.path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p.path, err)
	}

	p.mu.RLock()
	if p.cached != nil && st.ModTime().Equal(p.modTime) && st.Size() == p.size {
		ds := p.cached
		p.mu.RUnlock()
		return ds, nil
	}
	p.mu.RUnlock()

	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.path, err)
	}
	defer f.Close()

	start := time.Now()
	ds, err := ParseCSV(f)
	if err != nil {
		return nil, err
	}
	if ds.DroppedRows > 0 {
		slog.Warn("price rows dropped", "path", p.path, "rows", ds.DroppedRows, "code", model.CodeInvalidDate)
	}
	slog.Info("price history loaded", "path", p.path, "symbols", len(ds.symbols),
		"bars", len(ds.universe), "took", time.Since(start))

	p.mu.Lock()
	p.cached, p.modTime, p.size = ds, st.ModTime(), st.Size()
	p.mu.Unlock()
	return ds, nil
}
