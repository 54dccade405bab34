package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"chara-match/internal/domain"
)

// CatalogProvider memoizes the loaded catalog for the process
// lifetime. Load failures are never cached: the next caller triggers a
// fresh attempt, and concurrent callers share one in-flight load.
type CatalogProvider struct {
	source domain.CatalogSource
	logger *slog.Logger

	group  singleflight.Group
	loaded atomic.Pointer[domain.Catalog]
}

func NewCatalogProvider(source domain.CatalogSource, logger *slog.Logger) *CatalogProvider {
	return &CatalogProvider{
		source: source,
		logger: logger,
	}
}

// Get returns the memoized catalog, loading it on first use.
func (p *CatalogProvider) Get(ctx context.Context) (*domain.Catalog, error) {
	if catalog := p.loaded.Load(); catalog != nil {
		return catalog, nil
	}

	result, err, shared := p.group.Do("catalog", func() (any, error) {
		// A racing caller may have stored the catalog between our fast
		// path and acquiring the flight.
		if catalog := p.loaded.Load(); catalog != nil {
			return catalog, nil
		}
		catalog, err := p.source.Load(ctx)
		if err != nil {
			return nil, err
		}
		p.loaded.Store(catalog)
		return catalog, nil
	})
	if err != nil {
		p.logger.Warn("catalog_load_failed",
			slog.String("error", err.Error()),
			slog.Bool("shared", shared))
		return nil, err
	}
	return result.(*domain.Catalog), nil
}

// Ready reports whether the catalog has been loaded. Readiness probes
// use this without forcing a load.
func (p *CatalogProvider) Ready() bool {
	return p.loaded.Load() != nil
}
