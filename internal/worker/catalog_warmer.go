package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chara-match/internal/usecase"
)

const (
	attemptTimeout = 60 * time.Second
	initialBackoff = 1 * time.Second
	maxBackoff     = 5 * time.Minute
)

// CatalogWarmer loads the catalog in the background so readiness flips
// without waiting for the first match request. It retries with
// doubling backoff until one load succeeds, then exits; the provider
// memoizes the result for the process lifetime.
type CatalogWarmer struct {
	catalogs *usecase.CatalogProvider
	logger   *slog.Logger

	backoff  time.Duration // first retry delay, doubled per failure
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCatalogWarmer(catalogs *usecase.CatalogProvider, logger *slog.Logger) *CatalogWarmer {
	return &CatalogWarmer{
		catalogs: catalogs,
		logger:   logger,
		backoff:  initialBackoff,
		stopChan: make(chan struct{}),
	}
}

func (w *CatalogWarmer) Start() {
	w.logger.Info("catalog_warmer_started")
	w.wg.Add(1)
	go w.run()
}

// Stop ends the retry loop and waits for it to exit. Safe to call more
// than once and after the warmer finished on its own.
func (w *CatalogWarmer) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *CatalogWarmer) run() {
	defer w.wg.Done()

	backoff := w.backoff
	for attempt := 1; ; attempt++ {
		if w.warmOnce(attempt) {
			return
		}
		select {
		case <-w.stopChan:
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func (w *CatalogWarmer) warmOnce(attempt int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
	defer cancel()

	catalog, err := w.catalogs.Get(ctx)
	if err != nil {
		w.logger.Warn("catalog_warmup_failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		return false
	}

	w.logger.Info("catalog_warmed",
		slog.Int("attempt", attempt),
		slog.Int("record_count", catalog.Len()),
		slog.Int("dimension", catalog.Dimension()))
	return true
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
