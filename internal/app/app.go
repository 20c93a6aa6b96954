// Package app wires the repository, quote feeds, pricing engine and service
// from a Config. The HTTP server and the maintenance commands share it.
package app

import (
	"context"
	"fmt"
	"log"

	"zenith/backoffice/internal/cache"
	"zenith/backoffice/internal/config"
	"zenith/backoffice/internal/pricing"
	"zenith/backoffice/internal/quote"
	"zenith/backoffice/internal/service"
	"zenith/backoffice/internal/store"
	"zenith/backoffice/internal/store/memory"
	pgstore "zenith/backoffice/internal/store/postgres"
)

type App struct {
	Repo    store.Repository
	Service *service.Service
	closers []func() error
}

// New connects the configured backends. DATABASE_URL selects postgres and an
// unreachable database is fatal; without it the seeded in-memory store is
// used. An unreachable redis falls back to the noop cache.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{}

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.EnsureSchema(ctx, cfg.MasterPassword); err != nil {
			_ = pg.Close()
			return nil, err
		}
		a.Repo = pg
		a.closers = append(a.closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		a.Repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	quoteCache := cache.QuoteCache(cache.NoopQuoteCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisQuoteCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			quoteCache = redisCache
			a.closers = append(a.closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	primary := quote.NewBinanceFeed(cfg.QuotePrimaryURL, cfg.QuoteSymbol)
	fallback := quote.NewMercadoBitcoinFeed(cfg.QuoteFallbackURL, cfg.QuoteSymbol)
	live := quote.NewCached(quote.NewChain(cfg.QuoteTimeout(), primary, fallback), quoteCache, cfg.QuoteSymbol, cfg.QuoteCacheTTL())

	engine := pricing.NewEngine(cfg.Pricing(), live)
	a.Service = service.New(a.Repo, engine, live, primary, cfg.RecomputeWorkers)
	a.Service.SetHistoryTimeout(cfg.QuoteTimeout())
	return a, nil
}

func (a *App) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}
