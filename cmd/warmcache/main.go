package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/pinmap/internal/adapters/valkey"
	"github.com/samirrijal/pinmap/internal/adapters/wordpress"
	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/usecases"
	"github.com/samirrijal/pinmap/internal/pkg/config"
	"github.com/samirrijal/pinmap/internal/pkg/logging"
)

func main() {
	var (
		only        = flag.String("cities", "", "comma-separated city keys to warm (default: all)")
		every       = flag.Duration("every", 0, "repeat at this interval; zero runs once")
		concurrency = flag.Int("concurrency", 4, "max concurrent CMS fetches")
	)
	flag.Parse()

	cfg, err := config.Load("pinmap-warmcache")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, "service", "pinmap-warmcache")

	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	pins := usecases.NewPinService(wordpress.NewPinSource(cfg.CMS.BaseURL, cfg.CMS.PerPage, cfg.CMS.Timeout, logger), cache)
	cities := selectCities(*only)
	if len(cities) == 0 {
		log.Fatalf("no known cities in %q", *only)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := warm(ctx, pins, cities, *concurrency); err != nil && *every == 0 {
		os.Exit(1)
	}
	if *every <= 0 {
		return
	}

	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("cache warmer stopped")
			return
		case <-ticker.C:
			_ = warm(ctx, pins, cities, *concurrency)
		}
	}
}

// selectCities resolves a comma-separated key list against the catalogue.
func selectCities(keys string) []domain.City {
	if strings.TrimSpace(keys) == "" {
		return domain.Cities
	}
	var out []domain.City
	for _, k := range strings.Split(keys, ",") {
		if c, ok := domain.LookupCity(strings.TrimSpace(k)); ok {
			out = append(out, c)
		} else {
			slog.Warn("unknown city skipped", "city", k)
		}
	}
	return out
}

// warm refreshes categories and the pins of every city. A failing city
// does not stop the others; the first error is returned.
func warm(ctx context.Context, pins *usecases.PinService, cities []domain.City, concurrency int) error {
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(concurrency)

	g.Go(func() error {
		cats, err := pins.RefreshCategories(ctx)
		if err != nil {
			slog.Error("categories refresh failed", "error", err)
			return err
		}
		slog.Info("categories warmed", "count", len(cats))
		return nil
	})
	for _, c := range cities {
		g.Go(func() error {
			got, err := pins.Refresh(ctx, c.Key)
			if err != nil {
				slog.Error("city refresh failed", "city", c.Key, "error", err)
				return err
			}
			slog.Info("city warmed", "city", c.Key, "pins", len(got))
			return nil
		})
	}

	err := g.Wait()
	slog.Info("cache warm finished", "cities", len(cities), "duration", time.Since(start), "ok", err == nil)
	return err
}
