package main

import (
	"context"
	"flag"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"rate_sentinel/internal/adapters/backend"
	"rate_sentinel/internal/adapters/observability"
	"rate_sentinel/internal/app"
	"rate_sentinel/internal/domain"
	"rate_sentinel/internal/shared"
	mysqlrepo "rate_sentinel/internal/storage/mysql"
)

// activator syncs the PMS room-type catalog of every hotel that is mapped to a
// PMS property but not yet active. -hotels limits the run to a comma list.
func main() {
	only := flag.String("hotels", "", "comma separated hotel ids to activate (default: all available)")
	dryRun := flag.Bool("dry-run", false, "list the hotels that would be activated and exit")
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("base", cfg.BackendBase).
		Int("workers", cfg.Workers).
		Msg("activator starting")

	var audit domain.AuditLog
	if cfg.MySQLDSN != "" {
		db, err := mysqlrepo.Open(cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("mysql open failed")
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("db ping ok")
		audit = mysqlrepo.New(db)
	}

	client, err := backend.New(cfg.BackendBase, cfg.BackendKey, cfg.BackendRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize backend client")
	}
	rules := app.NewRuleService(client, audit, cfg.Template)

	targets, err := rules.AvailableHotels(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("listing available hotels failed")
	}
	if *only != "" {
		keep := map[string]bool{}
		for _, id := range strings.Split(*only, ",") {
			keep[strings.TrimSpace(id)] = true
		}
		for id := range targets {
			if !keep[id] {
				delete(targets, id)
			}
		}
	}
	log.Info().Int("hotels", len(targets)).Msg("hotels to activate")
	if *dryRun {
		for id, pms := range targets {
			log.Info().Str("id", id).Str("pms", pms).Msg("would activate")
		}
		return
	}

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var (
		wg     sync.WaitGroup
		failed int32
	)
	for id, pms := range targets {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(hotelID, pmsID string) {
			defer wg.Done()
			defer sem.Release(1)

			c, err := rules.Activate(ctx, hotelID, pmsID)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				log.Warn().Str("id", hotelID).Str("pms", pmsID).Err(err).Msg("activation failed")
				return
			}
			log.Info().Str("id", hotelID).Int("room_types", len(c.PmsRoomTypes)).Msg("activation ok")
		}(id, pms)
	}

	wg.Wait()
	log.Info().Int("hotels", len(targets)).Int32("failed", failed).Msg("activation completed")
}
