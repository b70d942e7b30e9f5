package main

import (
	"context"
	"encoding/hex"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	automation "github.com/nominahr/pg-hr-automation"
	"github.com/nominahr/pg-hr-automation/internal/hrdb"
	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
	"github.com/nominahr/pg-hr-automation/internal/sealed"
	"github.com/nominahr/pg-hr-automation/migrations"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimeFieldFormat = time.RFC3339

	conf, key := mustLoadConfig()

	db, err := automation.GetDBConnection(conf)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres init failed")
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Migrate(rootCtx, db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	codec, err := sealed.New(key)
	if err != nil {
		log.Fatal().Err(err).Msg("sensitive-data codec init failed")
	}

	clock := clockwork.NewRealClock()
	jobs := jobsdb.New(db, clock)
	report := jobsdb.NewReport(db, clock)
	employees := hrdb.NewEmployees(db, clock)
	identity := hrdb.NewIdentity(db, clock)
	directory := hrdb.NewDirectory(db)

	scanner := automation.NewScanner(conf, employees, jobs, log.Logger)
	identityProc := automation.NewIdentityProcessor(conf, employees, identity, directory, codec, log.Logger)
	encryptionProc := automation.NewEncryptionProcessor(conf, employees, codec, clock, log.Logger)

	scheduler, err := automation.NewScheduler(conf, jobs, report, scanner, clock, log.Logger, identityProc, encryptionProc)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler init failed")
	}

	group, gctx := errgroup.WithContext(rootCtx)

	group.Go(func() error {
		log.Info().Str("worker_id", scheduler.WorkerID()).Msg("starting automation scheduler")
		if err := scheduler.Start(); err != nil {
			return err
		}
		<-gctx.Done()
		scheduler.Stop()
		log.Info().Msg("automation scheduler stopped")
		return nil
	})

	if err := group.Wait(); err != nil && gctx.Err() == nil {
		log.Fatal().Err(err).Msg("worker exited with error")
	}
	log.Info().Msg("shutdown complete")
}

func mustLoadConfig() (*automation.Config, []byte) {
	_ = godotenv.Load(".env")

	var (
		dsn          string
		appCode      string
		tickInterval time.Duration
	)
	flag.StringVar(&dsn, "dsn", os.Getenv("HRAUTO_DSN"), "postgres connection string")
	flag.StringVar(&appCode, "app-code", envOr("HRAUTO_APP_CODE", "timewise"), "application granted to provisioned employees")
	flag.DurationVar(&tickInterval, "tick-interval", time.Minute, "scheduler tick interval")
	flag.Parse()

	keyHex := os.Getenv("HRAUTO_SEALED_KEY")
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		log.Fatal().Msg("HRAUTO_SEALED_KEY must be 32 bytes hex-encoded")
	}

	conf := automation.NewConfig(
		automation.WithDSN(dsn),
		automation.WithApplicationCode(appCode),
		automation.WithTickInterval(tickInterval),
		automation.WithEncryptedMarker(sealed.Marker()),
	)

	return conf, key
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
