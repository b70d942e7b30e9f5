package migrations

import (
	"context"
	"embed"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

//go:embed schema/*.sql
var sqlMigrations embed.FS

func init() {
	if err := Migrations.Discover(sqlMigrations); err != nil {
		panic(err)
	}
}

func Migrate(ctx context.Context, db *bun.DB) error {
	m := migrate.NewMigrator(db, Migrations)
	if err := m.Init(ctx); err != nil {
		return err
	}

	group, err := m.Migrate(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		log.Info().Msg("no new migrations to apply")
	} else {
		log.Info().Str("group", group.String()).Msg("applied migration group")
	}

	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("total", len(applied)).Msg("migrations applied")

	return nil
}
