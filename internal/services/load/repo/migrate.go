package repo

import (
	"context"
	"embed"
	"io/fs"
	"strings"

	"tubesense/internal/modkit/repokit"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLock is the advisory lock key held while a migration is applied
const migrationLock int64 = 0x7475_6265_7365 // "tubese"

// Migrations lists the embedded migration versions in apply order
func Migrations() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".sql"))
	}
	return out, nil
}

// Migrate applies pending embedded migrations in lexical order, one
// transaction each, recording them in schema_migrations. It returns the
// versions applied by this call
func Migrate(ctx context.Context, db repokit.TxRunner) ([]string, error) {
	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, perr.FromPostgres(err, "create schema_migrations")
	}

	versions, err := Migrations()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "read embedded migrations")
	}

	log := logger.C(ctx)
	var applied []string
	for _, v := range versions {
		body, err := migrationsFS.ReadFile("migrations/" + v + ".sql")
		if err != nil {
			return applied, perr.Wrapf(err, perr.ErrorCodeUnknown, "read migration %s", v)
		}
		ran := false
		err = db.Tx(ctx, func(q repokit.Queryer) error {
			if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLock); err != nil {
				return err
			}
			n, err := store.Scalar[int64](ctx, q, `SELECT count(*) FROM schema_migrations WHERE version = $1`, v)
			if err != nil || n > 0 {
				return err
			}
			// no args: pgx sends this over the simple protocol, so multi statement files work
			if _, err := q.Exec(ctx, string(body)); err != nil {
				return err
			}
			if _, err := q.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, v); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, perr.FromPostgresf(err, "apply migration %s", v)
		}
		if ran {
			log.Info().Str("version", v).Msg("load: migration applied")
			applied = append(applied, v)
		}
	}
	return applied, nil
}
