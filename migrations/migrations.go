package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/danthegoodman1/bqstream/gologger"
	// ensure "pgx" driver is loaded
	_ "github.com/jackc/pgx/v4/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	//go:embed *.sql
	migrations embed.FS

	ErrMigrationsNotRun = fmt.Errorf("not all migrations applied")

	logger = gologger.NewComponentLogger("migrations")
)

func migrationSet() (migrate.MigrationSet, *migrate.EmbedFileSystemMigrationSource) {
	return migrate.MigrationSet{
			TableName: "migrations",
		}, &migrate.EmbedFileSystemMigrationSource{
			FileSystem: migrations,
			Root:       ".",
		}
}

// RunMigrations applies every pending migration and returns how many ran
func RunMigrations(crdbDsn string) (int, error) {
	db, err := sql.Open("pgx", crdbDsn)
	if err != nil {
		return 0, fmt.Errorf("error in sql.Open: %w", err)
	}
	defer db.Close()

	ms, src := migrationSet()
	n, err := ms.Exec(db, "postgres", src, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("error in migrate Exec: %w", err)
	}
	logger.Debug().Int("applied", n).Msg("ran migrations")
	return n, nil
}

func CheckMigrations(crdbDsn string) error {
	db, err := sql.Open("pgx", crdbDsn)
	if err != nil {
		return fmt.Errorf("error in sql.Open: %w", err)
	}
	defer db.Close()

	ms, src := migrationSet()
	migration, _, err := ms.PlanMigration(db, "postgres", src, migrate.Up, 0)
	if err != nil {
		return fmt.Errorf("error in PlanMigration: %w", err)
	}
	if len(migration) > 0 {
		for _, mig := range migration {
			logger.Warn().Str("migrationID", mig.Id).Msg("missing migration")
		}
		return ErrMigrationsNotRun
	}
	return nil
}
