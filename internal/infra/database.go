package infra

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewDatabase opens a GORM connection backed by pgx. The schema is owned by
// the SQL migrations in migrations/; AutoMigrate is never used.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}

// RunMigrations applies the embedded migrations on a dedicated connection,
// then the idempotent data patches. dsn must be in URL form (postgres://...).
func RunMigrations(dsn string, db *gorm.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, _ := m.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema migrated")

	return applySchemaPatches(db)
}

// applySchemaPatches runs statements that depend on the stored data rather
// than on the schema version. Each one is safe to re-run.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"seed folio counter", `
INSERT INTO folios (nombre, ultimo, updated_at)
SELECT 'vales', COALESCE(MAX(numero_formulario::bigint), 0), NOW() FROM vales
ON CONFLICT (nombre) DO NOTHING`},
		{"raise folio counter to stored maximum", `
UPDATE folios SET ultimo = sub.maximo, updated_at = NOW()
FROM (SELECT COALESCE(MAX(numero_formulario::bigint), 0) AS maximo FROM vales) sub
WHERE folios.nombre = 'vales' AND folios.ultimo < sub.maximo`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
