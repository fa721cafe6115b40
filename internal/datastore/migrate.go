package datastore

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/your-org/krw-btc-cycle-bot/db/schema"
)

// migrateUp applies the embedded migrations in dir to drv. Running it against an
// up-to-date schema is a no-op.
func migrateUp(dir string, drv database.Driver, logger *zap.Logger) (*migrate.Migrate, error) {
	src, err := iofs.New(schema.FS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations %s: %w", dir, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, dir, drv)
	if err != nil {
		return nil, fmt.Errorf("failed to init migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return m, fmt.Errorf("failed to apply %s migrations: %w", dir, err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return m, fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("History schema is up to date", zap.String("driver", dir), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return m, nil
}
