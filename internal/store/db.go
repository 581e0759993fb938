// Package store persists places, the parameter catalog, and forecast
// records through gorm, on postgres in production and sqlite for local runs
// and tests.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sellinios/aethra/internal/domain"
)

// Supported DATABASE_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations
var migrations embed.FS

// DB wraps the gorm handle shared by the repositories.
type DB struct {
	gorm   *gorm.DB
	driver string

	// mergeMu serializes forecast merges within the process; the
	// transaction (and row locks on postgres) covers other processes.
	mergeMu sync.Mutex
}

// Open connects to the database. sqlite connections are limited to one so
// writers never see "database is locked".
func Open(driver, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	g, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: domain.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB, err := g.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(g, driver), nil
}

// New wraps an existing gorm handle.
func New(g *gorm.DB, driver string) *DB {
	return &DB{gorm: g, driver: driver}
}

// Driver is the dialect name, postgres or sqlite.
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies the embedded schema migrations for the active dialect.
func (db *DB) Migrate() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations, "migrations/"+db.driver)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	var drv database.Driver
	switch db.driver {
	case DriverPostgres:
		drv, err = migratepg.WithInstance(sqlDB, &migratepg.Config{})
	case DriverSQLite:
		drv, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", db.driver)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.driver, drv)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	// m.Close would also close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Ping checks connectivity within the context deadline.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// CheckReadiness implements the readiness checker used by /readyz.
func (db *DB) CheckReadiness(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
