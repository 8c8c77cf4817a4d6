package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"schooldir/internal/config"
	"schooldir/pkg/logger"
)

// Open connects to the configured record store, sizes the connection pool
// and brings the schema up to date. The caller owns the handle and must
// release it with Close.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger:      gormLogger.Default.LogMode(gormLogger.Silent),
		// Cached sqlite statements stay open and block VACUUM.
		PrepareStmt: dialector.Name() != "sqlite",
		// Writes that must be atomic open their own transaction.
		SkipDefaultTransaction: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := configurePool(db, cfg); err != nil {
		Close(db)
		return nil, err
	}

	if err := Migrate(db); err != nil {
		Close(db)
		return nil, err
	}

	logger.LogInfo("Database initialized successfully (%s)", cfg.Driver)
	return db, nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.LogWarn("Failed to retrieve database handle on close: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.LogWarn("Failed to close database: %v", err)
	}
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		if err := ensureDir(cfg.Path); err != nil {
			return nil, fmt.Errorf("failed to ensure database directory: %w", err)
		}
		return sqlite.Open(sqliteDSN(cfg.Path)), nil
	case "postgres":
		return postgres.Open(postgresDSN(cfg)), nil
	case "mysql":
		return mysql.Open(mysqlDSN(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// sqliteDSN enables WAL so readers do not block the single writer, waits
// on locks instead of failing, and turns on foreign key enforcement so the
// images cascade with their school.
func sqliteDSN(path string) string {
	return fmt.Sprintf(
		"%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on",
		path,
	)
}

func postgresDSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := "disable"
	if cfg.TLS {
		sslMode = "verify-full"
		if cfg.InsecureTLS {
			sslMode = "require"
		}
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, port, cfg.User, cfg.Password, cfg.Name, sslMode, int(cfg.ConnectTimeout.Seconds()))
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + strconv.Itoa(port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = cfg.ConnectTimeout
	if cfg.TLS {
		mc.TLSConfig = "true"
		if cfg.InsecureTLS {
			mc.TLSConfig = "skip-verify"
		}
	}
	return mc.FormatDSN()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0750)
	}
	return nil
}

func configurePool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic database interface: %w", err)
	}

	idle := cfg.MaxIdleConns
	if idle <= 0 || idle > cfg.MaxOpenConns {
		idle = cfg.MaxOpenConns
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(idle)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

// Migrate creates or updates the schools and school_images tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&School{}, &SchoolImage{}); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	// Listing orders by newest first.
	idx := "CREATE INDEX IF NOT EXISTS idx_schools_created_at ON schools(created_at DESC)"
	if db.Dialector.Name() == "mysql" {
		// MySQL has no CREATE INDEX IF NOT EXISTS.
		if db.Migrator().HasIndex(&School{}, "idx_schools_created_at") {
			return nil
		}
		idx = "CREATE INDEX idx_schools_created_at ON schools(created_at DESC)"
	}
	if err := db.Exec(idx).Error; err != nil {
		logger.LogWarn("Failed to create index: %v", err)
	}
	return nil
}
