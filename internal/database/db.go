package database

import (
	"fmt"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/config"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open dials a single time. Connect wraps it with retries for startup.
func Open(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_DSN is empty, please configure your database")
	}

	var dialector gorm.Dialector
	switch driver {
	case "mysql", "":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
}

func Connect(cfg config.Database, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}

	var (
		db  *gorm.DB
		err error
	)

	// Wait for the DB container to accept connections
	for i := 0; i < 5; i++ {
		db, err = Open(cfg.Driver, cfg.DSN, level)
		if err == nil {
			break
		}
		log.Warn("failed to connect to database, retrying",
			zap.Int("attempt", i+1), zap.Duration("backoff", 2*time.Second), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect after 5 attempts: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("connected to database", zap.String("driver", cfg.Driver))
	return db, nil
}

// Migrate syncs the schema for every model the engine owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Branch{},
		&models.Product{},
		&models.BranchStock{},
		&models.StockMovement{},
		&models.ImeiUnit{},
		&models.StockTransfer{},
		&models.PerOrder{},
		&models.PerOrderItem{},
		&models.Sale{},
		&models.SaleItem{},
		&models.Payment{},
	)
}
