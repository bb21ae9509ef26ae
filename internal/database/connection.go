package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fuel-reconciliation-service/internal/config"
	"fuel-reconciliation-service/internal/models"
)

// errUnknownDatabase is MySQL's ER_BAD_DB_ERROR.
const errUnknownDatabase = 1049

// NewConnection opens the configured store. MySQL schemas come from the SQL
// migrations; the sqlite driver is migrated from the models.
func NewConnection(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	if cfg.Database.Driver == "sqlite" {
		db, err := OpenSQLite(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		log.Info("using sqlite database", zap.String("path", cfg.Database.Path))
		return db, nil
	}

	sqlDB, err := openMySQL(cfg, log)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error opening gorm: %w", err)
	}
	return db, nil
}

func openMySQL(cfg *config.Config, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()

		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) || mysqlErr.Number != errUnknownDatabase {
			return nil, fmt.Errorf("error pinging database: %w", err)
		}

		log.Warn("database does not exist, attempting to create it", zap.String("database", cfg.Database.Name))
		if err := createDatabase(cfg); err != nil {
			return nil, err
		}
		log.Info("created database", zap.String("database", cfg.Database.Name))

		db, err = sql.Open("mysql", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("error connecting to new database: %w", err)
		}
		if err = db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("error verifying connection to new database: %w", err)
		}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info("connected to MySQL database", zap.String("database", cfg.Database.Name))
	return db, nil
}

func createDatabase(cfg *config.Config) error {
	rootDB, err := sql.Open("mysql", cfg.GetRootDSN())
	if err != nil {
		return fmt.Errorf("error connecting to MySQL root: %w", err)
	}
	defer rootDB.Close()

	_, err = rootDB.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", cfg.Database.Name))
	if err != nil {
		return fmt.Errorf("error creating database: %w", err)
	}
	return nil
}

// OpenSQLite opens a pure-Go sqlite database and migrates it from the models.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite: %w", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("error migrating sqlite: %w", err)
	}
	return db, nil
}

// Models lists every persisted type.
func Models() []any {
	return []any{
		&models.Order{},
		&models.Payment{},
		&models.EmbeddedPayment{},
		&models.TaxRecord{},
		&models.BankAccount{},
		&models.SharedTaxRate{},
		&models.ShareLink{},
		&models.ShareLinkAudit{},
		&models.DeliveryHistory{},
	}
}
