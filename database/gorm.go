package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/edu-materials-api/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GORMStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGORMStore wraps an already opened connection (tests open SQLite this way)
func NewGORMStore(db *gorm.DB, log *zap.Logger) *GORMStore {
	return &GORMStore{db: db, log: log}
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM(env *config.EnvironmentVariables, log *zap.Logger) (*GORMStore, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		env.DBHost,
		env.DBUserName,
		env.DBPassword,
		env.DBName,
		env.DBPort,
		env.DBSSLMode,
	)

	gormLogger := logger.Default.LogMode(logger.Info)
	if env.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		log.Error("unable to connect to PostgreSQL", zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("connected to PostgreSQL",
		zap.String("host", env.DBHost),
		zap.String("database", env.DBName))

	return &GORMStore{db: db, log: log}, nil
}

// Init applies all pending schema migrations
func (s *GORMStore) Init() error {
	s.log.Info("running database migrations")

	if err := Migrate(s.db); err != nil {
		s.log.Error("database migration failed", zap.Error(err))
		return err
	}

	s.log.Info("database migrations completed")
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	s.log.Info("closing database connection")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the GORM handle for services and handlers
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
