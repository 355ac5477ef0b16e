package store

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type DriverName string

const (
	PostgresqlDriver DriverName = "postgres"
	MySQLDriver      DriverName = "mysql"
	SQLiteDriver     DriverName = "sqlite"
)

const DefaultTableName = "agritrace_records"

type Record struct {
	ID        string `gorm:"primaryKey;size:191"`
	Data      datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SQLBackend struct {
	tableName string
	db        *gorm.DB
}

func NewSQLBackend(driverName DriverName, dataSourceName string, tableName string) (*SQLBackend, error) {
	newLogger := logger.New(
		log.New(),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)
	gormConfig := &gorm.Config{
		Logger: newLogger,
	}
	var dialector gorm.Dialector
	switch driverName {
	case PostgresqlDriver:
		dialector = postgres.New(
			postgres.Config{
				DSN:                  dataSourceName,
				PreferSimpleProtocol: true,
			},
		)
	case MySQLDriver:
		dialector = mysql.Open(dataSourceName)
	case SQLiteDriver:
		dialector = sqlite.Open(dataSourceName)
	default:
		return nil, errors.Errorf("Driver %s not supported", string(driverName))
	}
	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}
	if tableName == "" {
		tableName = DefaultTableName
	}
	err = db.Table(tableName).AutoMigrate(&Record{})
	if err != nil {
		return nil, err
	}
	return &SQLBackend{db: db, tableName: tableName}, nil
}

func (s *SQLBackend) Load(key string, v interface{}) error {
	var rec Record
	err := s.db.Table(s.tableName).Where("id = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(rec.Data, v)
}

func (s *SQLBackend) Save(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	rec := Record{
		ID:   key,
		Data: data,
	}
	return s.db.Table(s.tableName).Clauses(clause.OnConflict{
		UpdateAll: true,
	}).Create(&rec).Error
}

func (s *SQLBackend) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
