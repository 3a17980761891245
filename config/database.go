package config

import (
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLDSN builds the driver DSN from the DB_* settings.
func (c *Config) MySQLDSN() string {
	mc := mysql.NewConfig()
	mc.User = c.DBUser
	mc.Passwd = c.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.DBHost, c.DBPort)
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func InitDB(c *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{TranslateError: true}
	if c.IsProduction() {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var dialector gorm.Dialector
	switch c.DBDriver {
	case "mysql":
		dialector = gormmysql.Open(c.MySQLDSN())
	case "sqlite":
		dialector = sqlite.Open(c.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", c.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
