package client

import (
	"database/sql"
	"os"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	sqltrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/database/sql"
)

// Open initializes a new Ent SQL driver from config. name identifies the
// registered database/sql driver and should be stable per process.
func Open(name string, cfg *Database) (*entsql.Driver, error) {
	drv, dialectName, dsn, err := NewDriver(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	driverName := name + "_" + dialectName
	if cfg.TracingEnabled {
		driverName += "_traced"
		if !slices.Contains(sql.Drivers(), driverName) {
			sqltrace.Register(driverName, drv, sqltrace.WithServiceName(os.Getenv("DD_SERVICE")))
		}
		db, err = sqltrace.Open(driverName, dsn, sqltrace.WithServiceName(os.Getenv("DD_SERVICE")))
		if err != nil {
			return nil, err
		}
	} else {
		if !slices.Contains(sql.Drivers(), driverName) {
			sql.Register(driverName, drv)
		}
		db, err = sql.Open(driverName, dsn)
		if err != nil {
			return nil, err
		}
	}

	entDrv := entsql.OpenDB(dialectName, db)
	if cfg.MaxIdleConns > 0 {
		entDrv.DB().SetMaxIdleConns(int(cfg.MaxIdleConns))
	}
	if cfg.MaxOpenConns > 0 {
		entDrv.DB().SetMaxOpenConns(int(cfg.MaxOpenConns))
	}
	if cfg.ConnMaxIdleTime > 0 {
		entDrv.DB().SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}
	if cfg.ConnMaxLifeTime > 0 {
		entDrv.DB().SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeTime) * time.Minute)
	}
	return entDrv, nil
}
