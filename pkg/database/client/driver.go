package client

import (
	"database/sql/driver"
	"fmt"
	"net/url"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/viper"
	"modernc.org/sqlite"
)

const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
	TypeMemory   = "memory"
)

// Database configures the SQL connection used by the record store.
type Database struct {
	Type            string
	Username        string
	Password        string
	Host            string
	Port            uint32
	Name            string
	SSLMode         string
	TracingEnabled  bool
	MaxOpenConns    uint32
	MaxIdleConns    uint32
	ConnMaxIdleTime uint32
	ConnMaxLifeTime uint32
}

func ReadConfig() *Database {
	// Enable environment variable usage
	viper.BindEnv("db.type", "DB_TYPE")
	viper.BindEnv("db.user", "DB_USER")
	viper.BindEnv("db.password", "DB_PASSWORD")
	viper.BindEnv("db.host", "DB_HOST")
	viper.BindEnv("db.port", "DB_PORT")
	viper.BindEnv("db.name", "DB_NAME")
	viper.BindEnv("db.sslmode", "DB_SSLMODE")

	viper.SetDefault("db.type", TypeMySQL)

	return &Database{
		Type:            strings.ToLower(viper.GetString("db.type")),
		Username:        viper.GetString("db.user"),
		Password:        viper.GetString("db.password"),
		Host:            viper.GetString("db.host"),
		Port:            viper.GetUint32("db.port"),
		Name:            viper.GetString("db.name"),
		SSLMode:         viper.GetString("db.sslmode"),
		TracingEnabled:  viper.GetBool("db.tracing_enabled"),
		MaxOpenConns:    viper.GetUint32("db.max_open_conns"),
		MaxIdleConns:    viper.GetUint32("db.max_idle_conns"),
		ConnMaxIdleTime: viper.GetUint32("db.conn_max_idle_time"),
		ConnMaxLifeTime: viper.GetUint32("db.conn_max_life_time"),
	}
}

// NewDriver returns the database/sql driver, the ent dialect and the DSN for config.
func NewDriver(config *Database) (driver.Driver, string, string, error) {
	switch config.Type {
	case TypeMySQL, "":
		return mysql.MySQLDriver{}, dialect.MySQL, formatMySQLDSN(config), nil
	case TypePostgres:
		return stdlib.GetDefaultDriver(), dialect.Postgres, formatPostgresDSN(config), nil
	case TypeSQLite:
		return &sqlite.Driver{}, dialect.SQLite, FormatSQLiteDSN(config.Name), nil
	default:
		return nil, "", "", fmt.Errorf("unsupported database type %q", config.Type)
	}
}

func formatMySQLDSN(config *Database) string {
	mysqlConfig := mysql.NewConfig()
	mysqlConfig.Net = "tcp"
	mysqlConfig.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	mysqlConfig.DBName = config.Name
	mysqlConfig.User = config.Username
	mysqlConfig.Passwd = config.Password
	mysqlConfig.AllowNativePasswords = true
	mysqlConfig.ParseTime = true
	mysqlConfig.ClientFoundRows = true
	return mysqlConfig.FormatDSN()
}

func formatPostgresDSN(config *Database) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(config.Username, config.Password),
		Host:   fmt.Sprintf("%s:%d", config.Host, config.Port),
		Path:   "/" + config.Name,
	}
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()
	return u.String()
}

// FormatSQLiteDSN points at the database file and turns foreign keys on,
// which the ent migration engine requires.
func FormatSQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", path)
}
